package trading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/models"
)

// SubmitProof сохраняет доказательство выполнения в слот подающей стороны.
// Доступно только при активном обмене. Прежний файл слота удаляется,
// статус слота сбрасывается в PENDING до решения второй стороны.
func (e *Engine) SubmitProof(ctx context.Context, tradeID, userID uuid.UUID, artifact models.ProofArtifact) (*models.TradeHistory, error) {
	if artifact.URL == "" {
		return nil, fmt.Errorf("%w: не передан файл доказательства", ErrValidation)
	}
	var out *models.TradeHistory
	err := e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if !t.IsParty(userID) {
			return fmt.Errorf("%w: доказательство подаёт только участник обмена", ErrForbidden)
		}
		if t.Status != models.TradeStatusActive {
			return fmt.Errorf("%w: доказательства принимаются только в активном обмене, сейчас %s", ErrInvalidState, t.Status)
		}

		h, err := tx.History()
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			h = &models.TradeHistory{
				ID:                   uuid.New(),
				TradeRequestID:       tradeID,
				RequesterProofStatus: models.ProofStatusPending,
				ResponderProofStatus: models.ProofStatusPending,
				CreatedAt:            time.Now(),
			}
			if err := tx.CreateHistory(h); err != nil {
				return err
			}
		}

		if userID == t.RequesterID {
			if h.RequesterProof != nil {
				e.deleteArtifact(ctx, h.RequesterProof.PublicID)
			}
			h.RequesterProof = &artifact
			h.RequesterProofStatus = models.ProofStatusPending
		} else {
			if h.ResponderProof != nil {
				e.deleteArtifact(ctx, h.ResponderProof.PublicID)
			}
			h.ResponderProof = &artifact
			h.ResponderProofStatus = models.ProofStatusPending
		}
		if err := tx.SaveHistory(h); err != nil {
			return err
		}
		out = h
		return nil
	})
	return out, err
}

// ApproveProof подтверждает доказательство второй стороны
func (e *Engine) ApproveProof(ctx context.Context, tradeID, userID uuid.UUID) (*models.TradeHistory, error) {
	return e.reviewProof(ctx, tradeID, userID, true)
}

// RejectProof отклоняет доказательство второй стороны: файл удаляется,
// слот возвращается в PENDING для повторной загрузки
func (e *Engine) RejectProof(ctx context.Context, tradeID, userID uuid.UUID) (*models.TradeHistory, error) {
	return e.reviewProof(ctx, tradeID, userID, false)
}

// reviewProof применяет решение стороны к доказательству её контрагента.
// Своё доказательство подтвердить или отклонить нельзя.
func (e *Engine) reviewProof(ctx context.Context, tradeID, userID uuid.UUID, approve bool) (*models.TradeHistory, error) {
	var out *models.TradeHistory
	err := e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if !t.IsParty(userID) {
			return fmt.Errorf("%w: решение по доказательству принимает только участник обмена", ErrForbidden)
		}
		if t.Status != models.TradeStatusActive {
			return fmt.Errorf("%w: обмен не активен, сейчас %s", ErrInvalidState, t.Status)
		}
		h, err := tx.History()
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: доказательства ещё не поданы", ErrInvalidState)
			}
			return err
		}

		// Решение всегда относится к слоту контрагента
		if userID == t.RequesterID {
			if h.ResponderProof == nil {
				return fmt.Errorf("%w: вторая сторона ещё не загрузила доказательство", ErrInvalidState)
			}
			if approve {
				h.ResponderProofStatus = models.ProofStatusApproved
			} else {
				e.deleteArtifact(ctx, h.ResponderProof.PublicID)
				h.ResponderProof = nil
				h.ResponderProofStatus = models.ProofStatusPending
			}
		} else {
			if h.RequesterProof == nil {
				return fmt.Errorf("%w: вторая сторона ещё не загрузила доказательство", ErrInvalidState)
			}
			if approve {
				h.RequesterProofStatus = models.ProofStatusApproved
			} else {
				e.deleteArtifact(ctx, h.RequesterProof.PublicID)
				h.RequesterProof = nil
				h.RequesterProofStatus = models.ProofStatusPending
			}
		}

		if err := tx.SaveHistory(h); err != nil {
			return err
		}
		out = h
		return nil
	})
	return out, err
}

// Proofs возвращает запись о доказательствах обмена; видна только участникам
func (e *Engine) Proofs(ctx context.Context, tradeID, actorID uuid.UUID) (*models.TradeHistory, error) {
	t, err := e.store.TradeRequestByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) {
		return nil, fmt.Errorf("%w: доказательства видны только участникам обмена", ErrForbidden)
	}
	var out *models.TradeHistory
	err = e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		out, err = tx.History()
		return err
	})
	return out, err
}

func logArtifactError(publicID string, err error) {
	log.Printf("Ошибка удаления файла %s: %v", publicID, err)
}
