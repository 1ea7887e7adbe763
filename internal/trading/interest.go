package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/models"
)

// ExpressInterest записывает отклик пользователя на запрос обмена.
// Нельзя откликаться на собственный запрос. Снятый или отклонённый
// отклик той же пары реактивируется, а не дублируется. Первый отклик
// переводит запрос из NONE в PENDING.
func (e *Engine) ExpressInterest(ctx context.Context, tradeID, userID uuid.UUID) (*models.TradeInterest, error) {
	var out *models.TradeInterest
	err := e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if t.RequesterID == userID {
			return fmt.Errorf("%w: нельзя откликаться на собственный запрос", ErrValidation)
		}
		if t.ResponderID != nil {
			return fmt.Errorf("%w", ErrAlreadyAccepted)
		}
		if t.Status != models.TradeStatusNone && t.Status != models.TradeStatusPending {
			return fmt.Errorf("%w: запрос в статусе %s не принимает отклики", ErrInvalidState, t.Status)
		}

		existing, err := tx.InterestByUser(userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil {
			switch existing.Status {
			case models.InterestStatusPending, models.InterestStatusAccepted:
				return fmt.Errorf("%w: отклик уже существует", ErrAlreadyProcessed)
			default:
				// Реактивация вместо дубликата
				existing.Status = models.InterestStatusPending
				if err := tx.SaveInterest(existing); err != nil {
					return err
				}
				out = existing
			}
		} else {
			out = &models.TradeInterest{
				ID:               uuid.New(),
				TradeRequestID:   tradeID,
				InterestedUserID: userID,
				Status:           models.InterestStatusPending,
				CreatedAt:        time.Now(),
			}
			if err := tx.CreateInterest(out); err != nil {
				return err
			}
		}

		if t.Status == models.TradeStatusNone {
			t.Status = models.TradeStatusPending
			if err := tx.SaveTrade(t); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Interests возвращает отклики по запросу. Полный список виден только
// автору запроса.
func (e *Engine) Interests(ctx context.Context, tradeID, actorID uuid.UUID) ([]models.TradeInterest, error) {
	t, err := e.store.TradeRequestByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if t.RequesterID != actorID {
		return nil, fmt.Errorf("%w: отклики видны только автору запроса", ErrForbidden)
	}
	interests, err := e.store.InterestsByTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	// Подсказка для автора: что каждый откликнувшийся мог бы предложить взамен
	for i := range interests {
		offer, err := e.matcher.BestOffer(ctx, interests[i].InterestedUserID, &t.RequesterID)
		if err != nil {
			continue
		}
		interests[i].SuggestedOffer = offer
	}
	return interests, nil
}

// MyInterests возвращает отклики самого пользователя
func (e *Engine) MyInterests(ctx context.Context, userID uuid.UUID) ([]models.TradeInterest, error) {
	return e.store.InterestsByUser(ctx, userID)
}

// AcceptInterest принимает один отклик: помечает его ACCEPTED, назначает
// респондента, фиксирует exchange по навыкам респондента против интересов
// автора и отклоняет остальные ожидающие отклики. Всё выполняется одной
// транзакцией с блокировкой строки запроса: из двух одновременных акцептов
// победит ровно один, второй получит ErrAlreadyAccepted.
func (e *Engine) AcceptInterest(ctx context.Context, interestID, actorID uuid.UUID) (*models.TradeRequest, error) {
	interest, err := e.store.InterestByID(ctx, interestID)
	if err != nil {
		return nil, err
	}

	// exchange считается по навыкам откликнувшегося против интересов автора.
	// Подбор идёт до критической секции: граф навыков read-only и на исход
	// гонки акцептов не влияет.
	pre, err := e.store.TradeRequestByID(ctx, interest.TradeRequestID)
	if err != nil {
		return nil, err
	}
	exchange, err := e.matcher.BestOffer(ctx, interest.InterestedUserID, &pre.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("подбор exchange: %w", err)
	}

	var out *models.TradeRequest
	err = e.store.WithTradeTx(ctx, interest.TradeRequestID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if t.RequesterID != actorID {
			return fmt.Errorf("%w: принять отклик может только автор запроса", ErrForbidden)
		}
		if t.ResponderID != nil {
			return fmt.Errorf("%w", ErrAlreadyAccepted)
		}
		if t.Status.Terminal() {
			return fmt.Errorf("%w: запрос уже %s", ErrInvalidState, t.Status)
		}

		// Отклик перечитывается под блокировкой: проигравший параллельный
		// акцепт увидит здесь уже не PENDING
		current, err := tx.InterestByID(interestID)
		if err != nil {
			return err
		}
		if current.Status != models.InterestStatusPending {
			return fmt.Errorf("%w: отклик в статусе %s", ErrAlreadyProcessed, current.Status)
		}

		current.Status = models.InterestStatusAccepted
		if err := tx.SaveInterest(current); err != nil {
			return err
		}

		others, err := tx.Interests()
		if err != nil {
			return err
		}
		for i := range others {
			if others[i].ID == current.ID || others[i].Status != models.InterestStatusPending {
				continue
			}
			others[i].Status = models.InterestStatusDeclined
			if err := tx.SaveInterest(&others[i]); err != nil {
				return err
			}
		}

		responderID := current.InterestedUserID
		t.ResponderID = &responderID
		t.Exchange = &exchange
		// Запрос остаётся PENDING до двойного подтверждения оценки
		t.Status = models.TradeStatusPending
		if err := tx.SaveTrade(t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// DeclineInterest отклоняет один отклик. Если после этого у запроса без
// принятого отклика не осталось ожидающих, он возвращается в NONE.
func (e *Engine) DeclineInterest(ctx context.Context, interestID, actorID uuid.UUID) error {
	interest, err := e.store.InterestByID(ctx, interestID)
	if err != nil {
		return err
	}
	return e.store.WithTradeTx(ctx, interest.TradeRequestID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if t.RequesterID != actorID {
			return fmt.Errorf("%w: отклонить отклик может только автор запроса", ErrForbidden)
		}
		current, err := tx.InterestByID(interestID)
		if err != nil {
			return err
		}
		if current.Status != models.InterestStatusPending {
			return fmt.Errorf("%w: отклик в статусе %s", ErrAlreadyProcessed, current.Status)
		}
		current.Status = models.InterestStatusDeclined
		if err := tx.SaveInterest(current); err != nil {
			return err
		}
		return e.revertIfNoPending(tx, t)
	})
}

// WithdrawInterest позволяет откликнувшемуся отозвать собственный
// ожидающий отклик.
func (e *Engine) WithdrawInterest(ctx context.Context, interestID, actorID uuid.UUID) error {
	interest, err := e.store.InterestByID(ctx, interestID)
	if err != nil {
		return err
	}
	if interest.InterestedUserID != actorID {
		return fmt.Errorf("%w: отозвать можно только свой отклик", ErrForbidden)
	}
	return e.store.WithTradeTx(ctx, interest.TradeRequestID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		current, err := tx.InterestByID(interestID)
		if err != nil {
			return err
		}
		if current.Status != models.InterestStatusPending {
			return fmt.Errorf("%w: отклик в статусе %s", ErrAlreadyProcessed, current.Status)
		}
		current.Status = models.InterestStatusCancelled
		if err := tx.SaveInterest(current); err != nil {
			return err
		}
		return e.revertIfNoPending(tx, t)
	})
}

// revertIfNoPending возвращает запрос без принятого отклика в NONE,
// когда ожидающих откликов больше нет
func (e *Engine) revertIfNoPending(tx TradeTx, t *models.TradeRequest) error {
	if t.ResponderID != nil || t.Status != models.TradeStatusPending {
		return nil
	}
	interests, err := tx.Interests()
	if err != nil {
		return err
	}
	for _, i := range interests {
		if i.Status == models.InterestStatusPending {
			return nil
		}
	}
	t.Status = models.TradeStatusNone
	return tx.SaveTrade(t)
}
