package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/models"
)

// Максимальная длина описания своей стороны обмена, как у bio в профиле
const maxDetailBioLen = 150

// Таблица XP: сумма трёх измерений даёт ставку стороны в обмене
var (
	proficiencyXP = map[models.SkillProficiency]int{
		models.ProficiencyBeginner:     50,
		models.ProficiencyIntermediate: 100,
		models.ProficiencyAdvanced:     150,
		models.ProficiencyCertified:    200,
	}
	deliveryXP = map[models.DeliveryMode]int{
		models.DeliveryOnline: 75,
		models.DeliveryOnsite: 100,
		models.DeliveryHybrid: 150,
	}
	requestTypeXP = map[models.RequestType]int{
		models.RequestTypeOutput:  100,
		models.RequestTypeService: 150,
		models.RequestTypeProject: 300,
	}
)

// TotalXP вычисляет ставку XP по трём выбранным измерениям
func TotalXP(p models.SkillProficiency, d models.DeliveryMode, r models.RequestType) int {
	return proficiencyXP[p] + deliveryXP[d] + requestTypeXP[r]
}

// LevelForXP возвращает уровень по накопленным XP: каждые 1000 XP — новый уровень
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/1000 + 1
}

// DetailInput — входные данные описания своей стороны обмена
type DetailInput struct {
	SkillProficiency string
	DeliveryMode     string
	RequestType      string
	Description      string
	ContextImageURL  string
	ContextImageID   string
}

// SubmitDetail создает или обновляет описание стороны обмена и пересчитывает
// её ставку XP. Когда появляются описания обеих сторон, в той же транзакции
// создается оценка справедливости.
func (e *Engine) SubmitDetail(ctx context.Context, tradeID, userID uuid.UUID, in DetailInput) (*models.TradeDetail, error) {
	prof, err := models.ParseSkillProficiency(in.SkillProficiency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChoice, err)
	}
	mode, err := models.ParseDeliveryMode(in.DeliveryMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChoice, err)
	}
	reqType, err := models.ParseRequestType(in.RequestType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChoice, err)
	}
	description := strings.TrimSpace(in.Description)
	if len([]rune(description)) > maxDetailBioLen {
		return nil, fmt.Errorf("%w: описание длиннее %d символов", ErrValidation, maxDetailBioLen)
	}

	var (
		out     *models.TradeDetail
		pending *scoreInput
	)
	err = e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if !t.IsParty(userID) {
			return fmt.Errorf("%w: детали подаёт только участник обмена", ErrForbidden)
		}
		if t.ResponderID == nil {
			return fmt.Errorf("%w: отклик по запросу ещё не принят", ErrInvalidState)
		}
		if t.Status != models.TradeStatusPending {
			return fmt.Errorf("%w: детали принимаются до активации обмена, сейчас %s", ErrInvalidState, t.Status)
		}

		detail, err := tx.DetailByUser(userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if detail == nil {
			detail = &models.TradeDetail{
				ID:             uuid.New(),
				TradeRequestID: tradeID,
				UserID:         userID,
				CreatedAt:      time.Now(),
			}
		}

		// При замене контекстной картинки старый файл больше не нужен
		if detail.ContextImageID != "" && detail.ContextImageID != in.ContextImageID {
			e.deleteArtifact(ctx, detail.ContextImageID)
		}

		detail.SkillProficiency = prof
		detail.DeliveryMode = mode
		detail.RequestType = reqType
		detail.Description = description
		detail.ContextImageURL = in.ContextImageURL
		detail.ContextImageID = in.ContextImageID
		detail.TotalXP = TotalXP(prof, mode, reqType)

		if err := tx.UpsertDetail(detail); err != nil {
			return err
		}
		out = detail

		pending, err = e.ensureEvaluation(tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	// AI-сервис вызывается уже после коммита, вне блокировки строки запроса
	if pending != nil {
		e.applyAIScore(ctx, tradeID, pending)
	}
	return out, nil
}

// Details возвращает описания сторон обмена; доступно только участникам
func (e *Engine) Details(ctx context.Context, tradeID, actorID uuid.UUID) ([]models.TradeDetail, error) {
	var out []models.TradeDetail
	err := e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if !t.IsParty(actorID) {
			return fmt.Errorf("%w: детали видны только участникам обмена", ErrForbidden)
		}
		out, err = tx.Details()
		return err
	})
	return out, err
}

// deleteArtifact удаляет файл во внешнем хранилище; сбой не фатален
func (e *Engine) deleteArtifact(ctx context.Context, publicID string) {
	if e.artifacts == nil || publicID == "" {
		return
	}
	if err := e.artifacts.Delete(ctx, publicID); err != nil {
		logArtifactError(publicID, err)
	}
}
