package trading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/models"
)

// Детерминированные таблицы оценки: значение измерения для каждой стороны,
// итог — среднее двух сторон, зажатое в [20,100]
var (
	complexityByType = map[models.RequestType]int{
		models.RequestTypeOutput:  45,
		models.RequestTypeService: 60,
		models.RequestTypeProject: 90,
	}
	timeByDelivery = map[models.DeliveryMode]int{
		models.DeliveryOnline: 40,
		models.DeliveryOnsite: 60,
		models.DeliveryHybrid: 75,
	}
	skillByProficiency = map[models.SkillProficiency]int{
		models.ProficiencyBeginner:     25,
		models.ProficiencyIntermediate: 50,
		models.ProficiencyAdvanced:     75,
		models.ProficiencyCertified:    95,
	}
)

// scoreInput — данные для AI-оценки, собранные при создании записи
type scoreInput struct {
	requested string
	offered   string
	extra     string
}

// ensureEvaluation лениво создает оценку справедливости по детерминированным
// таблицам, как только есть описания обеих сторон. Повторный вызов ничего не
// делает. Возвращает данные для AI-оценки, если запись только что создана и
// AI-сервис настроен: сетевой вызов не должен идти под блокировкой строки
// запроса, поэтому он выполняется уже после коммита.
func (e *Engine) ensureEvaluation(tx TradeTx, t *models.TradeRequest) (*scoreInput, error) {
	details, err := tx.Details()
	if err != nil {
		return nil, err
	}
	if len(details) < 2 {
		return nil, nil
	}
	if _, err := tx.Evaluation(); err == nil {
		return nil, nil // уже создана
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var reqDetail, respDetail *models.TradeDetail
	for i := range details {
		if details[i].UserID == t.RequesterID {
			reqDetail = &details[i]
		} else {
			respDetail = &details[i]
		}
	}
	if reqDetail == nil || respDetail == nil {
		return nil, nil
	}

	requester, err := tx.User(t.RequesterID)
	if err != nil {
		return nil, err
	}
	responder, err := tx.User(*t.ResponderID)
	if err != nil {
		return nil, err
	}

	eval := &models.Evaluation{
		ID:             uuid.New(),
		TradeRequestID: t.ID,
		TaskComplexity: avgClamped(complexityByType[reqDetail.RequestType], complexityByType[respDetail.RequestType]),
		TimeCommitment: avgClamped(timeByDelivery[reqDetail.DeliveryMode], timeByDelivery[respDetail.DeliveryMode]),
		SkillLevel:     avgClamped(skillByProficiency[reqDetail.SkillProficiency], skillByProficiency[respDetail.SkillProficiency]),
		CreatedAt:      time.Now(),
	}
	eval.Feedback = evaluationFeedback(requester.DisplayName(), responder.DisplayName(), eval)

	if err := tx.CreateEvaluation(eval); err != nil {
		return nil, err
	}
	if e.scorer == nil {
		return nil, nil
	}
	return &scoreInput{
		requested: reqDetail.Description,
		offered:   respDetail.Description,
		extra:     t.Name,
	}, nil
}

// applyAIScore запрашивает AI-оценку и замещает ею детерминированный расчёт.
// Выполняется вне критической секции; при сбое сервиса остаётся расчёт по
// таблицам. Если какая-то из сторон уже успела ответить, оценка не меняется.
func (e *Engine) applyAIScore(ctx context.Context, tradeID uuid.UUID, in *scoreInput) {
	result, err := e.scorer.ScoreTrade(ctx, in.requested, in.offered, in.extra)
	if err != nil {
		log.Printf("AI-оценка обмена %s не удалась, используем расчёт по таблицам: %v", tradeID, err)
		return
	}
	err = e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		eval, err := tx.Evaluation()
		if err != nil {
			return err
		}
		if eval.RequesterResponse != nil || eval.ResponderResponse != nil {
			return nil
		}
		eval.TaskComplexity = result.TaskComplexity
		eval.TimeCommitment = result.TimeCommitment
		eval.SkillLevel = result.SkillLevel
		if strings.TrimSpace(result.Feedback) != "" {
			eval.Feedback = result.Feedback
		}
		return tx.SaveEvaluation(eval)
	})
	if err != nil {
		log.Printf("Не удалось сохранить AI-оценку обмена %s: %v", tradeID, err)
	}
}

// Evaluation возвращает оценку справедливости обмена; видна только участникам
func (e *Engine) Evaluation(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Evaluation, error) {
	t, err := e.store.TradeRequestByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) {
		return nil, fmt.Errorf("%w: оценка видна только участникам обмена", ErrForbidden)
	}
	var out *models.Evaluation
	err = e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		out, err = tx.Evaluation()
		return err
	})
	return out, err
}

// RespondEvaluation записывает ответ стороны на оценку. Ответ дается один
// раз. REJECT немедленно отменяет обмен, не дожидаясь второй стороны;
// двойной CONFIRM активирует его.
func (e *Engine) RespondEvaluation(ctx context.Context, tradeID, userID uuid.UUID, confirm bool) (*models.TradeRequest, error) {
	var out *models.TradeRequest
	err := e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if !t.IsParty(userID) {
			return fmt.Errorf("%w: на оценку отвечает только участник обмена", ErrForbidden)
		}
		// Ответы принимаются только до активации: отменённый или завершённый
		// обмен не оживает, активный не переоценивается
		if t.Status != models.TradeStatusPending {
			return fmt.Errorf("%w: оценка уже не ожидает ответов, обмен %s", ErrInvalidState, t.Status)
		}
		eval, err := tx.Evaluation()
		if err != nil {
			return err
		}

		decision := models.EvaluationRejected
		if confirm {
			decision = models.EvaluationConfirmed
		}
		now := time.Now()

		switch userID {
		case t.RequesterID:
			if eval.RequesterResponse != nil {
				return fmt.Errorf("%w", ErrAlreadyResponded)
			}
			eval.RequesterResponse = &decision
			eval.RequesterRespondedAt = &now
		default:
			if eval.ResponderResponse != nil {
				return fmt.Errorf("%w", ErrAlreadyResponded)
			}
			eval.ResponderResponse = &decision
			eval.ResponderRespondedAt = &now
		}
		if err := tx.SaveEvaluation(eval); err != nil {
			return err
		}

		if decision == models.EvaluationRejected {
			t.Status = models.TradeStatusCancelled
			if err := tx.SaveTrade(t); err != nil {
				return err
			}
		} else if bothConfirmed(eval) {
			t.Status = models.TradeStatusActive
			if err := tx.SaveTrade(t); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	return out, err
}

func bothConfirmed(eval *models.Evaluation) bool {
	return eval.RequesterResponse != nil && *eval.RequesterResponse == models.EvaluationConfirmed &&
		eval.ResponderResponse != nil && *eval.ResponderResponse == models.EvaluationConfirmed
}

func avgClamped(a, b int) int {
	v := (a + b) / 2
	if v < 20 {
		return 20
	}
	if v > 100 {
		return 100
	}
	return v
}

// TradeScore выводит балл сделки 1-10 из трёх измерений оценки
func TradeScore(eval *models.Evaluation) int {
	score := (eval.TaskComplexity + eval.TimeCommitment + eval.SkillLevel + 15) / 30
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// evaluationFeedback собирает текст фидбека из имён сторон и уровней измерений
func evaluationFeedback(requesterName, responderName string, eval *models.Evaluation) string {
	return fmt.Sprintf(
		"I compared %s's request with %s's offer: task complexity is %s, time commitment is %s, and the required skill level is %s. Overall this looks like a balanced exchange.",
		requesterName, responderName,
		tierWord(eval.TaskComplexity), tierWord(eval.TimeCommitment), tierWord(eval.SkillLevel),
	)
}

// tierWord переводит значение 0-100 в словесный уровень
func tierWord(v int) string {
	switch {
	case v < 40:
		return "low"
	case v < 70:
		return "moderate"
	default:
		return "high"
	}
}
