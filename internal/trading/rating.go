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

const maxReviewLen = 500

// SubmitRating записывает оценку стороны: звёзды и отзыв о контрагенте.
// В той же транзакции подающему один раз начисляется его ставка XP,
// контрагенту инкрементально обновляется средний рейтинг, а когда обе
// стороны оценили — обмен завершается и в истории ставится completed_at.
// Повторная попытка той же стороны отсекается по флагу *_rated на самом
// запросе, поэтому двойного начисления не бывает даже при гонке.
func (e *Engine) SubmitRating(ctx context.Context, tradeID, userID uuid.UUID, stars int, review string) (*models.Rating, error) {
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("%w: звёзды задаются от 1 до 5", ErrValidation)
	}
	review = strings.TrimSpace(review)
	if review == "" {
		return nil, fmt.Errorf("%w: пустой отзыв", ErrValidation)
	}
	if len([]rune(review)) > maxReviewLen {
		return nil, fmt.Errorf("%w: отзыв длиннее %d символов", ErrValidation, maxReviewLen)
	}

	var out *models.Rating
	err := e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if !t.IsParty(userID) {
			return fmt.Errorf("%w: оценку выставляет только участник обмена", ErrForbidden)
		}
		if t.Status != models.TradeStatusActive && t.Status != models.TradeStatusCompleted {
			return fmt.Errorf("%w: оценки принимаются после активации обмена, сейчас %s", ErrInvalidState, t.Status)
		}

		h, err := tx.History()
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: доказательства ещё не поданы", ErrInvalidState)
			}
			return err
		}
		if !h.BothApproved() {
			return fmt.Errorf("%w: доказательства обеих сторон ещё не подтверждены", ErrInvalidState)
		}

		isRequester := userID == t.RequesterID
		if (isRequester && t.RequesterRated) || (!isRequester && t.ResponderRated) {
			return fmt.Errorf("%w: оценка уже выставлена", ErrAlreadyProcessed)
		}

		r, err := tx.Rating()
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			r = &models.Rating{
				ID:             uuid.New(),
				TradeRequestID: tradeID,
			}
			if err := tx.CreateRating(r); err != nil {
				return err
			}
		}

		now := time.Now()
		if isRequester {
			r.RequesterStars = &stars
			r.RequesterReview = &review
			r.RequesterRatedAt = &now
			t.RequesterRated = true
		} else {
			r.ResponderStars = &stars
			r.ResponderReview = &review
			r.ResponderRatedAt = &now
			t.ResponderRated = true
		}
		if err := tx.SaveRating(r); err != nil {
			return err
		}

		// XP начисляется подающему, ровно один раз на его деталь обмена
		detail, err := tx.DetailByUser(userID)
		if err != nil {
			return err
		}
		if !detail.XPAwarded {
			self, err := tx.User(userID)
			if err != nil {
				return err
			}
			self.TotalXP += detail.TotalXP
			self.Level = LevelForXP(self.TotalXP)
			if err := tx.SaveUserScore(self); err != nil {
				return err
			}
			detail.XPAwarded = true
			if err := tx.UpsertDetail(detail); err != nil {
				return err
			}
		}

		// Звёзды идут в средний рейтинг контрагента
		other, err := tx.User(t.OtherParty(userID))
		if err != nil {
			return err
		}
		other.AvgStars = (other.AvgStars*float64(other.RatingCount) + float64(stars)) / float64(other.RatingCount+1)
		other.RatingCount++
		if err := tx.SaveUserScore(other); err != nil {
			return err
		}

		if t.RequesterRated && t.ResponderRated {
			t.Status = models.TradeStatusCompleted
			if h.CompletedAt == nil {
				h.CompletedAt = &now
				if err := tx.SaveHistory(h); err != nil {
					return err
				}
			}
		}
		if err := tx.SaveTrade(t); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// Rating возвращает запись взаимных оценок обмена; видна только участникам
func (e *Engine) Rating(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Rating, error) {
	t, err := e.store.TradeRequestByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) {
		return nil, fmt.Errorf("%w: оценки видны только участникам обмена", ErrForbidden)
	}
	var out *models.Rating
	err = e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		out, err = tx.Rating()
		return err
	})
	return out, err
}
