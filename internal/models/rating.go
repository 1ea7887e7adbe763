package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating представляет взаимные оценки сторон обмена, одна запись на запрос.
// Тройка звёзды/отзыв/время каждой стороны записывается ровно один раз.
type Rating struct {
	ID             uuid.UUID `json:"id"`
	TradeRequestID uuid.UUID `json:"trade_request_id"`

	RequesterStars   *int       `json:"requester_stars,omitempty"` // 1-5
	RequesterReview  *string    `json:"requester_review,omitempty"`
	RequesterRatedAt *time.Time `json:"requester_rated_at,omitempty"`

	ResponderStars   *int       `json:"responder_stars,omitempty"`
	ResponderReview  *string    `json:"responder_review,omitempty"`
	ResponderRatedAt *time.Time `json:"responder_rated_at,omitempty"`
}
