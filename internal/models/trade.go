package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeStatus представляет статус запроса на обмен
type TradeStatus string

const (
	TradeStatusNone      TradeStatus = "NONE"      // открыт, откликов ещё нет
	TradeStatusPending   TradeStatus = "PENDING"   // есть отклики или идёт оценка
	TradeStatusActive    TradeStatus = "ACTIVE"    // обе стороны подтвердили оценку
	TradeStatusCancelled TradeStatus = "CANCELLED" // отменён
	TradeStatusCompleted TradeStatus = "COMPLETED" // обе стороны выставили оценки
)

// Terminal сообщает, является ли статус терминальным
func (s TradeStatus) Terminal() bool {
	return s == TradeStatusCancelled || s == TradeStatusCompleted
}

// TradeRequest представляет запрос на обмен навыками
type TradeRequest struct {
	ID             uuid.UUID   `json:"id"`
	RequesterID    uuid.UUID   `json:"requester_id"`
	ResponderID    *uuid.UUID  `json:"responder_id,omitempty"`
	Name           string      `json:"name"`
	Deadline       *time.Time  `json:"deadline,omitempty"`
	Status         TradeStatus `json:"status"`
	Exchange       *string     `json:"exchange,omitempty"` // категория, которую предлагает респондент; фиксируется при акцепте
	RequesterRated bool        `json:"requester_rated"`
	ResponderRated bool        `json:"responder_rated"`
	CreatedAt      time.Time   `json:"created_at"`

	// Дополнительные поля для API
	Requester      *User      `json:"requester,omitempty"`
	Responder      *User      `json:"responder,omitempty"`
	SuggestedOffer string     `json:"suggested_offer,omitempty"` // что автор запроса может предложить зрителю ленты
	InterestCount  int        `json:"interest_count,omitempty"`
	ChatID         *uuid.UUID `json:"chat_id,omitempty"`
}

// IsParty сообщает, является ли пользователь стороной обмена
func (t *TradeRequest) IsParty(userID uuid.UUID) bool {
	if t.RequesterID == userID {
		return true
	}
	return t.ResponderID != nil && *t.ResponderID == userID
}

// OtherParty возвращает ID второй стороны обмена
func (t *TradeRequest) OtherParty(userID uuid.UUID) uuid.UUID {
	if t.RequesterID == userID && t.ResponderID != nil {
		return *t.ResponderID
	}
	return t.RequesterID
}

// InterestStatus представляет статус отклика на запрос
type InterestStatus string

const (
	InterestStatusPending   InterestStatus = "PENDING"
	InterestStatusAccepted  InterestStatus = "ACCEPTED"
	InterestStatusDeclined  InterestStatus = "DECLINED"
	InterestStatusCancelled InterestStatus = "CANCELLED" // отозван самим откликнувшимся
)

// TradeInterest представляет отклик пользователя на запрос обмена
type TradeInterest struct {
	ID               uuid.UUID      `json:"id"`
	TradeRequestID   uuid.UUID      `json:"trade_request_id"`
	InterestedUserID uuid.UUID      `json:"interested_user_id"`
	Status           InterestStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`

	// Дополнительные поля для API
	InterestedUser *User  `json:"interested_user,omitempty"`
	SuggestedOffer string `json:"suggested_offer,omitempty"`
}
