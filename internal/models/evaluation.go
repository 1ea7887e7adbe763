package models

import (
	"time"

	"github.com/google/uuid"
)

// EvaluationDecision представляет ответ стороны на оценку справедливости
type EvaluationDecision string

const (
	EvaluationConfirmed EvaluationDecision = "CONFIRMED"
	EvaluationRejected  EvaluationDecision = "REJECTED"
)

// Evaluation представляет оценку справедливости обмена, одна на запрос
type Evaluation struct {
	ID             uuid.UUID `json:"id"`
	TradeRequestID uuid.UUID `json:"trade_request_id"`
	TaskComplexity int       `json:"task_complexity"` // 0-100
	TimeCommitment int       `json:"time_commitment"` // 0-100
	SkillLevel     int       `json:"skill_level"`     // 0-100
	Feedback       string    `json:"feedback"`
	CreatedAt      time.Time `json:"created_at"`

	// Ответы сторон записываются один раз, null до ответа
	RequesterResponse    *EvaluationDecision `json:"requester_response,omitempty"`
	ResponderResponse    *EvaluationDecision `json:"responder_response,omitempty"`
	RequesterRespondedAt *time.Time          `json:"requester_responded_at,omitempty"`
	ResponderRespondedAt *time.Time          `json:"responder_responded_at,omitempty"`
}
