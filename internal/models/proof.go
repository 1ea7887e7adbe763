package models

import (
	"time"

	"github.com/google/uuid"
)

// ProofStatus представляет статус подтверждения доказательства
type ProofStatus string

const (
	ProofStatusPending  ProofStatus = "PENDING"
	ProofStatusApproved ProofStatus = "APPROVED"
	// REJECTED не хранится: отклонённое доказательство сразу очищается и слот
	// возвращается в PENDING для повторной загрузки
)

// ProofArtifact описывает загруженный файл-доказательство
type ProofArtifact struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"` // идентификатор в Cloudinary
}

// TradeHistory представляет запись о выполнении обмена, одна на запрос
type TradeHistory struct {
	ID             uuid.UUID `json:"id"`
	TradeRequestID uuid.UUID `json:"trade_request_id"`

	RequesterProof       *ProofArtifact `json:"requester_proof,omitempty"`
	RequesterProofStatus ProofStatus    `json:"requester_proof_status"`
	ResponderProof       *ProofArtifact `json:"responder_proof,omitempty"`
	ResponderProofStatus ProofStatus    `json:"responder_proof_status"`

	CompletedAt *time.Time `json:"completed_at,omitempty"` // ставится один раз, когда обе стороны выставили оценки
	CreatedAt   time.Time  `json:"created_at"`
}

// BothApproved сообщает, подтверждены ли доказательства обеих сторон
func (h *TradeHistory) BothApproved() bool {
	return h.RequesterProof != nil && h.RequesterProofStatus == ProofStatusApproved &&
		h.ResponderProof != nil && h.ResponderProofStatus == ProofStatusApproved
}
