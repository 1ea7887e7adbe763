package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SkillProficiency представляет заявленный уровень владения навыком
type SkillProficiency string

const (
	ProficiencyBeginner     SkillProficiency = "BEGINNER"
	ProficiencyIntermediate SkillProficiency = "INTERMEDIATE"
	ProficiencyAdvanced     SkillProficiency = "ADVANCED"
	ProficiencyCertified    SkillProficiency = "CERTIFIED"
)

// DeliveryMode представляет формат выполнения работы
type DeliveryMode string

const (
	DeliveryOnline DeliveryMode = "ONLINE"
	DeliveryOnsite DeliveryMode = "ONSITE"
	DeliveryHybrid DeliveryMode = "HYBRID"
)

// RequestType представляет тип запрашиваемой работы
type RequestType string

const (
	RequestTypeOutput  RequestType = "OUTPUT"
	RequestTypeService RequestType = "SERVICE"
	RequestTypeProject RequestType = "PROJECT"
)

// ParseSkillProficiency разбирает строку в SkillProficiency
func ParseSkillProficiency(s string) (SkillProficiency, error) {
	switch SkillProficiency(strings.ToUpper(strings.TrimSpace(s))) {
	case ProficiencyBeginner:
		return ProficiencyBeginner, nil
	case ProficiencyIntermediate:
		return ProficiencyIntermediate, nil
	case ProficiencyAdvanced:
		return ProficiencyAdvanced, nil
	case ProficiencyCertified:
		return ProficiencyCertified, nil
	}
	return "", fmt.Errorf("неизвестный уровень навыка: %q", s)
}

// ParseDeliveryMode разбирает строку в DeliveryMode
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch DeliveryMode(strings.ToUpper(strings.TrimSpace(s))) {
	case DeliveryOnline:
		return DeliveryOnline, nil
	case DeliveryOnsite:
		return DeliveryOnsite, nil
	case DeliveryHybrid:
		return DeliveryHybrid, nil
	}
	return "", fmt.Errorf("неизвестный формат выполнения: %q", s)
}

// ParseRequestType разбирает строку в RequestType
func ParseRequestType(s string) (RequestType, error) {
	switch RequestType(strings.ToUpper(strings.TrimSpace(s))) {
	case RequestTypeOutput:
		return RequestTypeOutput, nil
	case RequestTypeService:
		return RequestTypeService, nil
	case RequestTypeProject:
		return RequestTypeProject, nil
	}
	return "", fmt.Errorf("неизвестный тип запроса: %q", s)
}

// TradeDetail представляет описание своей стороны обмена, одно на пару (запрос, пользователь)
type TradeDetail struct {
	ID               uuid.UUID        `json:"id"`
	TradeRequestID   uuid.UUID        `json:"trade_request_id"`
	UserID           uuid.UUID        `json:"user_id"`
	SkillProficiency SkillProficiency `json:"skill_proficiency"`
	DeliveryMode     DeliveryMode     `json:"delivery_mode"`
	RequestType      RequestType      `json:"request_type"`
	Description      string           `json:"description,omitempty"`
	ContextImageURL  string           `json:"context_image_url,omitempty"`
	ContextImageID   string           `json:"-"` // public_id в Cloudinary
	TotalXP          int              `json:"total_xp"`
	XPAwarded        bool             `json:"xp_awarded"`
	CreatedAt        time.Time        `json:"created_at"`
}
