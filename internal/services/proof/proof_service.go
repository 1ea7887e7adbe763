package proof

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/config"
	"github.com/rajivgeraev/expair-api/internal/db"
	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/trading"
	"github.com/rajivgeraev/expair-api/internal/utils"
	"github.com/rajivgeraev/expair-api/internal/websocket"
)

// ProofService представляет сервис подтверждений выполнения обмена
type ProofService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	engine     *trading.Engine
	ws         *websocket.Manager
}

// NewProofService создает новый экземпляр ProofService
func NewProofService(cfg *config.Config, engine *trading.Engine, ws *websocket.Manager) *ProofService {
	return &ProofService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		engine:     engine,
		ws:         ws,
	}
}

func parseIDs(c fiber.Ctx) (userID, tradeID uuid.UUID, err error) {
	raw, _ := c.Locals("userID").(string)
	userID, err = uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	tradeID, err = uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, tradeID, nil
}

// SubmitProof загружает подтверждение выполнения своей стороны обмена
func (s *ProofService) SubmitProof(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	var requestData struct {
		URL      string `json:"url"`
		PublicID string `json:"public_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	if requestData.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "URL подтверждения не указан"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	history, err := s.engine.SubmitProof(ctx, tradeID, userID, models.ProofArtifact{
		URL:      requestData.URL,
		PublicID: requestData.PublicID,
	})
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	s.notify(ctx, tradeID, userID, websocket.EventProofSubmitted)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"history": history,
	})
}

// ApproveProof одобряет подтверждение второй стороны
func (s *ProofService) ApproveProof(c fiber.Ctx) error {
	return s.review(c, true)
}

// RejectProof отклоняет подтверждение второй стороны, артефакт удаляется
func (s *ProofService) RejectProof(c fiber.Ctx) error {
	return s.review(c, false)
}

func (s *ProofService) review(c fiber.Ctx, approve bool) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var history *models.TradeHistory
	if approve {
		history, err = s.engine.ApproveProof(ctx, tradeID, userID)
	} else {
		history, err = s.engine.RejectProof(ctx, tradeID, userID)
	}
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	s.notify(ctx, tradeID, userID, websocket.EventProofReviewed)

	return c.JSON(fiber.Map{
		"success": true,
		"history": history,
	})
}

// GetProofs возвращает состояние подтверждений обеих сторон
func (s *ProofService) GetProofs(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	history, err := s.engine.Proofs(ctx, tradeID, userID)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{"history": history})
}

// notify отправляет событие второй стороне обмена
func (s *ProofService) notify(ctx context.Context, tradeID, initiator uuid.UUID, event websocket.EventType) {
	if s.ws == nil {
		return
	}
	trade, err := s.engine.TradeRequest(ctx, tradeID)
	if err != nil {
		log.Printf("Ошибка получения обмена %s для уведомления: %v", tradeID, err)
		return
	}
	other := trade.OtherParty(initiator)
	if other == initiator {
		return
	}
	s.ws.SendToUser(other.String(), websocket.Event{
		Type:      event,
		TradeID:   tradeID.String(),
		UserID:    initiator.String(),
		Timestamp: time.Now(),
	})
}
