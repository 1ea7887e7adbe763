package evaluation

import (
	"context"
	"log"
	"strings"
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

// EvaluationService представляет сервис описания сторон обмена и оценки справедливости
type EvaluationService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	engine     *trading.Engine
	ws         *websocket.Manager
}

// NewEvaluationService создает новый экземпляр EvaluationService
func NewEvaluationService(cfg *config.Config, engine *trading.Engine, ws *websocket.Manager) *EvaluationService {
	return &EvaluationService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		engine:     engine,
		ws:         ws,
	}
}

// parseIDs достаёт ID пользователя и ID запроса из контекста
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

// SubmitDetail сохраняет описание своей стороны обмена
func (s *EvaluationService) SubmitDetail(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	var requestData struct {
		SkillProficiency string `json:"skill_proficiency"`
		DeliveryMode     string `json:"delivery_mode"`
		RequestType      string `json:"request_type"`
		Description      string `json:"description"`
		ContextImageURL  string `json:"context_image_url"`
		ContextImageID   string `json:"context_image_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	detail, err := s.engine.SubmitDetail(ctx, tradeID, userID, trading.DetailInput{
		SkillProficiency: requestData.SkillProficiency,
		DeliveryMode:     requestData.DeliveryMode,
		RequestType:      requestData.RequestType,
		Description:      requestData.Description,
		ContextImageURL:  requestData.ContextImageURL,
		ContextImageID:   requestData.ContextImageID,
	})
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	// Если описания подали обе стороны, оценка уже создана — сообщаем об этом
	evaluation, evalErr := s.engine.Evaluation(ctx, tradeID, userID)
	if evalErr == nil && s.ws != nil {
		s.notifyTrade(ctx, tradeID, userID, websocket.EventEvaluationReady)
	}

	resp := fiber.Map{
		"success": true,
		"detail":  detail,
	}
	if evalErr == nil {
		resp["evaluation"] = evaluation
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetDetails возвращает описания обеих сторон обмена
func (s *EvaluationService) GetDetails(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	details, err := s.engine.Details(ctx, tradeID, userID)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{
		"details": details,
		"count":   len(details),
	})
}

// GetEvaluation возвращает оценку справедливости обмена
func (s *EvaluationService) GetEvaluation(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	evaluation, err := s.engine.Evaluation(ctx, tradeID, userID)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{"evaluation": evaluation})
}

// RespondEvaluation принимает решение стороны по оценке: CONFIRM или REJECT
func (s *EvaluationService) RespondEvaluation(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	var requestData struct {
		Response string `json:"response"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	var confirm bool
	switch strings.ToUpper(requestData.Response) {
	case "CONFIRM", "CONFIRMED":
		confirm = true
	case "REJECT", "REJECTED":
		confirm = false
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Ожидается CONFIRM или REJECT"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trade, err := s.engine.RespondEvaluation(ctx, tradeID, userID, confirm)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	if s.ws != nil {
		switch trade.Status {
		case models.TradeStatusActive:
			s.notifyTrade(ctx, tradeID, userID, websocket.EventTradeActivated)
		case models.TradeStatusCancelled:
			s.notifyTrade(ctx, tradeID, userID, websocket.EventTradeCancelled)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"trade":   trade,
	})
}

// notifyTrade отправляет событие второй стороне обмена
func (s *EvaluationService) notifyTrade(ctx context.Context, tradeID, initiator uuid.UUID, event websocket.EventType) {
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
