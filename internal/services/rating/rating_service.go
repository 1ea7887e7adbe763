package rating

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

// RatingService представляет сервис взаимных оценок после выполнения обмена
type RatingService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	engine     *trading.Engine
	ws         *websocket.Manager
}

// NewRatingService создает новый экземпляр RatingService
func NewRatingService(cfg *config.Config, engine *trading.Engine, ws *websocket.Manager) *RatingService {
	return &RatingService{
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

// SubmitRating сохраняет оценку второй стороны и начисляет XP
func (s *RatingService) SubmitRating(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	var requestData struct {
		Stars  int    `json:"stars"`
		Review string `json:"review"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rating, err := s.engine.SubmitRating(ctx, tradeID, userID, requestData.Stars, requestData.Review)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	// Если обе стороны оценили друг друга, обмен завершён
	trade, tradeErr := s.engine.TradeRequest(ctx, tradeID)
	if tradeErr == nil && trade.Status == models.TradeStatusCompleted {
		s.notify(ctx, trade, userID, websocket.EventTradeCompleted)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"rating":  rating,
	})
}

// GetRating возвращает оценки сторон по обмену
func (s *RatingService) GetRating(c fiber.Ctx) error {
	userID, tradeID, err := parseIDs(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rating, err := s.engine.Rating(ctx, tradeID, userID)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{"rating": rating})
}

// notify отправляет событие второй стороне обмена
func (s *RatingService) notify(ctx context.Context, trade *models.TradeRequest, initiator uuid.UUID, event websocket.EventType) {
	if s.ws == nil {
		return
	}
	other := trade.OtherParty(initiator)
	if other == initiator {
		return
	}
	s.ws.SendToUser(other.String(), websocket.Event{
		Type:      event,
		TradeID:   trade.ID.String(),
		UserID:    initiator.String(),
		Timestamp: time.Now(),
	})
}
