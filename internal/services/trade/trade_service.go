package trade

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/config"
	"github.com/rajivgeraev/expair-api/internal/db"
	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/storage/postgres"
	"github.com/rajivgeraev/expair-api/internal/trading"
	"github.com/rajivgeraev/expair-api/internal/utils"
	"github.com/rajivgeraev/expair-api/internal/websocket"
)

// TradeService представляет сервис для работы с запросами на обмен
type TradeService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	engine     *trading.Engine
	store      *postgres.Store
	ws         *websocket.Manager
}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService(cfg *config.Config, engine *trading.Engine, store *postgres.Store, ws *websocket.Manager) *TradeService {
	return &TradeService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		engine:     engine,
		store:      store,
		ws:         ws,
	}
}

// actorID достаёт ID текущего пользователя из контекста запроса
func actorID(c fiber.Ctx) (uuid.UUID, bool) {
	userID, _ := c.Locals("userID").(string)
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CreateTradeRequest создает новый запрос на обмен
func (s *TradeService) CreateTradeRequest(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		Name     string `json:"name"`
		Deadline string `json:"deadline"` // YYYY-MM-DD, опционально
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	var deadline *time.Time
	if requestData.Deadline != "" {
		d, err := time.Parse("2006-01-02", requestData.Deadline)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат даты, ожидается YYYY-MM-DD"})
		}
		deadline = &d
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trade, err := s.engine.CreateTradeRequest(ctx, actor, requestData.Name, deadline)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"trade":   trade,
	})
}

// GetFeed возвращает ленту открытых запросов других пользователей
func (s *TradeService) GetFeed(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trades, err := s.engine.TradeFeed(ctx, actor)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	for i := range trades {
		trades[i].Requester = s.getUserInfo(ctx, trades[i].RequesterID)
	}

	return c.JSON(fiber.Map{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetMyTrades возвращает запросы, где пользователь является стороной
func (s *TradeService) GetMyTrades(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trades, err := s.engine.MyTrades(ctx, actor)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	for i := range trades {
		trades[i].Requester = s.getUserInfo(ctx, trades[i].RequesterID)
		if trades[i].ResponderID != nil {
			trades[i].Responder = s.getUserInfo(ctx, *trades[i].ResponderID)
		}
	}

	return c.JSON(fiber.Map{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetTradeRequest возвращает один запрос по ID
func (s *TradeService) GetTradeRequest(c fiber.Ctx) error {
	if _, ok := actorID(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID запроса"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trade, err := s.engine.TradeRequest(ctx, tradeID)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	trade.Requester = s.getUserInfo(ctx, trade.RequesterID)
	if trade.ResponderID != nil {
		trade.Responder = s.getUserInfo(ctx, *trade.ResponderID)
	}

	return c.JSON(fiber.Map{"trade": trade})
}

// DeleteTradeRequest удаляет запрос до акцепта отклика
func (s *TradeService) DeleteTradeRequest(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID запроса"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.engine.DeleteTradeRequest(ctx, tradeID, actor); err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Запрос на обмен удалён",
	})
}

// CancelTrade отменяет обмен после акцепта
func (s *TradeService) CancelTrade(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID запроса"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trade, err := s.engine.CancelTrade(ctx, tradeID, actor)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	s.notifyParties(trade, websocket.EventTradeCancelled, actor)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Обмен отменён",
		"trade":   trade,
	})
}

// getUserInfo получает публичную информацию о пользователе
func (s *TradeService) getUserInfo(ctx context.Context, userID uuid.UUID) *models.User {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		log.Printf("Ошибка получения пользователя %s: %v", userID, err)
		return nil
	}
	user.Email = "" // в публичных ответах не показываем
	return user
}

// notifyParties рассылает событие обеим сторонам обмена, кроме инициатора
func (s *TradeService) notifyParties(t *models.TradeRequest, event websocket.EventType, initiator uuid.UUID) {
	if s.ws == nil || t == nil {
		return
	}
	targets := []uuid.UUID{t.RequesterID}
	if t.ResponderID != nil {
		targets = append(targets, *t.ResponderID)
	}
	for _, target := range targets {
		if target == initiator {
			continue
		}
		s.ws.SendToUser(target.String(), websocket.Event{
			Type:      event,
			TradeID:   t.ID.String(),
			UserID:    initiator.String(),
			Timestamp: time.Now(),
		})
	}
}
