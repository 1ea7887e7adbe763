package trade

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/db"
	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/utils"
	"github.com/rajivgeraev/expair-api/internal/websocket"
)

// ExpressInterest создает отклик на чужой запрос
func (s *TradeService) ExpressInterest(c fiber.Ctx) error {
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

	interest, err := s.engine.ExpressInterest(ctx, tradeID, actor)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"interest": interest,
	})
}

// GetInterests возвращает отклики на запрос (только для автора запроса)
func (s *TradeService) GetInterests(c fiber.Ctx) error {
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

	interests, err := s.engine.Interests(ctx, tradeID, actor)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	for i := range interests {
		interests[i].InterestedUser = s.getUserInfo(ctx, interests[i].InterestedUserID)
	}

	return c.JSON(fiber.Map{
		"interests": interests,
		"count":     len(interests),
	})
}

// GetMyInterests возвращает отклики, оставленные текущим пользователем
func (s *TradeService) GetMyInterests(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	interests, err := s.engine.MyInterests(ctx, actor)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{
		"interests": interests,
		"count":     len(interests),
	})
}

// AcceptInterest принимает отклик и закрепляет второго участника
func (s *TradeService) AcceptInterest(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}
	interestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID отклика"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trade, err := s.engine.AcceptInterest(ctx, interestID, actor)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	// Создаём чат между сторонами, если его еще нет
	if err := s.createChatForTrade(ctx, trade); err != nil {
		log.Printf("Ошибка при создании чата для обмена %s: %v", trade.ID, err)
		// Не возвращаем ошибку, так как акцепт уже состоялся
	}
	s.notifyParties(trade, websocket.EventInterestAccepted, actor)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Отклик принят",
		"trade":   trade,
	})
}

// DeclineInterest отклоняет отклик
func (s *TradeService) DeclineInterest(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}
	interestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID отклика"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.engine.DeclineInterest(ctx, interestID, actor); err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Отклик отклонён",
	})
}

// WithdrawInterest отзывает собственный отклик
func (s *TradeService) WithdrawInterest(c fiber.Ctx) error {
	actor, ok := actorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}
	interestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID отклика"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.engine.WithdrawInterest(ctx, interestID, actor); err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Отклик отозван",
	})
}

// createChatForTrade создает чат между участниками обмена, если его еще нет
func (s *TradeService) createChatForTrade(ctx context.Context, trade *models.TradeRequest) error {
	if trade.ResponderID == nil {
		return nil
	}

	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM chats WHERE tradereq_id = $1)
	`, trade.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO chats (id, tradereq_id, requester_id, responder_id, created_at, updated_at, is_active)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), true)
	`, uuid.New(), trade.ID, trade.RequesterID, *trade.ResponderID)
	return err
}
