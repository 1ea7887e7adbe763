package utils

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/expair-api/internal/trading"
)

// RespondTradingError переводит ошибку ядра обмена в HTTP-ответ.
// Неизвестные ошибки логируются и уходят как 500 без деталей.
func RespondTradingError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, trading.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, trading.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, trading.ErrAlreadyAccepted),
		errors.Is(err, trading.ErrAlreadyProcessed),
		errors.Is(err, trading.ErrAlreadyResponded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, trading.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, trading.ErrInvalidChoice), errors.Is(err, trading.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	log.Printf("Внутренняя ошибка: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Внутренняя ошибка сервера"})
}
