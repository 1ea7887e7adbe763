package trade

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/expair-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *TradeService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/trades")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Запросы на обмен
	api.Post("/", s.CreateTradeRequest)
	api.Get("/feed", s.GetFeed)
	api.Get("/my", s.GetMyTrades)

	// Отклики пользователя и действия над откликами
	api.Get("/interests/my", s.GetMyInterests)
	api.Post("/interests/:id/accept", s.AcceptInterest)
	api.Post("/interests/:id/decline", s.DeclineInterest)
	api.Post("/interests/:id/withdraw", s.WithdrawInterest)

	// Операции над конкретным запросом
	api.Get("/:id", s.GetTradeRequest)
	api.Delete("/:id", s.DeleteTradeRequest)
	api.Post("/:id/cancel", s.CancelTrade)
	api.Post("/:id/interests", s.ExpressInterest)
	api.Get("/:id/interests", s.GetInterests)
}
