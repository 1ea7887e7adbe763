package rating

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/expair-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для взаимных оценок
func (s *RatingService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/trades")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/:id/rating", s.SubmitRating)
	api.Get("/:id/rating", s.GetRating)
}
