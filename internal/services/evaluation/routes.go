package evaluation

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/expair-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для описаний сторон и оценки справедливости
func (s *EvaluationService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/trades")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/:id/details", s.SubmitDetail)
	api.Get("/:id/details", s.GetDetails)
	api.Get("/:id/evaluation", s.GetEvaluation)
	api.Post("/:id/evaluation/respond", s.RespondEvaluation)
}
