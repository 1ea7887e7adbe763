package proof

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/expair-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для подтверждений выполнения
func (s *ProofService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/trades")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/:id/proofs", s.SubmitProof)
	api.Get("/:id/proofs", s.GetProofs)
	api.Post("/:id/proofs/approve", s.ApproveProof)
	api.Post("/:id/proofs/reject", s.RejectProof)
}
