package skill

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/expair-api/internal/middleware"
)

// SetupRoutes настраивает маршруты каталога навыков и профилей
func (s *SkillService) SetupRoutes(app *fiber.App) {
	// Каталог доступен без авторизации
	app.Get("/api/skills/general", s.GetGeneralSkills)
	app.Get("/api/skills/specific", s.GetSpecificSkills)

	// Защищенные маршруты (требуют авторизации)
	api := app.Group("/api")
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/users/:id", s.GetUserProfile)
	api.Put("/profile/skills", s.UpdateMySkills)
	api.Put("/profile/interests", s.UpdateMyInterests)
}
