package skill

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/config"
	"github.com/rajivgeraev/expair-api/internal/db"
	"github.com/rajivgeraev/expair-api/internal/storage/postgres"
	"github.com/rajivgeraev/expair-api/internal/utils"
)

// SkillService представляет сервис каталога навыков и профилей пользователей
type SkillService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	store      *postgres.Store
}

// NewSkillService создает новый экземпляр SkillService
func NewSkillService(cfg *config.Config, store *postgres.Store) *SkillService {
	return &SkillService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		store:      store,
	}
}

// GetGeneralSkills возвращает каталог общих категорий
func (s *SkillService) GetGeneralSkills(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	skills, err := s.store.ListGeneralSkills(ctx)
	if err != nil {
		log.Printf("Ошибка получения каталога категорий: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения каталога"})
	}

	return c.JSON(fiber.Map{
		"skills": skills,
		"count":  len(skills),
	})
}

// GetSpecificSkills возвращает конкретные навыки, опционально внутри категории
func (s *SkillService) GetSpecificSkills(c fiber.Ctx) error {
	genSkillID := 0
	if raw := c.Query("genskills_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID категории"})
		}
		genSkillID = parsed
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	skills, err := s.store.ListSpecificSkills(ctx, genSkillID)
	if err != nil {
		log.Printf("Ошибка получения каталога навыков: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения каталога"})
	}

	return c.JSON(fiber.Map{
		"skills": skills,
		"count":  len(skills),
	})
}

// GetUserProfile возвращает публичный профиль пользователя с навыками
func (s *SkillService) GetUserProfile(c fiber.Ctx) error {
	userUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.store.UserByID(ctx, userUUID)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}
	user.Email = "" // в публичных ответах не показываем

	skills, err := s.store.UserSkillGroups(ctx, userUUID)
	if err != nil {
		log.Printf("Ошибка получения навыков пользователя %s: %v", userUUID, err)
	}
	interests, err := s.store.InterestCategoriesOf(ctx, userUUID)
	if err != nil {
		log.Printf("Ошибка получения интересов пользователя %s: %v", userUUID, err)
	}

	return c.JSON(fiber.Map{
		"user":      user,
		"skills":    skills,
		"interests": interests,
	})
}

// UpdateMySkills заменяет набор навыков текущего пользователя
func (s *SkillService) UpdateMySkills(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	var requestData struct {
		SpecSkillIDs []int `json:"specskill_ids"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.store.SaveUserSkills(ctx, userUUID, requestData.SpecSkillIDs); err != nil {
		log.Printf("Ошибка сохранения навыков: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения навыков"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// UpdateMyInterests заменяет набор интересов текущего пользователя
func (s *SkillService) UpdateMyInterests(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	var requestData struct {
		GenSkillIDs []int `json:"genskill_ids"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.store.SaveUserInterests(ctx, userUUID, requestData.GenSkillIDs); err != nil {
		log.Printf("Ошибка сохранения интересов: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения интересов"})
	}

	return c.JSON(fiber.Map{"success": true})
}
