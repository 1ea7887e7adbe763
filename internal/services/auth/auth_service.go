package auth

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajivgeraev/expair-api/internal/config"
	"github.com/rajivgeraev/expair-api/internal/db"
	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/storage/postgres"
	"github.com/rajivgeraev/expair-api/internal/trading"
	"github.com/rajivgeraev/expair-api/internal/utils"
)

// AuthService – структура для обработки регистрации и авторизации
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	store      *postgres.Store
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, store *postgres.Store) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		store:      store,
	}
}

// RegisterHandler создает нового пользователя и возвращает JWT
func (s *AuthService) RegisterHandler(c fiber.Ctx) error {
	var payload struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Bio       string `json:"bio"`
		Location  string `json:"location"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	payload.Username = strings.TrimSpace(payload.Username)
	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))

	if payload.Username == "" || payload.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Имя пользователя и email обязательны"})
	}
	if len(payload.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Пароль должен быть не короче 8 символов"})
	}
	if len(payload.Bio) > 150 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Описание профиля не должно превышать 150 символов"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Проверяем, что логин свободен
	if _, err := s.store.UserByLogin(ctx, payload.Username); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Пользователь с таким именем уже существует"})
	} else if !errors.Is(err, trading.ErrNotFound) {
		log.Printf("Ошибка проверки имени пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}
	if _, err := s.store.UserByLogin(ctx, payload.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Пользователь с таким email уже существует"})
	} else if !errors.Is(err, trading.ErrNotFound) {
		log.Printf("Ошибка проверки email: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Ошибка хеширования пароля: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка обработки пароля"})
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     payload.Username,
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		Email:        payload.Email,
		Bio:          payload.Bio,
		Location:     payload.Location,
		PasswordHash: string(hash),
		Level:        1,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		log.Printf("Ошибка создания пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка создания пользователя"})
	}

	jwtToken, err := s.jwtService.GenerateToken(user.ID.String())
	if err != nil {
		log.Printf("Ошибка генерации JWT: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка генерации токена"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": jwtToken,
		"user":  user,
	})
}

// LoginHandler проверяет пароль и возвращает JWT
func (s *AuthService) LoginHandler(c fiber.Ctx) error {
	var payload struct {
		Login    string `json:"login"` // username или email
		Password string `json:"password"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.store.UserByLogin(ctx, strings.TrimSpace(payload.Login))
	if err != nil {
		if errors.Is(err, trading.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Неверный логин или пароль"})
		}
		log.Printf("Ошибка поиска пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Неверный логин или пароль"})
	}

	jwtToken, err := s.jwtService.GenerateToken(user.ID.String())
	if err != nil {
		log.Printf("Ошибка генерации JWT: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка генерации токена"})
	}

	return c.JSON(fiber.Map{
		"token": jwtToken,
		"user":  user,
	})
}

// ProfileHandler возвращает профиль текущего пользователя
func (s *AuthService) ProfileHandler(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.store.UserByID(ctx, userUUID)
	if err != nil {
		return utils.RespondTradingError(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}
