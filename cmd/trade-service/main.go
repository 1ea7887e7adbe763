package main

import (
	"log"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/rajivgeraev/expair-api/internal/config"
	"github.com/rajivgeraev/expair-api/internal/db"
	"github.com/rajivgeraev/expair-api/internal/fairness"
	"github.com/rajivgeraev/expair-api/internal/matching"
	"github.com/rajivgeraev/expair-api/internal/services/auth"
	"github.com/rajivgeraev/expair-api/internal/services/chat"
	"github.com/rajivgeraev/expair-api/internal/services/cloudinary"
	"github.com/rajivgeraev/expair-api/internal/services/evaluation"
	"github.com/rajivgeraev/expair-api/internal/services/proof"
	"github.com/rajivgeraev/expair-api/internal/services/rating"
	"github.com/rajivgeraev/expair-api/internal/services/skill"
	"github.com/rajivgeraev/expair-api/internal/services/trade"
	"github.com/rajivgeraev/expair-api/internal/storage/postgres"
	"github.com/rajivgeraev/expair-api/internal/trading"
	"github.com/rajivgeraev/expair-api/internal/utils"
	"github.com/rajivgeraev/expair-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Expair API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Хранилище и ядро обменов
	store := postgres.NewStore(db.Pool)
	matcher := matching.NewEngine(store)

	var scorer fairness.Scorer
	if cfg.AIServiceURL != "" {
		scorer = fairness.NewClient(cfg.AIServiceURL)
		log.Printf("✅ Оценка справедливости через AI-сервис: %s", cfg.AIServiceURL)
	} else {
		log.Println("⚠️ AI_SERVICE_URL не задан, оценка справедливости считается по таблицам")
	}

	var artifacts trading.ArtifactStore
	var cloudinaryService *cloudinary.CloudinaryService
	if cfg.CloudinaryConfig.CloudName != "" {
		var err error
		cloudinaryService, err = cloudinary.NewCloudinaryService(cfg)
		if err != nil {
			log.Fatalf("❌ Ошибка инициализации Cloudinary: %v", err)
		}
		artifacts = cloudinaryService
	} else {
		log.Println("⚠️ Cloudinary не настроен, загруженные артефакты не удаляются")
	}

	engine := trading.NewEngine(store, matcher, scorer, artifacts)

	// Менеджер WebSocket соединений
	wsManager := websocket.NewManager()
	defer wsManager.Shutdown()

	// Создаём сервисы и регистрируем маршруты
	auth.NewAuthService(cfg, store).SetupRoutes(app)
	skill.NewSkillService(cfg, store).SetupRoutes(app)
	if cloudinaryService != nil {
		cloudinaryService.SetupRoutes(app)
	}
	trade.NewTradeService(cfg, engine, store, wsManager).SetupRoutes(app)
	evaluation.NewEvaluationService(cfg, engine, wsManager).SetupRoutes(app)
	proof.NewProofService(cfg, engine, wsManager).SetupRoutes(app)
	rating.NewRatingService(cfg, engine, wsManager).SetupRoutes(app)
	chat.NewChatService(cfg, wsManager).SetupRoutes(app)

	// WebSocket живёт на отдельном listener, так как gorilla/websocket
	// требует hijack соединения, которого fasthttp не даёт
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/ws", websocket.Handler(wsManager, utils.NewJWTService(cfg.JWTSecret)))
		log.Printf("✅ WebSocket сервер запущен на порту %s", cfg.WSPort)
		if err := http.ListenAndServe(":"+cfg.WSPort, mux); err != nil {
			log.Fatalf("❌ Ошибка WebSocket сервера: %v", err)
		}
	}()

	// Запускаем сервер
	log.Printf("✅ Expair API запущен на порту %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
