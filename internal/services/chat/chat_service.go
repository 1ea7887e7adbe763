package chat

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/expair-api/internal/config"
	"github.com/rajivgeraev/expair-api/internal/db"
	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/utils"
	"github.com/rajivgeraev/expair-api/internal/websocket"
)

// ChatService представляет сервис для работы с чатами между сторонами обмена
type ChatService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	ws         *websocket.Manager
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(cfg *config.Config, ws *websocket.Manager) *ChatService {
	s := &ChatService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		ws:         ws,
	}
	if ws != nil {
		ws.ResolveChatPeer = resolveChatPeer
	}
	return s
}

// GetChats возвращает список чатов пользователя
func (s *ChatService) GetChats(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	query := `
        SELECT c.id, c.tradereq_id, c.requester_id, c.responder_id, c.created_at, c.updated_at,
               COALESCE(c.last_message_text, ''), c.last_message_time, c.is_active,
               COUNT(m.id) FILTER (WHERE m.sender_id != $1 AND m.is_read = false) AS unread_count
        FROM chats c
        LEFT JOIN messages m ON c.id = m.chat_id
        WHERE c.requester_id = $1 OR c.responder_id = $1
        GROUP BY c.id
        ORDER BY c.last_message_time DESC NULLS LAST, c.created_at DESC
    `

	rows, err := db.Pool.Query(ctx, query, userUUID)
	if err != nil {
		log.Printf("Ошибка запроса чатов: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения чатов"})
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(
			&chat.ID,
			&chat.TradeRequestID,
			&chat.RequesterID,
			&chat.ResponderID,
			&chat.CreatedAt,
			&chat.UpdatedAt,
			&chat.LastMessageText,
			&chat.LastMessageTime,
			&chat.IsActive,
			&chat.UnreadCount,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}

		// Получаем данные о втором участнике чата
		if chat.RequesterID == userUUID {
			chat.Responder = getUserInfo(ctx, chat.ResponderID)
		} else {
			chat.Requester = getUserInfo(ctx, chat.RequesterID)
		}

		chats = append(chats, chat)
	}

	return c.JSON(fiber.Map{
		"chats": chats,
		"count": len(chats),
	})
}

// GetChatMessages возвращает сообщения конкретного чата
func (s *ChatService) GetChatMessages(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	chatID := c.Params("id")

	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	chatUUID, err := uuid.Parse(chatID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID чата"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var count int
	err = db.Pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM chats
        WHERE id = $1 AND (requester_id = $2 OR responder_id = $2)
    `, chatUUID, userUUID).Scan(&count)

	if err != nil {
		log.Printf("Ошибка проверки доступа к чату: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка проверки доступа к чату"})
	}

	if count == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "У вас нет доступа к этому чату"})
	}

	limit := 50 // Ограничение количества сообщений

	// Обрабатываем пагинацию
	before := c.Query("before")
	var query string
	var queryArgs []interface{}

	if before != "" {
		beforeUUID, err := uuid.Parse(before)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID сообщения"})
		}

		query = `
            SELECT m.id, m.chat_id, m.sender_id, m.text, m.is_read, m.created_at, m.updated_at
            FROM messages m
            WHERE m.chat_id = $1 AND m.id < $2
            ORDER BY m.created_at DESC
            LIMIT $3
        `
		queryArgs = []interface{}{chatUUID, beforeUUID, limit}
	} else {
		query = `
            SELECT m.id, m.chat_id, m.sender_id, m.text, m.is_read, m.created_at, m.updated_at
            FROM messages m
            WHERE m.chat_id = $1
            ORDER BY m.created_at DESC
            LIMIT $2
        `
		queryArgs = []interface{}{chatUUID, limit}
	}

	rows, err := db.Pool.Query(ctx, query, queryArgs...)
	if err != nil {
		log.Printf("Ошибка запроса сообщений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения сообщений"})
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.Text,
			&msg.IsRead,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования сообщения: %v", err)
			continue
		}

		msg.Sender = getUserInfo(ctx, msg.SenderID)
		messages = append(messages, msg)
	}

	// Отмечаем сообщения как прочитанные
	_, err = db.Pool.Exec(ctx, `
        UPDATE messages
        SET is_read = true
        WHERE chat_id = $1 AND sender_id != $2 AND is_read = false
    `, chatUUID, userUUID)

	if err != nil {
		log.Printf("Ошибка обновления статуса прочтения: %v", err)
		// Не возвращаем ошибку, т.к. основная функциональность выполнена
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// SendMessage отправляет новое сообщение
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	chatID := c.Params("id")

	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	chatUUID, err := uuid.Parse(chatID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID чата"})
	}

	var requestData struct {
		Text string `json:"text"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if requestData.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Текст сообщения не может быть пустым"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var chat models.Chat
	err = db.Pool.QueryRow(ctx, `
        SELECT id, requester_id, responder_id, is_active FROM chats
        WHERE id = $1 AND (requester_id = $2 OR responder_id = $2)
    `, chatUUID, userUUID).Scan(&chat.ID, &chat.RequesterID, &chat.ResponderID, &chat.IsActive)

	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "У вас нет доступа к этому чату"})
		}
		log.Printf("Ошибка проверки доступа к чату: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка проверки доступа к чату"})
	}

	if !chat.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Чат неактивен"})
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("Ошибка начала транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}
	defer tx.Rollback(ctx)

	messageID := uuid.New()
	now := time.Now()

	_, err = tx.Exec(ctx, `
        INSERT INTO messages (id, chat_id, sender_id, text, is_read, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, messageID, chatUUID, userUUID, requestData.Text, false, now, now)

	if err != nil {
		log.Printf("Ошибка создания сообщения: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения сообщения"})
	}

	_, err = tx.Exec(ctx, `
        UPDATE chats
        SET last_message_text = $1, last_message_time = $2, updated_at = $3
        WHERE id = $4
    `, requestData.Text, now, now, chatUUID)

	if err != nil {
		log.Printf("Ошибка обновления информации о чате: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка обновления информации о чате"})
	}

	if err = tx.Commit(ctx); err != nil {
		log.Printf("Ошибка фиксации транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}

	message := models.Message{
		ID:        messageID,
		ChatID:    chatUUID,
		SenderID:  userUUID,
		Text:      requestData.Text,
		IsRead:    false,
		CreatedAt: now,
		UpdatedAt: now,
		Sender:    getUserInfo(ctx, userUUID),
	}

	// Уведомляем второго участника по WebSocket
	if s.ws != nil {
		receiver := chat.RequesterID
		if receiver == userUUID {
			receiver = chat.ResponderID
		}
		s.ws.SendToUser(receiver.String(), websocket.Event{
			Type:      websocket.EventNewMessage,
			ChatID:    chatUUID.String(),
			MessageID: messageID.String(),
			UserID:    userID,
			Timestamp: now,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"success": true,
	})
}

// getUserInfo получает базовую информацию о пользователе
func getUserInfo(ctx context.Context, userID uuid.UUID) *models.User {
	var user models.User
	err := db.Pool.QueryRow(ctx, `
        SELECT user_id, username, first_name, last_name, avatar_url
        FROM users_tbl
        WHERE user_id = $1
    `, userID).Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
	)

	if err != nil {
		log.Printf("Ошибка получения данных пользователя %s: %v", userID, err)
		return nil
	}

	return &user
}

// resolveChatPeer возвращает ID второго участника чата
func resolveChatPeer(ctx context.Context, chatID, userID string) (string, error) {
	chatUUID, err := uuid.Parse(chatID)
	if err != nil {
		return "", err
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return "", err
	}

	var requesterID, responderID uuid.UUID
	err = db.Pool.QueryRow(ctx, `
        SELECT requester_id, responder_id FROM chats
        WHERE id = $1 AND (requester_id = $2 OR responder_id = $2)
    `, chatUUID, userUUID).Scan(&requesterID, &responderID)
	if err != nil {
		return "", err
	}

	if requesterID == userUUID {
		return responderID.String(), nil
	}
	return requesterID.String(), nil
}
