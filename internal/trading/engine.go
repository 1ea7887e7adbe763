package trading

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/fairness"
	"github.com/rajivgeraev/expair-api/internal/matching"
	"github.com/rajivgeraev/expair-api/internal/models"
)

// Максимальная длина краткого описания, как у bio в профиле
const maxRequestNameLen = 100

// Engine реализует жизненный цикл обмена: запрос → отклики → акцепт →
// детали → оценка → доказательства → взаимные оценки. Вся логика
// переходов собрана здесь, хендлеры только разбирают HTTP.
type Engine struct {
	store     Store
	matcher   *matching.Engine
	scorer    fairness.Scorer // nil — только детерминированная оценка
	artifacts ArtifactStore   // nil — файлы не удаляем
}

// NewEngine создает новый экземпляр Engine
func NewEngine(store Store, matcher *matching.Engine, scorer fairness.Scorer, artifacts ArtifactStore) *Engine {
	return &Engine{
		store:     store,
		matcher:   matcher,
		scorer:    scorer,
		artifacts: artifacts,
	}
}

// CreateTradeRequest создает новый запрос на обмен со статусом NONE
func (e *Engine) CreateTradeRequest(ctx context.Context, requesterID uuid.UUID, name string, deadline *time.Time) (*models.TradeRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: пустое название запроса", ErrValidation)
	}
	if len([]rune(name)) > maxRequestNameLen {
		return nil, fmt.Errorf("%w: название длиннее %d символов", ErrValidation, maxRequestNameLen)
	}
	if _, err := e.store.UserByID(ctx, requesterID); err != nil {
		return nil, err
	}

	t := &models.TradeRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Name:        name,
		Deadline:    deadline,
		Status:      models.TradeStatusNone,
		CreatedAt:   time.Now(),
	}
	if err := e.store.CreateTradeRequest(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// TradeRequest возвращает запрос по ID
func (e *Engine) TradeRequest(ctx context.Context, tradeID uuid.UUID) (*models.TradeRequest, error) {
	return e.store.TradeRequestByID(ctx, tradeID)
}

// MyTrades возвращает запросы, где пользователь является одной из сторон
func (e *Engine) MyTrades(ctx context.Context, userID uuid.UUID) ([]models.TradeRequest, error) {
	return e.store.ListTradeRequestsByUser(ctx, userID)
}

// TradeFeed возвращает открытые запросы других пользователей для ленты.
// Для каждого автора запроса подбирается категория, которую зритель мог бы
// получить от него взамен.
func (e *Engine) TradeFeed(ctx context.Context, viewerID uuid.UUID) ([]models.TradeRequest, error) {
	trades, err := e.store.ListOpenTradeRequests(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	for i := range trades {
		offer, err := e.matcher.BestOffer(ctx, trades[i].RequesterID, &viewerID)
		if err != nil {
			// Лента важнее подсказки: запрос показываем без неё
			log.Printf("Ошибка подбора предложения для запроса %s: %v", trades[i].ID, err)
			continue
		}
		trades[i].SuggestedOffer = offer
	}
	return trades, nil
}

// DeleteTradeRequest удаляет запрос. Разрешено только автору и только до
// того, как какой-либо отклик был принят.
func (e *Engine) DeleteTradeRequest(ctx context.Context, tradeID, actorID uuid.UUID) error {
	return e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if t.RequesterID != actorID {
			return fmt.Errorf("%w: удалить запрос может только его автор", ErrForbidden)
		}
		if t.ResponderID != nil {
			return fmt.Errorf("%w: по запросу уже принят отклик", ErrInvalidState)
		}
		return tx.DeleteTrade()
	})
}

// CancelTrade отменяет обмен после акцепта. Доступно обеим сторонам,
// пока обмен не завершён и не отменён.
func (e *Engine) CancelTrade(ctx context.Context, tradeID, actorID uuid.UUID) (*models.TradeRequest, error) {
	var out *models.TradeRequest
	err := e.store.WithTradeTx(ctx, tradeID, func(tx TradeTx) error {
		t, err := tx.Trade()
		if err != nil {
			return err
		}
		if !t.IsParty(actorID) {
			return fmt.Errorf("%w: отменить обмен может только его участник", ErrForbidden)
		}
		if t.ResponderID == nil {
			return fmt.Errorf("%w: обмен ещё не начался, удалите запрос", ErrInvalidState)
		}
		if t.Status.Terminal() {
			return fmt.Errorf("%w: обмен уже %s", ErrInvalidState, t.Status)
		}
		t.Status = models.TradeStatusCancelled
		if err := tx.SaveTrade(t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}
