// Package postgres — основное хранилище сущностей обмена поверх pgxpool.
// Критические секции жизненного цикла выполняются в транзакции с
// блокировкой строки запроса (SELECT ... FOR UPDATE), поэтому гонки
// акцепта и повторных оценок разрешаются на уровне базы.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/trading"
)

// Store реализует trading.Store и matching.SkillGraph
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создает новый экземпляр Store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const tradeColumns = `tradereq_id, requester_id, responder_id, reqname, reqdeadline,
       status, exchangename, requester_rated, responder_rated, created_at`

// CreateTradeRequest сохраняет новый запрос обмена
func (s *Store) CreateTradeRequest(ctx context.Context, t *models.TradeRequest) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO tradereq_tbl (tradereq_id, requester_id, reqname, reqdeadline, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, t.ID, t.RequesterID, t.Name, t.Deadline, string(t.Status), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("создание запроса обмена: %w", err)
	}
	return nil
}

// TradeRequestByID возвращает запрос по ID
func (s *Store) TradeRequestByID(ctx context.Context, id uuid.UUID) (*models.TradeRequest, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT `+tradeColumns+`
        FROM tradereq_tbl
        WHERE tradereq_id = $1
    `, id)
	return scanTrade(row)
}

// ListTradeRequestsByUser возвращает запросы, где пользователь — сторона
func (s *Store) ListTradeRequestsByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeRequest, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+tradeColumns+`
        FROM tradereq_tbl
        WHERE requester_id = $1 OR responder_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("запрос обменов пользователя: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListOpenTradeRequests возвращает открытые запросы других пользователей для ленты
func (s *Store) ListOpenTradeRequests(ctx context.Context, excludeUserID uuid.UUID) ([]models.TradeRequest, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+tradeColumns+`
        FROM tradereq_tbl
        WHERE requester_id != $1
          AND responder_id IS NULL
          AND status IN ('NONE', 'PENDING')
        ORDER BY created_at DESC
    `, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("запрос ленты обменов: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

const interestColumns = `trade_interests_id, tradereq_id, interested_user_id, status, created_at`

// InterestByID возвращает отклик по ID
func (s *Store) InterestByID(ctx context.Context, id uuid.UUID) (*models.TradeInterest, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT `+interestColumns+`
        FROM trade_interests_tbl
        WHERE trade_interests_id = $1
    `, id)
	return scanInterest(row)
}

// InterestsByTrade возвращает отклики по запросу
func (s *Store) InterestsByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeInterest, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+interestColumns+`
        FROM trade_interests_tbl
        WHERE tradereq_id = $1
        ORDER BY created_at DESC
    `, tradeID)
	if err != nil {
		return nil, fmt.Errorf("запрос откликов: %w", err)
	}
	defer rows.Close()
	return scanInterests(rows)
}

// InterestsByUser возвращает отклики пользователя
func (s *Store) InterestsByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeInterest, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+interestColumns+`
        FROM trade_interests_tbl
        WHERE interested_user_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("запрос откликов пользователя: %w", err)
	}
	defer rows.Close()
	return scanInterests(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*models.TradeRequest, error) {
	var t models.TradeRequest
	var status string
	err := row.Scan(
		&t.ID,
		&t.RequesterID,
		&t.ResponderID,
		&t.Name,
		&t.Deadline,
		&status,
		&t.Exchange,
		&t.RequesterRated,
		&t.ResponderRated,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("запрос обмена: %w", trading.ErrNotFound)
		}
		return nil, fmt.Errorf("чтение запроса обмена: %w", err)
	}
	t.Status = models.TradeStatus(status)
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]models.TradeRequest, error) {
	var out []models.TradeRequest
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanInterest(row rowScanner) (*models.TradeInterest, error) {
	var i models.TradeInterest
	var status string
	err := row.Scan(&i.ID, &i.TradeRequestID, &i.InterestedUserID, &status, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("отклик: %w", trading.ErrNotFound)
		}
		return nil, fmt.Errorf("чтение отклика: %w", err)
	}
	i.Status = models.InterestStatus(status)
	return &i, nil
}

func scanInterests(rows pgx.Rows) ([]models.TradeInterest, error) {
	var out []models.TradeInterest
	for rows.Next() {
		i, err := scanInterest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
