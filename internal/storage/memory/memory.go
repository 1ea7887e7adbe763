// Package memory — хранилище в памяти для тестов движка обмена.
// Повторяет контракт postgres-хранилища: WithTradeTx даёт эксклюзивный
// доступ к строкам запроса, изменения применяются только при успешном
// завершении колбэка.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/trading"
)

// Store хранит все сущности в map'ах под одним мьютексом
type Store struct {
	mu sync.Mutex

	users     map[uuid.UUID]models.User
	trades    map[uuid.UUID]models.TradeRequest
	interests map[uuid.UUID]models.TradeInterest
	details   map[uuid.UUID]models.TradeDetail

	// Уникальные на запрос сущности, ключ — ID запроса
	evaluations map[uuid.UUID]models.Evaluation
	histories   map[uuid.UUID]models.TradeHistory
	ratings     map[uuid.UUID]models.Rating

	// Граф навыков
	userSkills    map[uuid.UUID][]string
	userInterests map[uuid.UUID][]string
	catalog       []string
}

// NewStore создает новый экземпляр Store
func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]models.User),
		trades:        make(map[uuid.UUID]models.TradeRequest),
		interests:     make(map[uuid.UUID]models.TradeInterest),
		details:       make(map[uuid.UUID]models.TradeDetail),
		evaluations:   make(map[uuid.UUID]models.Evaluation),
		histories:     make(map[uuid.UUID]models.TradeHistory),
		ratings:       make(map[uuid.UUID]models.Rating),
		userSkills:    make(map[uuid.UUID][]string),
		userInterests: make(map[uuid.UUID][]string),
	}
}

// AddUser кладет пользователя в хранилище
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// SetUserSkills задает категории навыков пользователя
func (s *Store) SetUserSkills(userID uuid.UUID, categories []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSkills[userID] = append([]string(nil), categories...)
}

// SetUserInterests задает категории интересов пользователя
func (s *Store) SetUserInterests(userID uuid.UUID, categories []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInterests[userID] = append([]string(nil), categories...)
}

// SetCatalog задает каталог общих категорий
func (s *Store) SetCatalog(categories []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = append([]string(nil), categories...)
}

// CreateTradeRequest сохраняет новый запрос обмена
func (s *Store) CreateTradeRequest(_ context.Context, t *models.TradeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[t.ID] = *t
	return nil
}

// TradeRequestByID возвращает запрос по ID
func (s *Store) TradeRequestByID(_ context.Context, id uuid.UUID) (*models.TradeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return nil, fmt.Errorf("запрос обмена %s: %w", id, trading.ErrNotFound)
	}
	return &t, nil
}

// ListTradeRequestsByUser возвращает запросы, где пользователь — сторона
func (s *Store) ListTradeRequestsByUser(_ context.Context, userID uuid.UUID) ([]models.TradeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TradeRequest
	for _, t := range s.trades {
		if t.RequesterID == userID || (t.ResponderID != nil && *t.ResponderID == userID) {
			out = append(out, t)
		}
	}
	sortTrades(out)
	return out, nil
}

// ListOpenTradeRequests возвращает открытые запросы других пользователей
func (s *Store) ListOpenTradeRequests(_ context.Context, excludeUserID uuid.UUID) ([]models.TradeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TradeRequest
	for _, t := range s.trades {
		if t.RequesterID == excludeUserID || t.ResponderID != nil {
			continue
		}
		if t.Status == models.TradeStatusNone || t.Status == models.TradeStatusPending {
			out = append(out, t)
		}
	}
	sortTrades(out)
	return out, nil
}

// InterestByID возвращает отклик по ID
func (s *Store) InterestByID(_ context.Context, id uuid.UUID) (*models.TradeInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.interests[id]
	if !ok {
		return nil, fmt.Errorf("отклик %s: %w", id, trading.ErrNotFound)
	}
	return &i, nil
}

// InterestsByTrade возвращает отклики по запросу
func (s *Store) InterestsByTrade(_ context.Context, tradeID uuid.UUID) ([]models.TradeInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interestsOf(tradeID), nil
}

// InterestsByUser возвращает отклики пользователя
func (s *Store) InterestsByUser(_ context.Context, userID uuid.UUID) ([]models.TradeInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TradeInterest
	for _, i := range s.interests {
		if i.InterestedUserID == userID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

// UserByID возвращает пользователя по ID
func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("пользователь %s: %w", id, trading.ErrNotFound)
	}
	return &u, nil
}

// SkillCategoriesOf возвращает категории навыков пользователя
func (s *Store) SkillCategoriesOf(_ context.Context, userID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userSkills[userID]...), nil
}

// InterestCategoriesOf возвращает категории интересов пользователя
func (s *Store) InterestCategoriesOf(_ context.Context, userID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userInterests[userID]...), nil
}

// AnyCatalogCategory возвращает наименьшую категорию каталога
func (s *Store) AnyCatalogCategory(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.catalog) == 0 {
		return "", nil
	}
	sorted := append([]string(nil), s.catalog...)
	sort.Strings(sorted)
	return sorted[0], nil
}

// WithTradeTx выполняет fn под общим мьютексом над копиями строк запроса.
// Изменения попадают в хранилище только если fn вернул nil.
func (s *Store) WithTradeTx(_ context.Context, tradeID uuid.UUID, fn func(tx trading.TradeTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[tradeID]
	if !ok {
		return fmt.Errorf("запрос обмена %s: %w", tradeID, trading.ErrNotFound)
	}

	tx := &tradeTx{s: s, tradeID: tradeID, trade: &t}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) interestsOf(tradeID uuid.UUID) []models.TradeInterest {
	var out []models.TradeInterest
	for _, i := range s.interests {
		if i.TradeRequestID == tradeID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out
}

func sortTrades(ts []models.TradeRequest) {
	sort.Slice(ts, func(a, b int) bool { return ts[a].CreatedAt.After(ts[b].CreatedAt) })
}

// tradeTx — отложенные изменения строк одного запроса; применяются в commit
type tradeTx struct {
	s       *Store
	tradeID uuid.UUID

	trade   *models.TradeRequest
	deleted bool

	interests  map[uuid.UUID]*models.TradeInterest
	details    map[uuid.UUID]*models.TradeDetail // ключ — ID пользователя
	users      map[uuid.UUID]*models.User
	evaluation *models.Evaluation
	history    *models.TradeHistory
	rating     *models.Rating
}

func (tx *tradeTx) Trade() (*models.TradeRequest, error) {
	return tx.trade, nil
}

func (tx *tradeTx) SaveTrade(t *models.TradeRequest) error {
	tx.trade = t
	return nil
}

func (tx *tradeTx) DeleteTrade() error {
	tx.deleted = true
	return nil
}

func (tx *tradeTx) Interests() ([]models.TradeInterest, error) {
	tx.loadInterests()
	var out []models.TradeInterest
	for _, i := range tx.interests {
		out = append(out, *i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (tx *tradeTx) InterestByID(id uuid.UUID) (*models.TradeInterest, error) {
	tx.loadInterests()
	i, ok := tx.interests[id]
	if !ok {
		return nil, fmt.Errorf("отклик %s: %w", id, trading.ErrNotFound)
	}
	return i, nil
}

func (tx *tradeTx) InterestByUser(userID uuid.UUID) (*models.TradeInterest, error) {
	tx.loadInterests()
	for _, i := range tx.interests {
		if i.InterestedUserID == userID {
			return i, nil
		}
	}
	return nil, fmt.Errorf("отклик пользователя %s: %w", userID, trading.ErrNotFound)
}

func (tx *tradeTx) CreateInterest(i *models.TradeInterest) error {
	tx.loadInterests()
	tx.interests[i.ID] = i
	return nil
}

func (tx *tradeTx) SaveInterest(i *models.TradeInterest) error {
	tx.loadInterests()
	tx.interests[i.ID] = i
	return nil
}

func (tx *tradeTx) Details() ([]models.TradeDetail, error) {
	tx.loadDetails()
	var out []models.TradeDetail
	for _, d := range tx.details {
		out = append(out, *d)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (tx *tradeTx) DetailByUser(userID uuid.UUID) (*models.TradeDetail, error) {
	tx.loadDetails()
	d, ok := tx.details[userID]
	if !ok {
		return nil, fmt.Errorf("детали пользователя %s: %w", userID, trading.ErrNotFound)
	}
	return d, nil
}

func (tx *tradeTx) UpsertDetail(d *models.TradeDetail) error {
	tx.loadDetails()
	tx.details[d.UserID] = d
	return nil
}

func (tx *tradeTx) Evaluation() (*models.Evaluation, error) {
	if tx.evaluation == nil {
		e, ok := tx.s.evaluations[tx.tradeID]
		if !ok {
			return nil, fmt.Errorf("оценка обмена %s: %w", tx.tradeID, trading.ErrNotFound)
		}
		tx.evaluation = &e
	}
	return tx.evaluation, nil
}

func (tx *tradeTx) CreateEvaluation(e *models.Evaluation) error {
	tx.evaluation = e
	return nil
}

func (tx *tradeTx) SaveEvaluation(e *models.Evaluation) error {
	tx.evaluation = e
	return nil
}

func (tx *tradeTx) History() (*models.TradeHistory, error) {
	if tx.history == nil {
		h, ok := tx.s.histories[tx.tradeID]
		if !ok {
			return nil, fmt.Errorf("история обмена %s: %w", tx.tradeID, trading.ErrNotFound)
		}
		tx.history = &h
	}
	return tx.history, nil
}

func (tx *tradeTx) CreateHistory(h *models.TradeHistory) error {
	tx.history = h
	return nil
}

func (tx *tradeTx) SaveHistory(h *models.TradeHistory) error {
	tx.history = h
	return nil
}

func (tx *tradeTx) Rating() (*models.Rating, error) {
	if tx.rating == nil {
		r, ok := tx.s.ratings[tx.tradeID]
		if !ok {
			return nil, fmt.Errorf("оценки обмена %s: %w", tx.tradeID, trading.ErrNotFound)
		}
		tx.rating = &r
	}
	return tx.rating, nil
}

func (tx *tradeTx) CreateRating(r *models.Rating) error {
	tx.rating = r
	return nil
}

func (tx *tradeTx) SaveRating(r *models.Rating) error {
	tx.rating = r
	return nil
}

func (tx *tradeTx) User(id uuid.UUID) (*models.User, error) {
	if tx.users == nil {
		tx.users = make(map[uuid.UUID]*models.User)
	}
	if u, ok := tx.users[id]; ok {
		return u, nil
	}
	u, ok := tx.s.users[id]
	if !ok {
		return nil, fmt.Errorf("пользователь %s: %w", id, trading.ErrNotFound)
	}
	staged := u
	tx.users[id] = &staged
	return &staged, nil
}

func (tx *tradeTx) SaveUserScore(u *models.User) error {
	if tx.users == nil {
		tx.users = make(map[uuid.UUID]*models.User)
	}
	tx.users[u.ID] = u
	return nil
}

func (tx *tradeTx) loadInterests() {
	if tx.interests != nil {
		return
	}
	tx.interests = make(map[uuid.UUID]*models.TradeInterest)
	for _, i := range tx.s.interestsOf(tx.tradeID) {
		staged := i
		tx.interests[i.ID] = &staged
	}
}

func (tx *tradeTx) loadDetails() {
	if tx.details != nil {
		return
	}
	tx.details = make(map[uuid.UUID]*models.TradeDetail)
	for _, d := range tx.s.details {
		if d.TradeRequestID == tx.tradeID {
			staged := d
			tx.details[d.UserID] = &staged
		}
	}
}

// commit переносит отложенные изменения в хранилище; вызывается под mu
func (tx *tradeTx) commit() {
	if tx.deleted {
		delete(tx.s.trades, tx.tradeID)
		for id, i := range tx.s.interests {
			if i.TradeRequestID == tx.tradeID {
				delete(tx.s.interests, id)
			}
		}
		for id, d := range tx.s.details {
			if d.TradeRequestID == tx.tradeID {
				delete(tx.s.details, id)
			}
		}
		delete(tx.s.evaluations, tx.tradeID)
		delete(tx.s.histories, tx.tradeID)
		delete(tx.s.ratings, tx.tradeID)
		return
	}

	tx.s.trades[tx.tradeID] = *tx.trade
	for id, i := range tx.interests {
		tx.s.interests[id] = *i
	}
	for _, d := range tx.details {
		tx.s.details[d.ID] = *d
	}
	if tx.evaluation != nil {
		tx.s.evaluations[tx.tradeID] = *tx.evaluation
	}
	if tx.history != nil {
		tx.s.histories[tx.tradeID] = *tx.history
	}
	if tx.rating != nil {
		tx.s.ratings[tx.tradeID] = *tx.rating
	}
	for id, u := range tx.users {
		tx.s.users[id] = *u
	}
}
