package trading

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/expair-api/internal/models"
)

// Store — хранилище сущностей обмена. Все мутации, затрагивающие
// более одного поля, выполняются внутри WithTradeTx: реализация
// обязана держать эксклюзивную блокировку строки запроса на время
// колбэка, чтобы гонки акцепта и повторных оценок разрешались на
// уровне данных (postgres: SELECT ... FOR UPDATE).
type Store interface {
	CreateTradeRequest(ctx context.Context, t *models.TradeRequest) error
	TradeRequestByID(ctx context.Context, id uuid.UUID) (*models.TradeRequest, error)
	ListTradeRequestsByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeRequest, error)
	ListOpenTradeRequests(ctx context.Context, excludeUserID uuid.UUID) ([]models.TradeRequest, error)

	InterestByID(ctx context.Context, id uuid.UUID) (*models.TradeInterest, error)
	InterestsByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeInterest, error)
	InterestsByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeInterest, error)

	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// WithTradeTx выполняет fn в транзакции с блокировкой строки запроса.
	// Ошибка из fn откатывает все изменения.
	WithTradeTx(ctx context.Context, tradeID uuid.UUID, fn func(tx TradeTx) error) error
}

// TradeTx — транзакционная секция над строками одного запроса обмена.
// Экземпляр валиден только внутри колбэка WithTradeTx.
type TradeTx interface {
	Trade() (*models.TradeRequest, error)
	SaveTrade(t *models.TradeRequest) error
	DeleteTrade() error

	Interests() ([]models.TradeInterest, error)
	InterestByID(id uuid.UUID) (*models.TradeInterest, error)
	InterestByUser(userID uuid.UUID) (*models.TradeInterest, error)
	CreateInterest(i *models.TradeInterest) error
	SaveInterest(i *models.TradeInterest) error

	Details() ([]models.TradeDetail, error)
	DetailByUser(userID uuid.UUID) (*models.TradeDetail, error)
	UpsertDetail(d *models.TradeDetail) error

	Evaluation() (*models.Evaluation, error)
	CreateEvaluation(e *models.Evaluation) error
	SaveEvaluation(e *models.Evaluation) error

	History() (*models.TradeHistory, error)
	CreateHistory(h *models.TradeHistory) error
	SaveHistory(h *models.TradeHistory) error

	Rating() (*models.Rating, error)
	CreateRating(r *models.Rating) error
	SaveRating(r *models.Rating) error

	User(id uuid.UUID) (*models.User, error)
	// SaveUserScore обновляет только счётные поля профиля:
	// tot_xp, level, avg_stars, rating_count
	SaveUserScore(u *models.User) error
}

// ArtifactStore — внешнее хранилище файлов-доказательств.
// Ошибка удаления не фатальна: вызывающий логирует и продолжает.
type ArtifactStore interface {
	Delete(ctx context.Context, publicID string) error
}
