package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/trading"
)

// WithTradeTx выполняет fn в транзакции, удерживая блокировку строки
// запроса. Ошибка из fn откатывает транзакцию целиком.
func (s *Store) WithTradeTx(ctx context.Context, tradeID uuid.UUID, fn func(tx trading.TradeTx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer pgtx.Rollback(ctx)

	// Блокировка строки запроса: параллельные акцепты и оценки по тому же
	// обмену выстраиваются в очередь здесь
	row := pgtx.QueryRow(ctx, `
        SELECT `+tradeColumns+`
        FROM tradereq_tbl
        WHERE tradereq_id = $1
        FOR UPDATE
    `, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		return err
	}

	tx := &tradeTx{ctx: ctx, tx: pgtx, tradeID: tradeID, trade: t}
	if err := fn(tx); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}

// tradeTx — trading.TradeTx поверх открытой транзакции pgx
type tradeTx struct {
	ctx     context.Context
	tx      pgx.Tx
	tradeID uuid.UUID
	trade   *models.TradeRequest
}

func (t *tradeTx) Trade() (*models.TradeRequest, error) {
	return t.trade, nil
}

func (t *tradeTx) SaveTrade(tr *models.TradeRequest) error {
	_, err := t.tx.Exec(t.ctx, `
        UPDATE tradereq_tbl
        SET responder_id = $1, reqname = $2, reqdeadline = $3, status = $4,
            exchangename = $5, requester_rated = $6, responder_rated = $7
        WHERE tradereq_id = $8
    `, tr.ResponderID, tr.Name, tr.Deadline, string(tr.Status),
		tr.Exchange, tr.RequesterRated, tr.ResponderRated, t.tradeID)
	if err != nil {
		return fmt.Errorf("сохранение запроса обмена: %w", err)
	}
	t.trade = tr
	return nil
}

func (t *tradeTx) DeleteTrade() error {
	// Каскад по FK удалит отклики и детали
	_, err := t.tx.Exec(t.ctx, `DELETE FROM tradereq_tbl WHERE tradereq_id = $1`, t.tradeID)
	if err != nil {
		return fmt.Errorf("удаление запроса обмена: %w", err)
	}
	return nil
}

func (t *tradeTx) Interests() ([]models.TradeInterest, error) {
	rows, err := t.tx.Query(t.ctx, `
        SELECT `+interestColumns+`
        FROM trade_interests_tbl
        WHERE tradereq_id = $1
        ORDER BY created_at DESC
    `, t.tradeID)
	if err != nil {
		return nil, fmt.Errorf("запрос откликов: %w", err)
	}
	defer rows.Close()
	return scanInterests(rows)
}

func (t *tradeTx) InterestByID(id uuid.UUID) (*models.TradeInterest, error) {
	row := t.tx.QueryRow(t.ctx, `
        SELECT `+interestColumns+`
        FROM trade_interests_tbl
        WHERE trade_interests_id = $1 AND tradereq_id = $2
    `, id, t.tradeID)
	return scanInterest(row)
}

func (t *tradeTx) InterestByUser(userID uuid.UUID) (*models.TradeInterest, error) {
	row := t.tx.QueryRow(t.ctx, `
        SELECT `+interestColumns+`
        FROM trade_interests_tbl
        WHERE tradereq_id = $1 AND interested_user_id = $2
    `, t.tradeID, userID)
	return scanInterest(row)
}

func (t *tradeTx) CreateInterest(i *models.TradeInterest) error {
	_, err := t.tx.Exec(t.ctx, `
        INSERT INTO trade_interests_tbl (trade_interests_id, tradereq_id, interested_user_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, i.ID, i.TradeRequestID, i.InterestedUserID, string(i.Status), i.CreatedAt)
	if err != nil {
		return fmt.Errorf("создание отклика: %w", err)
	}
	return nil
}

func (t *tradeTx) SaveInterest(i *models.TradeInterest) error {
	_, err := t.tx.Exec(t.ctx, `
        UPDATE trade_interests_tbl
        SET status = $1
        WHERE trade_interests_id = $2
    `, string(i.Status), i.ID)
	if err != nil {
		return fmt.Errorf("сохранение отклика: %w", err)
	}
	return nil
}

const detailColumns = `tradedetails_id, tradereq_id, user_id, skillprof, modedel, reqtype,
       reqbio, contextpic_url, contextpic_id, total_xp, xp_awarded, created_at`

func (t *tradeTx) Details() ([]models.TradeDetail, error) {
	rows, err := t.tx.Query(t.ctx, `
        SELECT `+detailColumns+`
        FROM trade_details_tbl
        WHERE tradereq_id = $1
        ORDER BY created_at ASC
    `, t.tradeID)
	if err != nil {
		return nil, fmt.Errorf("запрос деталей обмена: %w", err)
	}
	defer rows.Close()

	var out []models.TradeDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (t *tradeTx) DetailByUser(userID uuid.UUID) (*models.TradeDetail, error) {
	row := t.tx.QueryRow(t.ctx, `
        SELECT `+detailColumns+`
        FROM trade_details_tbl
        WHERE tradereq_id = $1 AND user_id = $2
    `, t.tradeID, userID)
	return scanDetail(row)
}

func (t *tradeTx) UpsertDetail(d *models.TradeDetail) error {
	_, err := t.tx.Exec(t.ctx, `
        INSERT INTO trade_details_tbl
            (tradedetails_id, tradereq_id, user_id, skillprof, modedel, reqtype,
             reqbio, contextpic_url, contextpic_id, total_xp, xp_awarded, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (tradereq_id, user_id) DO UPDATE SET
            skillprof = EXCLUDED.skillprof,
            modedel = EXCLUDED.modedel,
            reqtype = EXCLUDED.reqtype,
            reqbio = EXCLUDED.reqbio,
            contextpic_url = EXCLUDED.contextpic_url,
            contextpic_id = EXCLUDED.contextpic_id,
            total_xp = EXCLUDED.total_xp,
            xp_awarded = EXCLUDED.xp_awarded
    `, d.ID, d.TradeRequestID, d.UserID, string(d.SkillProficiency), string(d.DeliveryMode),
		string(d.RequestType), d.Description, d.ContextImageURL, d.ContextImageID,
		d.TotalXP, d.XPAwarded, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("сохранение деталей обмена: %w", err)
	}
	return nil
}

func scanDetail(row rowScanner) (*models.TradeDetail, error) {
	var d models.TradeDetail
	var prof, mode, reqType string
	err := row.Scan(
		&d.ID, &d.TradeRequestID, &d.UserID, &prof, &mode, &reqType,
		&d.Description, &d.ContextImageURL, &d.ContextImageID,
		&d.TotalXP, &d.XPAwarded, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("детали обмена: %w", trading.ErrNotFound)
		}
		return nil, fmt.Errorf("чтение деталей обмена: %w", err)
	}
	d.SkillProficiency = models.SkillProficiency(prof)
	d.DeliveryMode = models.DeliveryMode(mode)
	d.RequestType = models.RequestType(reqType)
	return &d, nil
}

func (t *tradeTx) Evaluation() (*models.Evaluation, error) {
	row := t.tx.QueryRow(t.ctx, `
        SELECT evaluation_id, tradereq_id, task_complexity, time_commitment, skill_level,
               feedback, requester_response, responder_response,
               requester_responded_at, responder_responded_at, created_at
        FROM trade_evaluations_tbl
        WHERE tradereq_id = $1
    `, t.tradeID)

	var e models.Evaluation
	var reqResp, respResp *string
	err := row.Scan(
		&e.ID, &e.TradeRequestID, &e.TaskComplexity, &e.TimeCommitment, &e.SkillLevel,
		&e.Feedback, &reqResp, &respResp,
		&e.RequesterRespondedAt, &e.ResponderRespondedAt, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("оценка обмена: %w", trading.ErrNotFound)
		}
		return nil, fmt.Errorf("чтение оценки обмена: %w", err)
	}
	if reqResp != nil {
		d := models.EvaluationDecision(*reqResp)
		e.RequesterResponse = &d
	}
	if respResp != nil {
		d := models.EvaluationDecision(*respResp)
		e.ResponderResponse = &d
	}
	return &e, nil
}

func (t *tradeTx) CreateEvaluation(e *models.Evaluation) error {
	_, err := t.tx.Exec(t.ctx, `
        INSERT INTO trade_evaluations_tbl
            (evaluation_id, tradereq_id, task_complexity, time_commitment, skill_level, feedback, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, e.ID, e.TradeRequestID, e.TaskComplexity, e.TimeCommitment, e.SkillLevel, e.Feedback, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("создание оценки обмена: %w", err)
	}
	return nil
}

func (t *tradeTx) SaveEvaluation(e *models.Evaluation) error {
	var reqResp, respResp *string
	if e.RequesterResponse != nil {
		v := string(*e.RequesterResponse)
		reqResp = &v
	}
	if e.ResponderResponse != nil {
		v := string(*e.ResponderResponse)
		respResp = &v
	}
	_, err := t.tx.Exec(t.ctx, `
        UPDATE trade_evaluations_tbl
        SET requester_response = $1, responder_response = $2,
            requester_responded_at = $3, responder_responded_at = $4
        WHERE evaluation_id = $5
    `, reqResp, respResp, e.RequesterRespondedAt, e.ResponderRespondedAt, e.ID)
	if err != nil {
		return fmt.Errorf("сохранение оценки обмена: %w", err)
	}
	return nil
}

func (t *tradeTx) History() (*models.TradeHistory, error) {
	row := t.tx.QueryRow(t.ctx, `
        SELECT history_id, tradereq_id,
               requester_proof_url, requester_proof_id, requester_proof_status,
               responder_proof_url, responder_proof_id, responder_proof_status,
               completed_at, created_at
        FROM trade_history_tbl
        WHERE tradereq_id = $1
    `, t.tradeID)

	var h models.TradeHistory
	var reqURL, reqID, respURL, respID *string
	var reqStatus, respStatus string
	err := row.Scan(
		&h.ID, &h.TradeRequestID,
		&reqURL, &reqID, &reqStatus,
		&respURL, &respID, &respStatus,
		&h.CompletedAt, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("история обмена: %w", trading.ErrNotFound)
		}
		return nil, fmt.Errorf("чтение истории обмена: %w", err)
	}
	if reqURL != nil {
		h.RequesterProof = &models.ProofArtifact{URL: *reqURL}
		if reqID != nil {
			h.RequesterProof.PublicID = *reqID
		}
	}
	if respURL != nil {
		h.ResponderProof = &models.ProofArtifact{URL: *respURL}
		if respID != nil {
			h.ResponderProof.PublicID = *respID
		}
	}
	h.RequesterProofStatus = models.ProofStatus(reqStatus)
	h.ResponderProofStatus = models.ProofStatus(respStatus)
	return &h, nil
}

func (t *tradeTx) CreateHistory(h *models.TradeHistory) error {
	_, err := t.tx.Exec(t.ctx, `
        INSERT INTO trade_history_tbl
            (history_id, tradereq_id, requester_proof_status, responder_proof_status, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, h.ID, h.TradeRequestID, string(h.RequesterProofStatus), string(h.ResponderProofStatus), h.CreatedAt)
	if err != nil {
		return fmt.Errorf("создание истории обмена: %w", err)
	}
	return nil
}

func (t *tradeTx) SaveHistory(h *models.TradeHistory) error {
	var reqURL, reqID, respURL, respID *string
	if h.RequesterProof != nil {
		reqURL, reqID = &h.RequesterProof.URL, &h.RequesterProof.PublicID
	}
	if h.ResponderProof != nil {
		respURL, respID = &h.ResponderProof.URL, &h.ResponderProof.PublicID
	}
	_, err := t.tx.Exec(t.ctx, `
        UPDATE trade_history_tbl
        SET requester_proof_url = $1, requester_proof_id = $2, requester_proof_status = $3,
            responder_proof_url = $4, responder_proof_id = $5, responder_proof_status = $6,
            completed_at = $7
        WHERE history_id = $8
    `, reqURL, reqID, string(h.RequesterProofStatus),
		respURL, respID, string(h.ResponderProofStatus),
		h.CompletedAt, h.ID)
	if err != nil {
		return fmt.Errorf("сохранение истории обмена: %w", err)
	}
	return nil
}

func (t *tradeTx) Rating() (*models.Rating, error) {
	row := t.tx.QueryRow(t.ctx, `
        SELECT reputation_id, tradereq_id,
               requester_stars, requester_review, requester_rated_at,
               responder_stars, responder_review, responder_rated_at
        FROM reputation_tbl
        WHERE tradereq_id = $1
    `, t.tradeID)

	var r models.Rating
	err := row.Scan(
		&r.ID, &r.TradeRequestID,
		&r.RequesterStars, &r.RequesterReview, &r.RequesterRatedAt,
		&r.ResponderStars, &r.ResponderReview, &r.ResponderRatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("оценки обмена: %w", trading.ErrNotFound)
		}
		return nil, fmt.Errorf("чтение оценок обмена: %w", err)
	}
	return &r, nil
}

func (t *tradeTx) CreateRating(r *models.Rating) error {
	_, err := t.tx.Exec(t.ctx, `
        INSERT INTO reputation_tbl (reputation_id, tradereq_id)
        VALUES ($1, $2)
    `, r.ID, r.TradeRequestID)
	if err != nil {
		return fmt.Errorf("создание записи оценок: %w", err)
	}
	return nil
}

func (t *tradeTx) SaveRating(r *models.Rating) error {
	_, err := t.tx.Exec(t.ctx, `
        UPDATE reputation_tbl
        SET requester_stars = $1, requester_review = $2, requester_rated_at = $3,
            responder_stars = $4, responder_review = $5, responder_rated_at = $6
        WHERE reputation_id = $7
    `, r.RequesterStars, r.RequesterReview, r.RequesterRatedAt,
		r.ResponderStars, r.ResponderReview, r.ResponderRatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("сохранение оценок: %w", err)
	}
	return nil
}

// User читает пользователя под блокировкой его строки: счётные поля
// (avgstars, ratingcount, tot_xppts) обновляются по схеме чтение-изменение-
// запись, и без FOR UPDATE две транзакции по разным обменам с общим
// участником потеряли бы одно из обновлений
func (t *tradeTx) User(id uuid.UUID) (*models.User, error) {
	row := t.tx.QueryRow(t.ctx, `
        SELECT `+userColumns+`
        FROM users_tbl
        WHERE user_id = $1
        FOR UPDATE
    `, id)
	return scanUser(row)
}

func (t *tradeTx) SaveUserScore(u *models.User) error {
	_, err := t.tx.Exec(t.ctx, `
        UPDATE users_tbl
        SET tot_xppts = $1, level = $2, avgstars = $3, ratingcount = $4
        WHERE user_id = $5
    `, u.TotalXP, u.Level, u.AvgStars, u.RatingCount, u.ID)
	if err != nil {
		return fmt.Errorf("обновление счётных полей пользователя: %w", err)
	}
	return nil
}
