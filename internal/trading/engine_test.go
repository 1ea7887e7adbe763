package trading_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/expair-api/internal/fairness"
	"github.com/rajivgeraev/expair-api/internal/matching"
	"github.com/rajivgeraev/expair-api/internal/models"
	"github.com/rajivgeraev/expair-api/internal/storage/memory"
	"github.com/rajivgeraev/expair-api/internal/trading"
)

// testEnv собирает движок поверх хранилища в памяти
type testEnv struct {
	engine *trading.Engine
	store  *memory.Store

	requester uuid.UUID
	responder uuid.UUID
	third     uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	env := &testEnv{
		engine:    trading.NewEngine(store, matching.NewEngine(store), nil, nil),
		store:     store,
		requester: uuid.New(),
		responder: uuid.New(),
		third:     uuid.New(),
	}
	store.AddUser(models.User{ID: env.requester, Username: "alice", FirstName: "Alice", Level: 1})
	store.AddUser(models.User{ID: env.responder, Username: "bob", FirstName: "Bob", Level: 1})
	store.AddUser(models.User{ID: env.third, Username: "carol", FirstName: "Carol", Level: 1})
	store.SetCatalog([]string{"Technical & IT", "Creative & Design", "Language & Translation"})
	return env
}

// scorerFunc адаптирует функцию под fairness.Scorer
type scorerFunc func(ctx context.Context, requested, offered, extra string) (*fairness.Result, error)

func (f scorerFunc) ScoreTrade(ctx context.Context, requested, offered, extra string) (*fairness.Result, error) {
	return f(ctx, requested, offered, extra)
}

func newTestEnvWithScorer(t *testing.T, scorer fairness.Scorer) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.engine = trading.NewEngine(env.store, matching.NewEngine(env.store), scorer, nil)
	return env
}

func (env *testEnv) createTrade(t *testing.T) *models.TradeRequest {
	t.Helper()
	trade, err := env.engine.CreateTradeRequest(context.Background(), env.requester, "Нужен логотип для кофейни", nil)
	require.NoError(t, err)
	return trade
}

// acceptedTrade доводит запрос до принятого отклика responder'а
func (env *testEnv) acceptedTrade(t *testing.T) *models.TradeRequest {
	t.Helper()
	ctx := context.Background()
	trade := env.createTrade(t)
	interest, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	accepted, err := env.engine.AcceptInterest(ctx, interest.ID, env.requester)
	require.NoError(t, err)
	return accepted
}

func detailInput(prof, mode, reqType string) trading.DetailInput {
	return trading.DetailInput{
		SkillProficiency: prof,
		DeliveryMode:     mode,
		RequestType:      reqType,
		Description:      "Сделаю быстро и качественно",
	}
}

// activeTrade доводит обмен до статуса ACTIVE: детали обеих сторон и двойной CONFIRM
func (env *testEnv) activeTrade(t *testing.T) *models.TradeRequest {
	t.Helper()
	ctx := context.Background()
	trade := env.acceptedTrade(t)

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	_, err = env.engine.RespondEvaluation(ctx, trade.ID, env.requester, true)
	require.NoError(t, err)
	out, err := env.engine.RespondEvaluation(ctx, trade.ID, env.responder, true)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusActive, out.Status)
	return out
}

// ratableTrade доводит обмен до состояния, в котором можно выставлять оценки
func (env *testEnv) ratableTrade(t *testing.T) *models.TradeRequest {
	t.Helper()
	ctx := context.Background()
	trade := env.activeTrade(t)

	_, err := env.engine.SubmitProof(ctx, trade.ID, env.requester, models.ProofArtifact{URL: "https://cdn/p1.png", PublicID: "p1"})
	require.NoError(t, err)
	_, err = env.engine.SubmitProof(ctx, trade.ID, env.responder, models.ProofArtifact{URL: "https://cdn/p2.png", PublicID: "p2"})
	require.NoError(t, err)
	_, err = env.engine.ApproveProof(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	_, err = env.engine.ApproveProof(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	return trade
}

func TestCreateTradeRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	trade := env.createTrade(t)
	require.Equal(t, models.TradeStatusNone, trade.Status)
	require.Nil(t, trade.ResponderID)

	_, err := env.engine.CreateTradeRequest(ctx, env.requester, "   ", nil)
	require.ErrorIs(t, err, trading.ErrValidation)

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'ы'
	}
	_, err = env.engine.CreateTradeRequest(ctx, env.requester, string(long), nil)
	require.ErrorIs(t, err, trading.ErrValidation)

	_, err = env.engine.CreateTradeRequest(ctx, uuid.New(), "Запрос от незнакомца", nil)
	require.ErrorIs(t, err, trading.ErrNotFound)
}

func TestExpressInterest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.createTrade(t)

	// На собственный запрос откликаться нельзя
	_, err := env.engine.ExpressInterest(ctx, trade.ID, env.requester)
	require.ErrorIs(t, err, trading.ErrValidation)

	// Первый отклик переводит запрос из NONE в PENDING
	interest, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	require.Equal(t, models.InterestStatusPending, interest.Status)

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusPending, got.Status)

	// Повторный отклик той же пары не создается
	_, err = env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.ErrorIs(t, err, trading.ErrAlreadyProcessed)

	// После отклонения отклик реактивируется, а не дублируется
	require.NoError(t, env.engine.DeclineInterest(ctx, interest.ID, env.requester))
	again, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	require.Equal(t, interest.ID, again.ID)
	require.Equal(t, models.InterestStatusPending, again.Status)
}

func TestDeclineLastInterestRevertsToNone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.createTrade(t)

	interest, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	require.NoError(t, env.engine.DeclineInterest(ctx, interest.ID, env.requester))

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusNone, got.Status)
}

func TestWithdrawInterest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.createTrade(t)

	interest, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)

	// Чужой отклик отозвать нельзя
	err = env.engine.WithdrawInterest(ctx, interest.ID, env.third)
	require.ErrorIs(t, err, trading.ErrForbidden)

	require.NoError(t, env.engine.WithdrawInterest(ctx, interest.ID, env.responder))

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusNone, got.Status)

	// Повторно отозвать нельзя
	err = env.engine.WithdrawInterest(ctx, interest.ID, env.responder)
	require.ErrorIs(t, err, trading.ErrAlreadyProcessed)
}

func TestAcceptInterest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.SetUserSkills(env.responder, []string{"Creative & Design", "Technical & IT"})
	env.store.SetUserInterests(env.requester, []string{"Creative & Design"})

	trade := env.createTrade(t)
	first, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	second, err := env.engine.ExpressInterest(ctx, trade.ID, env.third)
	require.NoError(t, err)

	// Принять отклик может только автор запроса
	_, err = env.engine.AcceptInterest(ctx, first.ID, env.responder)
	require.ErrorIs(t, err, trading.ErrForbidden)

	accepted, err := env.engine.AcceptInterest(ctx, first.ID, env.requester)
	require.NoError(t, err)
	require.NotNil(t, accepted.ResponderID)
	require.Equal(t, env.responder, *accepted.ResponderID)
	// Exchange — пересечение навыков респондента с интересами автора
	require.NotNil(t, accepted.Exchange)
	require.Equal(t, "Creative & Design", *accepted.Exchange)
	// Акцепт не активирует обмен, он ждёт двойного подтверждения оценки
	require.Equal(t, models.TradeStatusPending, accepted.Status)

	// Остальные ожидающие отклики отклонены
	interests, err := env.engine.Interests(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	byID := map[uuid.UUID]models.InterestStatus{}
	for _, i := range interests {
		byID[i.ID] = i.Status
	}
	require.Equal(t, models.InterestStatusAccepted, byID[first.ID])
	require.Equal(t, models.InterestStatusDeclined, byID[second.ID])

	// Второй акцепт по тому же запросу невозможен
	_, err = env.engine.AcceptInterest(ctx, second.ID, env.requester)
	require.ErrorIs(t, err, trading.ErrAlreadyAccepted)
}

func TestAcceptInterestConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.createTrade(t)

	first, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	second, err := env.engine.ExpressInterest(ctx, trade.ID, env.third)
	require.NoError(t, err)

	// Два параллельных акцепта разных откликов: побеждает ровно один
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.engine.AcceptInterest(ctx, id, env.requester)
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, trading.ErrAlreadyAccepted)
			lost++
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, lost)

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResponderID)
}

func TestDeleteTradeRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.createTrade(t)

	err := env.engine.DeleteTradeRequest(ctx, trade.ID, env.responder)
	require.ErrorIs(t, err, trading.ErrForbidden)

	require.NoError(t, env.engine.DeleteTradeRequest(ctx, trade.ID, env.requester))
	_, err = env.engine.TradeRequest(ctx, trade.ID)
	require.ErrorIs(t, err, trading.ErrNotFound)

	// После акцепта удаление запрещено, остаётся только отмена
	accepted := env.acceptedTrade(t)
	err = env.engine.DeleteTradeRequest(ctx, accepted.ID, env.requester)
	require.ErrorIs(t, err, trading.ErrInvalidState)
}

func TestCancelTrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// До акцепта отменять нечего
	fresh := env.createTrade(t)
	_, err := env.engine.CancelTrade(ctx, fresh.ID, env.requester)
	require.ErrorIs(t, err, trading.ErrInvalidState)

	accepted := env.acceptedTrade(t)
	_, err = env.engine.CancelTrade(ctx, accepted.ID, env.third)
	require.ErrorIs(t, err, trading.ErrForbidden)

	// Отменить может и респондент
	out, err := env.engine.CancelTrade(ctx, accepted.ID, env.responder)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusCancelled, out.Status)

	_, err = env.engine.CancelTrade(ctx, accepted.ID, env.requester)
	require.ErrorIs(t, err, trading.ErrInvalidState)
}

func TestSubmitDetail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// До принятого отклика детали не принимаются
	fresh := env.createTrade(t)
	_, err := env.engine.SubmitDetail(ctx, fresh.ID, env.requester, detailInput("BEGINNER", "ONLINE", "OUTPUT"))
	require.ErrorIs(t, err, trading.ErrInvalidState)

	trade := env.acceptedTrade(t)

	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.third, detailInput("BEGINNER", "ONLINE", "OUTPUT"))
	require.ErrorIs(t, err, trading.ErrForbidden)

	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("MASTER", "ONLINE", "OUTPUT"))
	require.ErrorIs(t, err, trading.ErrInvalidChoice)

	// Ставка XP складывается из трёх измерений
	detail, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("ADVANCED", "HYBRID", "PROJECT"))
	require.NoError(t, err)
	require.Equal(t, 600, detail.TotalXP) // 150 + 150 + 300

	// Повторная подача перезаписывает деталь и пересчитывает ставку
	detail, err = env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("BEGINNER", "ONLINE", "OUTPUT"))
	require.NoError(t, err)
	require.Equal(t, 225, detail.TotalXP) // 50 + 75 + 100

	details, err := env.engine.Details(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.Len(t, details, 1)
}

func TestXPTable(t *testing.T) {
	require.Equal(t, 225, trading.TotalXP(models.ProficiencyBeginner, models.DeliveryOnline, models.RequestTypeOutput))
	require.Equal(t, 600, trading.TotalXP(models.ProficiencyAdvanced, models.DeliveryHybrid, models.RequestTypeProject))
	require.Equal(t, 450, trading.TotalXP(models.ProficiencyCertified, models.DeliveryOnsite, models.RequestTypeService))

	require.Equal(t, 1, trading.LevelForXP(0))
	require.Equal(t, 1, trading.LevelForXP(999))
	require.Equal(t, 2, trading.LevelForXP(1000))
	require.Equal(t, 1, trading.LevelForXP(-5))
}

func TestEvaluationCreatedAfterBothDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.acceptedTrade(t)

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	// Пока деталь подала одна сторона, оценки нет
	_, err = env.engine.Evaluation(ctx, trade.ID, env.requester)
	require.ErrorIs(t, err, trading.ErrNotFound)

	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("ADVANCED", "HYBRID", "PROJECT"))
	require.NoError(t, err)

	eval, err := env.engine.Evaluation(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	// Среднее значений сторон: (60+90)/2, (40+75)/2, (50+75)/2
	require.Equal(t, 75, eval.TaskComplexity)
	require.Equal(t, 57, eval.TimeCommitment)
	require.Equal(t, 62, eval.SkillLevel)
	require.Contains(t, eval.Feedback, "Alice")
	require.Contains(t, eval.Feedback, "Bob")

	// Повторная подача деталей не создает вторую оценку
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("BEGINNER", "ONLINE", "OUTPUT"))
	require.NoError(t, err)
	again, err := env.engine.Evaluation(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.Equal(t, eval.ID, again.ID)

	// Оценка видна только участникам
	_, err = env.engine.Evaluation(ctx, trade.ID, env.third)
	require.ErrorIs(t, err, trading.ErrForbidden)
}

func TestSubmitDetailAppliesAIScore(t *testing.T) {
	ctx := context.Background()
	var (
		env     *testEnv
		tradeID uuid.UUID
	)
	scorer := scorerFunc(func(ctx context.Context, requested, offered, extra string) (*fairness.Result, error) {
		require.Equal(t, "Сделаю быстро и качественно", requested)
		require.Equal(t, "Сделаю быстро и качественно", offered)
		require.Equal(t, "Нужен логотип для кофейни", extra)
		// Вызов идёт уже после коммита: детерминированная оценка читается
		// без взаимоблокировки на хранилище
		eval, err := env.engine.Evaluation(ctx, tradeID, env.requester)
		require.NoError(t, err)
		require.Equal(t, 60, eval.TaskComplexity)
		return &fairness.Result{
			TradeScore:     9,
			TaskComplexity: 80,
			TimeCommitment: 70,
			SkillLevel:     65,
			Feedback:       "Solid match on both sides.",
		}, nil
	})
	env = newTestEnvWithScorer(t, scorer)
	trade := env.acceptedTrade(t)
	tradeID = trade.ID

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	eval, err := env.engine.Evaluation(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.Equal(t, 80, eval.TaskComplexity)
	require.Equal(t, 70, eval.TimeCommitment)
	require.Equal(t, 65, eval.SkillLevel)
	require.Equal(t, "Solid match on both sides.", eval.Feedback)
}

func TestSubmitDetailScorerFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	scorer := scorerFunc(func(context.Context, string, string, string) (*fairness.Result, error) {
		return nil, fmt.Errorf("сервис недоступен")
	})
	env := newTestEnvWithScorer(t, scorer)
	trade := env.acceptedTrade(t)

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	// Остаётся расчёт по таблицам
	eval, err := env.engine.Evaluation(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.Equal(t, 60, eval.TaskComplexity)
	require.Equal(t, 40, eval.TimeCommitment)
	require.Equal(t, 50, eval.SkillLevel)
}

func TestAIScoreNotAppliedAfterResponse(t *testing.T) {
	ctx := context.Background()
	var (
		env     *testEnv
		tradeID uuid.UUID
	)
	// Сторона успевает ответить между коммитом оценки и приходом AI-результата:
	// уже отвеченная оценка не переписывается
	scorer := scorerFunc(func(ctx context.Context, _, _, _ string) (*fairness.Result, error) {
		_, err := env.engine.RespondEvaluation(ctx, tradeID, env.requester, true)
		require.NoError(t, err)
		return &fairness.Result{TradeScore: 9, TaskComplexity: 80, TimeCommitment: 70, SkillLevel: 65}, nil
	})
	env = newTestEnvWithScorer(t, scorer)
	trade := env.acceptedTrade(t)
	tradeID = trade.ID

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	eval, err := env.engine.Evaluation(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	require.Equal(t, 60, eval.TaskComplexity)
	require.Equal(t, 40, eval.TimeCommitment)
	require.Equal(t, 50, eval.SkillLevel)
	require.NotNil(t, eval.RequesterResponse)
}

func TestTradeScore(t *testing.T) {
	require.Equal(t, 5, trading.TradeScore(&models.Evaluation{TaskComplexity: 50, TimeCommitment: 50, SkillLevel: 50}))
	require.Equal(t, 10, trading.TradeScore(&models.Evaluation{TaskComplexity: 100, TimeCommitment: 100, SkillLevel: 100}))
	require.Equal(t, 2, trading.TradeScore(&models.Evaluation{TaskComplexity: 20, TimeCommitment: 20, SkillLevel: 20}))
}

func TestRespondEvaluation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.acceptedTrade(t)

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	// Один CONFIRM ещё не активирует обмен
	out, err := env.engine.RespondEvaluation(ctx, trade.ID, env.requester, true)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusPending, out.Status)

	// Ответ дается один раз
	_, err = env.engine.RespondEvaluation(ctx, trade.ID, env.requester, true)
	require.ErrorIs(t, err, trading.ErrAlreadyResponded)

	out, err = env.engine.RespondEvaluation(ctx, trade.ID, env.responder, true)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusActive, out.Status)
}

func TestRespondEvaluationReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.acceptedTrade(t)

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	// REJECT отменяет обмен сразу, не дожидаясь второй стороны
	out, err := env.engine.RespondEvaluation(ctx, trade.ID, env.responder, false)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusCancelled, out.Status)

	// Ответ второй стороны по отменённому обмену уже не принимается
	_, err = env.engine.RespondEvaluation(ctx, trade.ID, env.requester, true)
	require.ErrorIs(t, err, trading.ErrInvalidState)

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusCancelled, got.Status)
}

func TestRespondEvaluationAfterCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.acceptedTrade(t)

	_, err := env.engine.SubmitDetail(ctx, trade.ID, env.requester, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)
	_, err = env.engine.SubmitDetail(ctx, trade.ID, env.responder, detailInput("INTERMEDIATE", "ONLINE", "SERVICE"))
	require.NoError(t, err)

	_, err = env.engine.RespondEvaluation(ctx, trade.ID, env.requester, true)
	require.NoError(t, err)

	// Респондент отменяет обмен, его последующий CONFIRM не оживляет сделку
	_, err = env.engine.CancelTrade(ctx, trade.ID, env.responder)
	require.NoError(t, err)

	_, err = env.engine.RespondEvaluation(ctx, trade.ID, env.responder, true)
	require.ErrorIs(t, err, trading.ErrInvalidState)

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusCancelled, got.Status)
}

func TestRespondEvaluationAfterActivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.activeTrade(t)

	// Активированный обмен не переоценивается
	_, err := env.engine.RespondEvaluation(ctx, trade.ID, env.requester, false)
	require.ErrorIs(t, err, trading.ErrInvalidState)

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusActive, got.Status)
}

func TestProofFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// До активации доказательства не принимаются
	pending := env.acceptedTrade(t)
	_, err := env.engine.SubmitProof(ctx, pending.ID, env.requester, models.ProofArtifact{URL: "https://cdn/x.png"})
	require.ErrorIs(t, err, trading.ErrInvalidState)

	trade := env.activeTrade(t)

	// Решение по доказательству, которого ещё нет
	_, err = env.engine.ApproveProof(ctx, trade.ID, env.requester)
	require.ErrorIs(t, err, trading.ErrInvalidState)

	h, err := env.engine.SubmitProof(ctx, trade.ID, env.responder, models.ProofArtifact{URL: "https://cdn/b.png", PublicID: "b1"})
	require.NoError(t, err)
	require.NotNil(t, h.ResponderProof)
	require.Equal(t, models.ProofStatusPending, h.ResponderProofStatus)

	// Отклонение очищает слот, сторона загружает заново
	h, err = env.engine.RejectProof(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.Nil(t, h.ResponderProof)

	h, err = env.engine.SubmitProof(ctx, trade.ID, env.responder, models.ProofArtifact{URL: "https://cdn/b2.png", PublicID: "b2"})
	require.NoError(t, err)
	h, err = env.engine.ApproveProof(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.Equal(t, models.ProofStatusApproved, h.ResponderProofStatus)
	require.False(t, h.BothApproved())

	_, err = env.engine.SubmitProof(ctx, trade.ID, env.requester, models.ProofArtifact{URL: "https://cdn/a.png", PublicID: "a1"})
	require.NoError(t, err)
	h, err = env.engine.ApproveProof(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	require.True(t, h.BothApproved())
}

func TestSubmitRatingValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.activeTrade(t)

	_, err := env.engine.SubmitRating(ctx, trade.ID, env.requester, 0, "отлично")
	require.ErrorIs(t, err, trading.ErrValidation)
	_, err = env.engine.SubmitRating(ctx, trade.ID, env.requester, 6, "отлично")
	require.ErrorIs(t, err, trading.ErrValidation)
	_, err = env.engine.SubmitRating(ctx, trade.ID, env.requester, 5, "   ")
	require.ErrorIs(t, err, trading.ErrValidation)

	// Пока доказательства не подтверждены, оценки не принимаются
	_, err = env.engine.SubmitRating(ctx, trade.ID, env.requester, 5, "отлично")
	require.ErrorIs(t, err, trading.ErrInvalidState)
}

func TestSubmitRatingCompletesTrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.ratableTrade(t)

	_, err := env.engine.SubmitRating(ctx, trade.ID, env.requester, 5, "Великолепная работа")
	require.NoError(t, err)

	// Повторная оценка той же стороны отсекается
	_, err = env.engine.SubmitRating(ctx, trade.ID, env.requester, 4, "Передумал")
	require.ErrorIs(t, err, trading.ErrAlreadyProcessed)

	// XP начислен подающему: INTERMEDIATE + ONLINE + SERVICE = 100 + 75 + 150
	alice, err := env.store.UserByID(ctx, env.requester)
	require.NoError(t, err)
	require.Equal(t, 325, alice.TotalXP)
	require.Equal(t, 1, alice.Level)

	// Звёзды ушли в рейтинг контрагента
	bob, err := env.store.UserByID(ctx, env.responder)
	require.NoError(t, err)
	require.Equal(t, 1, bob.RatingCount)
	require.InDelta(t, 5.0, bob.AvgStars, 1e-9)

	got, err := env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusActive, got.Status)

	_, err = env.engine.SubmitRating(ctx, trade.ID, env.responder, 3, "Неплохо")
	require.NoError(t, err)

	got, err = env.engine.TradeRequest(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, models.TradeStatusCompleted, got.Status)

	h, err := env.engine.Proofs(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.NotNil(t, h.CompletedAt)
	require.WithinDuration(t, time.Now(), *h.CompletedAt, time.Minute)

	// Средний рейтинг считается инкрементально
	alice, err = env.store.UserByID(ctx, env.requester)
	require.NoError(t, err)
	require.Equal(t, 1, alice.RatingCount)
	require.InDelta(t, 3.0, alice.AvgStars, 1e-9)
}

func TestSubmitRatingConcurrentSameUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.ratableTrade(t)

	// Две параллельные попытки одной стороны: XP начисляется ровно один раз
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.engine.SubmitRating(ctx, trade.ID, env.requester, 5, "Отличный обмен")
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, trading.ErrAlreadyProcessed)
			dup++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, dup)

	alice, err := env.store.UserByID(ctx, env.requester)
	require.NoError(t, err)
	require.Equal(t, 325, alice.TotalXP)

	bob, err := env.store.UserByID(ctx, env.responder)
	require.NoError(t, err)
	require.Equal(t, 1, bob.RatingCount)
}

func TestTradeFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.SetUserSkills(env.requester, []string{"Language & Translation"})

	trade := env.createTrade(t)

	// Автор не видит собственный запрос в ленте
	feed, err := env.engine.TradeFeed(ctx, env.requester)
	require.NoError(t, err)
	require.Empty(t, feed)

	feed, err = env.engine.TradeFeed(ctx, env.responder)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, trade.ID, feed[0].ID)
	require.Equal(t, "Language & Translation", feed[0].SuggestedOffer)

	// Принятый запрос из ленты исчезает
	interest, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)
	_, err = env.engine.AcceptInterest(ctx, interest.ID, env.requester)
	require.NoError(t, err)

	feed, err = env.engine.TradeFeed(ctx, env.third)
	require.NoError(t, err)
	require.Empty(t, feed)
}

func TestInterestsVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.createTrade(t)

	_, err := env.engine.ExpressInterest(ctx, trade.ID, env.responder)
	require.NoError(t, err)

	_, err = env.engine.Interests(ctx, trade.ID, env.responder)
	require.ErrorIs(t, err, trading.ErrForbidden)

	interests, err := env.engine.Interests(ctx, trade.ID, env.requester)
	require.NoError(t, err)
	require.Len(t, interests, 1)
}
