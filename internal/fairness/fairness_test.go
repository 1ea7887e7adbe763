package fairness

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreTrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/evaluate-trade", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Нужен логотип", body["requested"])
		require.Equal(t, "Сверстаю лендинг", body["offered"])
		require.Equal(t, "Обмен на неделю", body["context"])

		json.NewEncoder(w).Encode(Result{
			TradeScore:     8,
			TaskComplexity: 70,
			TimeCommitment: 55,
			SkillLevel:     60,
			Feedback:       "Looks balanced.",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.ScoreTrade(context.Background(), "Нужен логотип", "Сверстаю лендинг", "Обмен на неделю")
	require.NoError(t, err)
	require.Equal(t, 8, result.TradeScore)
	require.Equal(t, 70, result.TaskComplexity)
	// Решение выводится из балла, когда сервис его не прислал
	require.Equal(t, DecisionConfirm, result.Decision)
}

func TestScoreTradeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.ScoreTrade(context.Background(), "a", "b", "c")
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	r := &Result{TradeScore: 42, TaskComplexity: 180, TimeCommitment: -5, SkillLevel: 50}
	r.normalize()
	require.Equal(t, 10, r.TradeScore)
	require.Equal(t, 100, r.TaskComplexity)
	require.Equal(t, 0, r.TimeCommitment)
	require.Equal(t, DecisionConfirm, r.Decision)

	r = &Result{TradeScore: 3}
	r.normalize()
	require.Equal(t, DecisionReject, r.Decision)

	// Явное решение сервиса не переопределяется
	r = &Result{TradeScore: 2, Decision: DecisionConfirm}
	r.normalize()
	require.Equal(t, DecisionConfirm, r.Decision)
}
