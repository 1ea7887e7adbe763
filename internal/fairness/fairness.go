package fairness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DecisionConfirm = "CONFIRM"
	DecisionReject  = "REJECT"

	// Порог из правила AI-сервиса: tradeScore >= 7 — сделка сбалансирована
	confirmThreshold = 7
)

// Result представляет оценку справедливости обмена от AI-сервиса
type Result struct {
	TradeScore     int    `json:"tradeScore"`     // 1-10
	TaskComplexity int    `json:"taskComplexity"` // 0-100
	TimeCommitment int    `json:"timeCommitment"` // 0-100
	SkillLevel     int    `json:"skillLevel"`     // 0-100
	Feedback       string `json:"feedback"`
	Decision       string `json:"decision"` // CONFIRM | REJECT
}

// Scorer оценивает справедливость обмена по описаниям сторон
type Scorer interface {
	ScoreTrade(ctx context.Context, requested, offered, extra string) (*Result, error)
}

// Client — HTTP-клиент AI-сервиса оценки обменов
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient создает новый экземпляр Client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ScoreTrade запрашивает оценку обмена у AI-сервиса
func (c *Client) ScoreTrade(ctx context.Context, requested, offered, extra string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{
		"requested": requested,
		"offered":   offered,
		"context":   extra,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/evaluate-trade", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос к AI-сервису: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI-сервис вернул статус %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("разбор ответа AI-сервиса: %w", err)
	}

	result.normalize()
	return &result, nil
}

// normalize приводит значения к допустимым диапазонам, как это делает сам сервис
func (r *Result) normalize() {
	r.TradeScore = clamp(r.TradeScore, 1, 10)
	r.TaskComplexity = clamp(r.TaskComplexity, 0, 100)
	r.TimeCommitment = clamp(r.TimeCommitment, 0, 100)
	r.SkillLevel = clamp(r.SkillLevel, 0, 100)
	if r.Decision != DecisionConfirm && r.Decision != DecisionReject {
		if r.TradeScore >= confirmThreshold {
			r.Decision = DecisionConfirm
		} else {
			r.Decision = DecisionReject
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
