package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

var (
	// ErrPricingNotFound は価格表にモデルが存在しない
	ErrPricingNotFound = errors.New("pricing not found")
	// ErrCostLimitExceeded は累計コストが上限に達した
	ErrCostLimitExceeded = errors.New("cost limit exceeded")
)

// ModelPricing はモデルごとの価格情報
type ModelPricing struct {
	InputPricePer1kTokens  float64 `yaml:"input_price_per_1k_tokens"`
	OutputPricePer1kTokens float64 `yaml:"output_price_per_1k_tokens"`
	Provider               string  `yaml:"provider"`
	Description            string  `yaml:"description"`
}

// CostLimits はコストの警告閾値と上限
type CostLimits struct {
	MaxCost          float64 `yaml:"max_cost"`
	WarningThreshold float64 `yaml:"warning_threshold"`
	EnableAlerts     bool    `yaml:"enable_alerts"`
}

// Table は価格設定ファイルの構造
type Table struct {
	Models     map[string]ModelPricing `yaml:"models"`
	CostLimits CostLimits              `yaml:"cost_limits"`
}

// Load は YAML の価格設定ファイルを読み込む
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing config: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse pricing config: %w", err)
	}
	return &table, nil
}

// Cost はトークン使用量からコストを計算する
func (t *Table) Cost(model string, usage completion.Usage) (float64, error) {
	pricing, ok := t.Models[model]
	if !ok {
		return 0, fmt.Errorf("%w for model: %s", ErrPricingNotFound, model)
	}

	// 1000トークンあたりの価格
	inputCost := float64(usage.PromptTokens) / 1000.0 * pricing.InputPricePer1kTokens
	outputCost := float64(usage.CompletionTokens) / 1000.0 * pricing.OutputPricePer1kTokens

	return inputCost + outputCost, nil
}

// Tracker はプロセス内で発生したコストを集計する
type Tracker struct {
	mu           sync.RWMutex
	table        *Table
	totalCost    float64
	costsByModel map[string]float64
	requestCount int
	warned       bool
	logger       *slog.Logger
}

// NewTracker は新しい Tracker を作成する
func NewTracker(table *Table, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		table:        table,
		costsByModel: make(map[string]float64),
		logger:       logger,
	}
}

// RecordUsage は completion.UsageRecorder を実装する
// 上限を超えた場合は ErrCostLimitExceeded を返す (呼び出し自体は止めない)
func (t *Tracker) RecordUsage(ctx context.Context, rec completion.UsageRecord) error {
	cost, err := t.table.Cost(rec.Model, rec.Usage)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalCost += cost
	t.costsByModel[rec.Model] += cost
	t.requestCount++

	limits := t.table.CostLimits
	if !limits.EnableAlerts {
		return nil
	}
	if limits.MaxCost > 0 && t.totalCost >= limits.MaxCost {
		return fmt.Errorf("%w: $%.4f >= $%.4f", ErrCostLimitExceeded, t.totalCost, limits.MaxCost)
	}
	if !t.warned && limits.WarningThreshold > 0 && t.totalCost >= limits.WarningThreshold {
		t.warned = true
		t.logger.WarnContext(ctx, "cost threshold reached",
			slog.Float64("total_cost", t.totalCost),
			slog.Float64("warning_threshold", limits.WarningThreshold),
		)
	}
	return nil
}

// TotalCost は総コストを返す
func (t *Tracker) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalCost
}

// CostsByModel はモデル別のコストを返す
func (t *Tracker) CostsByModel() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// コピーを返す
	result := make(map[string]float64, len(t.costsByModel))
	for k, v := range t.costsByModel {
		result[k] = v
	}
	return result
}

// RequestCount は集計したリクエスト数を返す
func (t *Tracker) RequestCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.requestCount
}

var _ completion.UsageRecorder = (*Tracker)(nil)
