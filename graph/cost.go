package graph

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ModelPricing is the USD price of a model per million tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing holds list prices for the models the adapters default
// to. Prices change; override with SetCustomPricing.
var defaultModelPricing = map[string]ModelPricing{
	"gemini-2.5-pro":        {InputPer1M: 1.25, OutputPer1M: 10.00},
	"gemini-2.5-flash":      {InputPer1M: 0.30, OutputPer1M: 2.50},
	"gemini-2.5-flash-lite": {InputPer1M: 0.10, OutputPer1M: 0.40},
	"gemini-2.0-flash":      {InputPer1M: 0.10, OutputPer1M: 0.40},
	"gemini-1.5-pro":        {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":      {InputPer1M: 0.075, OutputPer1M: 0.30},

	"gpt-4o":       {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":  {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4.1":      {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gpt-4.1-mini": {InputPer1M: 0.40, OutputPer1M: 1.60},

	"claude-sonnet-4-5": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-sonnet-4-0": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-opus-4-1":   {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-5-haiku":  {InputPer1M: 0.80, OutputPer1M: 4.00},
}

// LLMCall is one priced model invocation.
type LLMCall struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
	NodeID       string
}

// CostTracker accumulates LLM usage and cost for a run.
//
// Unknown models are recorded with zero cost. Versioned model names such as
// "gemini-2.5-pro-preview-05-06" fall back to the longest known prefix.
//
// A nil *CostTracker accepts calls and records nothing.
//
// Example:
//
//	tracker := graph.NewCostTracker(runID, "USD")
//	engine, _ := graph.New(g, st, emitter, graph.WithCostTracker(tracker))
//	...
//	fmt.Printf("cost: $%.4f\n", tracker.GetTotalCost())
type CostTracker struct {
	RunID    string
	Currency string

	Pricing map[string]ModelPricing
	Calls   []LLMCall

	TotalCost    float64
	ModelCosts   map[string]float64
	InputTokens  int64
	OutputTokens int64

	CreatedAt time.Time

	mu sync.RWMutex
}

// NewCostTracker creates a tracker using the built-in price table.
func NewCostTracker(runID, currency string) *CostTracker {
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for k, v := range defaultModelPricing {
		pricing[k] = v
	}
	return &CostTracker{
		RunID:      runID,
		Currency:   currency,
		Pricing:    pricing,
		Calls:      make([]LLMCall, 0, 32),
		ModelCosts: make(map[string]float64),
		CreatedAt:  time.Now(),
	}
}

// RecordLLMCall prices and records one model call, returning its cost.
func (ct *CostTracker) RecordLLMCall(model string, inputTokens, outputTokens int, nodeID string) float64 {
	if ct == nil {
		return 0
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	pricing := ct.lookup(model)
	cost := float64(inputTokens)/1_000_000.0*pricing.InputPer1M +
		float64(outputTokens)/1_000_000.0*pricing.OutputPer1M

	ct.Calls = append(ct.Calls, LLMCall{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		Timestamp:    time.Now(),
		NodeID:       nodeID,
	})
	ct.TotalCost += cost
	ct.ModelCosts[model] += cost
	ct.InputTokens += int64(inputTokens)
	ct.OutputTokens += int64(outputTokens)
	return cost
}

// lookup must be called with ct.mu held.
func (ct *CostTracker) lookup(model string) ModelPricing {
	if p, ok := ct.Pricing[model]; ok {
		return p
	}
	best := ""
	for name := range ct.Pricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	return ct.Pricing[best]
}

// GetTotalCost returns the accumulated cost.
func (ct *CostTracker) GetTotalCost() float64 {
	if ct == nil {
		return 0
	}
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.TotalCost
}

// GetCostByModel returns a copy of the per-model cost breakdown.
func (ct *CostTracker) GetCostByModel() map[string]float64 {
	if ct == nil {
		return map[string]float64{}
	}
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	costs := make(map[string]float64, len(ct.ModelCosts))
	for model, cost := range ct.ModelCosts {
		costs[model] = cost
	}
	return costs
}

// GetCallHistory returns a copy of all recorded calls.
func (ct *CostTracker) GetCallHistory() []LLMCall {
	if ct == nil {
		return nil
	}
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	calls := make([]LLMCall, len(ct.Calls))
	copy(calls, ct.Calls)
	return calls
}

// GetTokenUsage returns total input and output tokens.
func (ct *CostTracker) GetTokenUsage() (inputTokens, outputTokens int64) {
	if ct == nil {
		return 0, 0
	}
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.InputTokens, ct.OutputTokens
}

// SetCustomPricing overrides the price of a model.
func (ct *CostTracker) SetCustomPricing(model string, inputPer1M, outputPer1M float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.Pricing == nil {
		ct.Pricing = make(map[string]ModelPricing)
	}
	ct.Pricing[model] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

// Reset clears recorded calls and totals.
func (ct *CostTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.Calls = make([]LLMCall, 0, 32)
	ct.TotalCost = 0
	ct.ModelCosts = make(map[string]float64)
	ct.InputTokens = 0
	ct.OutputTokens = 0
}

// String returns a one-line summary.
func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	return fmt.Sprintf(
		"CostTracker{RunID: %s, Calls: %d, TotalCost: $%.4f %s, InputTokens: %d, OutputTokens: %d}",
		ct.RunID,
		len(ct.Calls),
		ct.TotalCost,
		ct.Currency,
		ct.InputTokens,
		ct.OutputTokens,
	)
}
