// Package plan maintains the scenario-branch plan attached to each open
// position and detects when reality has drifted from the thesis that opened
// it.
package plan

import (
	"fmt"
	"time"

	"pantheon/internal/council"
)

type ScenarioType string

const (
	ScenarioBullish ScenarioType = "bullish"
	ScenarioBearish ScenarioType = "bearish"
	ScenarioNeutral ScenarioType = "neutral"
)

type TriggerKind string

const (
	TriggerPriceAbove      TriggerKind = "price_above"
	TriggerPriceBelow      TriggerKind = "price_below"
	TriggerConfidenceBelow TriggerKind = "confidence_below"
	TriggerActionBecomes   TriggerKind = "action_becomes"
)

// Trigger is a single condition; only the field matching Kind is read.
type Trigger struct {
	Kind       TriggerKind    `json:"kind"`
	Price      float64        `json:"price,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Action     council.Action `json:"action,omitempty"`
}

// Holds reports whether the trigger condition is currently satisfied.
func (t Trigger) Holds(price float64, d council.Decision) bool {
	switch t.Kind {
	case TriggerPriceAbove:
		return price > 0 && price >= t.Price
	case TriggerPriceBelow:
		return price > 0 && price <= t.Price
	case TriggerConfidenceBelow:
		return d.Confidence < t.Confidence
	case TriggerActionBecomes:
		return d.Action == t.Action
	default:
		return false
	}
}

type Response string

const (
	RespondTakeProfit  Response = "take_profit"
	RespondAddPosition Response = "add_position"
	RespondTightenStop Response = "tighten_stop"
	RespondReassess    Response = "reassess"
	RespondExit        Response = "exit"
)

// PlannedAction is one trigger→response step. Steps transition pending →
// executed exactly once and are never removed.
type PlannedAction struct {
	ID       string   `json:"id"`
	Priority int      `json:"priority"`
	Trigger  Trigger  `json:"trigger"`
	Respond  Response `json:"respond"`
	Note     string   `json:"note,omitempty"`
}

// Scenario is one branch of the plan. Exactly one scenario is active at a
// time; inactive branches stay visible for audit.
type Scenario struct {
	Type     ScenarioType    `json:"type"`
	IsActive bool            `json:"is_active"`
	Steps    []PlannedAction `json:"steps"`
}

// EntrySnapshot freezes the conditions under which the trade was opened.
type EntrySnapshot struct {
	EntryPrice        float64        `json:"entry_price"`
	InvalidationPrice float64        `json:"invalidation_price"`
	Action            council.Action `json:"action"`
	Confidence        float64        `json:"confidence"`
	Stance            council.Stance `json:"stance"`
	NetSupport        float64        `json:"net_support"`
	CreatedAt         time.Time      `json:"created_at"`
}

// PositionPlan is created once at entry and retired when the trade closes.
type PositionPlan struct {
	TradeID       string        `json:"trade_id"`
	Symbol        string        `json:"symbol"`
	Original      EntrySnapshot `json:"original"`
	Scenarios     []Scenario    `json:"scenarios"`
	ExecutedSteps []string      `json:"executed_steps"`
	Retired       bool          `json:"retired"`
}

// ActiveScenario returns the live branch.
func (p *PositionPlan) ActiveScenario() *Scenario {
	for i := range p.Scenarios {
		if p.Scenarios[i].IsActive {
			return &p.Scenarios[i]
		}
	}
	return nil
}

func (p *PositionPlan) scenario(t ScenarioType) *Scenario {
	for i := range p.Scenarios {
		if p.Scenarios[i].Type == t {
			return &p.Scenarios[i]
		}
	}
	return nil
}

func (p *PositionPlan) executed(stepID string) bool {
	for _, id := range p.ExecutedSteps {
		if id == stepID {
			return true
		}
	}
	return false
}

func (p *PositionPlan) clone() PositionPlan {
	cp := *p
	cp.Scenarios = make([]Scenario, len(p.Scenarios))
	for i, sc := range p.Scenarios {
		steps := make([]PlannedAction, len(sc.Steps))
		copy(steps, sc.Steps)
		sc.Steps = steps
		cp.Scenarios[i] = sc
	}
	cp.ExecutedSteps = append([]string(nil), p.ExecutedSteps...)
	return cp
}

// buildScenarios lays out the three branches from the entry conditions. The
// ladders are intentionally simple percent offsets from entry; the point is
// the pre-commitment, not the levels.
func buildScenarios(entryPrice float64, d council.Decision) []Scenario {
	step := func(sc ScenarioType, idx, prio int, tr Trigger, resp Response, note string) PlannedAction {
		return PlannedAction{
			ID:       fmt.Sprintf("%s-%d", sc, idx),
			Priority: prio,
			Trigger:  tr,
			Respond:  resp,
			Note:     note,
		}
	}

	bullish := Scenario{Type: ScenarioBullish, Steps: []PlannedAction{
		step(ScenarioBullish, 1, 1,
			Trigger{Kind: TriggerPriceAbove, Price: entryPrice * 1.05},
			RespondTakeProfit, "first profit ladder"),
		step(ScenarioBullish, 2, 2,
			Trigger{Kind: TriggerPriceAbove, Price: entryPrice * 1.12},
			RespondTakeProfit, "second profit ladder"),
		step(ScenarioBullish, 3, 3,
			Trigger{Kind: TriggerActionBecomes, Action: council.ActionAggressiveBuy},
			RespondAddPosition, "council turned aggressively bullish"),
	}}

	bearish := Scenario{Type: ScenarioBearish, Steps: []PlannedAction{
		step(ScenarioBearish, 1, 1,
			Trigger{Kind: TriggerPriceBelow, Price: entryPrice * 0.95},
			RespondTightenStop, "first warning level"),
		step(ScenarioBearish, 2, 2,
			Trigger{Kind: TriggerPriceBelow, Price: entryPrice * 0.90},
			RespondExit, "invalidation level breached"),
		step(ScenarioBearish, 3, 3,
			Trigger{Kind: TriggerActionBecomes, Action: council.ActionLiquidate},
			RespondExit, "council turned to liquidation"),
	}}

	neutral := Scenario{Type: ScenarioNeutral, Steps: []PlannedAction{
		step(ScenarioNeutral, 1, 1,
			Trigger{Kind: TriggerConfidenceBelow, Confidence: 0.25},
			RespondReassess, "council conviction faded"),
		step(ScenarioNeutral, 2, 2,
			Trigger{Kind: TriggerActionBecomes, Action: council.ActionTrim},
			RespondTakeProfit, "council leans toward trimming"),
	}}

	active := ScenarioNeutral
	switch {
	case d.Action.IsBuySide():
		active = ScenarioBullish
	case d.Action.IsSellSide():
		active = ScenarioBearish
	}
	scenarios := []Scenario{bullish, bearish, neutral}
	for i := range scenarios {
		scenarios[i].IsActive = scenarios[i].Type == active
	}
	return scenarios
}
