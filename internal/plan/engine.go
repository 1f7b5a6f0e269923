package plan

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"pantheon/internal/council"
	"pantheon/internal/logger"
)

// Significance grades how far a fresh decision has drifted from the entry
// thesis.
type Significance string

const (
	DeltaLow      Significance = "low"
	DeltaMedium   Significance = "medium"
	DeltaHigh     Significance = "high"
	DeltaCritical Significance = "critical"
)

// PositionDelta is the drift report for one plan against one fresh Decision.
// A critical delta means the thesis itself is invalidated, whether or not any
// price trigger has fired.
type PositionDelta struct {
	TradeID      string       `json:"trade_id"`
	Significance Significance `json:"significance"`
	Changes      []string     `json:"changes,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// EvalResult reports one re-evaluation round.
type EvalResult struct {
	Fired          []PlannedAction `json:"fired,omitempty"`
	Delta          PositionDelta   `json:"delta"`
	ActiveScenario ScenarioType    `json:"active_scenario"`
	Switched       bool            `json:"switched"`
}

// Engine owns every live PositionPlan, keyed by trade ID.
type Engine struct {
	// switchConfidence is the council conviction needed before a reversing
	// decision flips the active scenario branch.
	switchConfidence float64
	nowFn            func() time.Time

	mu    sync.Mutex
	plans map[string]*PositionPlan
}

func NewEngine() *Engine {
	return &Engine{
		switchConfidence: 0.65,
		nowFn:            time.Now,
		plans:            make(map[string]*PositionPlan),
	}
}

// Create builds and registers the plan for a newly opened trade from the
// Decision that justified the entry.
func (e *Engine) Create(tradeID, symbol string, entryPrice float64, d council.Decision) PositionPlan {
	p := &PositionPlan{
		TradeID: tradeID,
		Symbol:  symbol,
		Original: EntrySnapshot{
			EntryPrice:        entryPrice,
			InvalidationPrice: entryPrice * 0.90,
			Action:            d.Action,
			Confidence:        d.Confidence,
			Stance:            d.Stance,
			NetSupport:        d.NetSupport,
			CreatedAt:         e.nowFn(),
		},
		Scenarios: buildScenarios(entryPrice, d),
	}
	e.mu.Lock()
	e.plans[tradeID] = p
	cp := p.clone()
	e.mu.Unlock()
	logger.Infof("plan: created for trade=%s symbol=%s active=%s", tradeID, symbol, cp.ActiveScenario().Type)
	return cp
}

// Get returns a copy of the plan, retired or live.
func (e *Engine) Get(tradeID string) (PositionPlan, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.plans[tradeID]
	if !ok {
		return PositionPlan{}, false
	}
	return p.clone(), true
}

// Evaluate re-checks one plan against a fresh price and Decision: pending
// steps on the active scenario whose triggers hold are marked executed
// (executed steps only ever accumulate), and the active branch switches when
// the opposing branch is confirmed.
func (e *Engine) Evaluate(tradeID string, price float64, d council.Decision) (EvalResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.plans[tradeID]
	if !ok {
		return EvalResult{}, fmt.Errorf("plan: unknown trade %s", tradeID)
	}
	if p.Retired {
		return EvalResult{}, fmt.Errorf("plan: trade %s already retired", tradeID)
	}

	switched := e.maybeSwitch(p, price, d)
	active := p.ActiveScenario()

	steps := append([]PlannedAction(nil), active.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Priority < steps[j].Priority })

	var fired []PlannedAction
	for _, stp := range steps {
		if p.executed(stp.ID) {
			continue
		}
		if stp.Trigger.Holds(price, d) {
			p.ExecutedSteps = append(p.ExecutedSteps, stp.ID)
			fired = append(fired, stp)
		}
	}
	if len(fired) > 0 {
		logger.Infof("plan: trade=%s fired %d step(s) in %s scenario", tradeID, len(fired), active.Type)
	}

	return EvalResult{
		Fired:          fired,
		Delta:          e.deltaLocked(p, d),
		ActiveScenario: active.Type,
		Switched:       switched,
	}, nil
}

// CalculateDelta grades drift without touching plan state.
func (e *Engine) CalculateDelta(tradeID string, d council.Decision) (PositionDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.plans[tradeID]
	if !ok {
		return PositionDelta{}, fmt.Errorf("plan: unknown trade %s", tradeID)
	}
	return e.deltaLocked(p, d), nil
}

// Retire freezes the plan once its trade has closed.
func (e *Engine) Retire(tradeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.plans[tradeID]; ok {
		p.Retired = true
	}
}

func (e *Engine) maybeSwitch(p *PositionPlan, price float64, d council.Decision) bool {
	active := p.ActiveScenario()
	target := active.Type

	reversed := d.Confidence >= e.switchConfidence
	switch active.Type {
	case ScenarioBullish:
		breached := price > 0 && price <= p.Original.InvalidationPrice
		if breached || (reversed && d.Action.IsSellSide()) {
			target = ScenarioBearish
		}
	case ScenarioBearish:
		if reversed && d.Action.IsBuySide() && price > p.Original.EntryPrice {
			target = ScenarioBullish
		}
	case ScenarioNeutral:
		if reversed && d.Action.IsBuySide() {
			target = ScenarioBullish
		} else if reversed && d.Action.IsSellSide() {
			target = ScenarioBearish
		}
	}
	if target == active.Type {
		return false
	}
	active.IsActive = false
	p.scenario(target).IsActive = true
	logger.Infof("plan: trade=%s scenario %s -> %s", p.TradeID, active.Type, target)
	return true
}

func (e *Engine) deltaLocked(p *PositionPlan, d council.Decision) PositionDelta {
	delta := PositionDelta{TradeID: p.TradeID, Significance: DeltaLow, Timestamp: e.nowFn()}
	orig := p.Original
	raise := func(s Significance, change string) {
		delta.Changes = append(delta.Changes, change)
		if rank(s) > rank(delta.Significance) {
			delta.Significance = s
		}
	}

	if d.Action != orig.Action {
		switch {
		case d.Action == council.ActionLiquidate,
			orig.Action.IsBuySide() && d.Action.IsSellSide(),
			orig.Action.IsSellSide() && d.Action.IsBuySide():
			raise(DeltaCritical, fmt.Sprintf("council action reversed: %s -> %s", orig.Action, d.Action))
		default:
			raise(DeltaMedium, fmt.Sprintf("council action shifted: %s -> %s", orig.Action, d.Action))
		}
	}

	drop := orig.Confidence - d.Confidence
	if drop >= 0.4 || (orig.Confidence >= 0.5 && d.Confidence < 0.2) {
		raise(DeltaHigh, fmt.Sprintf("confidence collapsed: %.2f -> %.2f", orig.Confidence, d.Confidence))
	} else if drop >= 0.2 {
		raise(DeltaMedium, fmt.Sprintf("confidence weakened: %.2f -> %.2f", orig.Confidence, d.Confidence))
	}

	if d.Stance != orig.Stance {
		if stanceReversed(orig.Stance, d.Stance) {
			raise(DeltaHigh, fmt.Sprintf("macro stance reversed: %s -> %s", orig.Stance, d.Stance))
		} else {
			raise(DeltaMedium, fmt.Sprintf("macro stance shifted: %s -> %s", orig.Stance, d.Stance))
		}
	}

	if shift := math.Abs(d.NetSupport - orig.NetSupport); shift >= 0.5 {
		raise(DeltaMedium, fmt.Sprintf("net support moved %.2f -> %.2f", orig.NetSupport, d.NetSupport))
	}

	return delta
}

func rank(s Significance) int {
	switch s {
	case DeltaCritical:
		return 3
	case DeltaHigh:
		return 2
	case DeltaMedium:
		return 1
	default:
		return 0
	}
}

func stanceReversed(a, b council.Stance) bool {
	bullish := func(s council.Stance) bool { return s == council.StanceRiskOn || s == council.StanceCautious }
	return bullish(a) != bullish(b)
}
