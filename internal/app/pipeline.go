package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"pantheon/internal/council"
	"pantheon/internal/governor"
	"pantheon/internal/ledger"
	"pantheon/internal/logger"
	"pantheon/internal/market"
	"pantheon/internal/plan"
	"pantheon/internal/score"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Persister receives audit snapshots and plan documents. Persistence is
// observational; a nil Persister disables it without touching the pipeline.
type Persister interface {
	SaveSnapshot(governor.ExecutionSnapshot) error
	SavePlan(plan.PositionPlan) error
}

// TradeOutcome reports one execution attempt. A locked audit or a ledger
// rejection is a normal outcome, not an error.
type TradeOutcome struct {
	Snapshot  governor.ExecutionSnapshot
	Trade     *ledger.Trade
	Sell      *ledger.SellResult
	Rejection *ledger.Rejection
}

// Executed reports whether the ledger was actually mutated.
func (o TradeOutcome) Executed() bool {
	return o.Trade != nil || (o.Sell != nil && o.Sell.Closed > 0)
}

// ExecutionPolicy carries the pipeline tunables: how long a cached decision
// stays actionable and how entries and reductions are sized.
type ExecutionPolicy struct {
	DecisionTTL  time.Duration
	BuyFraction  float64
	TrimFraction float64
}

// DefaultExecutionPolicy mirrors the config defaults.
func DefaultExecutionPolicy() ExecutionPolicy {
	return ExecutionPolicy{
		DecisionTTL:  10 * time.Minute,
		BuyFraction:  0.10,
		TrimFraction: 0.5,
	}
}

// withDefaults fills unset fields so a zero policy behaves like the default.
func (e ExecutionPolicy) withDefaults() ExecutionPolicy {
	def := DefaultExecutionPolicy()
	if e.DecisionTTL <= 0 {
		e.DecisionTTL = def.DecisionTTL
	}
	if e.BuyFraction <= 0 {
		e.BuyFraction = def.BuyFraction
	}
	if e.TrimFraction <= 0 {
		e.TrimFraction = def.TrimFraction
	}
	return e
}

// Pipeline wires scoring, aggregation, governance, the ledger and the plan
// engine into the evaluate/execute flow.
type Pipeline struct {
	scorers []score.Scorer
	council *council.Council
	gov     *governor.Governor
	led     *ledger.Ledger
	plans   *plan.Engine
	quotes  market.QuoteSource
	persist Persister
	policy  ExecutionPolicy

	// LookbackDays bounds the scoring window handed to each module.
	lookbackDays int

	// flight collapses concurrent evaluations of the same symbol into one.
	flight singleflight.Group

	// commits serializes audit-then-mutate per symbol so a governance verdict
	// cannot go stale between the check and the ledger call.
	commitsMu sync.Mutex
	commits   map[string]*sync.Mutex

	decMu     sync.RWMutex
	decisions map[string]council.Decision
}

func NewPipeline(
	scorers []score.Scorer,
	c *council.Council,
	g *governor.Governor,
	l *ledger.Ledger,
	plans *plan.Engine,
	quotes market.QuoteSource,
	persist Persister,
	policy ExecutionPolicy,
) *Pipeline {
	return &Pipeline{
		scorers:      scorers,
		council:      c,
		gov:          g,
		led:          l,
		plans:        plans,
		quotes:       quotes,
		persist:      persist,
		policy:       policy.withDefaults(),
		lookbackDays: 120,
		commits:      make(map[string]*sync.Mutex),
		decisions:    make(map[string]council.Decision),
	}
}

// EvaluateSymbol runs one scoring and aggregation round. Concurrent callers
// for the same symbol share a single round.
func (p *Pipeline) EvaluateSymbol(ctx context.Context, symbol string) (council.Decision, error) {
	v, err, _ := p.flight.Do(symbol, func() (any, error) {
		return p.evaluate(ctx, symbol)
	})
	if err != nil {
		return council.Decision{}, err
	}
	return v.(council.Decision), nil
}

func (p *Pipeline) evaluate(ctx context.Context, symbol string) (council.Decision, error) {
	refPrice := 0.0
	if p.quotes != nil {
		if q, err := p.quotes.GetQuote(ctx, symbol); err != nil {
			logger.Warnf("pipeline: quote %s unavailable: %v", symbol, err)
		} else {
			refPrice = q.CurrentPrice
		}
	}

	now := time.Now()
	window := score.Window{From: now.AddDate(0, 0, -p.lookbackDays), To: now}

	var mu sync.Mutex
	scores := make([]score.ModuleScore, 0, len(p.scorers))

	group, gctx := errgroup.WithContext(ctx)
	for _, sc := range p.scorers {
		sc := sc
		group.Go(func() error {
			s, err := sc.Score(gctx, symbol, window)
			if err != nil {
				// An abstaining module drops out of the round silently;
				// anything else is still not fatal to the round.
				if !errors.Is(err, score.ErrModuleUnavailable) {
					logger.Warnf("pipeline: module %s failed for %s: %v", sc.Module(), symbol, err)
				} else {
					logger.Debugf("pipeline: module %s abstained for %s: %v", sc.Module(), symbol, err)
				}
				return nil
			}
			mu.Lock()
			scores = append(scores, s)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return council.Decision{}, err
	}

	d := p.council.Decide(symbol, scores, refPrice)
	p.decMu.Lock()
	p.decisions[symbol] = d
	p.decMu.Unlock()
	logger.Infof("pipeline: %s", d.Rationale)
	return d, nil
}

// LastDecision returns the most recent decision for a symbol.
func (p *Pipeline) LastDecision(symbol string) (council.Decision, bool) {
	p.decMu.RLock()
	defer p.decMu.RUnlock()
	d, ok := p.decisions[symbol]
	return d, ok
}

// ExecuteBuy audits and, when unlocked, opens a lot and attaches its plan.
// The cooldown stamp lands only after the ledger accepted the trade.
func (p *Pipeline) ExecuteBuy(ctx context.Context, symbol string, quantity float64, override string) (TradeOutcome, error) {
	mu := p.symbolMu(symbol)
	mu.Lock()
	defer mu.Unlock()

	d, err := p.currentDecision(ctx, symbol)
	if err != nil {
		return TradeOutcome{}, err
	}
	price := p.livePrice(ctx, symbol)
	view := p.led.ViewFor(symbol)

	snap := p.gov.Audit(governor.AuditRequest{
		Decision:       d,
		Side:           governor.SideBuy,
		CurrentPrice:   price,
		OpenQuantity:   view.OpenQuantity,
		CooldownUntil:  view.CooldownUntil,
		OverrideReason: override,
	})
	p.saveSnapshot(snap)
	if snap.Locked {
		logger.Infof("pipeline: buy %s locked: %s", symbol, snap.Reason)
		return TradeOutcome{Snapshot: snap}, nil
	}

	execPrice := price
	if snap.UsedRefPrice {
		execPrice = d.ReferencePrice
	}
	trade, err := p.led.Buy(symbol, quantity, execPrice, "council")
	if err != nil {
		if rej, ok := ledger.AsRejection(err); ok {
			logger.Warnf("pipeline: buy %s rejected: %s", symbol, rej.Message)
			return TradeOutcome{Snapshot: snap, Rejection: rej}, nil
		}
		return TradeOutcome{Snapshot: snap}, err
	}
	p.led.StampTrade(symbol)

	pl := p.plans.Create(trade.ID, symbol, execPrice, d)
	p.savePlan(pl)
	return TradeOutcome{Snapshot: snap, Trade: trade}, nil
}

// ExecuteSell audits and, when unlocked, closes owned quantity FIFO. Plans of
// fully closed lots are retired.
func (p *Pipeline) ExecuteSell(ctx context.Context, symbol string, quantity float64, override, reason string) (TradeOutcome, error) {
	mu := p.symbolMu(symbol)
	mu.Lock()
	defer mu.Unlock()

	d, err := p.currentDecision(ctx, symbol)
	if err != nil {
		return TradeOutcome{}, err
	}
	price := p.livePrice(ctx, symbol)
	view := p.led.ViewFor(symbol)

	snap := p.gov.Audit(governor.AuditRequest{
		Decision:       d,
		Side:           governor.SideSell,
		CurrentPrice:   price,
		OpenQuantity:   view.OpenQuantity,
		CooldownUntil:  view.CooldownUntil,
		OverrideReason: override,
	})
	p.saveSnapshot(snap)
	if snap.Locked {
		logger.Infof("pipeline: sell %s locked: %s", symbol, snap.Reason)
		return TradeOutcome{Snapshot: snap}, nil
	}

	execPrice := price
	if snap.UsedRefPrice {
		execPrice = d.ReferencePrice
	}
	result, err := p.led.Sell(symbol, quantity, execPrice, reason)
	if err != nil {
		if rej, ok := ledger.AsRejection(err); ok {
			logger.Warnf("pipeline: sell %s rejected: %s", symbol, rej.Message)
			return TradeOutcome{Snapshot: snap, Rejection: rej}, nil
		}
		return TradeOutcome{Snapshot: snap}, err
	}
	p.led.StampTrade(symbol)

	for _, lot := range result.Lots {
		if lot.IsOpen {
			continue
		}
		p.plans.Retire(lot.ID)
		if pl, ok := p.plans.Get(lot.ID); ok {
			p.savePlan(pl)
		}
	}
	return TradeOutcome{Snapshot: snap, Sell: result}, nil
}

// currentDecision reuses the cached decision while it is younger than the
// policy's TTL, otherwise re-evaluates.
func (p *Pipeline) currentDecision(ctx context.Context, symbol string) (council.Decision, error) {
	if d, ok := p.LastDecision(symbol); ok && time.Since(d.Timestamp) < p.policy.DecisionTTL {
		return d, nil
	}
	return p.EvaluateSymbol(ctx, symbol)
}

func (p *Pipeline) livePrice(ctx context.Context, symbol string) float64 {
	if p.quotes == nil {
		return 0
	}
	q, err := p.quotes.GetQuote(ctx, symbol)
	if err != nil {
		logger.Warnf("pipeline: live quote %s unavailable: %v", symbol, err)
		return 0
	}
	return q.CurrentPrice
}

func (p *Pipeline) symbolMu(symbol string) *sync.Mutex {
	p.commitsMu.Lock()
	defer p.commitsMu.Unlock()
	mu, ok := p.commits[symbol]
	if !ok {
		mu = &sync.Mutex{}
		p.commits[symbol] = mu
	}
	return mu
}

func (p *Pipeline) saveSnapshot(snap governor.ExecutionSnapshot) {
	if p.persist == nil {
		return
	}
	if err := p.persist.SaveSnapshot(snap); err != nil {
		logger.Errorf("pipeline: persist snapshot failed: %v", err)
	}
}

func (p *Pipeline) savePlan(pl plan.PositionPlan) {
	if p.persist == nil {
		return
	}
	if err := p.persist.SavePlan(pl); err != nil {
		logger.Errorf("pipeline: persist plan failed: %v", err)
	}
}
