// Package governor is the single gate between a council opinion and a ledger
// mutation. Audits only report; committing the trade and the cooldown stamp
// stays with the caller, so repeated audits are free of side effects.
package governor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"pantheon/internal/council"

	"github.com/google/uuid"
)

// Side is the direction the caller intends to trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// LockReason is a structured, auditable ground for refusing execution.
type LockReason string

const (
	LockCooldown        LockReason = "cooldown"
	LockConfidenceFloor LockReason = "confidence_floor"
	LockContradiction   LockReason = "contradiction"
	LockPriceDivergence LockReason = "price_divergence"
	LockNoPrice         LockReason = "no_price"
)

// Config tunes the gate.
type Config struct {
	// MinConfidence is the floor below which a decision cannot move money.
	// Zero-confidence decisions (quorum fallback) always lock here.
	MinConfidence float64
	// PriceTolerancePct locks when the live price has drifted further than
	// this percentage from the price the decision was computed against.
	PriceTolerancePct float64
	// AllowReferencePrice permits auditing against the decision's reference
	// price when no live quote exists. The fallback is recorded on the
	// snapshot; when false a missing quote locks with LockNoPrice.
	AllowReferencePrice bool
	// RetainSnapshots bounds the per-symbol audit history.
	RetainSnapshots int
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:     0.35,
		PriceTolerancePct: 2.0,
		RetainSnapshots:   50,
	}
}

// AuditRequest bundles everything one governance check reads. The caller is
// responsible for collecting these against a consistent ledger snapshot.
type AuditRequest struct {
	Decision      council.Decision
	Side          Side
	CurrentPrice  float64 // 0 when no live quote is available
	OpenQuantity  float64 // currently owned quantity for the symbol
	CooldownUntil time.Time
	// OverrideReason bypasses the contradiction check only (e.g. a stop-loss
	// exit against a buy-side decision). Recorded for audit.
	OverrideReason string
}

// ExecutionSnapshot is the append-only audit record of one governance check.
type ExecutionSnapshot struct {
	ID             string            `json:"id"`
	Symbol         string            `json:"symbol"`
	Side           Side              `json:"side"`
	Decision       council.Decision  `json:"decision"`
	CurrentPrice   float64           `json:"current_price"`
	UsedRefPrice   bool              `json:"used_ref_price,omitempty"`
	Locked         bool              `json:"locked"`
	Reasons        []LockReason      `json:"reasons,omitempty"`
	Reason         string            `json:"reason"`
	OverrideReason string            `json:"override_reason,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Unlocked reports whether the caller may proceed to the ledger.
func (s ExecutionSnapshot) Unlocked() bool { return !s.Locked }

// Governor evaluates audit requests and keeps a bounded per-symbol history.
type Governor struct {
	cfg   Config
	nowFn func() time.Time

	mu      sync.Mutex
	history map[string][]ExecutionSnapshot
}

func New(cfg Config) *Governor {
	if cfg.RetainSnapshots <= 0 {
		cfg.RetainSnapshots = DefaultConfig().RetainSnapshots
	}
	if cfg.PriceTolerancePct <= 0 {
		cfg.PriceTolerancePct = DefaultConfig().PriceTolerancePct
	}
	return &Governor{
		cfg:     cfg,
		nowFn:   time.Now,
		history: make(map[string][]ExecutionSnapshot),
	}
}

// Audit runs one governance check. Reasons are evaluated in a fixed order;
// the first hit supplies the one-liner but every applicable reason is
// recorded.
func (g *Governor) Audit(req AuditRequest) ExecutionSnapshot {
	now := g.nowFn()
	snap := ExecutionSnapshot{
		ID:             uuid.NewString(),
		Symbol:         req.Decision.Symbol,
		Side:           req.Side,
		Decision:       req.Decision,
		CurrentPrice:   req.CurrentPrice,
		OverrideReason: req.OverrideReason,
		Timestamp:      now,
	}

	var reasons []LockReason
	oneLiner := ""
	record := func(r LockReason, text string) {
		reasons = append(reasons, r)
		if oneLiner == "" {
			oneLiner = text
		}
	}

	if !req.CooldownUntil.IsZero() && now.Before(req.CooldownUntil) {
		record(LockCooldown, fmt.Sprintf("cooldown active until %s", req.CooldownUntil.Format(time.RFC3339)))
	}

	if req.Decision.Confidence < g.cfg.MinConfidence || req.Decision.NoDecision() {
		record(LockConfidenceFloor, fmt.Sprintf("confidence %.2f below floor %.2f", req.Decision.Confidence, g.cfg.MinConfidence))
	}

	if contradicts(req.Side, req.Decision.Action) {
		if req.OverrideReason == "" {
			record(LockContradiction, fmt.Sprintf("%s requested while council says %s", req.Side, req.Decision.Action))
		}
	}

	price := req.CurrentPrice
	if price <= 0 {
		if g.cfg.AllowReferencePrice && req.Decision.ReferencePrice > 0 {
			price = req.Decision.ReferencePrice
			snap.UsedRefPrice = true
		} else {
			record(LockNoPrice, "no live price available")
		}
	}
	if price > 0 && req.Decision.ReferencePrice > 0 && !snap.UsedRefPrice {
		driftPct := math.Abs(price-req.Decision.ReferencePrice) / req.Decision.ReferencePrice * 100
		if driftPct > g.cfg.PriceTolerancePct {
			record(LockPriceDivergence, fmt.Sprintf("price drifted %.2f%% from decision reference %.2f", driftPct, req.Decision.ReferencePrice))
		}
	}

	snap.Locked = len(reasons) > 0
	snap.Reasons = reasons
	if snap.Locked {
		snap.Reason = oneLiner
	} else {
		snap.Reason = fmt.Sprintf("unlocked: %s %s at %.2f", req.Side, req.Decision.Symbol, price)
	}

	g.append(snap)
	return snap
}

// RecentSnapshots returns up to n most recent snapshots for symbol, newest
// first.
func (g *Governor) RecentSnapshots(symbol string, n int) []ExecutionSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	hist := g.history[symbol]
	if n <= 0 || n > len(hist) {
		n = len(hist)
	}
	out := make([]ExecutionSnapshot, 0, n)
	for i := len(hist) - 1; i >= len(hist)-n; i-- {
		out = append(out, hist[i])
	}
	return out
}

func (g *Governor) append(snap ExecutionSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hist := append(g.history[snap.Symbol], snap)
	if len(hist) > g.cfg.RetainSnapshots {
		hist = hist[len(hist)-g.cfg.RetainSnapshots:]
	}
	g.history[snap.Symbol] = hist
}

// contradicts reports whether the requested side opposes the decision's
// action class. Neutral decisions contradict neither side; the confidence
// floor handles them.
func contradicts(side Side, action council.Action) bool {
	switch side {
	case SideBuy:
		return action.IsSellSide()
	case SideSell:
		return action.IsBuySide()
	default:
		return false
	}
}
