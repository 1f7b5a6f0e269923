// Package council turns independent module scores into a single ranked
// decision per symbol. Aggregation is pure: the same scores, weight table and
// clock always produce the same Decision, so rounds can be replayed in
// backtests.
package council

import (
	"fmt"
	"time"

	"pantheon/internal/score"
)

// Action is the council's discrete verdict, ordered from most bullish to most
// bearish.
type Action string

const (
	ActionAggressiveBuy Action = "aggressive_buy"
	ActionAccumulate    Action = "accumulate"
	ActionNeutral       Action = "neutral"
	ActionTrim          Action = "trim"
	ActionLiquidate     Action = "liquidate"
)

// IsBuySide reports whether the action argues for adding exposure.
func (a Action) IsBuySide() bool {
	return a == ActionAggressiveBuy || a == ActionAccumulate
}

// IsSellSide reports whether the action argues for reducing exposure.
func (a Action) IsSellSide() bool {
	return a == ActionTrim || a == ActionLiquidate
}

// Stance is the macro posture attached to a Decision.
type Stance string

const (
	StanceRiskOn    Stance = "risk_on"
	StanceCautious  Stance = "cautious"
	StanceDefensive Stance = "defensive"
	StanceRiskOff   Stance = "risk_off"
)

// Decision is an immutable aggregation snapshot. Re-aggregation supersedes a
// Decision, it never mutates one.
type Decision struct {
	Symbol         string         `json:"symbol"`
	Action         Action         `json:"action"`
	Confidence     float64        `json:"confidence"`
	NetSupport     float64        `json:"net_support"`
	DominantModule score.ModuleID `json:"dominant_module,omitempty"`
	Stance         Stance         `json:"stance"`
	Rationale      string         `json:"rationale"`
	// ReferencePrice is the price the decision was computed against; the
	// governor uses it for divergence checks. Zero when no quote was available.
	ReferencePrice float64   `json:"reference_price,omitempty"`
	QuorumMet      bool      `json:"quorum_met"`
	ModulesUsed    int       `json:"modules_used"`
	Timestamp      time.Time `json:"timestamp"`
}

// NoDecision reports whether downstream gating must treat this Decision as
// absent. A below-quorum round yields Confidence 0 rather than an error.
func (d Decision) NoDecision() bool {
	return d.Confidence <= 0
}

func rationaleText(d Decision) string {
	if !d.QuorumMet {
		return fmt.Sprintf("%s: quorum not met (%d modules reported)", d.Symbol, d.ModulesUsed)
	}
	txt := fmt.Sprintf("%s: %s (net support %+.2f, confidence %.2f", d.Symbol, d.Action, d.NetSupport, d.Confidence)
	if d.DominantModule != "" {
		txt += fmt.Sprintf(", led by %s", d.DominantModule)
	}
	return txt + ")"
}
