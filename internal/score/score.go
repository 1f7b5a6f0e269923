// Package score defines the output contract every analytical module must
// satisfy. The council aggregates these scores; it never looks inside a
// module's computation.
package score

import (
	"context"
	"errors"
	"time"
)

// ModuleID identifies an analytical module.
type ModuleID string

const (
	ModuleTechnical     ModuleID = "technical"
	ModuleFundamental   ModuleID = "fundamental"
	ModuleMacro         ModuleID = "macro"
	ModuleSentiment     ModuleID = "sentiment"
	ModuleRegime        ModuleID = "regime"
	ModuleSector        ModuleID = "sector"
	ModuleFactor        ModuleID = "factor"
	ModuleMeanReversion ModuleID = "meanreversion"
)

// ErrModuleUnavailable signals the module abstains for this round. An
// abstaining module is excluded from aggregation, never defaulted to neutral.
var ErrModuleUnavailable = errors.New("module unavailable")

// ModuleScore is immutable once emitted. Value is on a 0..100 scale where 0 is
// the bearish extreme and 100 the bullish extreme. Confidence is the module's
// own conviction in [0,1].
type ModuleScore struct {
	Module     ModuleID  `json:"module"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
	AsOf       time.Time `json:"as_of"`
}

// Window bounds the data a scorer may look at.
type Window struct {
	From time.Time
	To   time.Time
}

// Scorer is implemented by every analytical module. Score must be side-effect
// free; a failed or abstaining module returns ErrModuleUnavailable (possibly
// wrapped).
type Scorer interface {
	Module() ModuleID
	Score(ctx context.Context, symbol string, window Window) (ModuleScore, error)
}

// Valid reports whether the score is structurally usable.
func (s ModuleScore) Valid() bool {
	return s.Module != "" && s.Value >= 0 && s.Value <= 100 &&
		s.Confidence >= 0 && s.Confidence <= 1 && !s.AsOf.IsZero()
}

// Age returns how stale the score is at the given instant.
func (s ModuleScore) Age(now time.Time) time.Duration {
	return now.Sub(s.AsOf)
}
