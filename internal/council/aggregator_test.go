package council

import (
	"testing"
	"time"

	"pantheon/internal/score"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func newTestCouncil(t *testing.T) *Council {
	t.Helper()
	weights := StaticWeights{Table: WeightTable{
		Base: map[score.ModuleID]float64{
			score.ModuleTechnical:   1.0,
			score.ModuleFundamental: 1.0,
			score.ModuleMacro:       1.0,
			score.ModuleSentiment:   1.0,
		},
	}}
	c := New(DefaultConfig(), weights)
	c.nowFn = func() time.Time { return testNow }
	return c
}

func ms(module score.ModuleID, value, conf float64) score.ModuleScore {
	return score.ModuleScore{Module: module, Value: value, Confidence: conf, AsOf: testNow}
}

func TestDecide_QuorumFallback(t *testing.T) {
	c := newTestCouncil(t)

	d := c.Decide("AAPL", []score.ModuleScore{
		ms(score.ModuleTechnical, 90, 0.9),
		ms(score.ModuleFundamental, 85, 0.8),
	}, 100)

	assert.False(t, d.QuorumMet)
	assert.Equal(t, ActionNeutral, d.Action)
	assert.Zero(t, d.Confidence)
	assert.True(t, d.NoDecision())
	assert.Equal(t, 2, d.ModulesUsed)
	assert.Equal(t, 100.0, d.ReferencePrice)
}

func TestDecide_ThresholdMapping(t *testing.T) {
	c := newTestCouncil(t)

	cases := []struct {
		name  string
		value float64
		want  Action
	}{
		{"unanimous 90 is aggressive buy", 90, ActionAggressiveBuy},
		{"unanimous 60 is accumulate", 60, ActionAccumulate},
		{"unanimous 50 is neutral", 50, ActionNeutral},
		{"unanimous 40 is trim", 40, ActionTrim},
		{"unanimous 10 is liquidate", 10, ActionLiquidate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := c.Decide("AAPL", []score.ModuleScore{
				ms(score.ModuleTechnical, tc.value, 0.9),
				ms(score.ModuleFundamental, tc.value, 0.9),
				ms(score.ModuleSentiment, tc.value, 0.9),
			}, 100)
			require.True(t, d.QuorumMet)
			assert.Equal(t, tc.want, d.Action)
		})
	}
}

func TestDecide_DisagreementSuppressesConfidence(t *testing.T) {
	c := newTestCouncil(t)

	// Both rounds land on netSupport 0; only the spread differs.
	split := c.Decide("AAPL", []score.ModuleScore{
		ms(score.ModuleTechnical, 90, 0.9),
		ms(score.ModuleFundamental, 10, 0.9),
		ms(score.ModuleSentiment, 90, 0.9),
		ms(score.ModuleMacro, 10, 0.9),
	}, 0)
	unanimous := c.Decide("AAPL", []score.ModuleScore{
		ms(score.ModuleTechnical, 50, 0.9),
		ms(score.ModuleFundamental, 50, 0.9),
		ms(score.ModuleSentiment, 50, 0.9),
		ms(score.ModuleMacro, 50, 0.9),
	}, 0)

	assert.InDelta(t, split.NetSupport, unanimous.NetSupport, 1e-9)
	assert.Less(t, split.Confidence, unanimous.Confidence)
}

func TestDecide_StaleAndInvalidScoresExcluded(t *testing.T) {
	c := newTestCouncil(t)

	stale := ms(score.ModuleSentiment, 90, 0.9)
	stale.AsOf = testNow.Add(-2 * time.Hour)
	invalid := score.ModuleScore{Module: score.ModuleMacro, Value: 140, Confidence: 0.9, AsOf: testNow}

	d := c.Decide("AAPL", []score.ModuleScore{
		ms(score.ModuleTechnical, 90, 0.9),
		ms(score.ModuleFundamental, 90, 0.9),
		stale,
		invalid,
	}, 100)

	assert.False(t, d.QuorumMet)
	assert.Equal(t, 2, d.ModulesUsed)
}

func TestDecide_RegimeCalibratesButDoesNotVote(t *testing.T) {
	weights := StaticWeights{Table: WeightTable{
		Base: map[score.ModuleID]float64{
			score.ModuleTechnical:     1.0,
			score.ModuleFundamental:   1.0,
			score.ModuleMeanReversion: 1.0,
		},
		Multipliers: map[Regime]map[score.ModuleID]float64{
			RegimeTrend: {score.ModuleTechnical: 2.0},
		},
	}}
	c := New(DefaultConfig(), weights)
	c.nowFn = func() time.Time { return testNow }

	scores := []score.ModuleScore{
		ms(score.ModuleTechnical, 90, 0.9),
		ms(score.ModuleFundamental, 45, 0.9),
		ms(score.ModuleMeanReversion, 45, 0.9),
	}

	base := c.Decide("AAPL", scores, 0)
	trending := c.Decide("AAPL", append(scores, ms(score.ModuleRegime, 80, 0.9)), 0)

	// The regime score never counts toward quorum.
	assert.Equal(t, base.ModulesUsed, trending.ModulesUsed)
	// But it boosts the technical weight, pulling net support up.
	assert.Greater(t, trending.NetSupport, base.NetSupport)
	assert.Equal(t, score.ModuleTechnical, trending.DominantModule)
}

func TestDecide_StanceFromMacro(t *testing.T) {
	c := newTestCouncil(t)

	riskOff := c.Decide("AAPL", []score.ModuleScore{
		ms(score.ModuleTechnical, 70, 0.9),
		ms(score.ModuleFundamental, 70, 0.9),
		ms(score.ModuleMacro, 20, 0.9),
	}, 0)
	riskOn := c.Decide("AAPL", []score.ModuleScore{
		ms(score.ModuleTechnical, 70, 0.9),
		ms(score.ModuleFundamental, 70, 0.9),
		ms(score.ModuleMacro, 80, 0.9),
	}, 0)

	assert.Equal(t, StanceRiskOff, riskOff.Stance)
	assert.Equal(t, StanceRiskOn, riskOn.Stance)
	assert.Less(t, riskOff.Confidence, riskOn.Confidence)
}

func TestDecide_Determinism(t *testing.T) {
	c := newTestCouncil(t)
	scores := []score.ModuleScore{
		ms(score.ModuleTechnical, 72, 0.8),
		ms(score.ModuleFundamental, 64, 0.7),
		ms(score.ModuleSentiment, 58, 0.6),
	}

	first := c.Decide("MSFT", scores, 410)
	second := c.Decide("MSFT", scores, 410)
	assert.Equal(t, first, second)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, -1.0, normalize(0))
	assert.Equal(t, 0.0, normalize(50))
	assert.Equal(t, 1.0, normalize(100))
	assert.Equal(t, 1.0, normalize(150))
}
