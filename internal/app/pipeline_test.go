package app

import (
	"context"
	"testing"
	"time"

	"pantheon/internal/council"
	"pantheon/internal/governor"
	"pantheon/internal/ledger"
	"pantheon/internal/market"
	"pantheon/internal/plan"
	"pantheon/internal/score"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	module score.ModuleID
	value  float64
	conf   float64
	err    error
}

func (f fakeScorer) Module() score.ModuleID { return f.module }

func (f fakeScorer) Score(context.Context, string, score.Window) (score.ModuleScore, error) {
	if f.err != nil {
		return score.ModuleScore{}, f.err
	}
	return score.ModuleScore{Module: f.module, Value: f.value, Confidence: f.conf, AsOf: time.Now()}, nil
}

type fakeQuotes struct {
	price float64
}

func (f fakeQuotes) GetQuote(_ context.Context, symbol string) (*market.Quote, error) {
	return &market.Quote{Symbol: symbol, CurrentPrice: f.price, AsOf: time.Now()}, nil
}

func bullishScorers(value float64) []score.Scorer {
	return []score.Scorer{
		fakeScorer{module: score.ModuleTechnical, value: value, conf: 0.8},
		fakeScorer{module: score.ModuleFundamental, value: value, conf: 0.8},
		fakeScorer{module: score.ModuleSentiment, value: value, conf: 0.8},
	}
}

func newTestPipeline(t *testing.T, scorers []score.Scorer, cooldown time.Duration) *Pipeline {
	t.Helper()
	weights := council.StaticWeights{Table: council.WeightTable{
		Base: map[score.ModuleID]float64{
			score.ModuleTechnical:   1.0,
			score.ModuleFundamental: 1.0,
			score.ModuleSentiment:   1.0,
		},
	}}
	led := ledger.New(ledger.Config{
		GlobalBalance: decimal.NewFromInt(10000),
		BISTBalance:   decimal.NewFromInt(250000),
		Cooldown:      cooldown,
	}, market.NewSuffixClassifier(), market.AlwaysOpen{})

	return NewPipeline(
		scorers,
		council.New(council.DefaultConfig(), weights),
		governor.New(governor.DefaultConfig()),
		led,
		plan.NewEngine(),
		fakeQuotes{price: 100},
		nil,
		DefaultExecutionPolicy(),
	)
}

func TestEvaluateSymbol(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), 15*time.Minute)

	d, err := p.EvaluateSymbol(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, council.ActionAccumulate, d.Action)
	assert.True(t, d.QuorumMet)
	assert.Equal(t, 100.0, d.ReferencePrice)
	assert.InDelta(t, 0.2, d.NetSupport, 1e-9)

	cached, ok := p.LastDecision("AAPL")
	require.True(t, ok)
	assert.Equal(t, d, cached)
}

func TestEvaluateSymbol_AbstainingModulesDropOut(t *testing.T) {
	scorers := append(bullishScorers(60),
		fakeScorer{module: score.ModuleMacro, err: score.ErrModuleUnavailable})
	p := newTestPipeline(t, scorers, 15*time.Minute)

	d, err := p.EvaluateSymbol(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 3, d.ModulesUsed)
}

func TestExecuteBuy_ThenCooldownLocksRebuy(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), 15*time.Minute)
	ctx := context.Background()

	out, err := p.ExecuteBuy(ctx, "AAPL", 10, "")
	require.NoError(t, err)
	require.True(t, out.Executed())
	require.NotNil(t, out.Trade)
	assert.Equal(t, 10.0, p.led.OwnedQuantity("AAPL"))

	pl, ok := p.plans.Get(out.Trade.ID)
	require.True(t, ok)
	assert.Equal(t, out.Trade.ID, pl.TradeID)
	assert.False(t, pl.Retired)

	t.Run("second buy inside cooldown is locked", func(t *testing.T) {
		out, err := p.ExecuteBuy(ctx, "AAPL", 10, "")
		require.NoError(t, err)
		assert.False(t, out.Executed())
		assert.True(t, out.Snapshot.Locked)
		assert.Contains(t, out.Snapshot.Reasons, governor.LockCooldown)
		assert.Equal(t, 10.0, p.led.OwnedQuantity("AAPL"))
	})
}

func TestExecuteBuy_LedgerRejectionIsNotAnError(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), 15*time.Minute)

	// Notional 500 * 100 far exceeds the balance.
	out, err := p.ExecuteBuy(context.Background(), "AAPL", 500, "")
	require.NoError(t, err)
	assert.False(t, out.Executed())
	require.NotNil(t, out.Rejection)
	assert.Equal(t, ledger.RejectInsufficientBalance, out.Rejection.Code)
	// The audit passed; only the ledger refused.
	assert.False(t, out.Snapshot.Locked)
}

func TestExecuteSell(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), time.Nanosecond)
	ctx := context.Background()

	buy, err := p.ExecuteBuy(ctx, "AAPL", 10, "")
	require.NoError(t, err)
	require.True(t, buy.Executed())

	t.Run("sell against a buy-side council is locked", func(t *testing.T) {
		out, err := p.ExecuteSell(ctx, "AAPL", 10, "", "manual exit")
		require.NoError(t, err)
		assert.True(t, out.Snapshot.Locked)
		assert.Contains(t, out.Snapshot.Reasons, governor.LockContradiction)
	})

	t.Run("override executes and retires the plan", func(t *testing.T) {
		out, err := p.ExecuteSell(ctx, "AAPL", 10, "stop_loss", "manual exit")
		require.NoError(t, err)
		require.True(t, out.Executed())
		assert.Equal(t, 10.0, out.Sell.Closed)
		assert.Zero(t, p.led.OwnedQuantity("AAPL"))

		pl, ok := p.plans.Get(buy.Trade.ID)
		require.True(t, ok)
		assert.True(t, pl.Retired)
	})
}

func TestRound(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), 15*time.Minute)

	p.Round(context.Background(), []string{"AAPL"})

	// 10% of the 10000 USD balance at price 100.
	assert.Equal(t, 10.0, p.led.OwnedQuantity("AAPL"))

	t.Run("second round holds inside cooldown", func(t *testing.T) {
		p.Round(context.Background(), []string{"AAPL"})
		assert.Equal(t, 10.0, p.led.OwnedQuantity("AAPL"))
	})
}

func TestRound_BuyFractionSizesEntry(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), 15*time.Minute)
	p.policy.BuyFraction = 0.05

	p.Round(context.Background(), []string{"AAPL"})

	// 5% of the 10000 USD balance at price 100.
	assert.Equal(t, 5.0, p.led.OwnedQuantity("AAPL"))
}

func TestActOnDecision_TrimFractionSizesReduction(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), time.Nanosecond)
	p.policy.TrimFraction = 0.25
	ctx := context.Background()

	buy, err := p.ExecuteBuy(ctx, "AAPL", 8, "")
	require.NoError(t, err)
	require.True(t, buy.Executed())

	// Net support drifts mildly negative; the council asks for a trim.
	p.scorers = bullishScorers(40)
	d, err := p.EvaluateSymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, council.ActionTrim, d.Action)

	p.actOnDecision(ctx, "AAPL", d)
	assert.Equal(t, 6.0, p.led.OwnedQuantity("AAPL"))
}

func TestCurrentDecision_TTLForcesReevaluation(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), 15*time.Minute)
	ctx := context.Background()

	d, err := p.EvaluateSymbol(ctx, "AAPL")
	require.NoError(t, err)

	t.Run("fresh cache entry is reused", func(t *testing.T) {
		got, err := p.currentDecision(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, d.Timestamp, got.Timestamp)
	})

	t.Run("entry older than the TTL triggers a new round", func(t *testing.T) {
		stale := d
		stale.Timestamp = d.Timestamp.Add(-p.policy.DecisionTTL - time.Second)
		p.decMu.Lock()
		p.decisions["AAPL"] = stale
		p.decMu.Unlock()

		got, err := p.currentDecision(ctx, "AAPL")
		require.NoError(t, err)
		assert.True(t, got.Timestamp.After(stale.Timestamp))
	})
}

func TestRound_LiquidateClosesPosition(t *testing.T) {
	p := newTestPipeline(t, bullishScorers(60), time.Nanosecond)
	ctx := context.Background()

	buy, err := p.ExecuteBuy(ctx, "AAPL", 10, "")
	require.NoError(t, err)
	require.True(t, buy.Executed())

	// The council flips hard bearish; the round should liquidate. The plan
	// engine will also grade the drift critical, the exit is already done.
	p.scorers = bullishScorers(10)
	p.decMu.Lock()
	delete(p.decisions, "AAPL")
	p.decMu.Unlock()

	p.Round(ctx, nil)
	assert.Zero(t, p.led.OwnedQuantity("AAPL"))
}
