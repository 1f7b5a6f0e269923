package score

import (
	"context"
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"
)

// Candle is the minimal OHLC bar the technical scorer consumes.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// CandleSource feeds the technical scorer. Implementations are expected to
// respect the window bounds.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, window Window) ([]Candle, error)
}

// TechnicalScorer is a reference implementation of the Scorer contract built
// on RSI and EMA trend alignment. The council does not depend on it; any
// module satisfying the contract can replace it.
type TechnicalScorer struct {
	source    CandleSource
	rsiPeriod int
	emaFast   int
	emaSlow   int
	nowFn     func() time.Time
}

func NewTechnicalScorer(source CandleSource) *TechnicalScorer {
	return &TechnicalScorer{
		source:    source,
		rsiPeriod: 14,
		emaFast:   20,
		emaSlow:   50,
		nowFn:     time.Now,
	}
}

func (t *TechnicalScorer) Module() ModuleID { return ModuleTechnical }

func (t *TechnicalScorer) Score(ctx context.Context, symbol string, window Window) (ModuleScore, error) {
	if t.source == nil {
		return ModuleScore{}, ErrModuleUnavailable
	}
	candles, err := t.source.Candles(ctx, symbol, window)
	if err != nil {
		return ModuleScore{}, fmt.Errorf("%w: candle fetch: %v", ErrModuleUnavailable, err)
	}
	if len(candles) < t.emaSlow+1 {
		return ModuleScore{}, fmt.Errorf("%w: need %d candles, have %d", ErrModuleUnavailable, t.emaSlow+1, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsiSeries := talib.Rsi(closes, t.rsiPeriod)
	fast := talib.Ema(closes, t.emaFast)
	slow := talib.Ema(closes, t.emaSlow)
	rsi := rsiSeries[len(rsiSeries)-1]
	if math.IsNaN(rsi) {
		return ModuleScore{}, ErrModuleUnavailable
	}

	// Trend component: EMA separation as percent of price, squashed to 0..100.
	last := closes[len(closes)-1]
	sep := 0.0
	if last > 0 {
		sep = (fast[len(fast)-1] - slow[len(slow)-1]) / last
	}
	trend := 50 + 50*math.Tanh(sep*25)

	value := clampScore(0.6*rsi + 0.4*trend)

	// Conviction grows with how far both components sit from the midline and
	// with whether they agree on direction.
	conf := (math.Abs(rsi-50) + math.Abs(trend-50)) / 100
	if (rsi-50)*(trend-50) < 0 {
		conf *= 0.5
	}
	if conf > 1 {
		conf = 1
	}

	return ModuleScore{
		Module:     ModuleTechnical,
		Value:      value,
		Confidence: conf,
		AsOf:       t.nowFn(),
	}, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
