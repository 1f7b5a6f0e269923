package score

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCandles struct {
	candles []Candle
	err     error
}

func (s stubCandles) Candles(context.Context, string, Window) ([]Candle, error) {
	return s.candles, s.err
}

func series(n int, priceAt func(i int) float64) []Candle {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Candle, n)
	for i := range out {
		p := priceAt(i)
		out[i] = Candle{Time: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
	}
	return out
}

func TestTechnicalScorer(t *testing.T) {
	ctx := context.Background()
	window := Window{}

	t.Run("uptrend scores bullish", func(t *testing.T) {
		s := NewTechnicalScorer(stubCandles{candles: series(80, func(i int) float64 { return 100 + float64(i) })})
		got, err := s.Score(ctx, "AAPL", window)
		require.NoError(t, err)
		assert.True(t, got.Valid())
		assert.Greater(t, got.Value, 60.0)
		assert.Greater(t, got.Confidence, 0.3)
		assert.Equal(t, ModuleTechnical, got.Module)
	})

	t.Run("downtrend scores bearish", func(t *testing.T) {
		s := NewTechnicalScorer(stubCandles{candles: series(80, func(i int) float64 { return 200 - float64(i) })})
		got, err := s.Score(ctx, "AAPL", window)
		require.NoError(t, err)
		assert.Less(t, got.Value, 40.0)
	})

	t.Run("too little history abstains", func(t *testing.T) {
		s := NewTechnicalScorer(stubCandles{candles: series(20, func(int) float64 { return 100 })})
		_, err := s.Score(ctx, "AAPL", window)
		assert.ErrorIs(t, err, ErrModuleUnavailable)
	})

	t.Run("source failure abstains", func(t *testing.T) {
		s := NewTechnicalScorer(stubCandles{err: errors.New("upstream down")})
		_, err := s.Score(ctx, "AAPL", window)
		assert.ErrorIs(t, err, ErrModuleUnavailable)
	})

	t.Run("nil source abstains", func(t *testing.T) {
		s := NewTechnicalScorer(nil)
		_, err := s.Score(ctx, "AAPL", window)
		assert.ErrorIs(t, err, ErrModuleUnavailable)
	})
}

func TestModuleScoreValid(t *testing.T) {
	now := time.Now()

	assert.True(t, ModuleScore{Module: ModuleMacro, Value: 50, Confidence: 0.5, AsOf: now}.Valid())
	assert.False(t, ModuleScore{Value: 50, Confidence: 0.5, AsOf: now}.Valid())
	assert.False(t, ModuleScore{Module: ModuleMacro, Value: 101, Confidence: 0.5, AsOf: now}.Valid())
	assert.False(t, ModuleScore{Module: ModuleMacro, Value: 50, Confidence: 1.2, AsOf: now}.Valid())
	assert.False(t, ModuleScore{Module: ModuleMacro, Value: 50, Confidence: 0.5}.Valid())
}
