package market

import (
	"context"
	"fmt"
	"time"

	"pantheon/internal/score"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"golang.org/x/time/rate"
)

// YahooCandleSource feeds daily OHLC bars to the scoring modules.
type YahooCandleSource struct {
	limiter *rate.Limiter
}

func NewYahooCandleSource() *YahooCandleSource {
	return &YahooCandleSource{limiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 2)}
}

func (y *YahooCandleSource) Candles(ctx context.Context, symbol string, window score.Window) ([]score.Candle, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := window.From
	end := window.To
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -120)
	}
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var candles []score.Candle
	for iter.Next() {
		bar := iter.Bar()
		candles = append(candles, score.Candle{
			Time:  time.Unix(int64(bar.Timestamp), 0),
			Open:  bar.Open.InexactFloat64(),
			High:  bar.High.InexactFloat64(),
			Low:   bar.Low.InexactFloat64(),
			Close: bar.Close.InexactFloat64(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo candles %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("yahoo candles %s: empty history", symbol)
	}
	return candles, nil
}
