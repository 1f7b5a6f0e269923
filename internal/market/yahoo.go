package market

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/quote"
	"golang.org/x/time/rate"
)

// YahooSource fetches quotes for global (and suffix-qualified BIST) symbols
// from Yahoo Finance. Calls are rate limited so refresh storms cannot hammer
// the upstream.
type YahooSource struct {
	limiter *rate.Limiter
}

func NewYahooSource() *YahooSource {
	return &YahooSource{limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5)}
}

func (y *YahooSource) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q, err := quote.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("yahoo quote %s: no price data", symbol)
	}
	return &Quote{
		Symbol:        symbol,
		CurrentPrice:  q.RegularMarketPrice,
		PreviousClose: q.RegularMarketPreviousClose,
		AsOf:          time.Now(),
	}, nil
}
