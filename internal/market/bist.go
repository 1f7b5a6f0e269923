package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// BISTSource pulls Borsa Istanbul quotes from a JSON endpoint. The endpoint
// shape is configurable because BIST data vendors vary; the default targets a
// simple {"symbol":..,"last":..,"previous_close":..} payload.
type BISTSource struct {
	client  *resty.Client
	baseURL string
	limiter *rate.Limiter
}

type bistQuotePayload struct {
	Symbol        string  `json:"symbol"`
	Last          float64 `json:"last"`
	PreviousClose float64 `json:"previous_close"`
}

func NewBISTSource(baseURL string) *BISTSource {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	return &BISTSource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
	}
}

func (b *BISTSource) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if b.baseURL == "" {
		return nil, fmt.Errorf("bist quote source not configured")
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var payload bistQuotePayload
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(fmt.Sprintf("%s/quote/%s", b.baseURL, strings.ToUpper(strings.TrimSpace(symbol))))
	if err != nil {
		return nil, fmt.Errorf("bist quote %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bist quote %s: status %d", symbol, resp.StatusCode())
	}
	if payload.Last <= 0 {
		return nil, fmt.Errorf("bist quote %s: no price data", symbol)
	}
	return &Quote{
		Symbol:        symbol,
		CurrentPrice:  payload.Last,
		PreviousClose: payload.PreviousClose,
		AsOf:          time.Now(),
	}, nil
}

// RoutingSource dispatches to the BIST or global source by domain.
type RoutingSource struct {
	Classifier Classifier
	BIST       QuoteSource
	Global     QuoteSource
}

func (r *RoutingSource) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if r.Classifier != nil && r.Classifier.IsBIST(symbol) && r.BIST != nil {
		return r.BIST.GetQuote(ctx, symbol)
	}
	if r.Global == nil {
		return nil, fmt.Errorf("no quote source for %s", symbol)
	}
	return r.Global.GetQuote(ctx, symbol)
}
