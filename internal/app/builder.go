package app

import (
	"fmt"
	"time"

	"pantheon/internal/config"
	"pantheon/internal/council"
	"pantheon/internal/governor"
	"pantheon/internal/ledger"
	"pantheon/internal/logger"
	"pantheon/internal/market"
	"pantheon/internal/plan"
	"pantheon/internal/score"
	"pantheon/internal/store"
	pantheonhttp "pantheon/internal/transport/http"

	"github.com/shopspring/decimal"
)

// Option overrides a built dependency, mainly for tests and replay harnesses.
type Option func(*buildState)

type buildState struct {
	scorers []score.Scorer
	quotes  market.QuoteSource
	hours   market.Hours
}

func WithScorers(scorers ...score.Scorer) Option {
	return func(b *buildState) { b.scorers = scorers }
}

func WithQuoteSource(q market.QuoteSource) Option {
	return func(b *buildState) { b.quotes = q }
}

func WithHours(h market.Hours) Option {
	return func(b *buildState) { b.hours = h }
}

// NewApp assembles the full dependency graph from configuration without
// starting anything.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	state := &buildState{}
	for _, opt := range opts {
		opt(state)
	}

	classifier := market.NewSuffixClassifier(cfg.Market.BISTSymbols...)
	if state.hours == nil {
		if cfg.Market.AlwaysOpen {
			state.hours = market.AlwaysOpen{}
		} else {
			state.hours = market.NewClockHours()
		}
	}
	if state.quotes == nil {
		state.quotes = &market.RoutingSource{
			Classifier: classifier,
			BIST:       market.NewBISTSource(cfg.Market.BISTQuoteURL),
			Global:     market.NewYahooSource(),
		}
	}
	if state.scorers == nil {
		state.scorers = []score.Scorer{
			score.NewTechnicalScorer(market.NewYahooCandleSource()),
		}
	}

	var weights council.WeightProvider
	if cfg.Council.WeightsPath != "" {
		registry, err := council.NewWeightRegistry(cfg.Council.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("weight registry: %w", err)
		}
		weights = registry
	} else {
		weights = council.StaticWeights{Table: council.DefaultWeightTable()}
	}

	councilSvc := council.New(council.Config{
		MinQuorum:    cfg.Council.MinQuorum,
		MaxScoreAge:  time.Duration(cfg.Council.MaxScoreAgeSeconds) * time.Second,
		StrongBuy:    cfg.Council.StrongBuy,
		Buy:          cfg.Council.Buy,
		Sell:         cfg.Council.Sell,
		StrongSell:   cfg.Council.StrongSell,
		TrendAbove:   cfg.Council.TrendAbove,
		RiskOffBelow: cfg.Council.RiskOffBelow,
	}, weights)

	gov := governor.New(governor.Config{
		MinConfidence:       cfg.Governor.MinConfidence,
		PriceTolerancePct:   cfg.Governor.PriceTolerancePct,
		AllowReferencePrice: cfg.Governor.AllowReferencePrice,
		RetainSnapshots:     cfg.Governor.RetainSnapshots,
	})

	led := ledger.New(ledger.Config{
		GlobalBalance: decimal.NewFromFloat(cfg.Ledger.GlobalBalanceUSD),
		BISTBalance:   decimal.NewFromFloat(cfg.Ledger.BISTBalanceTRY),
		Cooldown:      time.Duration(cfg.Ledger.CooldownSeconds) * time.Second,
	}, classifier, state.hours)

	plans := plan.NewEngine()

	var st *store.Store
	var persist Persister
	if cfg.Store.Enabled {
		var err error
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		persist = st
	}

	policy := ExecutionPolicy{
		DecisionTTL:  time.Duration(cfg.Execution.DecisionTTLSeconds) * time.Second,
		BuyFraction:  cfg.Execution.BuyFraction,
		TrimFraction: cfg.Execution.TrimFraction,
	}

	pipeline := NewPipeline(state.scorers, councilSvc, gov, led, plans, state.quotes, persist, policy)

	httpSrv, err := pantheonhttp.NewServer(pantheonhttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Ledger:    led,
		Governor:  gov,
		Plans:     plans,
		Decisions: pipeline,
	})
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{
		cfg:      cfg,
		pipeline: pipeline,
		ledger:   led,
		store:    st,
		httpSrv:  httpSrv,
	}, nil
}
