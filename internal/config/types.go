package config

// Config is the root configuration tree for pantheon.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Council   CouncilConfig   `mapstructure:"council"`
	Governor  GovernorConfig  `mapstructure:"governor"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Market    MarketConfig    `mapstructure:"market"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

// CouncilConfig tunes aggregation. Thresholds act on netSupport (-1..+1).
type CouncilConfig struct {
	MinQuorum          int     `mapstructure:"min_quorum"`
	MaxScoreAgeSeconds int     `mapstructure:"max_score_age_seconds"`
	WeightsPath        string  `mapstructure:"weights_path"`
	StrongBuy          float64 `mapstructure:"strong_buy"`
	Buy                float64 `mapstructure:"buy"`
	Sell               float64 `mapstructure:"sell"`
	StrongSell         float64 `mapstructure:"strong_sell"`
	TrendAbove         float64 `mapstructure:"trend_above"`
	RiskOffBelow       float64 `mapstructure:"risk_off_below"`
}

type GovernorConfig struct {
	MinConfidence       float64 `mapstructure:"min_confidence"`
	PriceTolerancePct   float64 `mapstructure:"price_tolerance_pct"`
	AllowReferencePrice bool    `mapstructure:"allow_reference_price"`
	RetainSnapshots     int     `mapstructure:"retain_snapshots"`
}

// ExecutionConfig tunes the execution pipeline: how long a cached decision
// stays actionable and how entries and reductions are sized.
type ExecutionConfig struct {
	// DecisionTTLSeconds bounds how old a cached council decision may be
	// before an execution attempt forces a re-evaluation.
	DecisionTTLSeconds int `mapstructure:"decision_ttl_seconds"`
	// BuyFraction is the share of the domain balance one entry spends.
	BuyFraction float64 `mapstructure:"buy_fraction"`
	// TrimFraction is the share of the open quantity a trim closes.
	TrimFraction float64 `mapstructure:"trim_fraction"`
}

type LedgerConfig struct {
	GlobalBalanceUSD float64 `mapstructure:"global_balance_usd"`
	BISTBalanceTRY   float64 `mapstructure:"bist_balance_try"`
	CooldownSeconds  int     `mapstructure:"cooldown_seconds"`
}

type MarketConfig struct {
	BISTQuoteURL string   `mapstructure:"bist_quote_url"`
	BISTSymbols  []string `mapstructure:"bist_symbols"`
	// AlwaysOpen disables the market-hours gate, for paper runs and tests.
	AlwaysOpen bool `mapstructure:"always_open"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SchedulerConfig struct {
	IntervalSeconds int      `mapstructure:"interval_seconds"`
	Symbols         []string `mapstructure:"symbols"`
}
