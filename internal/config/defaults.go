package config

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9984"
	defaultCouncilQuorum    = 3
	defaultCouncilScoreAge  = 1800
	defaultCouncilStrongBuy = 0.50
	defaultCouncilBuy       = 0.15
	defaultCouncilSell      = -0.15
	defaultCouncilStrong    = -0.50
	defaultCouncilTrend     = 65.0
	defaultCouncilRiskOff   = 35.0
	defaultGovMinConfidence = 0.35
	defaultGovTolerancePct  = 2.0
	defaultGovRetain        = 50
	defaultExecDecisionTTL  = 600
	defaultExecBuyFraction  = 0.10
	defaultExecTrimFraction = 0.5
	defaultLedgerGlobalUSD  = 10000.0
	defaultLedgerBISTTRY    = 250000.0
	defaultLedgerCooldown   = 900
	defaultStorePath        = "data/pantheon.db"
	defaultSchedInterval    = 300
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Council.applyDefaults()
	c.Governor.applyDefaults()
	c.Execution.applyDefaults()
	c.Ledger.applyDefaults()
	c.Store.applyDefaults()
	c.Scheduler.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
}

func (c *CouncilConfig) applyDefaults() {
	if c.MinQuorum <= 0 {
		c.MinQuorum = defaultCouncilQuorum
	}
	if c.MaxScoreAgeSeconds <= 0 {
		c.MaxScoreAgeSeconds = defaultCouncilScoreAge
	}
	if c.StrongBuy == 0 {
		c.StrongBuy = defaultCouncilStrongBuy
	}
	if c.Buy == 0 {
		c.Buy = defaultCouncilBuy
	}
	if c.Sell == 0 {
		c.Sell = defaultCouncilSell
	}
	if c.StrongSell == 0 {
		c.StrongSell = defaultCouncilStrong
	}
	if c.TrendAbove == 0 {
		c.TrendAbove = defaultCouncilTrend
	}
	if c.RiskOffBelow == 0 {
		c.RiskOffBelow = defaultCouncilRiskOff
	}
}

func (g *GovernorConfig) applyDefaults() {
	if g.MinConfidence <= 0 {
		g.MinConfidence = defaultGovMinConfidence
	}
	if g.PriceTolerancePct <= 0 {
		g.PriceTolerancePct = defaultGovTolerancePct
	}
	if g.RetainSnapshots <= 0 {
		g.RetainSnapshots = defaultGovRetain
	}
}

func (e *ExecutionConfig) applyDefaults() {
	if e.DecisionTTLSeconds <= 0 {
		e.DecisionTTLSeconds = defaultExecDecisionTTL
	}
	if e.BuyFraction <= 0 {
		e.BuyFraction = defaultExecBuyFraction
	}
	if e.TrimFraction <= 0 {
		e.TrimFraction = defaultExecTrimFraction
	}
}

func (l *LedgerConfig) applyDefaults() {
	if l.GlobalBalanceUSD <= 0 {
		l.GlobalBalanceUSD = defaultLedgerGlobalUSD
	}
	if l.BISTBalanceTRY <= 0 {
		l.BISTBalanceTRY = defaultLedgerBISTTRY
	}
	if l.CooldownSeconds <= 0 {
		l.CooldownSeconds = defaultLedgerCooldown
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.Path == "" {
		s.Path = defaultStorePath
	}
}

func (s *SchedulerConfig) applyDefaults() {
	if s.IntervalSeconds <= 0 {
		s.IntervalSeconds = defaultSchedInterval
	}
}
