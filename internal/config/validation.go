package config

import "fmt"

func validate(c *Config) error {
	if err := c.Council.validate(); err != nil {
		return err
	}
	if err := c.Governor.validate(); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	return nil
}

func (c *CouncilConfig) validate() error {
	if c.MinQuorum < 1 {
		return fmt.Errorf("council.min_quorum must be >= 1")
	}
	if c.StrongBuy <= c.Buy {
		return fmt.Errorf("council.strong_buy must exceed council.buy")
	}
	if c.Buy <= 0 {
		return fmt.Errorf("council.buy must be positive")
	}
	if c.Sell >= 0 {
		return fmt.Errorf("council.sell must be negative")
	}
	if c.StrongSell >= c.Sell {
		return fmt.Errorf("council.strong_sell must be below council.sell")
	}
	if c.RiskOffBelow >= c.TrendAbove {
		return fmt.Errorf("council.risk_off_below must be below council.trend_above")
	}
	return nil
}

func (g *GovernorConfig) validate() error {
	if g.MinConfidence < 0 || g.MinConfidence > 1 {
		return fmt.Errorf("governor.min_confidence must be in [0,1]")
	}
	if g.PriceTolerancePct <= 0 {
		return fmt.Errorf("governor.price_tolerance_pct must be positive")
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	if e.BuyFraction <= 0 || e.BuyFraction > 1 {
		return fmt.Errorf("execution.buy_fraction must be in (0,1]")
	}
	if e.TrimFraction <= 0 || e.TrimFraction > 1 {
		return fmt.Errorf("execution.trim_fraction must be in (0,1]")
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if l.GlobalBalanceUSD < 0 || l.BISTBalanceTRY < 0 {
		return fmt.Errorf("ledger balances cannot be negative")
	}
	if l.CooldownSeconds < 0 {
		return fmt.Errorf("ledger.cooldown_seconds cannot be negative")
	}
	return nil
}
