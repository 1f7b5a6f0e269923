package app

import (
	"context"

	"pantheon/internal/council"
	"pantheon/internal/logger"
	"pantheon/internal/plan"
)

// Round runs one scheduled pass: re-evaluate the watchlist plus every symbol
// with an open position, act on the fresh decisions, then walk the open lots'
// plans.
func (p *Pipeline) Round(ctx context.Context, watchlist []string) {
	symbols := unionSymbols(watchlist, p.led.OpenSymbols())
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		d, err := p.EvaluateSymbol(ctx, symbol)
		if err != nil {
			logger.Errorf("round: evaluate %s failed: %v", symbol, err)
			continue
		}
		p.actOnDecision(ctx, symbol, d)
		p.reviewPlans(ctx, symbol, d)
	}
}

// actOnDecision turns a fresh council verdict into at most one execution
// attempt. The governor still has the final word.
func (p *Pipeline) actOnDecision(ctx context.Context, symbol string, d council.Decision) {
	owned := p.led.OwnedQuantity(symbol)

	switch {
	case d.Action.IsBuySide() && owned == 0:
		qty := p.sizeBuy(symbol, d)
		if qty <= 0 {
			logger.Debugf("round: %s buy signal but no sizeable quantity", symbol)
			return
		}
		if _, err := p.ExecuteBuy(ctx, symbol, qty, ""); err != nil {
			logger.Errorf("round: buy %s failed: %v", symbol, err)
		}
	case d.Action == council.ActionLiquidate && owned > 0:
		if _, err := p.ExecuteSell(ctx, symbol, owned, "", "council liquidate"); err != nil {
			logger.Errorf("round: liquidate %s failed: %v", symbol, err)
		}
	case d.Action == council.ActionTrim && owned > 0:
		if _, err := p.ExecuteSell(ctx, symbol, owned*p.policy.TrimFraction, "", "council trim"); err != nil {
			logger.Errorf("round: trim %s failed: %v", symbol, err)
		}
	}
}

// sizeBuy spends the configured fraction of the domain balance at the
// decision's reference price.
func (p *Pipeline) sizeBuy(symbol string, d council.Decision) float64 {
	if d.ReferencePrice <= 0 {
		return 0
	}
	balance := p.led.ViewFor(symbol).Balance.InexactFloat64()
	return balance * p.policy.BuyFraction / d.ReferencePrice
}

// reviewPlans re-checks every open lot's plan against the fresh decision and
// executes the responses that fired. A critical drift closes the position
// regardless of any price trigger.
func (p *Pipeline) reviewPlans(ctx context.Context, symbol string, d council.Decision) {
	price := d.ReferencePrice
	for _, lot := range p.led.OpenTrades(symbol) {
		res, err := p.plans.Evaluate(lot.ID, price, d)
		if err != nil {
			logger.Debugf("round: plan eval %s: %v", lot.ID, err)
			continue
		}
		if pl, ok := p.plans.Get(lot.ID); ok {
			p.savePlan(pl)
		}

		if res.Delta.Significance == plan.DeltaCritical {
			logger.Warnf("round: %s thesis invalidated (%v), closing lot %s", symbol, res.Delta.Changes, lot.ID)
			if _, err := p.ExecuteSell(ctx, symbol, lot.Quantity, "thesis_invalidated", "plan drift critical"); err != nil {
				logger.Errorf("round: drift exit %s failed: %v", symbol, err)
			}
			continue
		}

		for _, step := range res.Fired {
			p.applyStep(ctx, symbol, lot.Quantity, step)
		}
	}
}

func (p *Pipeline) applyStep(ctx context.Context, symbol string, lotQty float64, step plan.PlannedAction) {
	switch step.Respond {
	case plan.RespondExit:
		if _, err := p.ExecuteSell(ctx, symbol, lotQty, "plan_exit", step.Note); err != nil {
			logger.Errorf("round: plan exit %s failed: %v", symbol, err)
		}
	case plan.RespondTakeProfit:
		if _, err := p.ExecuteSell(ctx, symbol, lotQty*p.policy.TrimFraction, "plan_take_profit", step.Note); err != nil {
			logger.Errorf("round: plan take-profit %s failed: %v", symbol, err)
		}
	case plan.RespondAddPosition:
		if d, ok := p.LastDecision(symbol); ok {
			qty := p.sizeBuy(symbol, d) * p.policy.TrimFraction
			if qty > 0 {
				if _, err := p.ExecuteBuy(ctx, symbol, qty, ""); err != nil {
					logger.Errorf("round: plan add %s failed: %v", symbol, err)
				}
			}
		}
	case plan.RespondTightenStop, plan.RespondReassess:
		logger.Infof("round: %s plan step %s fired (%s), flagged for review", symbol, step.ID, step.Respond)
	}
}

func unionSymbols(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
