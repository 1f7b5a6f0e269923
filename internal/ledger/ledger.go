// Package ledger is the only component allowed to mutate trades and
// balances. All mutations run under one mutex; reads hand out copies so a
// governance check always observes a consistent snapshot.
package ledger

import (
	"math"
	"sort"
	"sync"
	"time"

	"pantheon/internal/logger"
	"pantheon/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config seeds the two balance domains and the per-symbol cooldown window.
type Config struct {
	GlobalBalance decimal.Decimal // USD
	BISTBalance   decimal.Decimal // TRY
	Cooldown      time.Duration
}

// Ledger holds open/closed lots and the two domain balances.
type Ledger struct {
	classifier market.Classifier
	hours      market.Hours
	cooldown   time.Duration
	nowFn      func() time.Time

	// mu serializes every mutation and snapshot read; the single-writer
	// discipline upholds the balance and quantity invariants.
	mu        sync.Mutex
	global    decimal.Decimal
	bist      decimal.Decimal
	trades    []*Trade // entry order, oldest first
	cooldowns map[string]time.Time

	events chan TradeCommitted
}

func New(cfg Config, classifier market.Classifier, hours market.Hours) *Ledger {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &Ledger{
		classifier: classifier,
		hours:      hours,
		cooldown:   cfg.Cooldown,
		nowFn:      time.Now,
		global:     cfg.GlobalBalance,
		bist:       cfg.BISTBalance,
		cooldowns:  make(map[string]time.Time),
		events:     make(chan TradeCommitted, 64),
	}
}

// Events exposes the TradeCommitted stream. The channel is buffered and
// publishes are non-blocking; a slow consumer loses events rather than
// stalling the ledger.
func (l *Ledger) Events() <-chan TradeCommitted { return l.events }

// Buy validates and, on success, appends a new open lot and debits the
// domain balance by the notional. Validation failures return a *Rejection
// and mutate nothing.
func (l *Ledger) Buy(symbol string, quantity, price float64, source string) (*Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !positiveFinite(quantity) {
		return nil, reject(RejectInvalidQuantity, "buy %s: quantity must be positive and finite, got %v", symbol, quantity)
	}
	if !positiveFinite(price) {
		return nil, reject(RejectNoPriceData, "buy %s: no usable price, got %v", symbol, price)
	}
	domain := market.DomainOf(l.classifier, symbol)
	if l.hours != nil && !l.hours.CanTrade(domain) {
		return nil, reject(RejectMarketClosed, "buy %s: %s market session is closed", symbol, domain)
	}
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity))
	balance := l.balanceFor(domain)
	if balance.LessThan(notional) {
		return nil, reject(RejectInsufficientBalance, "buy %s: notional %s exceeds %s balance %s",
			symbol, notional.StringFixed(2), domain, balance.StringFixed(2))
	}

	now := l.nowFn()
	trade := &Trade{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		Domain:          domain,
		Quantity:        quantity,
		InitialQuantity: quantity,
		EntryPrice:      price,
		EntryDate:       now,
		Source:          source,
		IsOpen:          true,
	}
	l.trades = append(l.trades, trade)
	l.setBalance(domain, balance.Sub(notional))

	cp := trade.clone()
	l.publish(TradeCommitted{Kind: EventTradeOpened, Trade: cp, Quantity: quantity, Price: price, At: now})
	logger.Infof("ledger: opened %s qty=%v price=%v domain=%s", symbol, quantity, price, domain)
	return &cp, nil
}

// Sell closes owned quantity FIFO: the oldest open lot goes first, fully when
// it fits in the remaining request, partially otherwise. The request is
// silently capped at the owned quantity, so an oversell can never drive a
// position negative or credit more than what is held.
func (l *Ledger) Sell(symbol string, quantity, price float64, reason string) (*SellResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !positiveFinite(quantity) {
		return nil, reject(RejectInvalidQuantity, "sell %s: quantity must be positive and finite, got %v", symbol, quantity)
	}
	if !positiveFinite(price) {
		return nil, reject(RejectNoPriceData, "sell %s: no usable price, got %v", symbol, price)
	}
	domain := market.DomainOf(l.classifier, symbol)
	if l.hours != nil && !l.hours.CanTrade(domain) {
		return nil, reject(RejectMarketClosed, "sell %s: %s market session is closed", symbol, domain)
	}
	lots := l.openLots(symbol)
	if len(lots) == 0 {
		return nil, reject(RejectNothingToSell, "sell %s: no open position", symbol)
	}

	now := l.nowFn()
	priceDec := decimal.NewFromFloat(price)
	remaining := quantity
	result := &SellResult{Requested: quantity}

	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		closeQty := lot.Quantity
		full := true
		if closeQty > remaining {
			closeQty = remaining
			full = false
		}

		pnl := priceDec.Sub(decimal.NewFromFloat(lot.EntryPrice)).Mul(decimal.NewFromFloat(closeQty))
		credit := priceDec.Mul(decimal.NewFromFloat(closeQty))
		lot.CloseHistory = append(lot.CloseHistory, PartialClose{
			Quantity: closeQty,
			Price:    price,
			PnL:      pnl,
			Reason:   reason,
			ClosedAt: now,
		})
		kind := EventTradeReduced
		if full {
			lot.IsOpen = false
			kind = EventTradeClosed
		} else {
			lot.Quantity -= closeQty
		}

		l.setBalance(domain, l.balanceFor(domain).Add(credit))
		remaining -= closeQty
		result.Closed += closeQty
		result.PnL = result.PnL.Add(pnl)
		cp := lot.clone()
		result.Lots = append(result.Lots, cp)
		l.publish(TradeCommitted{Kind: kind, Trade: cp, Quantity: closeQty, Price: price, PnL: pnl, At: now})
	}

	logger.Infof("ledger: sold %s qty=%v/%v price=%v pnl=%s reason=%s",
		symbol, result.Closed, quantity, price, result.PnL.StringFixed(2), reason)
	return result, nil
}

// Trim is a partial close; semantics are identical to Sell.
func (l *Ledger) Trim(symbol string, quantity, price float64, reason string) (*SellResult, error) {
	return l.Sell(symbol, quantity, price, reason)
}

// StampTrade commits a cooldown entry for the symbol. The governor reads it;
// the caller invokes this only after a successful mutation, keeping audits
// side-effect free.
func (l *Ledger) StampTrade(symbol string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.nowFn().Add(l.cooldown)
	l.cooldowns[symbol] = until
	return until
}

// CooldownUntil returns the active cooldown deadline, or the zero time when
// none applies. Expired entries are pruned lazily.
func (l *Ledger) CooldownUntil(symbol string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.cooldowns[symbol]
	if !ok {
		return time.Time{}
	}
	if l.nowFn().After(until) {
		delete(l.cooldowns, symbol)
		return time.Time{}
	}
	return until
}

// View is a consistent point-in-time read for one governance check.
type View struct {
	OpenQuantity  float64
	CooldownUntil time.Time
	Balance       decimal.Decimal
}

// ViewFor gathers everything the governor needs about a symbol under a single
// lock acquisition, so no mutation interleaves mid-read.
func (l *Ledger) ViewFor(symbol string) View {
	l.mu.Lock()
	defer l.mu.Unlock()
	owned := 0.0
	for _, t := range l.trades {
		if t.IsOpen && t.Symbol == symbol {
			owned += t.Quantity
		}
	}
	until := l.cooldowns[symbol]
	if !until.IsZero() && l.nowFn().After(until) {
		until = time.Time{}
	}
	return View{
		OpenQuantity:  owned,
		CooldownUntil: until,
		Balance:       l.balanceFor(market.DomainOf(l.classifier, symbol)),
	}
}

// Trades returns copies of every lot, open and closed, in entry order.
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, 0, len(l.trades))
	for _, t := range l.trades {
		out = append(out, t.clone())
	}
	return out
}

// OpenTrades returns copies of the open lots for a symbol, oldest first.
func (l *Ledger) OpenTrades(symbol string) []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	lots := l.openLots(symbol)
	out := make([]Trade, 0, len(lots))
	for _, t := range lots {
		out = append(out, t.clone())
	}
	return out
}

// OwnedQuantity sums the open quantity for a symbol.
func (l *Ledger) OwnedQuantity(symbol string) float64 {
	return l.ViewFor(symbol).OpenQuantity
}

// OpenSymbols lists symbols with at least one open lot.
func (l *Ledger) OpenSymbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, t := range l.trades {
		if t.IsOpen && !seen[t.Symbol] {
			seen[t.Symbol] = true
			out = append(out, t.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) GlobalBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.global
}

func (l *Ledger) BISTBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bist
}

// openLots must be called with the lock held; entry order doubles as FIFO
// order because EntryDate is assigned monotonically under the same lock.
func (l *Ledger) openLots(symbol string) []*Trade {
	var lots []*Trade
	for _, t := range l.trades {
		if t.IsOpen && t.Symbol == symbol {
			lots = append(lots, t)
		}
	}
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].EntryDate.Before(lots[j].EntryDate)
	})
	return lots
}

// positiveFinite rejects NaN and infinities along with non-positive values;
// decimal.NewFromFloat panics on non-finite input, so the guard must run
// before any notional arithmetic.
func positiveFinite(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (l *Ledger) balanceFor(domain market.Domain) decimal.Decimal {
	if domain == market.DomainBIST {
		return l.bist
	}
	return l.global
}

func (l *Ledger) setBalance(domain market.Domain, v decimal.Decimal) {
	if domain == market.DomainBIST {
		l.bist = v
		return
	}
	l.global = v
}

func (l *Ledger) publish(evt TradeCommitted) {
	select {
	case l.events <- evt:
	default:
		logger.Warnf("ledger: event channel full, dropping %s for %s", evt.Kind, evt.Trade.Symbol)
	}
}
