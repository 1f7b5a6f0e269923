package ledger

import (
	"fmt"
	"time"

	"pantheon/internal/market"

	"github.com/shopspring/decimal"
)

// PartialClose records one full or partial close against a lot.
type PartialClose struct {
	Quantity float64         `json:"quantity"`
	Price    float64         `json:"price"`
	PnL      decimal.Decimal `json:"pnl"`
	Reason   string          `json:"reason,omitempty"`
	ClosedAt time.Time       `json:"closed_at"`
}

// Trade is one lot. It is created by Buy and mutated only by Sell (quantity
// reduction, IsOpen flip); the ledger owns it exclusively and hands out
// copies.
type Trade struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	Domain          market.Domain  `json:"domain"`
	Quantity        float64        `json:"quantity"`
	InitialQuantity float64        `json:"initial_quantity"`
	EntryPrice      float64        `json:"entry_price"`
	EntryDate       time.Time      `json:"entry_date"`
	StopLoss        float64        `json:"stop_loss,omitempty"`
	TakeProfit      float64        `json:"take_profit,omitempty"`
	Source          string         `json:"source"`
	Engine          string         `json:"engine,omitempty"`
	IsOpen          bool           `json:"is_open"`
	CloseHistory    []PartialClose `json:"close_history,omitempty"`
}

// ClosedQuantity sums the recorded closes.
func (t Trade) ClosedQuantity() float64 {
	total := 0.0
	for _, c := range t.CloseHistory {
		total += c.Quantity
	}
	return total
}

func (t Trade) clone() Trade {
	cp := t
	if len(t.CloseHistory) > 0 {
		cp.CloseHistory = make([]PartialClose, len(t.CloseHistory))
		copy(cp.CloseHistory, t.CloseHistory)
	}
	return cp
}

// RejectCode classifies validation failures. A rejected operation is a normal
// pipeline outcome, not an exception; nothing is mutated when one is returned.
type RejectCode string

const (
	RejectInsufficientBalance RejectCode = "insufficient_balance"
	RejectMarketClosed        RejectCode = "market_closed"
	RejectInvalidQuantity     RejectCode = "invalid_quantity"
	RejectNoPriceData         RejectCode = "no_price_data"
	RejectNothingToSell       RejectCode = "nothing_to_sell"
)

// Rejection carries the structured code plus a display-ready one-liner.
type Rejection struct {
	Code    RejectCode
	Message string
}

func (r *Rejection) Error() string { return r.Message }

func reject(code RejectCode, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps a ledger rejection from an error, if it is one.
func AsRejection(err error) (*Rejection, bool) {
	r, ok := err.(*Rejection)
	return r, ok
}

// EventKind tags a committed mutation.
type EventKind string

const (
	EventTradeOpened  EventKind = "trade_opened"
	EventTradeReduced EventKind = "trade_reduced"
	EventTradeClosed  EventKind = "trade_closed"
)

// TradeCommitted is published after every successful mutation so observers
// (plan engine, persistence, notifications) can react without the ledger
// knowing them.
type TradeCommitted struct {
	Kind     EventKind       `json:"kind"`
	Trade    Trade           `json:"trade"`
	Quantity float64         `json:"quantity"`
	Price    float64         `json:"price"`
	PnL      decimal.Decimal `json:"pnl"`
	At       time.Time       `json:"at"`
}

// SellResult aggregates one sell across the lots it touched.
type SellResult struct {
	Requested float64         `json:"requested"`
	Closed    float64         `json:"closed"`
	PnL       decimal.Decimal `json:"pnl"`
	Lots      []Trade         `json:"lots"`
}
