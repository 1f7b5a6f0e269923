// Package market holds the collaborator contracts the core consumes: quote
// sources, the symbol-to-domain classifier and the market-hours service.
package market

import (
	"context"
	"strings"
	"time"
)

// Domain is the balance/currency bucket a symbol settles into.
type Domain string

const (
	DomainGlobal Domain = "global" // USD
	DomainBIST   Domain = "bist"   // TRY
)

// Quote is a point-in-time price snapshot.
type Quote struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousClose float64   `json:"previous_close,omitempty"`
	AsOf          time.Time `json:"as_of"`
}

// QuoteSource fetches a live quote. A nil quote with nil error never occurs;
// missing data is an error.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Classifier routes a symbol into exactly one balance domain.
type Classifier interface {
	IsBIST(symbol string) bool
}

// Hours reports whether the given domain's market session is open.
type Hours interface {
	CanTrade(domain Domain) bool
}

// SuffixClassifier treats symbols carrying a BIST suffix (Borsa Istanbul
// tickers are quoted as e.g. "THYAO.IS") or listed explicitly as BIST.
type SuffixClassifier struct {
	Suffixes []string
	Symbols  map[string]bool
}

func NewSuffixClassifier(extra ...string) *SuffixClassifier {
	symbols := make(map[string]bool, len(extra))
	for _, s := range extra {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols[s] = true
		}
	}
	return &SuffixClassifier{
		Suffixes: []string{".IS"},
		Symbols:  symbols,
	}
}

func (c *SuffixClassifier) IsBIST(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if c.Symbols[symbol] {
		return true
	}
	for _, suf := range c.Suffixes {
		if strings.HasSuffix(symbol, suf) {
			return true
		}
	}
	return false
}

// DomainOf resolves the balance domain for a symbol.
func DomainOf(c Classifier, symbol string) Domain {
	if c != nil && c.IsBIST(symbol) {
		return DomainBIST
	}
	return DomainGlobal
}
