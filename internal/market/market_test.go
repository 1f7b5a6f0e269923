package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuffixClassifier(t *testing.T) {
	c := NewSuffixClassifier("GARAN", " akbnk ")

	assert.True(t, c.IsBIST("THYAO.IS"))
	assert.True(t, c.IsBIST("thyao.is"))
	assert.True(t, c.IsBIST("GARAN"))
	assert.True(t, c.IsBIST("AKBNK"))
	assert.False(t, c.IsBIST("AAPL"))
	assert.False(t, c.IsBIST("ISRG"))
}

func TestDomainOf(t *testing.T) {
	c := NewSuffixClassifier()

	assert.Equal(t, DomainBIST, DomainOf(c, "THYAO.IS"))
	assert.Equal(t, DomainGlobal, DomainOf(c, "AAPL"))
	assert.Equal(t, DomainGlobal, DomainOf(nil, "THYAO.IS"))
}

func TestClockHours(t *testing.T) {
	h := NewClockHours()
	at := func(ts time.Time) {
		h.nowFn = func() time.Time { return ts }
	}

	// Wednesday 09:00 UTC: 12:00 in Istanbul, 04:00 in New York.
	at(time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC))
	assert.True(t, h.CanTrade(DomainBIST))
	assert.False(t, h.CanTrade(DomainGlobal))

	// Wednesday 16:00 UTC: 19:00 in Istanbul, 11:00 in New York.
	at(time.Date(2026, 1, 7, 16, 0, 0, 0, time.UTC))
	assert.False(t, h.CanTrade(DomainBIST))
	assert.True(t, h.CanTrade(DomainGlobal))

	// Saturday midday is closed everywhere.
	at(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	assert.False(t, h.CanTrade(DomainBIST))
	assert.False(t, h.CanTrade(DomainGlobal))

	t.Run("unknown domain is closed", func(t *testing.T) {
		at(time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC))
		assert.False(t, h.CanTrade(Domain("crypto")))
	})
}

func TestAlwaysOpen(t *testing.T) {
	assert.True(t, AlwaysOpen{}.CanTrade(DomainBIST))
	assert.True(t, AlwaysOpen{}.CanTrade(DomainGlobal))
}
