package market

import "time"

// Session is a daily trading window expressed in a fixed location.
type Session struct {
	Open     string // "10:00"
	Close    string // "18:00"
	Location *time.Location
}

// ClockHours implements Hours from wall-clock sessions per domain. Weekends
// are closed in both domains. nowFn is injectable for tests.
type ClockHours struct {
	sessions map[Domain]Session
	nowFn    func() time.Time
}

// NewClockHours builds the default session table: BIST 10:00-18:00
// Europe/Istanbul, global 09:30-16:00 America/New_York. Location lookup
// failures fall back to fixed offsets so the service degrades instead of
// refusing to start.
func NewClockHours() *ClockHours {
	ist := loadLocation("Europe/Istanbul", 3*60*60)
	nyc := loadLocation("America/New_York", -5*60*60)
	return &ClockHours{
		sessions: map[Domain]Session{
			DomainBIST:   {Open: "10:00", Close: "18:00", Location: ist},
			DomainGlobal: {Open: "09:30", Close: "16:00", Location: nyc},
		},
		nowFn: time.Now,
	}
}

func loadLocation(name string, fallbackOffsetSec int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, fallbackOffsetSec)
	}
	return loc
}

func (h *ClockHours) CanTrade(domain Domain) bool {
	sess, ok := h.sessions[domain]
	if !ok {
		return false
	}
	now := h.nowFn().In(sess.Location)
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	open, err1 := parseClock(sess.Open)
	close_, err2 := parseClock(sess.Close)
	if err1 != nil || err2 != nil {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= open && minutes < close_
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// AlwaysOpen is the Hours implementation for backtests and tests.
type AlwaysOpen struct{}

func (AlwaysOpen) CanTrade(Domain) bool { return true }
