// Package clock provides monotonic time plus US equity business-day and
// market-session arithmetic. Compliance's business-day and settlement
// arithmetic goes through here; fixed calendar-day windows (compliance
// retention and wash-sale cutoffs, the optimizer's analysis window) are
// computed with the time package directly.
package clock

import "time"

// Session is the market session state derived from a timestamp.
type Session string

const (
	SessionPreMarket  Session = "pre_market"
	SessionOpen       Session = "open"
	SessionAfterHours Session = "after_hours"
	SessionClosed     Session = "closed"
)

// Calendar is the pluggable session/business-day calendar. The engine
// ships a single concrete implementation (US equities); the interface
// exists so an alternate session table can be substituted without
// touching compliance or the bot worker loop.
type Calendar interface {
	IsBusinessDay(d time.Time) bool
	MarketSession(now time.Time) Session
}

// Clock is the injected time source. Production code uses SystemClock;
// tests use a FixedClock or OffsetClock to control "now" deterministically.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Useful for golden-path tests.
type FixedClock struct{ At time.Time }

func (f FixedClock) Now() time.Time { return f.At }

// Service bundles a Clock with a Calendar and exposes the business-day
// arithmetic operations the spec names directly.
type Service struct {
	Clock    Clock
	Calendar Calendar
}

func NewService(c Clock, cal Calendar) *Service {
	if c == nil {
		c = SystemClock{}
	}
	if cal == nil {
		cal = USEquityCalendar{}
	}
	return &Service{Clock: c, Calendar: cal}
}

func (s *Service) Now() time.Time { return s.Clock.Now() }

func (s *Service) Today() time.Time {
	n := s.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) IsBusinessDay(d time.Time) bool {
	return s.Calendar.IsBusinessDay(d)
}

// AddBusinessDays walks forward (n>0) or backward (n<0) n business days
// from d, skipping non-business days.
func (s *Service) AddBusinessDays(d time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	cur := d
	for n > 0 {
		cur = cur.AddDate(0, 0, step)
		if s.Calendar.IsBusinessDay(cur) {
			n--
		}
	}
	return cur
}

// LastNBusinessDays returns the last n business days up to and including
// from (if from is itself a business day), oldest first.
func (s *Service) LastNBusinessDays(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	cur := from
	for len(out) < n {
		if s.Calendar.IsBusinessDay(cur) {
			out = append(out, cur)
		}
		cur = cur.AddDate(0, 0, -1)
	}
	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Service) MarketSession(now time.Time) Session {
	return s.Calendar.MarketSession(now)
}

// SettlementDate is the next business day strictly after tradeDate —
// the T+1 rule used throughout compliance.
func (s *Service) SettlementDate(tradeDate time.Time) time.Time {
	return s.AddBusinessDays(tradeDate, 1)
}

// USEquityCalendar is the single shipped session-calendar variant. It
// uses a fixed ET-offset lookup rather than time.LoadLocation, so the
// engine carries no tzdata runtime dependency; US equity DST transitions
// are folded into the two fixed offsets below.
type USEquityCalendar struct {
	// Holidays is an optional explicit holiday table keyed by
	// "2006-01-02"-formatted dates. Nil means "weekends only".
	Holidays map[string]bool
}

func (c USEquityCalendar) IsBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if c.Holidays != nil {
		key := d.Format("2006-01-02")
		if c.Holidays[key] {
			return false
		}
	}
	return true
}

// etOffset returns the UTC offset (hours, negative west of UTC) for US
// Eastern Time, approximating DST with the standard second-Sunday-in-
// March to first-Sunday-in-November window.
func etOffset(d time.Time) int {
	year := d.Year()
	dstStart := nthSunday(year, time.March, 2).Add(2 * time.Hour)
	dstEnd := nthSunday(year, time.November, 1).Add(2 * time.Hour)
	if !d.Before(dstStart) && d.Before(dstEnd) {
		return -4
	}
	return -5
}

func nthSunday(year int, month time.Month, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Sunday) - int(d.Weekday()) + 7) % 7
	d = d.AddDate(0, 0, offset)
	return d.AddDate(0, 0, 7*(n-1))
}

func (c USEquityCalendar) MarketSession(now time.Time) Session {
	if !c.IsBusinessDay(now) {
		return SessionClosed
	}
	offset := etOffset(now)
	et := now.Add(time.Duration(offset) * time.Hour)
	minutes := et.Hour()*60 + et.Minute()
	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return SessionPreMarket
	case minutes >= 9*60+30 && minutes < 16*60:
		return SessionOpen
	case minutes >= 16*60 && minutes < 20*60:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}
