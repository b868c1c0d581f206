// Package seasonal is a pure function of date: a table of named events
// with a sector-scoped signal multiplier, queried by strategies before
// they weight a signal's strength/confidence.
package seasonal

import (
	"sort"
	"time"
)

// Event describes a recurring or one-off calendar window that should
// move strategy conviction up or down.
type Event struct {
	Name                string
	Start               time.Time
	End                 time.Time
	Impact              float64 // [0.4, 2.0]
	SectorsAffected      []string
	Description          string
	AdjustmentMultiplier float64
}

func (e Event) active(d time.Time) bool {
	return !d.Before(e.Start) && !d.After(e.End)
}

// Context aggregates the table's view of a single date.
type Context struct {
	Date           time.Time
	ActiveEvents   []Event
	Multiplier     float64
	EventNames     []string
}

// Calendar holds the event table. DefaultCalendar ships with a concrete
// set of events rather than an empty pluggable table, since the table is
// meant to be populated, not theoretical.
type Calendar struct {
	events []Event
	// ReduceMax/BoostMax clamp the multiplier strategies apply,
	// typically [0.7, 1.3] even though individual events can range
	// [0.4, 2.0] before clamping.
	ReduceMax float64
	BoostMax  float64
}

func NewCalendar(events []Event) *Calendar {
	return &Calendar{events: events, ReduceMax: 0.7, BoostMax: 1.3}
}

// DefaultCalendar ships the events that make the default table usable
// out of the box: earnings season, the holiday retail window, the
// December tax-loss-harvesting window, and summer doldrums.
func DefaultCalendar(year int) *Calendar {
	d := func(month time.Month, day int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
	return NewCalendar([]Event{
		{
			Name: "Q1 Earnings Season", Start: d(time.January, 15), End: d(time.February, 15),
			Impact: 1.2, SectorsAffected: []string{"technology", "financials"},
			Description: "Heightened volatility around quarterly earnings releases",
			AdjustmentMultiplier: 1.2,
		},
		{
			Name: "Q2 Earnings Season", Start: d(time.April, 15), End: d(time.May, 15),
			Impact: 1.2, SectorsAffected: []string{"technology", "financials"},
			Description: "Heightened volatility around quarterly earnings releases",
			AdjustmentMultiplier: 1.2,
		},
		{
			Name: "Summer Doldrums", Start: d(time.July, 1), End: d(time.August, 31),
			Impact: 0.8, SectorsAffected: nil,
			Description: "Low summer volume historically dampens signal reliability",
			AdjustmentMultiplier: 0.85,
		},
		{
			Name: "Holiday Retail Window", Start: d(time.November, 15), End: d(time.December, 26),
			Impact: 1.3, SectorsAffected: []string{"consumer_discretionary", "retail"},
			Description: "Black Friday through Christmas consumer spending surge",
			AdjustmentMultiplier: 1.3,
		},
		{
			Name: "Tax-Loss Harvesting Window", Start: d(time.December, 1), End: d(time.December, 31),
			Impact: 0.9, SectorsAffected: nil,
			Description: "Year-end selling pressure on losing positions",
			AdjustmentMultiplier: 0.9,
		},
	})
}

// ActiveEvents returns every event whose window includes date.
func (c *Calendar) ActiveEvents(date time.Time) []Event {
	var out []Event
	for _, e := range c.events {
		if e.active(date) {
			out = append(out, e)
		}
	}
	return out
}

// UpcomingEvents returns events starting within horizonDays of date,
// soonest first.
func (c *Calendar) UpcomingEvents(date time.Time, horizonDays int) []Event {
	horizon := date.AddDate(0, 0, horizonDays)
	var out []Event
	for _, e := range c.events {
		if e.Start.After(date) && !e.Start.After(horizon) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func sectorMatches(e Event, sector string) bool {
	if sector == "" || len(e.SectorsAffected) == 0 {
		return true
	}
	for _, s := range e.SectorsAffected {
		if s == sector {
			return true
		}
	}
	return false
}

// Adjustment returns the combined multiplier (clamped to [ReduceMax,
// BoostMax]) and the contributing event names for the given sector and
// date. Multiple overlapping events compound multiplicatively before
// clamping.
func (c *Calendar) Adjustment(sector string, date time.Time) (float64, []string) {
	multiplier := 1.0
	var names []string
	for _, e := range c.ActiveEvents(date) {
		if !sectorMatches(e, sector) {
			continue
		}
		multiplier *= e.AdjustmentMultiplier
		names = append(names, e.Name)
	}
	if multiplier < c.ReduceMax {
		multiplier = c.ReduceMax
	}
	if multiplier > c.BoostMax {
		multiplier = c.BoostMax
	}
	return multiplier, names
}

// Context builds the aggregate view a bot cycle passes to strategies.
func (c *Calendar) Context(date time.Time) Context {
	active := c.ActiveEvents(date)
	mult, names := c.Adjustment("", date)
	return Context{Date: date, ActiveEvents: active, Multiplier: mult, EventNames: names}
}
