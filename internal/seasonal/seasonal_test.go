package seasonal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestActiveEventsFindsQ1EarningsWindow(t *testing.T) {
	cal := DefaultCalendar(2024)
	events := cal.ActiveEvents(date(2024, time.February, 1))
	var names []string
	for _, e := range events {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "Q1 Earnings Season")
}

func TestActiveEventsEmptyOutsideAnyWindow(t *testing.T) {
	cal := DefaultCalendar(2024)
	events := cal.ActiveEvents(date(2024, time.March, 1))
	require.Empty(t, events)
}

func TestAdjustmentClampsToReduceMaxAndBoostMax(t *testing.T) {
	cal := NewCalendar([]Event{
		{Name: "extreme-boost", Start: date(2024, 1, 1), End: date(2024, 12, 31), AdjustmentMultiplier: 2.0},
	})
	mult, names := cal.Adjustment("", date(2024, 6, 1))
	require.Equal(t, cal.BoostMax, mult)
	require.Equal(t, []string{"extreme-boost"}, names)
}

func TestAdjustmentSectorFilterExcludesNonMatchingEvent(t *testing.T) {
	cal := NewCalendar([]Event{
		{Name: "tech-only", Start: date(2024, 1, 1), End: date(2024, 12, 31), AdjustmentMultiplier: 1.3, SectorsAffected: []string{"technology"}},
	})
	mult, names := cal.Adjustment("energy", date(2024, 6, 1))
	require.Empty(t, names, "expected no contributing events for a non-matching sector")
	require.Equal(t, 1.0, mult, "expected neutral multiplier when no event matches the sector")
}

func TestUpcomingEventsSortedSoonestFirst(t *testing.T) {
	cal := DefaultCalendar(2024)
	upcoming := cal.UpcomingEvents(date(2024, time.January, 1), 365)
	for i := 1; i < len(upcoming); i++ {
		require.Falsef(t, upcoming[i].Start.Before(upcoming[i-1].Start),
			"expected upcoming events sorted soonest first, got %v before %v", upcoming[i-1].Start, upcoming[i].Start)
	}
}
