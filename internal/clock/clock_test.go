package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUSEquityCalendarWeekendsAreNotBusinessDays(t *testing.T) {
	cal := USEquityCalendar{}
	sat := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	mon := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	require.False(t, cal.IsBusinessDay(sat))
	require.False(t, cal.IsBusinessDay(sun))
	require.True(t, cal.IsBusinessDay(mon))
}

func TestUSEquityCalendarHonorsExplicitHolidayTable(t *testing.T) {
	holiday := time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)
	cal := USEquityCalendar{Holidays: map[string]bool{"2024-07-04": true}}
	require.False(t, cal.IsBusinessDay(holiday), "a listed holiday must not be a business day")
}

func TestAddBusinessDaysSkipsWeekend(t *testing.T) {
	s := NewService(FixedClock{}, USEquityCalendar{})
	friday := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	next := s.AddBusinessDays(friday, 1)
	require.Equal(t, time.Monday, next.Weekday())
}

func TestSettlementDateIsTPlusOneBusinessDay(t *testing.T) {
	s := NewService(FixedClock{}, USEquityCalendar{})
	thursday := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Friday, s.SettlementDate(thursday).Weekday())

	friday := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, s.SettlementDate(friday).Weekday(),
		"expected T+1 settlement from Friday to skip the weekend to Monday")
}

func TestLastNBusinessDaysReturnsOldestFirstExcludingWeekends(t *testing.T) {
	s := NewService(FixedClock{}, USEquityCalendar{})
	monday := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	days := s.LastNBusinessDays(monday, 3)
	require.Len(t, days, 3)
	for i := 1; i < len(days); i++ {
		require.True(t, days[i].After(days[i-1]), "expected days ordered oldest first")
	}
	require.True(t, days[2].Equal(monday), "expected the last entry to be the reference day itself")
	for _, d := range days {
		require.NotEqual(t, time.Saturday, d.Weekday())
		require.NotEqual(t, time.Sunday, d.Weekday())
	}
}

func TestMarketSessionDuringRegularHours(t *testing.T) {
	cal := USEquityCalendar{}
	// 2024-06-12 15:00 UTC = 11:00 ET during daylight saving.
	mid := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	require.Equal(t, SessionOpen, cal.MarketSession(mid))
}

func TestMarketSessionOutsideHoursIsClosed(t *testing.T) {
	cal := USEquityCalendar{}
	// 2024-06-12 02:00 UTC = 22:00 ET the prior day, well after hours.
	night := time.Date(2024, 6, 12, 2, 0, 0, 0, time.UTC)
	require.Equal(t, SessionClosed, cal.MarketSession(night))
}

func TestMarketSessionOnWeekendIsClosed(t *testing.T) {
	cal := USEquityCalendar{}
	sat := time.Date(2024, 6, 15, 15, 0, 0, 0, time.UTC)
	require.Equal(t, SessionClosed, cal.MarketSession(sat))
}
