package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderFilled, OrderCancelled, OrderRejected, OrderExpired}
	for _, s := range terminal {
		require.Truef(t, s.Terminal(), "expected %s to be terminal", s)
	}
	nonTerminal := []OrderStatus{OrderPending, OrderSubmitted, OrderPartiallyFilled}
	for _, s := range nonTerminal {
		require.Falsef(t, s.Terminal(), "expected %s to not be terminal", s)
	}
}

func TestRegressesRejectsBackwardTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		regress  bool
	}{
		{OrderPending, OrderSubmitted, false},
		{OrderSubmitted, OrderPartiallyFilled, false},
		{OrderPartiallyFilled, OrderFilled, false},
		{OrderSubmitted, OrderPending, true},
		{OrderFilled, OrderPartiallyFilled, true},
		{OrderFilled, OrderSubmitted, true},
		{OrderCancelled, OrderFilled, true},
	}
	for _, c := range cases {
		require.Equalf(t, c.regress, Regresses(c.from, c.to), "Regresses(%s, %s)", c.from, c.to)
	}
}

func TestStrongerActionOrdering(t *testing.T) {
	require.Equal(t, ActionWarn, StrongerAction(ActionAllow, ActionWarn), "warn should dominate allow")
	require.Equal(t, ActionBlock, StrongerAction(ActionConfirm, ActionBlock), "block should dominate confirm")
	require.Equal(t, ActionStopDay, StrongerAction(ActionStopDay, ActionBlock), "stop_day should dominate block")
	require.Equal(t, ActionAllow, StrongerAction(ActionAllow, ActionAllow), "allow should stay allow")
}

func TestSignalActionable(t *testing.T) {
	hold := Signal{Kind: Hold, Strength: 1, Confidence: 1}
	require.False(t, hold.Actionable(), "hold signal must never be actionable")

	zeroStrength := Signal{Kind: Buy, Strength: 0, Confidence: 1}
	require.False(t, zeroStrength.Actionable(), "zero strength signal must not be actionable")

	buy := Signal{Kind: Buy, Strength: 0.5, Confidence: 0.8}
	require.True(t, buy.Actionable(), "buy signal with nonzero strength/confidence should be actionable")
}
