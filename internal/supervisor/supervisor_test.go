package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xfactor-labs/tradeforge/internal/bot"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
)

func newTestBot(id string) *bot.Bot {
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct", AccountType: domain.AccountPaper}
	return bot.New(id, scope, domain.BotConfig{Name: id}, nil, nil, nil, nil, nil)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := New(5, nil)
	require.NoError(t, s.Create("bot-1", newTestBot("bot-1")))

	err := s.Create("bot-1", newTestBot("bot-1"))
	require.Error(t, err)
	require.Equal(t, enginerr.KindConstraint, enginerr.KindOf(err))
}

func TestCreateEnforcesMaxBotsCap(t *testing.T) {
	s := New(2, nil)
	require.NoError(t, s.Create("bot-1", newTestBot("bot-1")))
	require.NoError(t, s.Create("bot-2", newTestBot("bot-2")))

	err := s.Create("bot-3", newTestBot("bot-3"))
	require.Error(t, err, "expected error once MaxBots is reached")
	require.Equal(t, enginerr.KindConstraint, enginerr.KindOf(err))
	require.Equal(t, 2, s.Count())
}

func TestDeleteRemovesBotFromRoster(t *testing.T) {
	s := New(5, nil)
	require.NoError(t, s.Create("bot-1", newTestBot("bot-1")))
	require.NoError(t, s.Delete(nil, "bot-1"))
	require.Equal(t, 0, s.Count())

	_, err := s.Get("bot-1")
	require.Error(t, err, "expected Get to fail for a deleted bot")
}

func TestDeleteUnknownBotReturnsClientError(t *testing.T) {
	s := New(5, nil)
	err := s.Delete(nil, "missing")
	require.Error(t, err)
	require.Equal(t, enginerr.KindClient, enginerr.KindOf(err))
}

func TestGetAllStatusIsSortedByID(t *testing.T) {
	s := New(5, nil)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoErrorf(t, s.Create(id, newTestBot(id)), "create %s", id)
	}
	statuses := s.GetAllStatus()
	require.Len(t, statuses, 3)

	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		require.Equal(t, w, statuses[i].ID)
	}
}
