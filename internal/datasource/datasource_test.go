package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xfactor-labs/tradeforge/internal/domain"
)

// fakeSource always fails GetQuote/GetBars when failQuote/failBars is set,
// and counts calls to either method in calls so tests can check that a
// failing source stays in the priority list instead of being demoted.
type fakeSource struct {
	name      string
	failQuote bool
	failBars  bool
	calls     int
}

func (f *fakeSource) Name() string                         { return f.name }
func (f *fakeSource) Connect(ctx context.Context) error     { return nil }
func (f *fakeSource) Disconnect(ctx context.Context) error  { return nil }
func (f *fakeSource) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeSource) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	f.calls++
	if f.failQuote {
		return domain.Quote{}, errors.New("simulated outage")
	}
	return domain.Quote{Symbol: symbol, Bid: 100, Ask: 100.1}, nil
}

func (f *fakeSource) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	f.calls++
	if f.failBars {
		return nil, errors.New("simulated outage")
	}
	return []domain.Bar{{Symbol: symbol}}, nil
}

func registerFake(r *Registry, f *fakeSource) {
	r.Register(f.name, func(config map[string]any) (DataSource, error) { return f, nil })
}

func TestGetQuoteFailsOverToNextSourceInPriority(t *testing.T) {
	r := NewRegistry()
	primary := &fakeSource{name: "primary", failQuote: true}
	backup := &fakeSource{name: "backup"}
	registerFake(r, primary)
	registerFake(r, backup)

	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, "primary", nil))
	require.NoError(t, r.Connect(ctx, "backup", nil))

	q, err := r.GetQuote(ctx, "AAPL", "")
	require.NoError(t, err, "expected failover to succeed")
	require.Equal(t, "backup", q.Source)
}

func TestFailingSourceIsNotDemotedFromPriorityList(t *testing.T) {
	r := NewRegistry()
	primary := &fakeSource{name: "primary", failQuote: true}
	backup := &fakeSource{name: "backup"}
	registerFake(r, primary)
	registerFake(r, backup)

	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, "primary", nil))
	require.NoError(t, r.Connect(ctx, "backup", nil))

	// Call twice: per-call failover must retry primary every time rather
	// than permanently routing around it after the first failure.
	_, err := r.GetQuote(ctx, "AAPL", "")
	require.NoError(t, err)
	_, err = r.GetQuote(ctx, "AAPL", "")
	require.NoError(t, err)
	require.Equal(t, 2, primary.calls, "expected primary to be tried on every call")
}

func TestGetQuoteReturnsErrorWhenAllSourcesFail(t *testing.T) {
	r := NewRegistry()
	a := &fakeSource{name: "a", failQuote: true}
	b := &fakeSource{name: "b", failQuote: true}
	registerFake(r, a)
	registerFake(r, b)

	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, "a", nil))
	require.NoError(t, r.Connect(ctx, "b", nil))

	_, err := r.GetQuote(ctx, "AAPL", "")
	require.Error(t, err, "expected error when every source fails")
}

func TestPreferredSourceIsTriedFirst(t *testing.T) {
	r := NewRegistry()
	a := &fakeSource{name: "a"}
	b := &fakeSource{name: "b"}
	registerFake(r, a)
	registerFake(r, b)

	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, "a", nil))
	require.NoError(t, r.Connect(ctx, "b", nil))

	q, err := r.GetQuote(ctx, "AAPL", "b")
	require.NoError(t, err)
	require.Equal(t, "b", q.Source)
	require.Zero(t, a.calls, "expected source a to not be called when b is preferred and succeeds")
}
