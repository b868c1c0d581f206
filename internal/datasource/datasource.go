// Package datasource mirrors the broker package's registry shape for
// quote/bar providers, adding per-call failover across a priority list
// (§4.3): callers are never pinned to a single source after one failure.
package datasource

import (
	"context"
	"sync"

	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
	"github.com/xfactor-labs/tradeforge/internal/logging"
)

// DataSource is an idempotent reader; the registry never caches on its
// behalf.
type DataSource interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error)
}

type Constructor func(config map[string]any) (DataSource, error)

type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	handles      map[string]DataSource
	priority     []string
	defaultName  string
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		handles:      make(map[string]DataSource),
	}
}

func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

func (r *Registry) Connect(ctx context.Context, name string, config map[string]any) error {
	r.mu.Lock()
	ctor, ok := r.constructors[name]
	r.mu.Unlock()
	if !ok {
		return enginerr.Client("unknown data source %q", name)
	}
	src, err := ctor(config)
	if err != nil {
		return enginerr.External(err, "constructing data source %q", name)
	}
	if err := src.Connect(ctx); err != nil {
		return enginerr.External(err, "connecting data source %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[name] = src
	r.priority = append(r.priority, name)
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

func (r *Registry) Get(name string) (DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.handles[name]
	if !ok {
		return nil, enginerr.Client("data source %q not connected", name)
	}
	return s, nil
}

func (r *Registry) priorityList(preferred string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order := append([]string(nil), r.priority...)
	if preferred == "" {
		return order
	}
	out := []string{preferred}
	for _, n := range order {
		if n != preferred {
			out = append(out, n)
		}
	}
	return out
}

// GetQuote attempts the supplied source first, then walks the priority
// list, returning the first successful result. Failover is per-call:
// a failing source is not demoted from the list.
func (r *Registry) GetQuote(ctx context.Context, symbol, preferredSource string) (domain.Quote, error) {
	var lastErr error
	for _, name := range r.priorityList(preferredSource) {
		r.mu.RLock()
		src := r.handles[name]
		r.mu.RUnlock()
		if src == nil {
			continue
		}
		q, err := src.GetQuote(ctx, symbol)
		if err == nil {
			q.Source = name
			return q, nil
		}
		lastErr = err
		logging.Warnf("datasource %s: get_quote(%s) failed, failing over: %v", name, symbol, err)
	}
	if lastErr == nil {
		lastErr = enginerr.Client("no data sources registered")
	}
	return domain.Quote{}, enginerr.External(lastErr, "quote unavailable for %s", symbol)
}

func (r *Registry) GetBars(ctx context.Context, symbol, timeframe string, limit int, preferredSource string) ([]domain.Bar, error) {
	var lastErr error
	for _, name := range r.priorityList(preferredSource) {
		r.mu.RLock()
		src := r.handles[name]
		r.mu.RUnlock()
		if src == nil {
			continue
		}
		bars, err := src.GetBars(ctx, symbol, timeframe, limit)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		logging.Warnf("datasource %s: get_bars(%s) failed, failing over: %v", name, symbol, err)
	}
	if lastErr == nil {
		lastErr = enginerr.Client("no data sources registered")
	}
	return nil, enginerr.External(lastErr, "bars unavailable for %s", symbol)
}

func (r *Registry) DisconnectAll(ctx context.Context) error {
	r.mu.Lock()
	order := append([]string(nil), r.priority...)
	r.mu.Unlock()
	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		r.mu.RLock()
		src := r.handles[order[i]]
		r.mu.RUnlock()
		if src == nil {
			continue
		}
		if err := src.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
