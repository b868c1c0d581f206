// Package engine wires every component into a single dependency-
// injection context object, constructed once at process startup. No
// package outside engine ever builds more than one instance of any
// singleton component (risk.Manager, compliance.Manager, the registries,
// the telemetry sink) — engine is the one place that does.
package engine

import (
	"context"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/api"
	"github.com/xfactor-labs/tradeforge/internal/api/auth"
	"github.com/xfactor-labs/tradeforge/internal/bot"
	"github.com/xfactor-labs/tradeforge/internal/broker"
	"github.com/xfactor-labs/tradeforge/internal/broker/binance"
	"github.com/xfactor-labs/tradeforge/internal/broker/bybit"
	"github.com/xfactor-labs/tradeforge/internal/broker/hyperliquid"
	"github.com/xfactor-labs/tradeforge/internal/broker/lighter"
	"github.com/xfactor-labs/tradeforge/internal/broker/paper"
	"github.com/xfactor-labs/tradeforge/internal/clock"
	"github.com/xfactor-labs/tradeforge/internal/compliance"
	"github.com/xfactor-labs/tradeforge/internal/config"
	"github.com/xfactor-labs/tradeforge/internal/datasource"
	"github.com/xfactor-labs/tradeforge/internal/datasource/alpaca"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
	"github.com/xfactor-labs/tradeforge/internal/fees"
	"github.com/xfactor-labs/tradeforge/internal/logging"
	"github.com/xfactor-labs/tradeforge/internal/optimizer"
	"github.com/xfactor-labs/tradeforge/internal/pipeline"
	"github.com/xfactor-labs/tradeforge/internal/risk"
	"github.com/xfactor-labs/tradeforge/internal/seasonal"
	"github.com/xfactor-labs/tradeforge/internal/store"
	"github.com/xfactor-labs/tradeforge/internal/supervisor"
	"github.com/xfactor-labs/tradeforge/internal/telemetry"
	"github.com/xfactor-labs/tradeforge/internal/telemetry/metrics"
)

// Engine holds every component singleton. Bots are created through
// CreateBot rather than being part of this struct directly, since their
// count is dynamic and bounded by Supervisor.MaxBots.
type Engine struct {
	Clock       *clock.Service
	Brokers     *broker.Registry
	DataSources *datasource.Registry
	Compliance  *compliance.Manager
	Risk        *risk.Manager
	Fees        *fees.Tracker
	Seasonal    *seasonal.Calendar
	Telemetry   *telemetry.Sink
	Optimizer   *optimizer.Manager
	Pipeline    *pipeline.Pipeline
	Supervisor  *supervisor.Supervisor
	Store       *store.Store
	API         *api.Server

	strategies map[string]bot.Strategy
}

// New constructs every singleton in dependency order and registers the
// broker/data-source adapters this binary ships. It does not connect to
// any broker or data source yet — that happens in Connect, after config is
// fully loaded, so a bad broker credential fails startup cleanly rather
// than mid-construction.
func New(doc config.Document, tokenSecret string) (*Engine, error) {
	metrics.Init()

	st, err := store.Open(doc.StorePath)
	if err != nil {
		return nil, enginerr.Internal(err, "opening store")
	}

	sink := telemetry.NewSink()
	clk := clock.NewService(clock.SystemClock{}, clock.USEquityCalendar{})
	comp := compliance.NewManager(clk)
	riskMgr := risk.NewManager(doc.Risk)
	feeTracker := fees.NewTracker(fees.DefaultSchedules())
	season := seasonal.DefaultCalendar(time.Now().Year())
	optMgr := optimizer.NewManager(sink)

	brokers := broker.NewRegistry()
	brokers.Register("paper", paper.New)
	brokers.Register("binance", binance.New)
	brokers.Register("bybit", bybit.New)
	brokers.Register("lighter", lighter.New)
	brokers.Register("hyperliquid", hyperliquid.New)

	sources := datasource.NewRegistry()
	sources.Register("alpaca", alpaca.New)

	pipe := pipeline.New(brokers, sources, comp, riskMgr, feeTracker, optMgr, clk, doc.MaxOrdersPerDay, sink)

	sup := supervisor.New(doc.MaxBots, sink)

	tokens := auth.NewTokenIssuer(tokenSecret, 24*time.Hour)
	apiServer := api.NewServer(sup, riskMgr, sink, tokens)

	return &Engine{
		Clock: clk, Brokers: brokers, DataSources: sources, Compliance: comp,
		Risk: riskMgr, Fees: feeTracker, Seasonal: season, Telemetry: sink,
		Optimizer: optMgr, Pipeline: pipe, Supervisor: sup, Store: st, API: apiServer,
		strategies: make(map[string]bot.Strategy),
	}, nil
}

// RegisterStrategy makes a named strategy available to every bot's
// config-declared strategy list.
func (e *Engine) RegisterStrategy(s bot.Strategy) {
	e.strategies[s.Name()] = s
}

// Connect brings up every configured broker and data source. Failure on
// any one is fatal to startup, matching the "no placeholder price"
// design principle: a broker the engine can't talk to shouldn't be
// silently skipped.
func (e *Engine) Connect(ctx context.Context, doc config.Document) error {
	for name, cfg := range doc.BrokerConfigs {
		if err := e.Brokers.Connect(ctx, name, cfg); err != nil {
			return err
		}
	}
	for name, cfg := range doc.DataSourceConfigs {
		if err := e.DataSources.Connect(ctx, name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// CreateBot builds and registers a bot from a config-document
// definition, wiring it to this engine's shared pipeline/telemetry/
// seasonal singletons.
func (e *Engine) CreateBot(def config.BotDefinition) error {
	b := bot.New(def.ID, def.Scope, def.Config, e.Pipeline, e.Telemetry, e.Seasonal,
		func(ctx context.Context, symbol, timeframe, source string) ([]domain.Bar, error) {
			return e.DataSources.GetBars(ctx, symbol, timeframe, 100, source)
		},
		e.strategies,
	)
	if err := e.Supervisor.Create(def.ID, b); err != nil {
		return err
	}
	e.Optimizer.For(def.ID, def.Mode)
	return e.Store.SaveBotConfig(def.ID, def.Config)
}

// RunOptimizerLoop periodically evaluates every running bot's optimizer
// and writes back an adjusted config when one was applied. It runs
// independently of each bot's own trading cadence, on the interval
// given by the config document's evaluation_interval_minutes.
func (e *Engine) RunOptimizerLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluateAllBots()
		}
	}
}

func (e *Engine) evaluateAllBots() {
	for _, status := range e.Supervisor.GetAllStatus() {
		if status.State != domain.StatusRunning {
			continue
		}
		b, err := e.Supervisor.Get(status.ID)
		if err != nil {
			continue
		}
		opt := e.Optimizer.For(status.ID, domain.ModeModerate)
		adjusted, applied := opt.Evaluate(status.Config)
		if applied {
			b.UpdateConfig(adjusted)
		}
	}
}

// Shutdown stops every bot, disconnects every broker/data source, and
// closes the store. Best-effort: it logs failures rather than stopping
// partway through, so a stuck broker disconnect never prevents the rest
// of shutdown from running.
func (e *Engine) Shutdown(ctx context.Context) {
	e.Supervisor.StopAll()
	if err := e.Brokers.DisconnectAll(ctx); err != nil {
		logging.Warnf("engine shutdown: broker disconnect: %v", err)
	}
	if err := e.DataSources.DisconnectAll(ctx); err != nil {
		logging.Warnf("engine shutdown: datasource disconnect: %v", err)
	}
	e.Telemetry.Close()
	if err := e.Store.Close(); err != nil {
		logging.Warnf("engine shutdown: store close: %v", err)
	}
}
