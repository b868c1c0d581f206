// Package bot implements Component G, the cooperative worker that runs
// one trading bot's cycle loop: fetch bars, run strategies, combine
// signals by weighted vote, size, and submit through the pipeline.
// Every bot owns one goroutine, started by Start and joined by Stop,
// which waits up to 10 s for the goroutine to exit.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
	"github.com/xfactor-labs/tradeforge/internal/logging"
	"github.com/xfactor-labs/tradeforge/internal/pipeline"
	"github.com/xfactor-labs/tradeforge/internal/seasonal"
	"github.com/xfactor-labs/tradeforge/internal/sizing"
	"github.com/xfactor-labs/tradeforge/internal/telemetry"
	"github.com/xfactor-labs/tradeforge/internal/telemetry/metrics"
)

// Strategy produces a signal for one symbol from recent bars. Real
// strategies (momentum, mean-reversion, etc.) live outside this package
// and are registered by name in a bot's config.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, symbol string, bars []domain.Bar, season seasonal.Context) (domain.Signal, error)
}

const maxConsecutiveErrors = 3

// Bot is one supervised worker. All fields under mu are read by
// GetStatus concurrently with the run loop's writes.
type Bot struct {
	ID     string
	Scope  domain.AccountScope
	Pipe   *pipeline.Pipeline
	Sink   *telemetry.Sink
	Season *seasonal.Calendar

	getBars func(ctx context.Context, symbol, timeframe string, source string) ([]domain.Bar, error)

	mu         sync.RWMutex
	cfg        domain.BotConfig
	status     domain.BotStatus
	strategies map[string]Strategy
	paused     bool
	errCount   int
	lastError  string
	lastCycle  time.Time
	equity     float64
	dailyPnL   float64
	tradesToday int

	cancel context.CancelFunc
	done   chan struct{}
}

func New(id string, scope domain.AccountScope, cfg domain.BotConfig, pipe *pipeline.Pipeline, sink *telemetry.Sink, season *seasonal.Calendar,
	getBars func(ctx context.Context, symbol, timeframe, source string) ([]domain.Bar, error),
	strategies map[string]Strategy) *Bot {
	return &Bot{
		ID: id, Scope: scope, Pipe: pipe, Sink: sink, Season: season,
		getBars: getBars, cfg: cfg.Clone(), status: domain.StatusCreated,
		strategies: strategies,
	}
}

// Status is the read-only snapshot GetStatus returns.
type Status struct {
	ID          string
	State       domain.BotStatus
	Config      domain.BotConfig
	LastCycle   time.Time
	LastError   string
	ErrorCount  int
	DailyPnL    float64
	TradesToday int
}

func (b *Bot) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Status{
		ID: b.ID, State: b.status, Config: b.cfg.Clone(),
		LastCycle: b.lastCycle, LastError: b.lastError, ErrorCount: b.errCount,
		DailyPnL: b.dailyPnL, TradesToday: b.tradesToday,
	}
}

func (b *Bot) UpdateConfig(cfg domain.BotConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg.Clone()
}

// Start launches the cycle loop goroutine. The goroutine closes the
// bot's done channel on exit, which is what Stop waits on.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.status == domain.StatusRunning || b.status == domain.StatusStarting {
		b.mu.Unlock()
		return enginerr.Constraint("bot %s already running", b.ID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.status = domain.StatusStarting
	b.paused = false
	b.mu.Unlock()

	go b.run(runCtx)
	return nil
}

func (b *Bot) Stop() {
	b.mu.Lock()
	if b.status == domain.StatusStopped || b.status == domain.StatusCreated {
		b.mu.Unlock()
		return
	}
	b.status = domain.StatusStopping
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			b.mu.Lock()
			b.status = domain.StatusError
			b.lastError = "worker did not stop within 10s"
			b.mu.Unlock()
		}
	}
}

func (b *Bot) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
	if b.status == domain.StatusRunning {
		b.status = domain.StatusPaused
	}
}

func (b *Bot) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
	if b.status == domain.StatusPaused {
		b.status = domain.StatusRunning
	}
}

func (b *Bot) run(ctx context.Context) {
	defer close(b.done)
	b.mu.Lock()
	b.status = domain.StatusRunning
	interval := time.Duration(b.cfg.TradeFrequencySeconds) * time.Second
	b.mu.Unlock()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	metrics.SetBotRunning(b.ID, true)
	defer metrics.SetBotRunning(b.ID, false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.status = domain.StatusStopped
			b.mu.Unlock()
			return
		case <-ticker.C:
			b.mu.RLock()
			paused := b.paused
			b.mu.RUnlock()
			if paused {
				continue
			}
			b.cycle(ctx)
		}
	}
}

// cycle runs one iteration of the §4.7 algorithm: fetch bars for every
// configured symbol, analyze with every configured strategy, combine by
// weighted vote, size, submit. Three consecutive cycle errors set the
// bot's status to StatusError; the run loop keeps calling cycle on every
// tick after that.
func (b *Bot) cycle(ctx context.Context) {
	start := time.Now()
	b.mu.RLock()
	cfg := b.cfg.Clone()
	b.mu.RUnlock()

	if err := b.cycleOnce(ctx, cfg); err != nil {
		b.mu.Lock()
		b.errCount++
		b.lastError = err.Error()
		if b.errCount >= maxConsecutiveErrors {
			b.status = domain.StatusError
		}
		b.mu.Unlock()
		logging.Errorf("bot %s: cycle failed: %v", b.ID, err)
	} else {
		b.mu.Lock()
		b.errCount = 0
		b.lastCycle = time.Now()
		b.mu.Unlock()
	}
	metrics.RecordCycleDuration(b.ID, time.Since(start).Seconds())
}

func (b *Bot) cycleOnce(ctx context.Context, cfg domain.BotConfig) error {
	season := seasonal.Context{}
	if b.Season != nil {
		season = b.Season.Context(time.Now())
	}

	for _, symbol := range cfg.Symbols {
		bars, err := b.getBars(ctx, symbol, "5m", cfg.DefaultDataSource)
		if err != nil {
			return enginerr.External(err, "fetching bars for %s", symbol)
		}
		if len(bars) == 0 {
			continue
		}

		signal, ok := b.combinedSignal(ctx, cfg, symbol, bars, season)
		if !ok || !signal.Actionable() {
			continue
		}

		b.Sink.Publish(telemetry.EventSignalEmitted, signal)

		side := domain.SideBuy
		if signal.Bearish() {
			side = domain.SideSell
		}

		result, err := sizing.Size(sizing.Input{
			Method:         sizing.FixedFractional,
			Equity:         b.equityOrDefault(),
			Price:          bars[len(bars)-1].Close,
			RiskFraction:   cfg.PositionSizePct / 100,
			MaxPositionPct: cfg.MaxPositionSize,
		})
		if err != nil || result.Quantity <= 0 {
			continue
		}

		outcome, err := b.Pipe.Submit(ctx, pipeline.Request{
			BotID: b.ID, Scope: b.Scope, Symbol: symbol, Side: side,
			Quantity: result.Quantity, OrderType: domain.OrderMarket,
			StrategyName: signal.StrategyName, BrokerName: cfg.DefaultBroker,
			DataSourceName: cfg.DefaultDataSource, ConfirmPolicy: cfg.ConfirmPolicy,
		})
		if err != nil {
			return err
		}
		if !outcome.Rejected {
			b.mu.Lock()
			b.tradesToday++
			b.mu.Unlock()
		}
	}
	return nil
}

func (b *Bot) equityOrDefault() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.equity > 0 {
		return b.equity
	}
	return 10000
}

func (b *Bot) SetEquity(equity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.equity = equity
}

// combinedSignal runs every configured strategy and combines results by
// the configured per-strategy weights, producing one weighted-majority
// signal. Strategies that error are skipped rather than failing the
// whole cycle.
func (b *Bot) combinedSignal(ctx context.Context, cfg domain.BotConfig, symbol string, bars []domain.Bar, season seasonal.Context) (domain.Signal, bool) {
	b.mu.RLock()
	strategies := b.strategies
	b.mu.RUnlock()

	var score, weightSum float64
	var best domain.Signal
	haveBest := false

	for _, name := range cfg.Strategies {
		strat, ok := strategies[name]
		if !ok {
			continue
		}
		sig, err := strat.Analyze(ctx, symbol, bars, season)
		if err != nil {
			logging.Warnf("bot %s: strategy %s failed for %s: %v", b.ID, name, symbol, err)
			continue
		}
		weight := cfg.StrategyWeights[name]
		if weight <= 0 {
			weight = 1
		}
		dir := directionScore(sig.Kind)
		score += dir * sig.Strength * sig.Confidence * weight
		weightSum += weight
		if !haveBest || sig.Strength*sig.Confidence > best.Strength*best.Confidence {
			best = sig
			haveBest = true
		}
	}
	if !haveBest || weightSum == 0 {
		return domain.Signal{}, false
	}

	avg := score / weightSum
	kind := kindFromScore(avg)
	best.Kind = kind
	best.Symbol = symbol
	return best, true
}

func directionScore(k domain.SignalKind) float64 {
	switch k {
	case domain.StrongBuy:
		return 2
	case domain.Buy:
		return 1
	case domain.Sell:
		return -1
	case domain.StrongSell:
		return -2
	default:
		return 0
	}
}

func kindFromScore(avg float64) domain.SignalKind {
	switch {
	case avg >= 1.5:
		return domain.StrongBuy
	case avg >= 0.3:
		return domain.Buy
	case avg <= -1.5:
		return domain.StrongSell
	case avg <= -0.3:
		return domain.Sell
	default:
		return domain.Hold
	}
}
