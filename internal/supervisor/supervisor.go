// Package supervisor implements Component H: the bot map, the MAX_BOTS
// cap, and the lifecycle fan-out operations (start_all/stop_all/
// pause_all/resume_all). One goroutine per running bot, owned by the bot:
// StopAll stops each bot (bot.Stop waits for its worker to exit) and then
// waits on a sync.WaitGroup that tracks StartAll's launch goroutines.
package supervisor

import (
	"context"
	"sort"
	"sync"

	"github.com/xfactor-labs/tradeforge/internal/bot"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
	"github.com/xfactor-labs/tradeforge/internal/logging"
	"github.com/xfactor-labs/tradeforge/internal/telemetry"
	"github.com/xfactor-labs/tradeforge/internal/telemetry/metrics"
)

const DefaultMaxBots = 25

// Supervisor owns every bot instance in the process. Bot creation/
// deletion takes the write lock; lifecycle calls on an existing bot
// (Start/Stop/Pause/Resume) take the read lock and then delegate to the
// bot's own mutex, so two different bots can start concurrently.
type Supervisor struct {
	MaxBots int
	Sink    *telemetry.Sink

	mu   sync.RWMutex
	bots map[string]*bot.Bot
	wg   sync.WaitGroup
}

func New(maxBots int, sink *telemetry.Sink) *Supervisor {
	if maxBots <= 0 {
		maxBots = DefaultMaxBots
	}
	return &Supervisor{MaxBots: maxBots, Sink: sink, bots: make(map[string]*bot.Bot)}
}

// Create registers a new bot under id. Rejects duplicate ids and
// rejects creation once MaxBots is reached, per §4.8's invariant.
func (s *Supervisor) Create(id string, b *bot.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bots[id]; exists {
		return enginerr.Constraint("bot %q already exists", id)
	}
	if len(s.bots) >= s.MaxBots {
		return enginerr.Constraint("max bots reached (%d)", s.MaxBots)
	}
	s.bots[id] = b
	metrics.ActiveBotsCount.Set(float64(s.runningLocked()))
	return nil
}

// Delete stops the bot (if running) and removes it from the map.
func (s *Supervisor) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	b, ok := s.bots[id]
	if !ok {
		s.mu.Unlock()
		return enginerr.Client("bot %q not found", id)
	}
	delete(s.bots, id)
	s.mu.Unlock()

	b.Stop()
	if s.Sink != nil {
		s.Sink.Publish(telemetry.EventBotStateChange, map[string]any{"bot_id": id, "state": "deleted"})
	}
	return nil
}

func (s *Supervisor) Get(id string) (*bot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bots[id]
	if !ok {
		return nil, enginerr.Client("bot %q not found", id)
	}
	return b, nil
}

func (s *Supervisor) ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bots))
	for id := range s.bots {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Supervisor) runningLocked() int {
	n := 0
	for _, b := range s.bots {
		if b.GetStatus().State == domain.StatusRunning {
			n++
		}
	}
	return n
}

// StartAll starts every bot, each from a launch goroutine tracked in the
// supervisor's WaitGroup; a bot that is already running logs a start
// error and is left as it is.
func (s *Supervisor) StartAll(ctx context.Context) []error {
	var errs []error
	for _, id := range s.ids() {
		b, err := s.Get(id)
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go func(id string, b *bot.Bot) {
			defer s.wg.Done()
			if err := b.Start(ctx); err != nil {
				logging.Warnf("supervisor: start %s: %v", id, err)
			}
		}(id, b)
	}
	metrics.ActiveBotsCount.Set(float64(len(s.ids())))
	return errs
}

func (s *Supervisor) StopAll() {
	for _, id := range s.ids() {
		if b, err := s.Get(id); err == nil {
			b.Stop()
		}
	}
	s.wg.Wait()
	metrics.ActiveBotsCount.Set(0)
}

func (s *Supervisor) PauseAll() {
	for _, id := range s.ids() {
		if b, err := s.Get(id); err == nil {
			b.Pause()
		}
	}
}

func (s *Supervisor) ResumeAll() {
	for _, id := range s.ids() {
		if b, err := s.Get(id); err == nil {
			b.Resume()
		}
	}
}

// GetAllStatus returns a stable, sorted-by-id snapshot of every bot.
func (s *Supervisor) GetAllStatus() []bot.Status {
	ids := s.ids()
	out := make([]bot.Status, 0, len(ids))
	for _, id := range ids {
		b, err := s.Get(id)
		if err != nil {
			continue
		}
		out = append(out, b.GetStatus())
	}
	return out
}

func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bots)
}
