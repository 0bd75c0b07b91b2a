package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/rules"
)

// Runner runs whatever cycles are due.
type Runner interface {
	RunDue(ctx context.Context) (ranHourly, ranDaily bool, err error)
}

// Trigger decides when a pass is attempted.
type Trigger interface {
	Run(ctx context.Context) error
}

// ExternalTrigger runs exactly one pass per Run call. A crontab entry
// invoking cmd/turns uses it.
type ExternalTrigger struct {
	Runner Runner
	Logger logging.Logger
}

func (t ExternalTrigger) Run(ctx context.Context) error {
	hourly, daily, err := t.Runner.RunDue(ctx)
	if err != nil {
		return err
	}
	if t.Logger != nil {
		t.Logger.Info(ctx, "turns run", "hourly", hourly, "daily", daily)
	}
	return nil
}

// Ticker is the built-in invoker for the external mode: it calls the runner
// every interval until ctx is cancelled.
type Ticker struct {
	runner   Runner
	interval time.Duration
	log      logging.Logger
}

// NewTicker panics when interval is not positive.
func NewTicker(r Runner, interval time.Duration, log logging.Logger) *Ticker {
	if interval <= 0 {
		panic("scheduler.NewTicker: interval must be > 0")
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Ticker{runner: r, interval: interval, log: log}
}

// Run blocks until ctx is done. Pass errors are logged, never returned.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	if _, _, err := t.runner.RunDue(ctx); err != nil && ctx.Err() == nil {
		t.log.Error(ctx, "scheduled pass failed", "error", err)
	}
}

// RequestTrigger runs passes lazily from player traffic. Poke is cheap when
// nothing is due: it compares the current turn period with the last one a
// pass completed for and returns without touching storage.
type RequestTrigger struct {
	runner Runner
	rules  func() rules.Rules
	now    func() time.Time
	log    logging.Logger

	running atomic.Bool
	done    atomic.Int64
	wg      sync.WaitGroup
}

func NewRequestTrigger(r Runner, rulesFn func() rules.Rules, now func() time.Time, log logging.Logger) *RequestTrigger {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logging.Nop{}
	}
	t := &RequestTrigger{runner: r, rules: rulesFn, now: now, log: log}
	t.done.Store(minPeriod)
	return t
}

const minPeriod = -1 << 62

// Poke starts a background pass when a new turn period began since the
// last completed one. It reports whether a pass was started.
func (t *RequestTrigger) Poke(ctx context.Context) bool {
	r := t.rules()
	now := r.Clamp(t.now())
	if !r.Started(now) || r.TurnsFreq <= 0 {
		return false
	}
	period := r.TurnGrid().Index(now)
	if period <= t.done.Load() {
		return false
	}
	if !t.running.CompareAndSwap(false, true) {
		return false
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.running.Store(false)

		ctx := context.WithoutCancel(ctx)
		if _, _, err := t.runner.RunDue(ctx); err != nil {
			t.log.Error(ctx, "request triggered pass failed", "error", err)
			return
		}
		t.done.Store(period)
	}()
	return true
}

// Run satisfies Trigger; request mode has no loop of its own.
func (t *RequestTrigger) Run(ctx context.Context) error {
	<-ctx.Done()
	t.Wait()
	return nil
}

// Wait blocks until the pass started by Poke, if any, is over.
func (t *RequestTrigger) Wait() { t.wg.Wait() }
