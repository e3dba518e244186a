// Package engine coordinates the feed poller, the minute aggregator, and the
// startup reconciler around the tick store and the remote bar writer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tickbar/internal/archive"
	"tickbar/internal/bars"
	"tickbar/internal/domain"
	"tickbar/internal/quote"
	"tickbar/internal/remote"
	"tickbar/internal/session"
	"tickbar/internal/tickstore"
)

// aggregateCheckInterval is how often the aggregate loop checks the wall
// clock for a newly completed minute.
const aggregateCheckInterval = time.Second

// Params wires an Engine with its collaborators and cadence settings.
// Archive may be nil to disable the local Parquet mirror.
type Params struct {
	Logger   *slog.Logger
	Source   quote.Source
	Ticks    *tickstore.Store
	Writer   remote.BarWriter
	Archive  *archive.Store
	Schedule *session.Schedule

	Periods           []int
	FetchInterval     time.Duration
	HeartbeatInterval time.Duration
	RecentDays        int
}

// Engine runs two independently scheduled loops sharing the tick store: the
// feed poller appends ticks, the minute aggregator compiles them into bars
// and hands the bars to the remote writer. Reconcile repairs remote state
// once before the loops start.
type Engine struct {
	log      *slog.Logger
	source   quote.Source
	ticks    *tickstore.Store
	writer   remote.BarWriter
	archive  *archive.Store
	schedule *session.Schedule

	periods           []int
	fetchInterval     time.Duration
	heartbeatInterval time.Duration
	recentDays        int

	// now is the clock used for scheduling decisions; overridden in tests.
	now func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	running        bool
	lastAggregated time.Time
	ensured        map[int]bool
}

// New creates an Engine. Zero-valued cadence fields fall back to sane
// defaults.
func New(p Params) *Engine {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	p.Logger = p.Logger.With("component", "engine")
	if len(p.Periods) == 0 {
		p.Periods = domain.DefaultPeriods
	}
	if p.FetchInterval <= 0 {
		p.FetchInterval = 5 * time.Second
	}
	if p.HeartbeatInterval <= 0 {
		p.HeartbeatInterval = time.Minute
	}
	if p.RecentDays <= 0 {
		p.RecentDays = 2
	}

	return &Engine{
		log:               p.Logger,
		source:            p.Source,
		ticks:             p.Ticks,
		writer:            p.Writer,
		archive:           p.Archive,
		schedule:          p.Schedule,
		periods:           p.Periods,
		fetchInterval:     p.FetchInterval,
		heartbeatInterval: p.HeartbeatInterval,
		recentDays:        p.RecentDays,
		now:               time.Now,
		ensured:           make(map[int]bool),
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start launches the poll and aggregate loops. It returns immediately; call
// Stop to shut both loops down.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	// The minute in progress at startup becomes the first minute the
	// aggregate loop processes once it completes. Older minutes belong to
	// Reconcile.
	e.lastAggregated = domain.MinuteStart(e.now()).Add(-time.Minute)
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(2)
	go e.pollLoop(ctx)
	go e.aggregateLoop(ctx)

	e.log.Info("engine started",
		"fetch_interval", e.fetchInterval,
		"heartbeat_interval", e.heartbeatInterval,
		"periods", e.periods)
	return nil
}

// Stop cancels both loops and waits for them to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	e.log.Info("engine stopped")
}

// ---------------------------------------------------------------------------
// Feed poller
// ---------------------------------------------------------------------------

func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		delay := e.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// pollOnce runs one poller iteration and returns how long to sleep before
// the next one. Out-of-session instants perform a connectivity heartbeat
// fetch, stage nothing, and sleep for the longer heartbeat interval.
func (e *Engine) pollOnce(ctx context.Context) time.Duration {
	now := e.now()
	if !e.schedule.InSession(now) {
		if _, err := e.source.Fetch(ctx); err != nil {
			e.log.Warn("heartbeat fetch failed", "error", err)
		} else {
			e.log.Debug("heartbeat ok, out of session", "at", now)
		}
		return e.heartbeatInterval
	}

	q, err := e.source.Fetch(ctx)
	if err != nil {
		// Source failures skip the iteration; the next cycle retries.
		e.log.Warn("quote fetch failed", "error", err)
		return e.fetchInterval
	}

	tick := domain.Tick{ObservedAt: now, Price: q.Price, Volume: q.Volume}
	if err := e.ticks.Append(ctx, tick); err != nil {
		e.log.Error("tick append failed", "error", err)
	}
	return e.fetchInterval
}

// ---------------------------------------------------------------------------
// Minute aggregator
// ---------------------------------------------------------------------------

func (e *Engine) aggregateLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(aggregateCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.aggregateOnce(ctx)
		}
	}
}

// aggregateOnce processes the most recently completed minute exactly once.
// Called every second; cheap when no new minute has completed.
func (e *Engine) aggregateOnce(ctx context.Context) {
	prev := domain.MinuteStart(e.now()).Add(-time.Minute)

	e.mu.Lock()
	done := !prev.After(e.lastAggregated)
	if !done {
		e.lastAggregated = prev
	}
	e.mu.Unlock()
	if done {
		return
	}

	if !e.schedule.InSession(prev) {
		return
	}

	if bar, ok, err := e.minuteBar(ctx, prev); err != nil {
		e.log.Error("minute read failed", "minute", prev, "error", err)
	} else if ok {
		e.upsert(ctx, 1, []domain.Bar{bar})
	}

	for _, p := range e.periods {
		if !domain.IsBoundary(prev, p) {
			continue
		}
		if bar, ok, err := e.rollup(ctx, prev, p); err != nil {
			e.log.Error("rollup failed", "minute", prev, "period", p, "error", err)
		} else if ok {
			e.upsert(ctx, p, []domain.Bar{bar})
		}
	}
}

// ---------------------------------------------------------------------------
// Bar derivation
// ---------------------------------------------------------------------------

// minuteBar reads the ticks of [minute, minute+1) and reduces them to a bar.
// ok is false for an empty window.
func (e *Engine) minuteBar(ctx context.Context, minute time.Time) (domain.Bar, bool, error) {
	ticks, err := e.ticks.ReadRange(ctx, minute, minute.Add(time.Minute))
	if err != nil {
		return domain.Bar{}, false, err
	}
	bar, ok := bars.Reduce(minute, ticks)
	return bar, ok, nil
}

// rollup recomputes the minute bars of the p-minute window ending at
// endMinute inclusive and combines them into one period bar. ok is false
// when every minute in the window is empty.
func (e *Engine) rollup(ctx context.Context, endMinute time.Time, p int) (domain.Bar, bool, error) {
	windowStart := endMinute.Add(-time.Duration(p-1) * time.Minute)

	var minutes []domain.Bar
	for m := windowStart; !m.After(endMinute); m = m.Add(time.Minute) {
		bar, ok, err := e.minuteBar(ctx, m)
		if err != nil {
			return domain.Bar{}, false, err
		}
		if ok {
			minutes = append(minutes, bar)
		}
	}

	bar, ok := bars.Combine(windowStart, minutes)
	return bar, ok, nil
}

// upsert writes bars for a period, creating the destination table on first
// use. Remote failures are logged and abandoned; the reconciler repairs them
// on the next restart.
func (e *Engine) upsert(ctx context.Context, period int, batch []domain.Bar) {
	if err := e.ensureTable(ctx, period); err != nil {
		e.log.Error("ensure table failed", "period", period, "error", err)
		return
	}
	if err := e.writer.WriteBars(ctx, period, batch); err != nil {
		e.log.Error("bar upsert failed", "period", period, "bars", len(batch), "error", err)
		return
	}
	e.log.Info("bars upserted", "period", period, "bars", len(batch))

	if e.archive != nil {
		if err := e.archive.WriteBars(ctx, period, batch); err != nil {
			e.log.Warn("bar archive failed", "period", period, "error", err)
		}
	}
}

// ensureTable creates the period's destination table once per process.
func (e *Engine) ensureTable(ctx context.Context, period int) error {
	e.mu.Lock()
	ok := e.ensured[period]
	e.mu.Unlock()
	if ok {
		return nil
	}

	if err := e.writer.EnsureTable(ctx, period); err != nil {
		return err
	}

	e.mu.Lock()
	e.ensured[period] = true
	e.mu.Unlock()
	return nil
}
