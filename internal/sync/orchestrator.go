package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/tallyapp/tallysync/internal/bus"
)

const (
	otelScope = "tallysync/sync"
	spanCycle = "sync.cycle"

	metricPushed = "tallysync.sync.rows.pushed"
	metricPulled = "tallysync.sync.rows.pulled"
	metricErrors = "tallysync.sync.errors"
)

const (
	defaultDebounce     = 500 * time.Millisecond
	defaultPollInterval = 5 * time.Minute
)

// Options wires an Orchestrator.
type Options struct {
	Local  LocalStore
	Writer RemoteWriter
	Reader RemoteReader
	Shares ShareAPI
	Auth   Auth
	Net    Connectivity

	// Events feeds local-write and remote-change notifications into the
	// trigger. May be nil, in which case only the poll ticker and explicit
	// RunNow calls start cycles.
	Events *bus.Bus

	// Debounce is the quiet period collapsing event bursts into one cycle.
	Debounce time.Duration

	// PollInterval is the safety-net ticker covering missed notifications.
	PollInterval time.Duration

	// OnStatus, when set, is called with every status change.
	OnStatus func(Status)

	Logger *slog.Logger
}

// Orchestrator is the single long-lived sync task of the process. All cycles
// run through one mutex: a trigger landing mid-cycle waits for the next
// debounce window instead of overlapping.
type Orchestrator struct {
	local  LocalStore
	writer RemoteWriter
	broker *Broker
	puller *puller
	auth   Auth
	net    Connectivity
	events *bus.Bus

	debounce     time.Duration
	pollInterval time.Duration
	onStatus     func(Status)
	log          *slog.Logger

	// mu serializes cycles and guards status and claimedUser.
	mu          stdsync.Mutex
	status      Status
	claimedUser string

	timerMu stdsync.Mutex
	timer   *time.Timer
	kick    chan struct{}

	// applying mirrors the pull-apply transaction: events observed while it
	// is set are the engine's own writes and must not re-trigger a cycle.
	applying atomic.Bool

	tracer    trace.Tracer
	cntPushed metric.Int64Counter
	cntPulled metric.Int64Counter
	cntErrors metric.Int64Counter
}

// New creates an Orchestrator from opts, applying defaults for the debounce
// and poll interval.
func New(opts Options) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	meter := otel.Meter(otelScope)
	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			opts.Logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	o := &Orchestrator{
		local:        opts.Local,
		writer:       opts.Writer,
		auth:         opts.Auth,
		net:          opts.Net,
		events:       opts.Events,
		debounce:     opts.Debounce,
		pollInterval: opts.PollInterval,
		onStatus:     opts.OnStatus,
		log:          opts.Logger,
		status:       Status{State: StateIdle},
		kick:         make(chan struct{}, 1),

		tracer:    otel.Tracer(otelScope),
		cntPushed: mustCounter(metricPushed, "Rows uploaded by the push pipeline"),
		cntPulled: mustCounter(metricPulled, "Rows applied by the pull pipeline"),
		cntErrors: mustCounter(metricErrors, "Failed sync cycles"),
	}
	o.broker = NewBroker(opts.Shares, opts.Auth, opts.Logger)
	o.puller = &puller{
		local:    opts.Local,
		remote:   opts.Reader,
		broker:   o.broker,
		log:      opts.Logger,
		applying: &o.applying,
	}
	return o
}

// Trigger schedules a sync cycle after the debounce window. Calls landing
// inside the window reset it, so a burst of writes becomes one cycle.
func (o *Orchestrator) Trigger() {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()

	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.debounce, func() {
		select {
		case o.kick <- struct{}{}:
		default:
		}
	})
}

// Status returns the engine's current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// RunNow executes one cycle immediately, bypassing the debounce. It returns
// the cycle's error; skips for missing auth or connectivity return nil.
func (o *Orchestrator) RunNow(ctx context.Context) error {
	return o.cycle(ctx)
}

// Run consumes events and executes cycles until ctx is cancelled. It runs an
// immediate first cycle so a restarted daemon converges without waiting for
// the ticker.
func (o *Orchestrator) Run(ctx context.Context) error {
	var events <-chan bus.Event
	if o.events != nil {
		events = o.events.Subscribe()
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	if err := o.cycle(ctx); err != nil {
		o.log.Error("initial sync failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			o.log.Info("sync orchestrator shutting down")
			o.broker.wg.Wait()
			return ctx.Err()
		case ev := <-events:
			if o.applying.Load() {
				continue
			}
			o.log.Debug("sync triggered", "origin", ev.Origin, "table", ev.Table)
			o.Trigger()
		case <-o.kick:
			if err := o.cycle(ctx); err != nil {
				o.log.Error("sync cycle failed", "error", err)
			}
		case <-ticker.C:
			if err := o.cycle(ctx); err != nil {
				o.log.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

// cycle runs one push → share → pull pass. The cursor is advanced to the
// cycle's start time only after everything succeeded, so a failed cycle is
// replayed in full by the next one.
func (o *Orchestrator) cycle(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	user, ok := o.auth.CurrentUser()
	if !ok {
		o.log.Debug("sync skipped: not signed in")
		return nil
	}
	if !o.net.Online(ctx) {
		o.log.Debug("sync skipped: offline")
		return nil
	}

	ctx, span := o.tracer.Start(ctx, spanCycle)
	defer span.End()

	o.setStatusLocked(Status{State: StateSyncing, LastSync: o.status.LastSync})

	start := time.Now().UTC()
	pushed, pulled, err := o.runLocked(ctx, user, start)

	o.cntPushed.Add(ctx, int64(pushed))
	o.cntPulled.Add(ctx, int64(pulled))
	span.SetAttributes(
		attribute.Int("sync.pushed", pushed),
		attribute.Int("sync.pulled", pulled),
	)

	if err != nil {
		o.cntErrors.Add(ctx, 1)
		span.RecordError(err)
		o.setStatusLocked(Status{State: StateError, Err: err, LastSync: o.status.LastSync})
		return err
	}

	o.log.Info("sync cycle completed", "pushed", pushed, "pulled", pulled,
		"duration", time.Since(start).Round(time.Millisecond))
	o.setStatusLocked(Status{State: StateIdle, LastSync: start})
	return nil
}

func (o *Orchestrator) runLocked(ctx context.Context, user string, start time.Time) (pushed, pulled int, err error) {
	// Claim once per signed-in account. Failure is logged, not fatal: the
	// claim is retried on the next cycle.
	if o.claimedUser != user {
		if _, err := o.broker.claim(ctx); err != nil {
			o.log.Warn("share claim failed", "error", err)
		} else {
			o.claimedUser = user
		}
	}

	cursor, err := o.local.Cursor(ctx, user)
	if err != nil {
		return 0, 0, fmt.Errorf("reading cursor: %w", err)
	}

	snap, err := o.local.Snapshot(ctx, user)
	if err != nil {
		return 0, 0, fmt.Errorf("reading snapshot: %w", err)
	}

	out, err := pushSnapshot(ctx, o.writer, snap)
	if err != nil {
		return out.Uploaded, 0, err
	}
	o.broker.processOutgoing(ctx, out)

	pulled, err = o.puller.run(ctx, user, cursor)
	if err != nil {
		return out.Uploaded, pulled, err
	}

	if err := o.local.SetCursor(ctx, user, start); err != nil {
		return out.Uploaded, pulled, fmt.Errorf("advancing cursor: %w", err)
	}
	return out.Uploaded, pulled, nil
}

func (o *Orchestrator) setStatusLocked(s Status) {
	o.status = s
	if o.onStatus != nil {
		o.onStatus(s)
	}
}
