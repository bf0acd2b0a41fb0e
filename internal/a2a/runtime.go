package a2a

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/a2a-agent/internal/bus"
	"github.com/basket/a2a-agent/internal/config"
	a2aotel "github.com/basket/a2a-agent/internal/otel"
)

// Runtime replaces the module-level singletons the original agent relied
// on (a global registry, a global connection, a global tracker) with one
// explicitly constructed, explicitly owned object per process.
type Runtime struct {
	Config     config.Config
	Identity   Identity
	Registry   *Registry
	Tracker    *Tracker
	Manager    *Manager
	Directory  *DirectoryClient
	Bus        *bus.Bus
	Dispatcher *Dispatcher
	Outbox     *Outbox
	StartedAt  time.Time
	logger     *slog.Logger
	metrics    *a2aotel.Metrics

	loop    *MessageLoop
	sweeper interface{ Stop() }

	activity sync.Mutex
	lastErr  string
	lastEvt  string
	log      []string
}

// activityLogCap bounds the in-memory activity log the status dashboard
// scrolls through; older lines are dropped FIFO.
const activityLogCap = 200

// recordActivity keeps the last-seen event/error strings, and a bounded
// scrollback log of one line per bus event, that the status dashboard
// reports, fed by a background subscriber started in Start.
func (rt *Runtime) recordActivity(ctx context.Context) {
	sub := rt.Bus.Subscribe("")
	defer rt.Bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			rt.activity.Lock()
			rt.lastEvt = ev.Topic
			line := ev.Topic
			switch p := ev.Payload.(type) {
			case bus.OutboxFrameDroppedEvent:
				rt.lastErr = fmt.Sprintf("dropped %s frame: %s", p.FrameType, p.Reason)
				line = fmt.Sprintf("%s: dropped %s frame (%s)", ev.Topic, p.FrameType, p.Reason)
			case bus.SkillExecutionEvent:
				if p.Status == "failed" {
					rt.lastErr = fmt.Sprintf("skill %s failed: %s", p.SkillName, p.Error)
					line = fmt.Sprintf("%s: %s failed: %s", ev.Topic, p.SkillName, p.Error)
				} else {
					line = fmt.Sprintf("%s: %s %s", ev.Topic, p.SkillName, p.Status)
				}
			}
			rt.log = append(rt.log, line)
			if len(rt.log) > activityLogCap {
				rt.log = rt.log[len(rt.log)-activityLogCap:]
			}
			rt.activity.Unlock()
		}
	}
}

// LastActivity returns the most recent bus topic observed and, if the
// associated payload carried one, its error text.
func (rt *Runtime) LastActivity() (lastEvent, lastError string) {
	rt.activity.Lock()
	defer rt.activity.Unlock()
	return rt.lastEvt, rt.lastErr
}

// ActivityLog returns a snapshot of the most recent bus event lines,
// oldest first, for display in a scrolling log panel.
func (rt *Runtime) ActivityLog() []string {
	rt.activity.Lock()
	defer rt.activity.Unlock()
	out := make([]string, len(rt.log))
	copy(out, rt.log)
	return out
}

// RuntimeOptions supplies the pieces a caller must choose: identity,
// default handler, capabilities, and logger.
type RuntimeOptions struct {
	Identity       Identity
	Capabilities   Capabilities
	DefaultHandler Handler
	Logger         *slog.Logger
	Tracer         trace.Tracer    // defaults to a no-op tracer
	Meter          metric.Meter    // if set, metrics instruments are created and wired in
}

// NewRuntime wires a Registry, Tracker, Manager, Directory client, and
// Dispatcher from a loaded Config, ready for skill registration and
// Start.
func NewRuntime(cfg config.Config, opts RuntimeOptions) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(a2aotel.TracerName)
	}
	var metrics *a2aotel.Metrics
	if opts.Meter != nil {
		if m, err := a2aotel.NewMetrics(opts.Meter); err == nil {
			metrics = m
		} else {
			logger.Warn("failed to create metrics instruments, running without them", "error", err)
		}
	}

	b := bus.NewWithLogger(logger)
	tracker := NewTracker(cfg.TaskRetentionPerSkill, cfg.TaskRetentionTTL(), logger)
	reg := NewRegistry(tracker, logger).WithTelemetry(b, tracer, metrics)
	mgr := NewManager(ConnectionConfig{
		DirectoryWSURL:          strings.TrimRight(cfg.DirectoryWSURL, "/") + "/agents/connect/" + opts.Identity.AgentID,
		AuthToken:               cfg.AuthToken,
		MaxRegistrationAttempts: cfg.MaxRegistrationAttempts,
		MaxReconnectAttempts:    cfg.MaxReconnectAttempts,
		BaseBackoff:             cfg.BaseBackoff(),
		MaxReconnectBackoff:     cfg.MaxReconnectBackoff(),
		PingInterval:            cfg.PingInterval(),
		DialTimeout:             cfg.HTTPTimeout(),
	}, b, logger).WithMetrics(metrics).WithTracer(tracer)
	dir := NewDirectoryClient(cfg.DirectoryHTTPURL, cfg.AuthToken, cfg.HTTPTimeout(), b)
	dispatcher := NewDispatcher(reg, opts.DefaultHandler, logger).
		WithAgentID(opts.Identity.AgentID).
		WithDefaultConfidence(cfg.DefaultConfidence).
		WithTaskTimeout(cfg.TaskTimeout()).
		WithTracer(tracer)
	outbox := NewOutbox(cfg.MaxOutboxSize, logger).WithTelemetry(b, metrics)

	return &Runtime{
		Config:     cfg,
		Identity:   opts.Identity,
		Registry:   reg,
		Tracker:    tracker,
		Manager:    mgr,
		Directory:  dir,
		Bus:        b,
		Dispatcher: dispatcher,
		Outbox:     outbox,
		StartedAt:  time.Now(),
		logger:     logger,
		metrics:    metrics,
	}
}

// Card builds this runtime's current Agent Card.
func (rt *Runtime) Card(capabilities Capabilities, metadata map[string]interface{}) Card {
	return CreateStandardCard(rt.Identity, capabilities, rt.Registry, rt.Config.PublicEndpoint, rt.Config.AuthToken, metadata)
}

// Start registers with the directory, dials the connection, and runs the
// message loop and heartbeat until ctx is cancelled. On a transport
// failure it reconnects with backoff; on an auth failure it returns
// immediately rather than retrying forever.
func (rt *Runtime) Start(ctx context.Context, capabilities Capabilities, metadata map[string]interface{}) error {
	rt.Registry.StartWorkers(ctx, 4)

	sweeper, err := rt.Tracker.StartEvictionSweep(ctx, "@every 1m")
	if err != nil {
		return Wrap(KindHandler, "start task eviction sweep", err)
	}
	rt.sweeper = sweeper

	go rt.recordActivity(ctx)

	card := rt.Card(capabilities, metadata)
	if err := rt.Manager.Register(ctx, func(ctx context.Context) (int, error) {
		return rt.Directory.Register(ctx, card)
	}); err != nil {
		return err
	}

	conn, err := rt.Manager.Dial(ctx)
	if err != nil {
		if KindOf(err) == KindAuth {
			return err
		}
		conn, err = rt.Manager.Reconnect(ctx)
		if err != nil {
			return err
		}
	}

	for {
		loop := NewMessageLoop(conn, rt.Outbox, rt.Dispatcher, nil, rt.logger).WithMetrics(rt.metrics)
		rt.loop = loop

		runErr := rt.runConnection(ctx, loop)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rt.logger.Warn("connection lost, attempting reconnect", "error", runErr)
		conn, err = rt.Manager.Reconnect(ctx)
		if err != nil {
			return err
		}
	}
}

// runConnection drives a single connection's reader and writer
// concurrently until either exits.
func (rt *Runtime) runConnection(ctx context.Context, loop *MessageLoop) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- loop.Run(connCtx) }()
	go func() { errCh <- loop.Drain(connCtx, rt.Config.PingInterval()) }()

	err := <-errCh
	cancel()
	return err
}

// Stop tears down the connection and background sweepers.
func (rt *Runtime) Stop() {
	if rt.sweeper != nil {
		rt.sweeper.Stop()
	}
	_ = rt.Manager.Close()
}
