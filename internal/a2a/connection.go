package a2a

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/basket/a2a-agent/internal/bus"
	a2aotel "github.com/basket/a2a-agent/internal/otel"
)

// RegistrationState is the registration machine's state.
type RegistrationState string

const (
	RegUnregistered              RegistrationState = "unregistered"
	RegRegistering               RegistrationState = "registering"
	RegRegistered                RegistrationState = "registered"
	RegConflictAlreadyRegistered RegistrationState = "conflict_already_registered"
)

// ConnectionState is the connection machine's state.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
	ConnFailed       ConnectionState = "failed"
)

// jitterFn abstracts away the [lo,hi) random multiplier so backoff math
// stays testable without relying on real randomness.
type jitterFn func(lo, hi float64) float64

// ConnectionConfig parameterizes a Manager's retry and timing policy.
type ConnectionConfig struct {
	// DirectoryWSURL is the full dial target, including the per-agent
	// /agents/connect/{agent_id} path.
	DirectoryWSURL          string
	AuthToken               string
	MaxRegistrationAttempts int
	MaxReconnectAttempts    int
	BaseBackoff             time.Duration
	MaxReconnectBackoff     time.Duration
	PingInterval            time.Duration
	DialTimeout             time.Duration
}

// Manager owns the registration and connection state machines and the
// single websocket.Conn they share. It never multiplexes more than one
// live connection per agent process.
type Manager struct {
	cfg     ConnectionConfig
	bus     publisher
	logger  *slog.Logger
	jitter  jitterFn
	metrics *a2aotel.Metrics
	tracer  trace.Tracer

	mu             sync.Mutex
	regState       RegistrationState
	connState      ConnectionState
	conn           *websocket.Conn
	reconnecting   bool
	regAttempts    int
	reconnAttempts int
}

// WithMetrics attaches the registration/reconnect attempt counters. metrics
// may be nil, in which case the Manager records nothing.
func (m *Manager) WithMetrics(metrics *a2aotel.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithTracer attaches a tracer for registration and dial spans. tracer
// may be nil.
func (m *Manager) WithTracer(tracer trace.Tracer) *Manager {
	m.tracer = tracer
	return m
}

// publisher is the narrow slice of *bus.Bus.Publish this package depends
// on, so tests can stub it without a live Bus.
type publisher interface {
	Publish(topic string, payload interface{})
}

// NewManager builds a Manager in the initial UNREGISTERED/DISCONNECTED state.
func NewManager(cfg ConnectionConfig, b publisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRegistrationAttempts <= 0 {
		cfg.MaxRegistrationAttempts = 3
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxReconnectBackoff <= 0 {
		cfg.MaxReconnectBackoff = 30 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		bus:       b,
		logger:    logger,
		jitter:    defaultJitter,
		regState:  RegUnregistered,
		connState: ConnDisconnected,
	}
}

func defaultJitter(lo, hi float64) float64 {
	// time.Now().UnixNano() low bits as an entropy source avoids pulling
	// in math/rand for a single bounded float; good enough for spreading
	// reconnect storms, not for anything security-sensitive.
	n := time.Now().UnixNano()
	frac := float64(n%1000) / 1000.0
	return lo + frac*(hi-lo)
}

// RegistrationBackoff returns the delay before registration attempt n
// (1-indexed): base * 2^(n-1) * U[0.5,1.5].
func (m *Manager) RegistrationBackoff(n int) time.Duration {
	mult := math.Pow(2, float64(n-1))
	j := m.jitter(0.5, 1.5)
	return time.Duration(float64(m.cfg.BaseBackoff) * mult * j)
}

// ReconnectBackoff returns the delay before reconnect attempt n
// (1-indexed): base * 1.5^(n-1) * U[0.75,1.25], capped at MaxReconnectBackoff.
func (m *Manager) ReconnectBackoff(n int) time.Duration {
	mult := math.Pow(1.5, float64(n-1))
	j := m.jitter(0.75, 1.25)
	d := time.Duration(float64(m.cfg.BaseBackoff) * mult * j)
	if d > m.cfg.MaxReconnectBackoff {
		d = m.cfg.MaxReconnectBackoff
	}
	return d
}

// RegistrationState / ConnectionState return the current machine states.
func (m *Manager) RegistrationState() RegistrationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regState
}

func (m *Manager) ConnectionState() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connState
}

func (m *Manager) setRegState(s RegistrationState, attempt int) {
	m.mu.Lock()
	old := m.regState
	m.regState = s
	m.mu.Unlock()
	if old != s {
		m.bus.Publish(bus.TopicRegistrationStateChanged, bus.RegistrationStateChangedEvent{
			OldState: string(old), NewState: string(s), Attempt: attempt,
		})
	}
}

func (m *Manager) setConnState(s ConnectionState, attempt int) {
	m.mu.Lock()
	old := m.connState
	m.connState = s
	m.mu.Unlock()
	if old != s {
		m.bus.Publish(bus.TopicConnectionStateChanged, bus.ConnectionStateChangedEvent{
			OldState: string(old), NewState: string(s), Attempt: attempt,
		})
	}
}

// Register performs the HTTP registration handshake with the directory,
// retrying with backoff up to MaxRegistrationAttempts. A 409 response
// (agent_id already registered) is treated as success: it moves to
// REGISTERED just like a fresh 2xx so the caller proceeds straight to
// dialing the connection.
func (m *Manager) Register(ctx context.Context, registerFn func(ctx context.Context) (status int, err error)) error {
	if m.tracer != nil {
		var span trace.Span
		ctx, span = a2aotel.StartClientSpan(ctx, m.tracer, "directory.register")
		defer span.End()
	}
	m.setRegState(RegRegistering, 0)
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxRegistrationAttempts; attempt++ {
		if m.metrics != nil {
			m.metrics.RegistrationAttemptsTotal.Add(ctx, 1)
		}
		status, err := registerFn(ctx)
		if err == nil && status >= 200 && status < 300 {
			m.setRegState(RegRegistered, attempt)
			return nil
		}
		if status == http.StatusConflict {
			m.setRegState(RegRegistered, attempt)
			return nil
		}
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("registration failed with status %d", status)
		}
		m.logger.Warn("registration attempt failed", "attempt", attempt, "error", lastErr)
		if attempt < m.cfg.MaxRegistrationAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.RegistrationBackoff(attempt)):
			}
		}
	}
	m.setRegState(RegUnregistered, m.cfg.MaxRegistrationAttempts)
	return Wrap(KindTransient, "registration exhausted all attempts", lastErr)
}

// Dial opens the websocket to the directory's agent endpoint, presenting
// AuthToken as a bearer header. An auth failure (401/403) is fatal and
// never retried - it is reported as KindAuth so callers stop reconnect
// loops instead of spinning forever.
func (m *Manager) Dial(ctx context.Context) (*websocket.Conn, error) {
	if m.tracer != nil {
		var span trace.Span
		ctx, span = a2aotel.StartClientSpan(ctx, m.tracer, "directory.connect")
		defer span.End()
	}
	m.setConnState(ConnConnecting, 0)
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, m.cfg.DirectoryWSURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + strings.TrimSpace(m.cfg.AuthToken)},
		},
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			m.setConnState(ConnFailed, 0)
			return nil, Wrap(KindAuth, "directory rejected authentication", err)
		}
		m.setConnState(ConnDisconnected, 0)
		return nil, Wrap(KindTransient, "dial to directory failed", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.reconnAttempts = 0
	m.mu.Unlock()
	m.setConnState(ConnConnected, 0)
	return conn, nil
}

// Reconnect runs the reconnect loop: repeated Dial attempts with backoff,
// up to MaxReconnectAttempts, guarded by a single reconnecting flag so
// concurrent triggers (e.g. both a read error and a ping timeout) never
// start two overlapping loops.
func (m *Manager) Reconnect(ctx context.Context) (*websocket.Conn, error) {
	m.mu.Lock()
	if m.reconnecting {
		m.mu.Unlock()
		return nil, NewError(KindTransient, "reconnect already in progress")
	}
	m.reconnecting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	m.setConnState(ConnReconnecting, 0)
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxReconnectAttempts; attempt++ {
		m.mu.Lock()
		m.reconnAttempts = attempt
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.ReconnectAttemptsTotal.Add(ctx, 1)
		}
		m.bus.Publish(bus.TopicReconnectScheduled, bus.ConnectionStateChangedEvent{
			OldState: string(ConnReconnecting), NewState: string(ConnReconnecting), Attempt: attempt,
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.ReconnectBackoff(attempt)):
		}

		conn, err := m.Dial(ctx)
		if err == nil {
			return conn, nil
		}
		if KindOf(err) == KindAuth {
			return nil, err
		}
		lastErr = err
		m.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
	}

	m.setConnState(ConnFailed, m.cfg.MaxReconnectAttempts)
	m.bus.Publish(bus.TopicReconnectExhausted, bus.ConnectionStateChangedEvent{
		OldState: string(ConnReconnecting), NewState: string(ConnFailed), Attempt: m.cfg.MaxReconnectAttempts,
	})
	return nil, Wrap(KindTransient, "reconnect exhausted all attempts", lastErr)
}

// ReconnectAttempts returns the current reconnect attempt counter, reset
// to 0 on every successful Dial.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnAttempts
}

// Conn returns the currently held connection, if any.
func (m *Manager) Conn() *websocket.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Close tears down the current connection and moves to DISCONNECTED.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	m.setConnState(ConnDisconnected, 0)
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "agent shutting down")
}
