package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Observer receives the outcome of every node call made through a Session.
type Observer interface {
	ObserveCall(op string, err error, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveCall(string, error, time.Duration) {}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxIdle keeps up to n healthy connections open between operations.
// Zero, the default, closes each connection when its operation ends.
func WithMaxIdle(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.idle = make(chan Conn, n)
		}
	}
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithObserver reports node call latency and failures to o.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithDialRetry makes a failed dial or handshake retry up to attempts
// times in total, waiting delay, then 2*delay and so on between tries.
func WithDialRetry(attempts int, delay time.Duration) Option {
	return func(g *Gateway) {
		if attempts > 0 {
			g.dialAttempts = attempts
			g.retryDelay = delay
		}
	}
}

// Gateway scopes ledger work to an acquired connection. Every call to Do
// acquires a connection, hands it to the callback wrapped in a Session
// and releases it on every exit path. A connection that returned an
// error or panicked is closed instead of being reused.
type Gateway struct {
	dialer   Dialer
	log      *slog.Logger
	observer Observer
	idle     chan Conn

	dialAttempts int
	retryDelay   time.Duration

	mu     sync.Mutex
	closed bool
}

// NewGateway returns a Gateway dialing through d.
func NewGateway(d Dialer, opts ...Option) *Gateway {
	g := &Gateway{
		dialer:       d,
		log:          slog.Default(),
		observer:     noopObserver{},
		dialAttempts: 1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do runs fn with a Session bound to one node connection.
func (g *Gateway) Do(ctx context.Context, fn func(*Session) error) error {
	conn, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	healthy := false
	defer func() {
		if healthy {
			g.release(conn)
		} else {
			g.discard(conn)
		}
	}()

	err = fn(&Session{conn: conn, observer: g.observer, log: g.log})
	healthy = err == nil
	return err
}

// Close closes every idle connection. Operations already running finish
// normally and close their connection on release.
func (g *Gateway) Close() error {
	g.mu.Lock()
	g.closed = true
	var drained []Conn
drain:
	for g.idle != nil {
		select {
		case conn := <-g.idle:
			drained = append(drained, conn)
		default:
			break drain
		}
	}
	g.mu.Unlock()

	var errs []error
	for _, conn := range drained {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) acquire(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if g.idle != nil {
		select {
		case conn := <-g.idle:
			return conn, nil
		default:
		}
	}
	return g.connectWithRetry(ctx)
}

func (g *Gateway) connectWithRetry(ctx context.Context) (Conn, error) {
	var lastErr error
	for attempt := 0; attempt < g.dialAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrConnection, ctx.Err())
			case <-time.After(time.Duration(attempt) * g.retryDelay):
			}
		}
		conn, err := g.connect(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		g.log.Warn("ledger connect failed", "attempt", attempt+1, "of", g.dialAttempts, "err", err)
	}
	return nil, lastErr
}

// connect dials a fresh connection and fetches the chain identity, which
// doubles as the handshake check.
func (g *Gateway) connect(ctx context.Context) (Conn, error) {
	start := time.Now()
	conn, err := g.dialer.Dial(ctx)
	if err != nil {
		g.observer.ObserveCall("dial", err, time.Since(start))
		return nil, wrap(ErrConnection, "dial", err)
	}
	info, err := conn.ChainInfo(ctx)
	g.observer.ObserveCall("dial", err, time.Since(start))
	if err != nil {
		conn.Close()
		return nil, wrap(ErrConnection, "chain info", err)
	}
	g.log.Info("connected to chain",
		"chain", info.Chain,
		"node", info.NodeName,
		"version", info.NodeVersion,
	)
	return conn, nil
}

func (g *Gateway) release(conn Conn) {
	g.mu.Lock()
	if !g.closed && g.idle != nil {
		select {
		case g.idle <- conn:
			g.mu.Unlock()
			return
		default:
		}
	}
	g.mu.Unlock()
	g.discard(conn)
}

func (g *Gateway) discard(conn Conn) {
	if err := conn.Close(); err != nil {
		g.log.Warn("close ledger connection", "err", err)
	}
}

// wrap tags err with sentinel unless it already carries it.
func wrap(sentinel error, op string, err error) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}
