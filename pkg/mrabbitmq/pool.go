package mrabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/varpsim/varp/pkg"
	"github.com/varpsim/varp/pkg/mlog"
)

// Conn is the slice of Client the pool needs to manage lifecycles. *Client
// implements it; tests substitute fakes.
type Conn interface {
	IsHealthy() bool
	Disconnect() error
}

// Factory creates a fresh, connected Conn for the pool.
type Factory func() (Conn, error)

// ClientFactory returns a Factory producing connected *Client instances.
func ClientFactory(cfg Config, logger mlog.Logger) Factory {
	return func() (Conn, error) {
		client := NewClient(cfg, logger)
		if err := client.Connect(); err != nil {
			return nil, err
		}

		return client, nil
	}
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	Size        int
	MaxOverflow int
	Timeout     time.Duration
	Recycle     time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Size <= 0 {
		c.Size = 10
	}

	if c.MaxOverflow < 0 {
		c.MaxOverflow = 0
	}

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	if c.Recycle <= 0 {
		c.Recycle = time.Hour
	}

	return c
}

// PooledConnection wraps a Conn with the bookkeeping the pool needs to
// recycle it.
type PooledConnection struct {
	Conn

	createdAt time.Time
	lastUsed  time.Time
	useCount  int64
	overflow  bool
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	Created             int64 `json:"created"`
	Reused              int64 `json:"reused"`
	Recycled            int64 `json:"recycled"`
	HealthCheckFailures int64 `json:"health_check_failures"`
	Idle                int   `json:"idle"`
	InUse               int   `json:"in_use"`
	Overflow            int   `json:"overflow"`
}

// Pool keeps a fixed set of broker connections plus a bounded overflow for
// demand spikes. Overflow connections are a surge valve: they are closed on
// release instead of joining the idle set.
type Pool struct {
	cfg     PoolConfig
	factory Factory
	logger  mlog.Logger

	idle chan *PooledConnection

	mu            sync.Mutex
	overflowCount int
	inUse         int
	created       int64
	reused        int64
	recycled      int64
	healthFailed  int64
	closed        bool
}

// NewPool initializes the pool and preallocates up to cfg.Size connections.
// A failed preallocation is logged and the pool continues with fewer idle
// connections; the missing ones are not created later. Once the idle set is
// empty, Acquire serves from the overflow budget or waits.
func NewPool(cfg PoolConfig, factory Factory, logger mlog.Logger) *Pool {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	cfg = cfg.withDefaults()

	p := &Pool{
		cfg:     cfg,
		factory: factory,
		logger:  logger,
		idle:    make(chan *PooledConnection, cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		conn, err := factory()
		if err != nil {
			logger.Warnf("Could not create initial pool connection %d/%d: %v. Pool continues with %d connections",
				i+1, cfg.Size, err, i)

			break
		}

		p.mu.Lock()
		p.created++
		p.mu.Unlock()

		p.idle <- p.wrap(conn, false)
	}

	logger.Infof("Connection pool initialized: size=%d, max_overflow=%d, recycle=%s",
		cfg.Size, cfg.MaxOverflow, cfg.Recycle)

	return p
}

func (p *Pool) wrap(conn Conn, overflow bool) *PooledConnection {
	return &PooledConnection{
		Conn:      conn,
		createdAt: time.Now(),
		overflow:  overflow,
	}
}

// Acquire takes a healthy connection from the pool, creating an overflow
// connection when the pool is exhausted and the overflow budget allows it,
// and otherwise blocking up to the pool timeout.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	var pc *PooledConnection

	select {
	case pc = <-p.idle:
	default:
	}

	if pc == nil {
		p.mu.Lock()
		if p.overflowCount < p.cfg.MaxOverflow {
			p.overflowCount++
			p.mu.Unlock()

			conn, err := p.factory()
			if err != nil {
				p.mu.Lock()
				p.overflowCount--
				p.mu.Unlock()

				return nil, pkg.WrapBrokerError("pool acquire", err)
			}

			p.mu.Lock()
			p.created++
			p.mu.Unlock()

			p.logger.Debugf("Created overflow connection (%d/%d)", p.overflowCurrent(), p.cfg.MaxOverflow)

			pc = p.wrap(conn, true)
		} else {
			p.mu.Unlock()

			p.logger.Debugf("Pool and overflow exhausted, waiting up to %s", p.cfg.Timeout)

			select {
			case pc = <-p.idle:
			case <-time.After(p.cfg.Timeout):
				return nil, pkg.NewBrokerError("pool acquire", "timeout waiting for connection from pool")
			case <-ctx.Done():
				return nil, pkg.WrapBrokerError("pool acquire", ctx.Err())
			}
		}
	}

	if !pc.overflow && time.Since(pc.createdAt) > p.cfg.Recycle {
		p.logger.Debug("Recycling old connection")

		_ = pc.Disconnect()

		fresh, err := p.replace(pc)
		if err != nil {
			return nil, err
		}

		pc = fresh

		p.mu.Lock()
		p.recycled++
		p.mu.Unlock()
	}

	if !pc.IsHealthy() {
		p.logger.Warn("Connection unhealthy, recreating")

		p.mu.Lock()
		p.healthFailed++
		p.mu.Unlock()

		_ = pc.Disconnect()

		fresh, err := p.replace(pc)
		if err != nil {
			return nil, err
		}

		pc = fresh
	}

	pc.lastUsed = time.Now()
	pc.useCount++

	p.mu.Lock()
	p.inUse++
	p.reused++
	p.mu.Unlock()

	return pc, nil
}

func (p *Pool) replace(old *PooledConnection) (*PooledConnection, error) {
	conn, err := p.factory()
	if err != nil {
		// The dead connection goes back to the idle set (an overflow one
		// frees its overflow slot) so a later acquire retries the
		// replacement; surface the failure so the caller can back off.
		if old.overflow {
			p.mu.Lock()
			p.overflowCount--
			p.mu.Unlock()
		} else {
			select {
			case p.idle <- old:
			default:
			}
		}

		return nil, pkg.WrapBrokerError("pool replace", err)
	}

	p.mu.Lock()
	p.created++
	p.mu.Unlock()

	return p.wrap(conn, old.overflow), nil
}

// Release returns a connection to the pool. Overflow connections are closed;
// pool connections rejoin the idle set, or are closed when the set is full.
func (p *Pool) Release(pc *PooledConnection) {
	if pc == nil {
		return
	}

	p.mu.Lock()
	p.inUse--
	closed := p.closed

	if pc.overflow {
		p.overflowCount--
		p.mu.Unlock()

		if err := pc.Disconnect(); err != nil {
			p.logger.Warnf("Error closing overflow connection: %v", err)
		}

		return
	}
	p.mu.Unlock()

	if closed {
		_ = pc.Disconnect()

		return
	}

	select {
	case p.idle <- pc:
	default:
		p.logger.Debug("Idle set full, closing returned connection")

		_ = pc.Disconnect()
	}
}

// WithConnection runs fn with an acquired connection, guaranteeing release on
// every exit path.
func (p *Pool) WithConnection(ctx context.Context, fn func(Conn) error) error {
	pc, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(pc)

	return fn(pc.Conn)
}

// WithClient is WithConnection for pools backed by ClientFactory.
func (p *Pool) WithClient(ctx context.Context, fn func(*Client) error) error {
	return p.WithConnection(ctx, func(conn Conn) error {
		client, ok := conn.(*Client)
		if !ok {
			return pkg.NewBrokerError("pool", "pooled connection is not a broker client")
		}

		return fn(client)
	})
}

// Close disconnects every idle connection. In-flight connections are closed
// as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	closed := 0

	for {
		select {
		case pc := <-p.idle:
			if err := pc.Disconnect(); err != nil {
				p.logger.Warnf("Error closing connection: %v", err)
			}

			closed++
		default:
			p.logger.Infof("Pool closed: %d connections closed", closed)

			return
		}
	}
}

func (p *Pool) overflowCurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.overflowCount
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Created:             p.created,
		Reused:              p.reused,
		Recycled:            p.recycled,
		HealthCheckFailures: p.healthFailed,
		Idle:                len(p.idle),
		InUse:               p.inUse,
		Overflow:            p.overflowCount,
	}
}
