// Package pool keeps initialized Z39.50 sessions per target so repeated
// searches skip the connect and init round trips.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/yourusername/lihee-search/pkg/z3950"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("pool: closed")

type Config struct {
	MaxIdle     int           // idle sessions kept per target
	IdleTimeout time.Duration // idle sessions older than this are closed
}

var DefaultConfig = Config{
	MaxIdle:     5,
	IdleTimeout: 5 * time.Minute,
}

type idleClient struct {
	client   *z3950.Client
	lastUsed time.Time
}

// Pool is safe for concurrent use.
type Pool struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	idle   map[string][]idleClient // key: host:port
	closed bool

	stop chan struct{}
	done chan struct{}
}

// New starts a pool with a background sweeper for expired sessions.
func New(cfg Config, logger *slog.Logger) *Pool {
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = DefaultConfig.MaxIdle
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig.IdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		config: cfg,
		logger: logger,
		idle:   make(map[string][]idleClient),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.cleanupLoop(cleanupInterval(cfg.IdleTimeout))
	return p
}

func cleanupInterval(idle time.Duration) time.Duration {
	if iv := idle / 2; iv < time.Minute {
		return max(iv, 10*time.Millisecond)
	}
	return time.Minute
}

func key(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Get returns an idle session for the target or dials and initializes a
// new one.
func (p *Pool) Get(ctx context.Context, host string, port int) (*z3950.Client, error) {
	k := key(host, port)
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		conns := p.idle[k]
		if len(conns) == 0 {
			p.mu.Unlock()
			break
		}
		ic := conns[len(conns)-1]
		p.idle[k] = conns[:len(conns)-1]
		p.mu.Unlock()

		if time.Since(ic.lastUsed) > p.config.IdleTimeout || !ic.client.Healthy() {
			p.logger.Debug("pool: dropping stale session", "target", k)
			ic.client.Close()
			continue
		}
		p.logger.Debug("pool: hit", "target", k)
		return ic.client, nil
	}

	p.logger.Debug("pool: miss, dialing", "target", k)
	client := z3950.NewClient(host, port)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Put returns a session to the pool. Broken sessions and sessions beyond
// MaxIdle are closed.
func (p *Pool) Put(client *z3950.Client) {
	if client == nil {
		return
	}
	if !client.Healthy() {
		client.Close()
		return
	}

	k := client.Addr()
	p.mu.Lock()
	if p.closed || len(p.idle[k]) >= p.config.MaxIdle {
		p.mu.Unlock()
		client.Close()
		return
	}
	p.idle[k] = append(p.idle[k], idleClient{client: client, lastUsed: time.Now()})
	p.mu.Unlock()
}

// Idle is the number of idle sessions held for the target.
func (p *Pool) Idle(host string, port int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[key(host, port)])
}

// Close stops the sweeper and closes every idle session.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = make(map[string][]idleClient)
	p.mu.Unlock()

	close(p.stop)
	<-p.done
	for _, conns := range idle {
		for _, ic := range conns {
			ic.client.Close()
		}
	}
}

func (p *Pool) cleanupLoop(interval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pool) sweep() {
	now := time.Now()
	var expired []*z3950.Client

	p.mu.Lock()
	for k, conns := range p.idle {
		valid := conns[:0]
		for _, ic := range conns {
			if now.Sub(ic.lastUsed) <= p.config.IdleTimeout {
				valid = append(valid, ic)
			} else {
				expired = append(expired, ic.client)
			}
		}
		if len(valid) == 0 {
			delete(p.idle, k)
		} else {
			p.idle[k] = valid
		}
	}
	p.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
}
