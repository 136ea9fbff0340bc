package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Tutortoise/pose-metrics-service/detections"
	"github.com/Tutortoise/pose-metrics-service/logging"
)

const (
	// DefaultPoolSize Pool configuration
	DefaultPoolSize   = 4
	AcquireTimeout    = 5 * time.Second
	HealthCheckPeriod = 60 * time.Second
)

var (
	ErrPoolClosed     = errors.New("pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

type sessionFactory func() (*detections.PoseSession, error)

type PoseSessionPool struct {
	sessions       chan *detections.PoseSession
	size           int
	newSession     sessionFactory
	acquireTimeout time.Duration
	mu             sync.Mutex
	closed         bool
	stop           chan struct{}
	metrics        *PoolMetrics
}

type PoolMetrics struct {
	mu              sync.RWMutex
	InUse           int
	TotalAcquired   int64
	TotalReleased   int64
	AcquireFailures int64
	WaitTime        time.Duration

	// ReplenishFailures counts sessions the health check could not recreate.
	ReplenishFailures int64
	LastError         string
}

func NewPoseSessionPool(newSession sessionFactory, size int) (*PoseSessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &PoseSessionPool{
		sessions:       make(chan *detections.PoseSession, size),
		size:           size,
		newSession:     newSession,
		acquireTimeout: AcquireTimeout,
		stop:           make(chan struct{}),
		metrics:        &PoolMetrics{},
	}

	// Initialize sessions
	for i := 0; i < size; i++ {
		session, err := newSession()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	go pool.healthCheck(HealthCheckPeriod)

	return pool, nil
}

func (p *PoseSessionPool) Acquire(ctx context.Context) (*detections.PoseSession, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.WaitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.AcquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *PoseSessionPool) Release(session *detections.PoseSession) {
	p.metrics.mu.Lock()
	p.metrics.InUse--
	p.metrics.TotalReleased++
	p.metrics.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		session.Destroy()
		return
	}
	select {
	case p.sessions <- session:
	default:
		session.Destroy()
	}
}

func (p *PoseSessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.stop)
	close(p.sessions)

	// Destroy all idle sessions; busy ones are destroyed on release
	for session := range p.sessions {
		session.Destroy()
	}
}

func (p *PoseSessionPool) Size() int {
	return p.size
}

func (p *PoseSessionPool) healthCheck(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.replenish()
		}
	}
}

// replenish recreates sessions lost to failed releases so that idle plus
// busy sessions add up to the pool size again.
func (p *PoseSessionPool) replenish() {
	p.metrics.mu.RLock()
	inUse := p.metrics.InUse
	p.metrics.mu.RUnlock()

	p.mu.Lock()
	missing := p.size - len(p.sessions) - inUse
	p.mu.Unlock()

	for i := 0; i < missing; i++ {
		session, err := p.newSession()
		if err != nil {
			p.recordError(err)
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			session.Destroy()
			return
		}
		select {
		case p.sessions <- session:
		default:
			// A release raced us and the pool is already full.
			session.Destroy()
		}
		p.mu.Unlock()
	}
}

func (p *PoseSessionPool) recordError(err error) {
	logging.Warn(logging.Fields{"error": err.Error()}, "failed to replenish pose session")

	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.ReplenishFailures++
	p.metrics.LastError = err.Error()
}

// Discard drops a session that failed mid-request instead of returning
// it; the health check replaces it later.
func (p *PoseSessionPool) Discard(session *detections.PoseSession) {
	p.metrics.mu.Lock()
	p.metrics.InUse--
	p.metrics.mu.Unlock()
	session.Destroy()
}

// PoolStats is a point-in-time copy of PoolMetrics.
type PoolStats struct {
	InUse             int
	TotalAcquired     int64
	TotalReleased     int64
	AcquireFailures   int64
	WaitTime          time.Duration
	ReplenishFailures int64
	LastError         string
}

func (p *PoseSessionPool) GetMetrics() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolStats{
		InUse:             p.metrics.InUse,
		TotalAcquired:     p.metrics.TotalAcquired,
		TotalReleased:     p.metrics.TotalReleased,
		AcquireFailures:   p.metrics.AcquireFailures,
		WaitTime:          p.metrics.WaitTime,
		ReplenishFailures: p.metrics.ReplenishFailures,
		LastError:         p.metrics.LastError,
	}
}
