package webhook

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hubnet/metrics"
)

type pooled struct {
	client Client
	used   bool
}

// Pool hands out one reusable client per webhook URL. A periodic sweep closes
// clients that were not used since the previous sweep.
type Pool struct {
	factory  Factory
	interval time.Duration

	mu      sync.Mutex
	clients map[string]*pooled

	stop chan struct{}
	done chan struct{}
}

// NewPool builds an idle pool. Call Start to begin sweeping.
func NewPool(factory Factory, sweepEvery time.Duration) *Pool {
	return &Pool{
		factory:  factory,
		interval: sweepEvery,
		clients:  make(map[string]*pooled),
	}
}

// Get returns the client for url, creating it on first use.
func (p *Pool) Get(url string) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.clients[url]; ok {
		e.used = true
		return e.client, nil
	}
	c, err := p.factory(url)
	if err != nil {
		return nil, err
	}
	p.clients[url] = &pooled{client: c, used: true}
	metrics.PooledWebhooks.Set(float64(len(p.clients)))
	return c, nil
}

// Evict closes and drops the client for url.
func (p *Pool) Evict(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.clients[url]; ok {
		e.client.Close()
		delete(p.clients, url)
		metrics.PooledWebhooks.Set(float64(len(p.clients)))
	}
}

// Len reports how many clients are pooled.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Sweep closes every client not used since the last sweep and returns how
// many were closed.
func (p *Pool) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	closed := 0
	for url, e := range p.clients {
		if e.used {
			e.used = false
			continue
		}
		e.client.Close()
		delete(p.clients, url)
		closed++
	}
	metrics.PooledWebhooks.Set(float64(len(p.clients)))
	return closed
}

// Start runs the idle sweep until Stop.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stop, p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := p.Sweep(); n > 0 {
					log.Debug().Int("closed", n).Msg("swept idle webhook clients")
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop ends the sweep and closes every client.
func (p *Pool) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for url, e := range p.clients {
		e.client.Close()
		delete(p.clients, url)
	}
	metrics.PooledWebhooks.Set(0)
}
