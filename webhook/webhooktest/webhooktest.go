// Package webhooktest provides an in-memory webhook pool for tests.
package webhooktest

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"hubnet/webhook"
)

var nextID atomic.Int64

// Client records every call made through it. Errors set on it are returned
// by the matching call.
type Client struct {
	URL string

	mu        sync.Mutex
	sendErr   error
	editErr   error
	deleteErr error
	onSend    func(ctx context.Context) error
	onDelete  func()
	sent      []webhook.Payload
	edited    map[string]webhook.Payload
	deleted   []string
	targets   []webhook.Target
	closed    bool
}

func (c *Client) FailSend(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *Client) FailEdit(err error) {
	c.mu.Lock()
	c.editErr = err
	c.mu.Unlock()
}

func (c *Client) FailDelete(err error) {
	c.mu.Lock()
	c.deleteErr = err
	c.mu.Unlock()
}

// OnSend runs fn at the start of every Send. A non-nil error from fn is
// returned by Send and nothing is recorded.
func (c *Client) OnSend(fn func(ctx context.Context) error) {
	c.mu.Lock()
	c.onSend = fn
	c.mu.Unlock()
}

// OnDelete runs fn at the start of every Delete, before the result is
// decided. Tests use it to hold a delete in flight.
func (c *Client) OnDelete(fn func()) {
	c.mu.Lock()
	c.onDelete = fn
	c.mu.Unlock()
}

func (c *Client) Send(ctx context.Context, to webhook.Target, p webhook.Payload) (string, error) {
	c.mu.Lock()
	hook := c.onSend
	c.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, p)
	c.targets = append(c.targets, to)
	return strconv.FormatInt(900000+nextID.Add(1), 10), nil
}

func (c *Client) Edit(_ context.Context, _ webhook.Target, messageID string, p webhook.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editErr != nil {
		return c.editErr
	}
	if c.edited == nil {
		c.edited = make(map[string]webhook.Payload)
	}
	c.edited[messageID] = p
	return nil
}

func (c *Client) Delete(_ context.Context, _ webhook.Target, messageID string) error {
	c.mu.Lock()
	hook := c.onDelete
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Sent returns the payloads delivered so far.
func (c *Client) Sent() []webhook.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webhook.Payload(nil), c.sent...)
}

// Targets returns the addressing used for each Send.
func (c *Client) Targets() []webhook.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webhook.Target(nil), c.targets...)
}

// Edited returns the latest payload pushed to messageID.
func (c *Client) Edited(messageID string) (webhook.Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.edited[messageID]
	return p, ok
}

func (c *Client) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// Pool hands out one Client per URL.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewPool() *Pool {
	return &Pool{clients: make(map[string]*Client)}
}

// Client returns the client for url, creating it if needed.
func (p *Pool) Client(url string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[url]
	if !ok {
		c = &Client{URL: url}
		p.clients[url] = c
	}
	return c
}

func (p *Pool) Get(url string) (webhook.Client, error) {
	return p.Client(url), nil
}

// Factory adapts the pool to webhook.NewPool.
func (p *Pool) Factory() webhook.Factory {
	return p.Get
}
