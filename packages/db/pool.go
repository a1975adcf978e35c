package db

import (
	"context"
	"errors"
	"sync"
)

// Pool shares one Client per connection string across the steps of a run.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewPool() *Pool {
	return &Pool{clients: make(map[string]*Client)}
}

// Get returns the client for dsn, connecting on first use.
func (p *Pool) Get(ctx context.Context, dsn string) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[dsn]; ok {
		return c, nil
	}
	c, err := NewClient(ctx, dsn)
	if err != nil {
		return nil, err
	}
	p.clients[dsn] = c
	return c, nil
}

// Close closes every client in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for dsn, c := range p.clients {
		errs = append(errs, c.Close())
		delete(p.clients, dsn)
	}
	return errors.Join(errs...)
}
