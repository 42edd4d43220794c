package app

import (
	"context"
	"errors"
	"sync"

	"careerhub/internal/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.AuditEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type memoryProfileCache struct {
	mu      sync.Mutex
	entries map[uint]model.User
	getErr  error
	deletes int
}

func newMemoryProfileCache() *memoryProfileCache {
	return &memoryProfileCache{entries: map[uint]model.User{}}
}

func (c *memoryProfileCache) Get(_ context.Context, userID uint) (*model.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	u, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	return &u, true, nil
}

func (c *memoryProfileCache) Set(_ context.Context, user *model.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[user.ID] = *user
	return nil
}

func (c *memoryProfileCache) Delete(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, userID)
	return nil
}

var errBroker = errors.New("broker unavailable")
