// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

type fakeStore struct {
	mu         sync.Mutex
	ready      []string
	claimErr   error
	succeedErr error
	succeeded  map[string][]byte
	failed     map[string]string
}

func newFakeStore(ready ...string) *fakeStore {
	return &fakeStore{
		ready:     ready,
		succeeded: map[string][]byte{},
		failed:    map[string]string{},
	}
}

func (s *fakeStore) Claim() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return "", false, s.claimErr
	}
	if len(s.ready) == 0 {
		return "", false, nil
	}
	p := s.ready[0]
	s.ready = s.ready[1:]
	return p, true, nil
}

func (s *fakeStore) Succeed(origin string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.succeedErr != nil {
		return s.succeedErr
	}
	s.succeeded[origin] = payload
	return nil
}

func (s *fakeStore) Fail(origin, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[origin] = code
}

func (s *fakeStore) failure(origin string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.failed[origin]
	return code, ok
}

func (s *fakeStore) success(origin string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.succeeded[origin]
	return p, ok
}

type fakeConverter struct {
	mu        sync.Mutex
	createErr error
	nextID    int
	created   []string
	statuses  []types.LocalStatus
	statusErr error
	queries   int
	outcome   types.Outcome
	deleted   []string
}

var errTransport = errors.New("connection refused")

func (c *fakeConverter) CreateTask(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.nextID++
	c.created = append(c.created, path)
	return strconv.Itoa(c.nextID), nil
}

// Status answers from the scripted statuses, repeating the last one.
func (c *fakeConverter) Status(ctx context.Context, taskID string) (types.LocalStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries++
	if c.statusErr != nil {
		return "", c.statusErr
	}
	if len(c.statuses) == 0 {
		return types.StatusPending, nil
	}
	s := c.statuses[0]
	if len(c.statuses) > 1 {
		c.statuses = c.statuses[1:]
	}
	return s, nil
}

func (c *fakeConverter) Result(ctx context.Context, taskID string) types.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

func (c *fakeConverter) DeleteTask(ctx context.Context, taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, taskID)
}
