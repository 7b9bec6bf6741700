package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pin-relay/internal/models"
	"pin-relay/internal/repository"
)

// QueueStore keeps requests in process memory; everything is lost on restart.
type QueueStore struct {
	mu      sync.RWMutex
	order   []*models.PinRequest
	byID    map[string]*models.PinRequest
	nowFunc func() time.Time
}

func NewQueueStore() *QueueStore {
	return &QueueStore{
		byID:    make(map[string]*models.PinRequest),
		nowFunc: time.Now,
	}
}

func (s *QueueStore) Append(ctx context.Context, req *models.PinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}

	stored := req.Clone()
	s.order = append(s.order, stored)
	s.byID[stored.ID] = stored
	return nil
}

func (s *QueueStore) ListPending(ctx context.Context) ([]*models.PinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*models.PinRequest, 0)
	for _, req := range s.order {
		if req.IsPending() {
			pending = append(pending, req.Clone())
		}
	}
	return pending, nil
}

func (s *QueueStore) GetByID(ctx context.Context, id string) (*models.PinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	return req.Clone(), nil
}

func (s *QueueStore) MarkProcessed(ctx context.Context, id string, success bool, message string) (*models.PinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	if !req.IsPending() {
		return nil, repository.ErrAlreadyProcessed
	}

	now := s.nowFunc().UTC()
	req.Status = models.StatusFor(success)
	req.ProcessedAt = &now
	req.Message = message
	return req.Clone(), nil
}

func (s *QueueStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Len returns the total number of stored requests, processed ones included
func (s *QueueStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
