package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pin-relay/internal/events"
	"pin-relay/internal/models"
	"pin-relay/internal/repository"
	"pin-relay/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidPIN       = errors.New("PIN must be exactly 4 digits")
	ErrRequestNotFound  = repository.ErrRequestNotFound
	ErrAlreadyProcessed = repository.ErrAlreadyProcessed
)

// QueueService holds the request lifecycle rules on top of a QueueStore
type QueueService struct {
	store     repository.QueueStore
	publisher events.Publisher
	logger    *zap.Logger
	nowFunc   func() time.Time
	idFunc    func() string
}

func NewQueueService(store repository.QueueStore, publisher events.Publisher, logger *zap.Logger) *QueueService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &QueueService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		nowFunc:   time.Now,
		idFunc:    uuid.NewString,
	}
}

// Submit validates and enqueues a new pending request
func (s *QueueService) Submit(ctx context.Context, pin, deviceName string) (*models.PinRequest, error) {
	if !util.IsFourDigitPIN(pin) {
		return nil, ErrInvalidPIN
	}

	req := &models.PinRequest{
		ID:         s.idFunc(),
		PIN:        pin,
		DeviceName: util.SanitizeDeviceName(deviceName),
		Status:     models.StatusPending,
		Timestamp:  s.nowFunc().UTC(),
	}

	if err := s.store.Append(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to enqueue request: %w", err)
	}

	s.logger.Info("PIN request queued",
		util.String("request_id", req.ID),
		util.String("device_name", req.DeviceName),
	)

	s.publish(ctx, events.TypeSubmitted, req)
	return req, nil
}

func (s *QueueService) ListPending(ctx context.Context) ([]*models.PinRequest, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return pending, nil
}

func (s *QueueService) GetRequest(ctx context.Context, id string) (*models.PinRequest, error) {
	return s.store.GetByID(ctx, id)
}

// MarkProcessed records the automation outcome for a pending request
func (s *QueueService) MarkProcessed(ctx context.Context, id string, success bool, message string) (*models.PinRequest, error) {
	req, err := s.store.MarkProcessed(ctx, id, success, message)
	if err != nil {
		return nil, err
	}

	s.logger.Info("PIN request processed",
		util.String("request_id", req.ID),
		util.String("status", string(req.Status)),
		util.String("message", req.Message),
	)

	s.publish(ctx, events.TypeProcessed, req)
	return req, nil
}

func (s *QueueService) HealthCheck(ctx context.Context) error {
	if err := s.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("queue store health check failed: %w", err)
	}
	return nil
}

func (s *QueueService) publish(ctx context.Context, eventType string, req *models.PinRequest) {
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, req, s.nowFunc())); err != nil {
		s.logger.Warn("Failed to publish request event",
			util.String("event_type", eventType),
			util.String("request_id", req.ID),
			util.ErrorField(err),
		)
	}
}
