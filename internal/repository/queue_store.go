package repository

import (
	"context"
	"errors"

	"pin-relay/internal/models"
)

var (
	ErrRequestNotFound  = errors.New("request not found")
	ErrAlreadyProcessed = errors.New("request already processed")
)

// QueueStore owns PinRequest records for their whole lifetime. Implementations
// hand out copies; callers never mutate stored records directly.
type QueueStore interface {
	Append(ctx context.Context, req *models.PinRequest) error
	// ListPending returns pending requests in insertion order.
	ListPending(ctx context.Context) ([]*models.PinRequest, error)
	GetByID(ctx context.Context, id string) (*models.PinRequest, error)
	// MarkProcessed moves a pending request to completed or failed exactly once.
	MarkProcessed(ctx context.Context, id string, success bool, message string) (*models.PinRequest, error)
	HealthCheck(ctx context.Context) error
}
