package service

import (
	"pin-relay/internal/events"
	"pin-relay/internal/repository"

	"go.uber.org/zap"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	store        repository.QueueStore
	publisher    events.Publisher
	logger       *zap.Logger
	queueService *QueueService
}

func NewServiceFactory(store repository.QueueStore, publisher events.Publisher, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// QueueService returns the queue service instance (singleton)
func (f *ServiceFactory) QueueService() *QueueService {
	if f.queueService == nil {
		f.queueService = NewQueueService(f.store, f.publisher, f.logger)
	}
	return f.queueService
}
