package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pin-relay/internal/automation"
	"pin-relay/internal/models"
)

// Source lists the requests waiting on the queue server
type Source interface {
	PendingRequests(ctx context.Context) ([]*models.PinRequest, error)
}

type RequestProcessor interface {
	Process(ctx context.Context, req *models.PinRequest) automation.Outcome
}

// Poller is the single worker that moves pending requests through the
// processor, one at a time.
type Poller struct {
	source    Source
	processor RequestProcessor
	interval  time.Duration
	logger    *zap.Logger
}

func New(source Source, processor RequestProcessor, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		source:    source,
		processor: processor,
		interval:  interval,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled. The next cycle starts interval after the
// previous one has fully finished, so cycles never overlap.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Polling queue server", zap.Duration("interval", p.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return nil
		case <-timer.C:
		}

		p.RunOnce(ctx)
		timer.Reset(p.interval)
	}
}

// RunOnce runs a single cycle and reports whether a request was processed
func (p *Poller) RunOnce(ctx context.Context) bool {
	pending, err := p.source.PendingRequests(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("Failed to fetch pending requests", zap.Error(err))
		}
		return false
	}
	if len(pending) == 0 {
		return false
	}

	req := pending[0]
	p.logger.Info("Pending request found",
		zap.String("request_id", req.ID),
		zap.Int("pending", len(pending)),
	)
	outcome := p.processor.Process(ctx, req)
	if !outcome.Success {
		p.logger.Warn("Request failed",
			zap.String("request_id", req.ID),
			zap.String("message", outcome.Message),
		)
	}
	return true
}
