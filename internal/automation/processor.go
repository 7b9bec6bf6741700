package automation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"pin-relay/internal/browser"
	"pin-relay/internal/models"
	"pin-relay/internal/notify"
)

// Sessions hands out the shared browser
type Sessions interface {
	Acquire(ctx context.Context) (browser.Browser, error)
}

// Reporter records the outcome of a request with the queue server
type Reporter interface {
	MarkProcessed(ctx context.Context, requestID string, success bool, message string) error
}

type Outcome struct {
	Success bool
	Message string
}

type ProcessorConfig struct {
	TargetURL     string
	FormSelector  string
	ScreenshotDir string
}

type ProcessorTiming struct {
	NavigationIdle time.Duration
	FormWait       time.Duration
	SubmitGrace    time.Duration
	ReportTimeout  time.Duration
}

var DefaultProcessorTiming = ProcessorTiming{
	NavigationIdle: 30 * time.Second,
	FormWait:       10 * time.Second,
	SubmitGrace:    3 * time.Second,
	ReportTimeout:  10 * time.Second,
}

// Processor drives one PinRequest through the target page
type Processor struct {
	sessions Sessions
	locator  *Locator
	gate     *LoginGate
	reporter Reporter
	notifier notify.Notifier
	cfg      ProcessorConfig
	timing   ProcessorTiming
	logger   *zap.Logger
}

func NewProcessor(
	sessions Sessions,
	locator *Locator,
	gate *LoginGate,
	reporter Reporter,
	notifier notify.Notifier,
	cfg ProcessorConfig,
	timing ProcessorTiming,
	logger *zap.Logger,
) *Processor {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Processor{
		sessions: sessions,
		locator:  locator,
		gate:     gate,
		reporter: reporter,
		notifier: notifier,
		cfg:      cfg,
		timing:   timing,
		logger:   logger,
	}
}

// Process runs the request and reports the outcome. It never fails: every
// step error, panics included, ends up in the returned Outcome.
func (p *Processor) Process(ctx context.Context, req *models.PinRequest) (outcome Outcome) {
	log := p.logger.With(zap.String("request_id", req.ID))
	start := time.Now()
	log.Info("Processing PIN request", zap.String("device_name", req.DeviceName))

	var page browser.Page
	defer func() {
		if r := recover(); r != nil {
			log.Error("Request processing panicked", zap.Any("panic", r))
			outcome = Outcome{Success: false, Message: fmt.Sprintf("Unexpected error: %v", r)}
		}
		p.report(ctx, req, outcome, log)
		if page != nil {
			if err := page.Close(); err != nil {
				log.Debug("Page close failed", zap.Error(err))
			}
		}
		log.Info("Request processed",
			zap.Bool("success", outcome.Success),
			zap.String("message", outcome.Message),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	return p.run(ctx, req, &page, log)
}

// run leaves the opened page in *opened so Process can close it after reporting
func (p *Processor) run(ctx context.Context, req *models.PinRequest, opened *browser.Page, log *zap.Logger) Outcome {
	b, err := p.sessions.Acquire(ctx)
	if err != nil {
		log.Error("Browser unavailable", zap.Error(err))
		return Outcome{Message: "Browser unavailable: " + err.Error()}
	}

	page, err := b.NewPage(ctx)
	if err != nil {
		log.Error("Could not open page", zap.Error(err))
		return Outcome{Message: "Could not open page: " + err.Error()}
	}
	*opened = page

	if err := page.Goto(ctx, p.cfg.TargetURL); err != nil {
		log.Warn("Navigation reported an error, continuing", zap.String("url", p.cfg.TargetURL), zap.Error(err))
	}
	if err := page.WaitForNetworkIdle(ctx, p.timing.NavigationIdle); err != nil {
		log.Warn("Network did not settle after navigation", zap.Error(err))
	}

	gate := p.gate.Handle(ctx, page)
	log.Debug("Login gate finished", zap.Stringer("result", gate))

	if err := page.WaitForSelector(ctx, p.cfg.FormSelector, p.timing.FormWait); err != nil {
		log.Warn("Form container not found, continuing", zap.String("selector", p.cfg.FormSelector), zap.Error(err))
	}

	pinEntered := p.locator.LocateAndAct(ctx, page, RolePIN, ActionFill, req.PIN)
	if !pinEntered {
		log.Warn("PIN could not be entered")
	}

	if req.DeviceName != "" {
		if !p.locator.LocateAndAct(ctx, page, RoleDeviceName, ActionFill, req.DeviceName) {
			log.Warn("Device name could not be entered")
		}
	}

	submitted := p.locator.LocateAndAct(ctx, page, RoleSubmit, ActionClick, "")
	if !submitted {
		log.Warn("Submit could not be confirmed")
	}

	_ = sleep(ctx, p.timing.SubmitGrace)
	p.screenshot(ctx, page, req.ID, log)

	switch {
	case !pinEntered:
		return Outcome{Message: "PIN field could not be filled"}
	case !submitted:
		return Outcome{Message: "PIN entered but the form could not be submitted"}
	}

	if err := p.notifier.Notify("PIN sent", describeRequest(req)); err != nil {
		log.Debug("Desktop notification failed", zap.Error(err))
	}
	return Outcome{Success: true, Message: "PIN submitted successfully"}
}

func (p *Processor) screenshot(ctx context.Context, page browser.Page, id string, log *zap.Logger) {
	if p.cfg.ScreenshotDir == "" {
		return
	}
	path := filepath.Join(p.cfg.ScreenshotDir, "screenshot-"+id+".png")
	if err := page.Screenshot(ctx, path); err != nil {
		log.Warn("Screenshot failed", zap.Error(err))
		return
	}
	log.Debug("Screenshot saved", zap.String("path", path))
}

func (p *Processor) report(ctx context.Context, req *models.PinRequest, outcome Outcome, log *zap.Logger) {
	if ctx.Err() != nil {
		log.Warn("Processing interrupted, request stays pending")
		return
	}
	rctx, cancel := context.WithTimeout(ctx, p.timing.ReportTimeout)
	defer cancel()

	if err := p.reporter.MarkProcessed(rctx, req.ID, outcome.Success, outcome.Message); err != nil {
		log.Error("Failed to report outcome to queue server", zap.Error(err))
	}
}

func describeRequest(req *models.PinRequest) string {
	if req.DeviceName != "" {
		return fmt.Sprintf("PIN sent for %s", req.DeviceName)
	}
	return "PIN sent"
}
