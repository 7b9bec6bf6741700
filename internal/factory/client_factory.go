package factory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pin-relay/internal/automation"
	"pin-relay/internal/browser"
	"pin-relay/internal/browser/pwdriver"
	"pin-relay/internal/browser/roddriver"
	"pin-relay/internal/config"
	"pin-relay/internal/notify"
	"pin-relay/internal/poller"
	"pin-relay/internal/queueclient"
	"pin-relay/internal/util"
)

const errorNotifyInterval = 30 * time.Second

// ClientFactory wires the automation client: browser session, field locator,
// login gate, request processor, queue client and poll loop.
type ClientFactory struct {
	config *config.ClientConfig

	notifier  notify.Notifier
	sessions  *browser.SessionManager
	queue     *queueclient.Client
	processor *automation.Processor
	poller    *poller.Poller

	closeOnce sync.Once
}

// NewClientFactory loads the client configuration, sets up the daily log file
// and error notifications, and wires every client component
func NewClientFactory() (*ClientFactory, error) {
	cfg := config.LoadClientConfig()

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	notifier := newNotifier(cfg)
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format,
		util.WithDailyLogFile(cfg.LogFile),
		util.WithErrorHook(notify.ErrorHook(notifier, errorNotifyInterval)),
	)

	driver, err := selectDriver(cfg)
	if err != nil {
		return nil, err
	}

	return newClientFactory(cfg, driver, notifier), nil
}

func newNotifier(cfg *config.ClientConfig) notify.Notifier {
	if !cfg.NotificationsEnabled {
		return notify.Noop{}
	}
	return notify.NewDesktop("PIN Relay")
}

func selectDriver(cfg *config.ClientConfig) (browser.Driver, error) {
	switch cfg.Browser.Driver {
	case "playwright", "":
		return pwdriver.New(cfg.Browser, util.Get()), nil
	case "rod":
		return roddriver.New(cfg.Browser, util.Get()), nil
	default:
		return nil, fmt.Errorf("unknown BROWSER_DRIVER %q", cfg.Browser.Driver)
	}
}

func newClientFactory(cfg *config.ClientConfig, driver browser.Driver, notifier notify.Notifier) *ClientFactory {
	logger := util.Get()

	f := &ClientFactory{
		config:   cfg,
		notifier: notifier,
		sessions: browser.NewSessionManager(driver, cfg.Browser.ReconnectDelay, logger),
		queue:    queueclient.New(cfg.ServerURL, logger),
	}

	locator := automation.NewLocator(logger)
	gate := automation.NewLoginGate(locator, cfg.Login, automation.DefaultGateTiming, logger)
	f.processor = automation.NewProcessor(
		f.sessions,
		locator,
		gate,
		f.queue,
		notifier,
		automation.ProcessorConfig{
			TargetURL:     cfg.TargetURL,
			FormSelector:  cfg.FormSelector,
			ScreenshotDir: cfg.LogDir,
		},
		automation.DefaultProcessorTiming,
		logger,
	)
	f.poller = poller.New(f.queue, f.processor, cfg.CheckInterval, logger)

	util.Info("Client factory initialized",
		util.String("environment", cfg.Environment),
		util.String("driver", driver.Name()),
		util.String("server_url", cfg.ServerURL),
		util.String("target_url", cfg.TargetURL),
		util.Duration("check_interval", cfg.CheckInterval),
	)

	return f
}

func (f *ClientFactory) Config() *config.ClientConfig {
	return f.config
}

func (f *ClientFactory) Sessions() *browser.SessionManager {
	return f.sessions
}

func (f *ClientFactory) QueueClient() *queueclient.Client {
	return f.queue
}

func (f *ClientFactory) Processor() *automation.Processor {
	return f.processor
}

func (f *ClientFactory) Notifier() notify.Notifier {
	return f.notifier
}

// Run polls until ctx is cancelled. The browser is shut down as soon as ctx
// ends, without waiting for an in-flight request to unwind.
func (f *ClientFactory) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return f.poller.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		util.Info("Stopping client, closing browser")
		f.sessions.Shutdown()
		return nil
	})

	return g.Wait()
}

func (f *ClientFactory) Poller() *poller.Poller {
	return f.poller
}

// Close shuts the browser down; errors are logged and swallowed
func (f *ClientFactory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down client...")
		f.sessions.Shutdown()
		util.Info("Client shutdown completed")
		util.Sync()
	})
	return nil
}
