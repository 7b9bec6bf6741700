package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pin-relay/internal/automation"
	"pin-relay/internal/browser"
	"pin-relay/internal/browser/browsertest"
	"pin-relay/internal/browser/pwdriver"
	"pin-relay/internal/browser/roddriver"
	"pin-relay/internal/config"
	"pin-relay/internal/models"
	"pin-relay/internal/notify"
	"pin-relay/internal/poller"
)

func TestSelectDriver(t *testing.T) {
	d, err := selectDriver(&config.ClientConfig{Browser: config.BrowserConfig{Driver: "playwright"}})
	require.NoError(t, err)
	assert.IsType(t, &pwdriver.Driver{}, d)

	d, err = selectDriver(&config.ClientConfig{Browser: config.BrowserConfig{Driver: "rod"}})
	require.NoError(t, err)
	assert.IsType(t, &roddriver.Driver{}, d)

	_, err = selectDriver(&config.ClientConfig{Browser: config.BrowserConfig{Driver: "firefox"}})
	assert.Error(t, err)
}

func TestNotifierFollowsConfig(t *testing.T) {
	assert.IsType(t, notify.Noop{}, newNotifier(&config.ClientConfig{NotificationsEnabled: false}))
	assert.IsType(t, &notify.Desktop{}, newNotifier(&config.ClientConfig{NotificationsEnabled: true}))
}

func TestClientFactoryWiresSharedSession(t *testing.T) {
	driver := &browsertest.Driver{}
	f := newClientFactory(&config.ClientConfig{
		ServerURL:     "http://localhost:3000",
		TargetURL:     "https://localhost:47990/pin#PIN",
		CheckInterval: time.Second,
		LogDir:        t.TempDir(),
	}, driver, notify.Noop{})

	require.NotNil(t, f.Poller())
	require.NotNil(t, f.Processor())
	require.NotNil(t, f.QueueClient())

	b, err := f.Sessions().Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, driver.Launched(), 1)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.True(t, driver.Launched()[0].IsClosed())
	assert.NotNil(t, b)

	_, err = f.Sessions().Acquire(context.Background())
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
}

type onePending struct{}

func (onePending) PendingRequests(context.Context) ([]*models.PinRequest, error) {
	return []*models.PinRequest{{ID: "stuck", PIN: "1234", Status: models.StatusPending}}, nil
}

// hungProcessor ignores cancellation, like a driver call stuck in navigation
type hungProcessor struct {
	started chan struct{}
	release chan struct{}
}

func (p *hungProcessor) Process(context.Context, *models.PinRequest) automation.Outcome {
	close(p.started)
	<-p.release
	return automation.Outcome{}
}

func TestClientRunClosesBrowserWithoutWaitingForInFlightRequest(t *testing.T) {
	driver := &browsertest.Driver{}
	f := newClientFactory(&config.ClientConfig{
		ServerURL:     "http://localhost:3000",
		CheckInterval: time.Second,
		LogDir:        t.TempDir(),
	}, driver, notify.Noop{})

	_, err := f.Sessions().Acquire(context.Background())
	require.NoError(t, err)

	proc := &hungProcessor{started: make(chan struct{}), release: make(chan struct{})}
	f.poller = poller.New(onePending{}, proc, time.Second, zap.NewNop())
	defer close(proc.release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	<-proc.started
	cancel()

	assert.Eventually(t, func() bool { return driver.Launched()[0].IsClosed() }, time.Second, time.Millisecond)

	select {
	case <-done:
		t.Fatal("Run returned while a request was still in flight")
	default:
	}
}
