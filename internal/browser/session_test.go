package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pin-relay/internal/browser"
	"pin-relay/internal/browser/browsertest"
)

func TestAcquireReusesLiveBrowser(t *testing.T) {
	driver := &browsertest.Driver{}
	m := browser.NewSessionManager(driver, 10*time.Millisecond, zap.NewNop())
	defer m.Shutdown()

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	second, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, driver.Launched(), 1)
}

func TestAcquireAfterCrashRelaunches(t *testing.T) {
	driver := &browsertest.Driver{}
	m := browser.NewSessionManager(driver, 10*time.Millisecond, zap.NewNop())
	defer m.Shutdown()

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)

	first.(*browsertest.Browser).Crash()

	assert.Eventually(t, func() bool {
		return len(driver.Launched()) == 2
	}, time.Second, 5*time.Millisecond)

	second, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Same(t, driver.Launched()[1], second)
}

func TestLaunchFailureIsReported(t *testing.T) {
	driver := &browsertest.Driver{LaunchErr: errors.New("no chromium")}
	m := browser.NewSessionManager(driver, time.Millisecond, zap.NewNop())
	defer m.Shutdown()

	_, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chromium")
}

func TestShutdownSwallowsCloseErrorAndStopsRelaunch(t *testing.T) {
	driver := &browsertest.Driver{}
	m := browser.NewSessionManager(driver, 10*time.Millisecond, zap.NewNop())

	b, err := m.Acquire(context.Background())
	require.NoError(t, err)
	fake := b.(*browsertest.Browser)
	fake.CloseErr = errors.New("already gone")

	m.Shutdown()
	assert.True(t, fake.IsClosed())

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, driver.Launched(), 1)

	_, err = m.Acquire(context.Background())
	assert.ErrorIs(t, err, browser.ErrSessionClosed)

	m.Shutdown()
}
