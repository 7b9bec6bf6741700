package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("browser session is shut down")

// SessionManager owns a single browser across requests and relaunches it after
// an unexpected disconnect.
type SessionManager struct {
	driver         Driver
	reconnectDelay time.Duration
	logger         *zap.Logger

	mu       sync.Mutex
	current  Browser
	closed   bool
	stop     chan struct{}
	relaunch *time.Timer
	wg       sync.WaitGroup
}

func NewSessionManager(driver Driver, reconnectDelay time.Duration, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		driver:         driver,
		reconnectDelay: reconnectDelay,
		logger:         logger,
		stop:           make(chan struct{}),
	}
}

// Acquire returns the live browser, launching one when none is held
func (m *SessionManager) Acquire(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrSessionClosed
	}
	if m.current != nil {
		return m.current, nil
	}
	return m.launchLocked(ctx)
}

func (m *SessionManager) launchLocked(ctx context.Context) (Browser, error) {
	start := time.Now()
	b, err := m.driver.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s browser: %w", m.driver.Name(), err)
	}

	m.current = b
	m.wg.Add(1)
	go m.watch(b)

	m.logger.Info("Browser launched",
		zap.String("driver", m.driver.Name()),
		zap.Duration("duration", time.Since(start)),
	)
	return b, nil
}

func (m *SessionManager) watch(b Browser) {
	defer m.wg.Done()

	select {
	case <-m.stop:
		return
	case <-b.Disconnected():
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.current != b {
		return
	}
	m.current = nil
	m.logger.Warn("Browser disconnected, scheduling relaunch", zap.Duration("delay", m.reconnectDelay))

	m.relaunch = time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.closed || m.current != nil {
			return
		}
		if _, err := m.launchLocked(context.Background()); err != nil {
			m.logger.Error("Browser relaunch failed", zap.Error(err))
		}
	})
}

// Shutdown closes the held browser and stops any pending relaunch. Close
// errors are logged and swallowed.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stop)
	if m.relaunch != nil {
		m.relaunch.Stop()
	}
	b := m.current
	m.current = nil
	m.mu.Unlock()

	if b != nil {
		if err := b.Close(); err != nil {
			m.logger.Debug("Browser close failed", zap.Error(err))
		}
	}
	m.wg.Wait()
	m.logger.Info("Browser session shut down")
}
