package automation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pin-relay/internal/browser"
	"pin-relay/internal/browser/browsertest"
	"pin-relay/internal/models"
)

type fakeSessions struct {
	browser browser.Browser
	err     error
}

func (f *fakeSessions) Acquire(context.Context) (browser.Browser, error) {
	return f.browser, f.err
}

type report struct {
	id      string
	success bool
	message string
}

type fakeReporter struct {
	mu       sync.Mutex
	reports  []report
	err      error
	onReport func()
}

func (f *fakeReporter) MarkProcessed(_ context.Context, id string, success bool, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report{id, success, message})
	if f.onReport != nil {
		f.onReport()
	}
	return f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

type processorFixture struct {
	processor *Processor
	browser   *browsertest.Browser
	reporter  *fakeReporter
	notifier  *fakeNotifier
	dir       string
}

func newProcessorFixture(t *testing.T, pageFunc func() *browsertest.Page) *processorFixture {
	t.Helper()
	fx := &processorFixture{
		browser:  browsertest.NewBrowser(pageFunc),
		reporter: &fakeReporter{},
		notifier: &fakeNotifier{},
		dir:      t.TempDir(),
	}
	logger := zap.NewNop()
	locator := NewLocator(logger)
	fx.processor = NewProcessor(
		&fakeSessions{browser: fx.browser},
		locator,
		NewLoginGate(locator, newGate().login, GateTiming{}, logger),
		fx.reporter,
		fx.notifier,
		ProcessorConfig{
			TargetURL:     "https://localhost:47990/pin#PIN",
			FormSelector:  "form, .card-body",
			ScreenshotDir: fx.dir,
		},
		ProcessorTiming{},
		logger,
	)
	return fx
}

func pinRequest(pin, device string) *models.PinRequest {
	return &models.PinRequest{ID: "req-1", PIN: pin, DeviceName: device, Status: models.StatusPending}
}

func TestProcessFillsFormAndReportsSuccess(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page { return browsertest.NewPage(pinFormHTML) })

	outcome := fx.processor.Process(context.Background(), pinRequest("1234", "Teste"))
	require.True(t, outcome.Success, outcome.Message)

	pages := fx.browser.Pages()
	require.Len(t, pages, 1)
	page := pages[0]

	assert.Equal(t, "https://localhost:47990/pin#PIN", page.URL())
	assert.Equal(t, "1234", page.ValueOf("#pin"))
	assert.Equal(t, "Teste", page.ValueOf("#device-name"))
	assert.Len(t, page.ActionsOf("click"), 1)
	assert.True(t, page.Closed())

	shots := page.ActionsOf("screenshot")
	require.Len(t, shots, 1)
	assert.Equal(t, filepath.Join(fx.dir, "screenshot-req-1.png"), shots[0].Value)

	require.Len(t, fx.reporter.reports, 1)
	assert.Equal(t, report{"req-1", true, outcome.Message}, fx.reporter.reports[0])
	assert.Len(t, fx.notifier.messages, 1)
}

func TestProcessSkipsDeviceNameWhenEmpty(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page { return browsertest.NewPage(pinFormHTML) })

	outcome := fx.processor.Process(context.Background(), pinRequest("4321", ""))
	require.True(t, outcome.Success)

	page := fx.browser.Pages()[0]
	fills := page.ActionsOf("fill")
	require.Len(t, fills, 1)
	assert.Equal(t, "#pin", fills[0].Target)
}

func TestProcessClearsLoginGateFirst(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page {
		page := browsertest.NewPage(loginHTML)
		page.ClickHook = func(p *browsertest.Page, _ *browsertest.Element) error {
			if p.ValueOf("#passwordInput") == "admin" {
				p.SetHTML(pinFormHTML)
			}
			return nil
		}
		return page
	})

	outcome := fx.processor.Process(context.Background(), pinRequest("1234", "TV"))
	require.True(t, outcome.Success, outcome.Message)

	page := fx.browser.Pages()[0]
	assert.Equal(t, "1234", page.ValueOf("#pin"))
	assert.Equal(t, "TV", page.ValueOf("#device-name"))
	assert.Len(t, page.ActionsOf("click"), 2)
}

func TestProcessDeviceNameFailureIsNotFatal(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page {
		return browsertest.NewPage(`<html><body><form>
			<input id="pin" type="number">
			<button type="submit">Send</button>
		</form></body></html>`)
	})

	outcome := fx.processor.Process(context.Background(), pinRequest("1234", "Desk"))
	assert.True(t, outcome.Success, outcome.Message)
}

func TestProcessWithoutPINFieldFails(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page {
		return browsertest.NewPage(`<html><body><p>Service unavailable</p></body></html>`)
	})

	outcome := fx.processor.Process(context.Background(), pinRequest("1234", ""))
	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Message)

	require.Len(t, fx.reporter.reports, 1)
	assert.False(t, fx.reporter.reports[0].success)
	assert.Empty(t, fx.notifier.messages)
	assert.True(t, fx.browser.Pages()[0].Closed())
}

func TestProcessReportsBrowserFailure(t *testing.T) {
	reporter := &fakeReporter{}
	logger := zap.NewNop()
	locator := NewLocator(logger)
	p := NewProcessor(
		&fakeSessions{err: errors.New("chromium missing")},
		locator,
		newGate(),
		reporter,
		nil,
		ProcessorConfig{TargetURL: "https://localhost"},
		ProcessorTiming{},
		logger,
	)

	outcome := p.Process(context.Background(), pinRequest("1234", ""))
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "chromium missing")
	require.Len(t, reporter.reports, 1)
	assert.False(t, reporter.reports[0].success)
}

func TestProcessRecoversFromPanics(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page {
		page := browsertest.NewPage(pinFormHTML)
		page.FillHook = func(*browsertest.Element, string) error { panic("driver bug") }
		return page
	})

	outcome := fx.processor.Process(context.Background(), pinRequest("1234", ""))
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "driver bug")
	require.Len(t, fx.reporter.reports, 1)
}

func TestProcessInterruptedLeavesRequestPending(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page { return browsertest.NewPage(pinFormHTML) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := fx.processor.Process(ctx, pinRequest("1234", ""))
	assert.False(t, outcome.Success)
	assert.Empty(t, fx.reporter.reports)
}

func TestProcessReportFailureDoesNotChangeOutcome(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page { return browsertest.NewPage(pinFormHTML) })
	fx.reporter.err = errors.New("server down")

	outcome := fx.processor.Process(context.Background(), pinRequest("1234", ""))
	assert.True(t, outcome.Success)
}

func TestProcessReportsBeforeClosingPage(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page { return browsertest.NewPage(pinFormHTML) })

	var closedAtReport []bool
	fx.reporter.onReport = func() {
		for _, page := range fx.browser.Pages() {
			closedAtReport = append(closedAtReport, page.Closed())
		}
	}

	outcome := fx.processor.Process(context.Background(), pinRequest("1234", ""))
	require.True(t, outcome.Success)

	assert.Equal(t, []bool{false}, closedAtReport)
	assert.True(t, fx.browser.Pages()[0].Closed())
}

func TestProcessClosesPageAfterPanic(t *testing.T) {
	fx := newProcessorFixture(t, func() *browsertest.Page {
		page := browsertest.NewPage(pinFormHTML)
		page.FillHook = func(*browsertest.Element, string) error { panic("driver bug") }
		return page
	})

	fx.processor.Process(context.Background(), pinRequest("1234", ""))
	assert.True(t, fx.browser.Pages()[0].Closed())
}
