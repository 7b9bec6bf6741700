package poller

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pin-relay/internal/automation"
	"pin-relay/internal/browser/browsertest"
	"pin-relay/internal/handler"
	"pin-relay/internal/models"
	"pin-relay/internal/queueclient"
	"pin-relay/internal/repository/memory"
	"pin-relay/internal/service"
)

type stubSource struct {
	mu    sync.Mutex
	calls int
	reqs  []*models.PinRequest
	err   error
}

func (s *stubSource) PendingRequests(context.Context) ([]*models.PinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reqs, s.err
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubProcessor struct {
	mu        sync.Mutex
	processed []string
	active    int32
	overlap   atomic.Bool
	delay     time.Duration
}

func (s *stubProcessor) Process(_ context.Context, req *models.PinRequest) automation.Outcome {
	if atomic.AddInt32(&s.active, 1) > 1 {
		s.overlap.Store(true)
	}
	defer atomic.AddInt32(&s.active, -1)
	time.Sleep(s.delay)

	s.mu.Lock()
	s.processed = append(s.processed, req.ID)
	s.mu.Unlock()
	return automation.Outcome{Success: true}
}

func (s *stubProcessor) Processed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.processed...)
}

func TestRunOnceProcessesOnlyTheFirstRequest(t *testing.T) {
	source := &stubSource{reqs: []*models.PinRequest{{ID: "a"}, {ID: "b"}}}
	proc := &stubProcessor{}

	handled := New(source, proc, time.Second, zap.NewNop()).RunOnce(context.Background())
	assert.True(t, handled)
	assert.Equal(t, []string{"a"}, proc.Processed())
}

func TestRunOnceWithNothingPending(t *testing.T) {
	proc := &stubProcessor{}
	assert.False(t, New(&stubSource{}, proc, time.Second, zap.NewNop()).RunOnce(context.Background()))
	assert.Empty(t, proc.Processed())
}

func TestRunSurvivesSourceErrors(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	p := New(source, &stubProcessor{}, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return source.Calls() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestRunNeverOverlapsCycles(t *testing.T) {
	source := &stubSource{reqs: []*models.PinRequest{{ID: "slow"}}}
	proc := &stubProcessor{delay: 20 * time.Millisecond}
	p := New(source, proc, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(proc.Processed()) >= 3 }, 2*time.Second, time.Millisecond)
	assert.False(t, proc.overlap.Load())
}

func TestPINTravelsFromSubmissionToTargetPage(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	svc := service.NewQueueService(memory.NewQueueStore(), nil, logger)
	srv := httptest.NewServer(handler.NewRouter(handler.NewQueueHandler(svc, logger), logger))
	t.Cleanup(srv.Close)
	queue := queueclient.New(srv.URL, logger, queueclient.WithHTTPClient(srv.Client()))

	id, err := queue.Submit(ctx, "1234", "Teste")
	require.NoError(t, err)

	fake := browsertest.NewBrowser(func() *browsertest.Page {
		return browsertest.NewPage(`<html><body><div class="card-body">
			<input id="pin" type="number">
			<input id="device-name" type="text">
			<button class="btn btn-primary">Send</button>
		</div></body></html>`)
	})
	locator := automation.NewLocator(logger)
	processor := automation.NewProcessor(
		sessionsFunc(func(context.Context) (*browsertest.Browser, error) { return fake, nil }),
		locator,
		automation.NewLoginGate(locator, loginConfig(), automation.GateTiming{}, logger),
		queue,
		nil,
		automation.ProcessorConfig{TargetURL: "https://localhost:47990/pin#PIN", FormSelector: "form, .card-body"},
		automation.ProcessorTiming{ReportTimeout: 5 * time.Second},
		logger,
	)

	p := New(queue, processor, time.Second, logger)
	require.True(t, p.RunOnce(ctx))

	page := fake.Pages()[0]
	assert.Equal(t, "1234", page.ValueOf("#pin"))
	assert.Equal(t, "Teste", page.ValueOf("#device-name"))

	req, err := queue.RequestStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, req.Status)
	assert.NotNil(t, req.ProcessedAt)

	assert.False(t, p.RunOnce(ctx))
	assert.Len(t, fake.Pages(), 1)
}
