package queueclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pin-relay/internal/handler"
	"pin-relay/internal/models"
	"pin-relay/internal/repository/memory"
	"pin-relay/internal/service"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	logger := zap.NewNop()
	svc := service.NewQueueService(memory.NewQueueStore(), nil, logger)
	srv := httptest.NewServer(handler.NewRouter(handler.NewQueueHandler(svc, logger), logger))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", logger, WithHTTPClient(srv.Client()))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	id, err := c.Submit(ctx, "1234", "Living room")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pending, err := c.PendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, "1234", pending[0].PIN)
	assert.Equal(t, "Living room", pending[0].DeviceName)

	require.NoError(t, c.MarkProcessed(ctx, id, false, "PIN field could not be filled"))

	req, err := c.RequestStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, req.Status)
	assert.Equal(t, "PIN field could not be filled", req.Message)
	assert.NotNil(t, req.ProcessedAt)

	pending, err = c.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestServerErrorsBecomeAPIErrors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.Submit(ctx, "12a4", "")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.Contains(t, err.Error(), "4 numeric digits")

	_, err = c.RequestStatus(ctx, "missing")
	assert.True(t, IsStatus(err, http.StatusNotFound))

	id, err := c.Submit(ctx, "0000", "")
	require.NoError(t, err)
	require.NoError(t, c.MarkProcessed(ctx, id, true, "ok"))
	err = c.MarkProcessed(ctx, id, true, "ok")
	assert.True(t, IsStatus(err, http.StatusConflict))
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, zap.NewNop())
	_, err := c.PendingRequests(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.NotErrorAs(t, err, &apiErr)
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := New(srv.URL, zap.NewNop()).MarkProcessed(context.Background(), "x", true, "")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Equal(t, "queue server returned 502", err.Error())
}
