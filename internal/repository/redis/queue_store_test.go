package redis

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pin-relay/internal/client"
	"pin-relay/internal/config"
	"pin-relay/internal/encryption"
	"pin-relay/internal/models"
	"pin-relay/internal/repository"
)

func newTestStore(t *testing.T, retention time.Duration) (*QueueStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	return newStoreOn(t, mr, 1, retention), mr
}

// newStoreOn opens a store on mr whose master key is keyByte repeated
func newStoreOn(t *testing.T, mr *miniredis.Miniredis, keyByte byte, retention time.Duration) *QueueStore {
	t.Helper()

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	em, err := encryption.NewEncryptionManager(&config.Config{
		Encryption: config.EncryptionConfig{
			MasterKey: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{keyByte}, 32)),
		},
	}, nil)
	require.NoError(t, err)

	return NewQueueStore(client.NewRedisClientFrom(rdb), em, retention)
}

func pending(id, pin, device string) *models.PinRequest {
	return &models.PinRequest{
		ID:         id,
		PIN:        pin,
		DeviceName: device,
		Status:     models.StatusPending,
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisQueueStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	require.NoError(t, store.Append(ctx, pending("a", "1234", "TV")))
	require.NoError(t, store.Append(ctx, pending("b", "5678", "")))

	list, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "1234", list[0].PIN)
	assert.Equal(t, "TV", list[0].DeviceName)
	assert.Equal(t, "b", list[1].ID)

	raw, err := mr.Get(requestPrefix + "a")
	require.NoError(t, err)
	assert.NotContains(t, raw, "1234", "pin must be stored encrypted")
}

func TestRedisQueueStoreMarkProcessed(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, time.Hour)

	require.NoError(t, store.Append(ctx, pending("a", "1234", "")))
	require.NoError(t, store.Append(ctx, pending("b", "5678", "")))

	updated, err := store.MarkProcessed(ctx, "a", true, "Processed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, "Processed", updated.Message)
	assert.Equal(t, "1234", updated.PIN)
	require.NotNil(t, updated.ProcessedAt)

	list, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	got, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, time.Hour, mr.TTL(requestPrefix+"a"))

	_, err = store.MarkProcessed(ctx, "a", false, "again")
	assert.ErrorIs(t, err, repository.ErrAlreadyProcessed)
}

func TestRedisQueueStoreUnknownID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 0)

	_, err := store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrRequestNotFound)

	_, err = store.MarkProcessed(ctx, "nope", true, "")
	assert.ErrorIs(t, err, repository.ErrRequestNotFound)
}

func TestRedisQueueStoreSkipsExpiredRecords(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	require.NoError(t, store.Append(ctx, pending("a", "1234", "")))
	require.NoError(t, store.Append(ctx, pending("b", "5678", "")))
	mr.Del(requestPrefix + "a")

	list, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestRedisQueueStoreDuplicateID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 0)

	require.NoError(t, store.Append(ctx, pending("a", "1234", "")))
	assert.Error(t, store.Append(ctx, pending("a", "9999", "")))
}

func TestRedisQueueStoreHealthCheck(t *testing.T) {
	store, _ := newTestStore(t, 0)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestRedisQueueStoreSkipsRecordsItCannotDecrypt(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	before := newStoreOn(t, mr, 1, 0)
	require.NoError(t, before.Append(ctx, pending("old", "1234", "")))

	after := newStoreOn(t, mr, 2, 0)
	require.NoError(t, after.Append(ctx, pending("new", "5678", "TV")))

	list, err := after.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "5678", list[0].PIN)

	_, err = after.GetByID(ctx, "old")
	assert.Error(t, err)
}

func TestRedisQueueStoreSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	require.NoError(t, store.Append(ctx, pending("a", "1234", "")))
	require.NoError(t, store.Append(ctx, pending("b", "5678", "")))
	require.NoError(t, mr.Set(requestPrefix+"a", "{not json"))

	list, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestRedisQueueStoreDuplicateKeepsSinglePendingEntry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	require.NoError(t, store.Append(ctx, pending("a", "1234", "")))
	require.Error(t, store.Append(ctx, pending("a", "9999", "")))

	ids, err := mr.List(pendingListKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	got, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1234", got.PIN)
}

func TestRedisQueueStoreFailedAppendLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	mr.SetError("ERR injected failure")
	require.Error(t, store.Append(ctx, pending("a", "1234", "")))
	mr.SetError("")

	assert.False(t, mr.Exists(requestPrefix+"a"))
	assert.False(t, mr.Exists(pendingListKey))
}

func TestRedisQueueStoreProcessedRecordIsNotQueued(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	done := pending("a", "1234", "")
	done.Status = models.StatusCompleted
	require.NoError(t, store.Append(ctx, done))

	assert.True(t, mr.Exists(requestPrefix+"a"))
	assert.False(t, mr.Exists(pendingListKey))
}
