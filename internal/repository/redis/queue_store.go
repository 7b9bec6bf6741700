package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pin-relay/internal/client"
	"pin-relay/internal/encryption"
	"pin-relay/internal/models"
	"pin-relay/internal/repository"
	"pin-relay/internal/util"
)

const (
	requestPrefix  = "pin_request:"
	pendingListKey = "pin_requests:pending"

	maxWatchRetries = 5
	pinKeyPurpose   = "pin"
)

var errDuplicateRequest = errors.New("duplicate request id")

// FieldCipher encrypts the PIN before it reaches Redis
type FieldCipher interface {
	EncryptField(ctx context.Context, plaintext, keyPurpose string) (*encryption.EncryptedData, error)
	DecryptField(ctx context.Context, encryptedData *encryption.EncryptedData) (string, error)
}

type storedRequest struct {
	ID          string                    `json:"id"`
	PIN         *encryption.EncryptedData `json:"pin"`
	DeviceName  string                    `json:"deviceName"`
	Status      models.RequestStatus      `json:"status"`
	Timestamp   time.Time                 `json:"timestamp"`
	ProcessedAt *time.Time                `json:"processedAt,omitempty"`
	Message     string                    `json:"message,omitempty"`
}

// QueueStore persists requests as JSON documents with a Redis list holding
// the pending ids in insertion order.
type QueueStore struct {
	client    *client.RedisClient
	cipher    FieldCipher
	retention time.Duration
	nowFunc   func() time.Time
}

// NewQueueStore creates the Redis backed store. Processed requests expire after
// retention; zero keeps them forever.
func NewQueueStore(client *client.RedisClient, cipher FieldCipher, retention time.Duration) *QueueStore {
	return &QueueStore{
		client:    client,
		cipher:    cipher,
		retention: retention,
		nowFunc:   time.Now,
	}
}

func (s *QueueStore) Append(ctx context.Context, req *models.PinRequest) error {
	encPIN, err := s.cipher.EncryptField(ctx, req.PIN, pinKeyPurpose)
	if err != nil {
		return fmt.Errorf("failed to encrypt pin: %w", err)
	}

	data, err := json.Marshal(storedRequest{
		ID:          req.ID,
		PIN:         encPIN,
		DeviceName:  req.DeviceName,
		Status:      req.Status,
		Timestamp:   req.Timestamp,
		ProcessedAt: req.ProcessedAt,
		Message:     req.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	key := requestPrefix + req.ID
	txf := func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return errDuplicateRequest
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if req.IsPending() {
				pipe.RPush(ctx, pendingListKey, req.ID)
			}
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, errDuplicateRequest) {
			return fmt.Errorf("request %s already exists", req.ID)
		}
		util.Error("Failed to store request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to store request: %w", err)
	}

	util.Debug("Request stored", zap.String("request_id", req.ID))
	return nil
}

func (s *QueueStore) ListPending(ctx context.Context) ([]*models.PinRequest, error) {
	ids, err := s.client.Client.LRange(ctx, pendingListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending ids: %w", err)
	}

	pending := make([]*models.PinRequest, 0, len(ids))
	if len(ids) == 0 {
		return pending, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = requestPrefix + id
	}

	values, err := s.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending requests: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Record expired or was removed behind our back.
			util.Warn("Pending id without record", zap.String("request_id", ids[i]))
			continue
		}
		req, err := s.decode(ctx, []byte(raw))
		if err != nil {
			util.Warn("Skipping unreadable pending record", zap.String("request_id", ids[i]), zap.Error(err))
			continue
		}
		if req.IsPending() {
			pending = append(pending, req)
		}
	}
	return pending, nil
}

func (s *QueueStore) GetByID(ctx context.Context, id string) (*models.PinRequest, error) {
	raw, err := s.client.Client.Get(ctx, requestPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repository.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return s.decode(ctx, raw)
}

func (s *QueueStore) MarkProcessed(ctx context.Context, id string, success bool, message string) (*models.PinRequest, error) {
	key := requestPrefix + id
	var updated storedRequest

	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return repository.ErrRequestNotFound
			}
			return err
		}

		var rec storedRequest
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to decode request: %w", err)
		}
		if rec.Status != models.StatusPending {
			return repository.ErrAlreadyProcessed
		}

		now := s.nowFunc().UTC()
		rec.Status = models.StatusFor(success)
		rec.ProcessedAt = &now
		rec.Message = message

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.retention)
			pipe.LRem(ctx, pendingListKey, 0, id)
			return nil
		})
		if err == nil {
			updated = rec
		}
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) || errors.Is(err, repository.ErrAlreadyProcessed) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark request processed: %w", err)
	}
	return s.toModel(ctx, &updated)
}

// watch runs txf under WATCH key, retrying when another client touched the key
func (s *QueueStore) watch(ctx context.Context, txf func(*goredis.Tx) error, key string) error {
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Client.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
		util.Debug("Transaction raced, retrying", zap.String("key", key), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("too much contention on %s", key)
}

func (s *QueueStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func (s *QueueStore) decode(ctx context.Context, raw []byte) (*models.PinRequest, error) {
	var rec storedRequest
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return s.toModel(ctx, &rec)
}

func (s *QueueStore) toModel(ctx context.Context, rec *storedRequest) (*models.PinRequest, error) {
	pin, err := s.cipher.DecryptField(ctx, rec.PIN)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt pin for %s: %w", rec.ID, err)
	}
	return &models.PinRequest{
		ID:          rec.ID,
		PIN:         pin,
		DeviceName:  rec.DeviceName,
		Status:      rec.Status,
		Timestamp:   rec.Timestamp,
		ProcessedAt: rec.ProcessedAt,
		Message:     rec.Message,
	}, nil
}
