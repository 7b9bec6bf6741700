package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pin-relay/internal/models"
)

type recordedMessage struct {
	key, value []byte
	headers    map[string]string
}

type fakeProducer struct {
	messages []recordedMessage
}

func (f *fakeProducer) ProduceMessage(_ context.Context, key, value []byte, headers map[string]string) error {
	f.messages = append(f.messages, recordedMessage{key: key, value: value, headers: headers})
	return nil
}

func TestKafkaPublisherOmitsPIN(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewKafkaPublisher(producer)

	req := &models.PinRequest{
		ID:         "req-1",
		PIN:        "4321",
		DeviceName: "Living Room",
		Status:     models.StatusPending,
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Publish(context.Background(), NewEvent(TypeSubmitted, req, at)))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "req-1", string(msg.key))
	assert.Equal(t, TypeSubmitted, msg.headers["event-type"])
	assert.NotContains(t, string(msg.value), "4321")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.value, &decoded))
	assert.Equal(t, "request.submitted", decoded["type"])
	assert.Equal(t, "pending", decoded["status"])
	assert.Equal(t, "Living Room", decoded["deviceName"])
	assert.NotContains(t, decoded, "pin")
}
