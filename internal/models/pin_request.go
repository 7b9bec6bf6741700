package models

import "time"

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusFailed    RequestStatus = "failed"
)

// PinRequest is one submitted PIN + device-name pairing and its lifecycle.
// Everything except Status, ProcessedAt and Message is immutable once created.
type PinRequest struct {
	ID          string        `json:"id"`
	PIN         string        `json:"pin"`
	DeviceName  string        `json:"deviceName"`
	Status      RequestStatus `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	ProcessedAt *time.Time    `json:"processedAt,omitempty"`
	Message     string        `json:"message,omitempty"`
}

func (r *PinRequest) IsPending() bool {
	return r.Status == StatusPending
}

// StatusFor maps a processing outcome to its terminal status.
func StatusFor(success bool) RequestStatus {
	if success {
		return StatusCompleted
	}
	return StatusFailed
}

// Clone returns a copy that shares no pointers with r.
func (r *PinRequest) Clone() *PinRequest {
	c := *r
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}
