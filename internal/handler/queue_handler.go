package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"pin-relay/internal/models"
	"pin-relay/internal/service"
	"pin-relay/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

var errMalformedBody = errors.New("malformed request body")

// QueueHandler serves the PIN queue endpoints
type QueueHandler struct {
	queueService *service.QueueService
	logger       *zap.Logger
}

func NewQueueHandler(queueService *service.QueueService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
		logger:       logger,
	}
}

// Response is the envelope shared by the queue endpoints
type Response struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message,omitempty"`
	RequestID string             `json:"requestId,omitempty"`
	Request   *models.PinRequest `json:"request,omitempty"`
}

type PendingResponse struct {
	PendingRequests []*models.PinRequest `json:"pendingRequests"`
}

type SubmitRequest struct {
	PIN        string `json:"pin"`
	DeviceName string `json:"deviceName"`
}

type MarkProcessedRequest struct {
	RequestID string `json:"requestId"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

func (h *QueueHandler) RegisterRoutes(router chi.Router) {
	router.Post("/submit", h.Submit)

	router.Route("/api", func(r chi.Router) {
		r.Get("/pending-requests", h.PendingRequests)
		r.Post("/mark-processed", h.MarkProcessed)
		r.Get("/request-status/{requestId}", h.RequestStatus)
	})
}

// Submit accepts a PIN either as JSON or as an urlencoded form post
func (h *QueueHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	req, err := decodeSubmit(w, r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	pinRequest, err := h.queueService.Submit(ctx, req.PIN, req.DeviceName)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, messageFor(err))
		return
	}

	h.respondWithJSON(w, http.StatusOK, Response{
		Success:   true,
		Message:   "Request received; the local client will process it shortly",
		RequestID: pinRequest.ID,
	})
	h.logger.Debug("Submit handled",
		util.String("request_id", pinRequest.ID),
		util.Duration("duration", time.Since(startTime)),
	)
}

func (h *QueueHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queueService.ListPending(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to list pending requests")
		return
	}
	if pending == nil {
		pending = []*models.PinRequest{}
	}
	h.respondWithJSON(w, http.StatusOK, PendingResponse{PendingRequests: pending})
}

func (h *QueueHandler) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	var req MarkProcessedRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RequestID == "" {
		if err == nil {
			err = errors.New("requestId is required")
		}
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if _, err := h.queueService.MarkProcessed(r.Context(), req.RequestID, req.Success, req.Message); err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, messageFor(err))
		return
	}

	h.respondWithJSON(w, http.StatusOK, Response{Success: true})
}

func (h *QueueHandler) RequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	req, err := h.queueService.GetRequest(r.Context(), requestID)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, messageFor(err))
		return
	}

	h.respondWithJSON(w, http.StatusOK, Response{Success: true, Request: req})
}

// HealthCheck reports the service and its store
func (h *QueueHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.queueService.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Health check failed", util.ErrorField(err))
		h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": "pin-relay",
			"error":   err.Error(),
		})
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pin-relay",
	})
}

func decodeSubmit(w http.ResponseWriter, r *http.Request) (*SubmitRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, errMalformedBody
		}
		return &SubmitRequest{
			PIN:        r.PostForm.Get("pin"),
			DeviceName: r.PostForm.Get("deviceName"),
		}, nil
	}

	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errMalformedBody
	}
	return nil
}

// respondWithJSON sends a JSON response
func (h *QueueHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError sends an error response
func (h *QueueHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	h.respondWithJSON(w, statusCode, Response{Success: false, Message: message})
}

// getStatusCode determines the appropriate HTTP status code for an error
func (h *QueueHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidPIN), errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyProcessed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidPIN):
		return "PIN must be exactly 4 numeric digits"
	case errors.Is(err, service.ErrRequestNotFound):
		return "Request not found"
	case errors.Is(err, service.ErrAlreadyProcessed):
		return "Request already processed"
	default:
		return "Internal server error"
	}
}
