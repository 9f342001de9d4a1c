package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	core "simplehash/gateway/service/core"
	"simplehash/storage/store"
)

const maxBodyBytes = 1 << 20

// AnchorHandler serves the anchor request API.
type AnchorHandler struct {
	svc    *core.Service
	logger *zap.SugaredLogger
}

// NewAnchorHandler creates a new AnchorHandler
func NewAnchorHandler(s *core.Service, l *zap.SugaredLogger) *AnchorHandler {
	return &AnchorHandler{svc: s, logger: l}
}

// Routes returns a mux with every endpoint registered.
func (h *AnchorHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/anchors", h.SubmitAnchor)
	mux.HandleFunc("GET /v1/anchors/{id}", h.GetAnchor)
	mux.HandleFunc("GET /health", h.HealthCheck)
	return mux
}

// SubmitAnchor handles POST /v1/anchors requests
func (h *AnchorHandler) SubmitAnchor(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		h.respondError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// 1. Parse request body JSON
	var reqPayload struct {
		WindowStart string `json:"window_start"`
		WindowEnd   string `json:"window_end"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&reqPayload); err != nil {
		h.logger.Debugf("HTTP Handler: Failed to parse JSON request: %v", err)
		h.respondError(w, "Bad Request: Invalid JSON format", http.StatusBadRequest)
		return
	}

	// 2. Call Service layer
	accepted, err := h.svc.SubmitAnchor(r.Context(), &core.AnchorInput{
		WindowStart: reqPayload.WindowStart,
		WindowEnd:   reqPayload.WindowEnd,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	// 3. HTTP 202, processing happens in the engine
	h.respondJSON(w, map[string]interface{}{
		"request_id":         accepted.RequestID,
		"window_start":       accepted.WindowStart.Format(time.RFC3339Nano),
		"window_end":         accepted.WindowEnd.Format(time.RFC3339Nano),
		"received_timestamp": accepted.ReceivedTimestamp.Format(time.RFC3339Nano),
		"status":             "ACCEPTED",
	}, http.StatusAccepted)
}

// GetAnchor handles GET /v1/anchors/{id} requests
func (h *AnchorHandler) GetAnchor(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetAnchor(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"request_id":   st.RequestID,
		"status":       st.Status,
		"window_start": st.WindowStart.Format(time.RFC3339Nano),
		"window_end":   st.WindowEnd.Format(time.RFC3339Nano),
		"retry_count":  st.RetryCount,
		"updated_at":   st.UpdatedTimestamp.Format(time.RFC3339Nano),
	}
	switch st.Status {
	case store.StatusCompleted:
		resp["digest"] = st.Digest
		resp["event_count"] = st.EventCount
		resp["schema_version"] = st.SchemaVersion
		if st.TxHash != "" {
			resp["tx_hash"] = st.TxHash
			resp["block_height"] = st.BlockHeight
		}
	case store.StatusFailed:
		resp["error"] = st.ErrorMessage
	}
	h.respondJSON(w, resp, http.StatusOK)
}

// HealthCheck handles GET /health requests
func (h *AnchorHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"service":   "simplehash-gateway",
	}, http.StatusOK)
}

func (h *AnchorHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		h.respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		h.respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrBufferFull):
		h.respondError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Errorf("HTTP Handler: Service layer processing failed: %v", err)
		h.respondError(w, "internal error", http.StatusInternalServerError)
	}
}

// respondJSON sends JSON response
func (h *AnchorHandler) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnf("HTTP Handler: Failed to encode JSON response: %v", err)
	}
}

// respondError sends error response
func (h *AnchorHandler) respondError(w http.ResponseWriter, message string, statusCode int) {
	h.respondJSON(w, map[string]interface{}{
		"error":   message,
		"status":  statusCode,
		"message": http.StatusText(statusCode),
	}, statusCode)
}
