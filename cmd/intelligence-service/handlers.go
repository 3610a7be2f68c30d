// cmd/intelligence-service/handlers.go
package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	commonerrors "lead-intelligence/internal/common/errors"
	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/common/observability"
	"lead-intelligence/internal/handoff"
	"lead-intelligence/internal/intelligence"
	"lead-intelligence/internal/models"
	"lead-intelligence/internal/producers"
)

// maxRequestBody caps inbound payloads; snapshots themselves are
// size-warned separately inside the handoff service.
const maxRequestBody = 1 << 20

// server exposes the aggregator and handoff service over JSON HTTP.
type server struct {
	aggregator *intelligence.Aggregator
	handoffs   *handoff.Service
	learner    producers.PreferenceLearner
	obs        *observability.Observability
	logger     logger.Logger
}

func newServer(aggregator *intelligence.Aggregator, handoffs *handoff.Service, learner producers.PreferenceLearner, obs *observability.Observability, log logger.Logger) *server {
	return &server{
		aggregator: aggregator,
		handoffs:   handoffs,
		learner:    learner,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "http-api"}),
	}
}

func (s *server) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/intelligence/enhance", s.instrument("enhance", s.handleEnhance))
	mux.HandleFunc("GET /v1/intelligence/metrics", s.handleIntelligenceMetrics)
	mux.HandleFunc("GET /v1/leads/{leadId}/preferences", s.instrument("get_preferences", s.handlePreferences))
	mux.HandleFunc("POST /v1/handoff/preserve", s.instrument("preserve", s.handlePreserve))
	mux.HandleFunc("GET /v1/handoff/{leadId}/{targetBot}", s.instrument("retrieve", s.handleRetrieve))
	mux.HandleFunc("GET /v1/handoff/{leadId}/history", s.instrument("history", s.handleHistory))
	mux.HandleFunc("GET /v1/handoff/metrics", s.handleHandoffMetrics)
}

// statusRecorder captures the response code for operation metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records per-operation counts and durations through the
// otel meter alongside the Prometheus collectors the services own.
func (s *server) instrument(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		status := "success"
		if rec.status >= http.StatusBadRequest {
			status = "error"
		}
		s.obs.RecordOperation(r.Context(), operation, status)
		s.obs.RecordOperationDuration(r.Context(), operation, time.Since(start), status)
	}
}

// enhanceRequest is the inbound shape for a bot turn needing context.
type enhanceRequest struct {
	BotType             string                 `json:"botType"`
	LeadID              string                 `json:"leadId"`
	LocationID          string                 `json:"locationId"`
	ConversationHistory []conversationTurn     `json:"conversationHistory"`
	Preferences         map[string]interface{} `json:"preferences,omitempty"`
}

type conversationTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.LeadID == "" || req.BotType == "" {
		s.writeError(w, http.StatusBadRequest, commonerrors.NewInvalidHandoffInputError("leadId and botType are required"))
		return
	}

	window := make([]models.ConversationMessage, 0, len(req.ConversationHistory))
	for _, turn := range req.ConversationHistory {
		msg := models.ConversationMessage{Role: turn.Role, Content: turn.Content}
		if turn.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, turn.Timestamp); err == nil {
				msg.Timestamp = ts
			}
		}
		window = append(window, msg)
	}

	enhanced := s.aggregator.Enhance(r.Context(), req.BotType, req.LeadID, req.LocationID, window, req.Preferences)
	writeJSON(w, http.StatusOK, enhanced)
}

func (s *server) handleIntelligenceMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.aggregator.GetMetrics())
}

func (s *server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	if leadID == "" {
		s.writeError(w, http.StatusBadRequest, commonerrors.NewInvalidHandoffInputError("leadId is required"))
		return
	}

	profile, err := s.learner.GetProfile(r.Context(), leadID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) handlePreserve(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, commonerrors.NewInvalidHandoffInputError("unreadable body"))
		return
	}

	req, err := handoff.ParsePreserveRequest(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result := s.handoffs.Preserve(r.Context(), req.LeadID, req.IntelligenceData, req.Transition(), req.LocationID)
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	targetBot := models.BotType(r.PathValue("targetBot"))
	locationID := r.URL.Query().Get("locationId")

	snapshot, found := s.handoffs.Retrieve(r.Context(), leadID, targetBot, locationID)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"found":  false,
			"leadId": leadID,
		})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	locationID := r.URL.Query().Get("locationId")

	history := s.handoffs.GetTransitionHistory(r.Context(), leadID, locationID)
	writeJSON(w, http.StatusOK, history)
}

func (s *server) handleHandoffMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.handoffs.GetMetrics())
}

// decode reads a JSON body into dst, answering 400 on failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, commonerrors.NewInvalidHandoffInputError("malformed JSON body"))
		return false
	}
	return true
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	stdErr := commonerrors.Classify(err)
	s.logger.WithError(err).Warn("request rejected", map[string]interface{}{
		"status": status,
		"code":   string(stdErr.Code),
	})
	writeJSON(w, status, map[string]interface{}{
		"error":     stdErr.Message,
		"code":      stdErr.Code,
		"retryable": stdErr.Retryable,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
