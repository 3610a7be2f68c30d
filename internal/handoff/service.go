// internal/handoff/service.go
package handoff

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"lead-intelligence/internal/cache"
	"lead-intelligence/internal/common/config"
	commonerrors "lead-intelligence/internal/common/errors"
	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/common/metrics"
	"lead-intelligence/internal/events"
	"lead-intelligence/internal/models"
)

// Service preserves intelligence snapshots across bot transitions and
// serves them back to the destination bot. Preserve never returns an
// error; failure is represented in the ContextHandoff it returns.
type Service struct {
	cfg    *config.HandoffConfig
	cache  cache.Cache
	sink   events.Sink
	logger logger.Logger

	preserveWindow *latencyWindow
	retrieveWindow *latencyWindow

	totalPreservations  atomic.Int64
	failedPreservations atomic.Int64
	totalRetrievals     atomic.Int64
	retrievalHits       atomic.Int64
	oversizedSnapshots  atomic.Int64
	snapshotBytesTotal  atomic.Int64
}

func NewService(cfg *config.HandoffConfig, cacheStore cache.Cache, sink events.Sink, log logger.Logger) *Service {
	return &Service{
		cfg:            cfg,
		cache:          cacheStore,
		sink:           sink,
		logger:         log.WithFields(map[string]interface{}{"component": "handoff-service"}),
		preserveWindow: newLatencyWindow(),
		retrieveWindow: newLatencyWindow(),
	}
}

func handoffKey(leadID string, target models.BotType) string {
	return "intelligence:handoff:" + leadID + ":" + string(target)
}

func historyKey(leadID string) string {
	return "intelligence:history:" + leadID
}

// Preserve snapshots the intelligence map under a destination-scoped
// key with the extended TTL. A second preserve for the same lead and
// target overwrites the first.
func (s *Service) Preserve(ctx context.Context, leadID string, intelligenceData map[string]interface{}, transition models.BotTransition, locationID string) (result models.ContextHandoff) {
	start := time.Now()

	if locationID == "" {
		locationID = transition.LocationID
	}

	// Collaborator panics degrade to a failure handoff; the caller
	// never sees a raised error from preservation.
	defer func() {
		if r := recover(); r != nil {
			result = s.preserveFailed(ctx, leadID, locationID, transition,
				fmt.Sprintf("preservation panic: %v", r), start)
		}
	}()

	snapshot := buildSnapshot(leadID, locationID, intelligenceData, &transition)

	key := handoffKey(leadID, transition.TargetBot)
	serialized, err := snapshot.ToJSON()
	if err != nil {
		return s.preserveFailed(ctx, leadID, locationID, transition,
			commonerrors.NewSnapshotBuildFailedError(leadID, err).Error(), start)
	}

	sizeBytes := len(serialized)
	if sizeBytes > s.cfg.MaxSnapshotKB*1024 {
		s.oversizedSnapshots.Add(1)
		s.logger.Warn("large intelligence snapshot", map[string]interface{}{
			"leadId": leadID,
			"sizeKb": float64(sizeBytes) / 1024,
			"maxKb":  s.cfg.MaxSnapshotKB,
		})
	}

	if err := s.cache.Set(ctx, key, serialized, s.cfg.CacheTTL()); err != nil {
		return s.preserveFailed(ctx, leadID, locationID, transition,
			commonerrors.NewCacheWriteFailedError(key, err).Error(), start)
	}

	s.updateTransitionHistory(ctx, leadID, locationID, transition, snapshot)

	latencyMs := elapsedMs(start)
	result = models.NewSuccessHandoff(leadID, locationID, snapshot.SnapshotID,
		transition.TransitionID, latencyMs, key, s.cfg.CacheTTL())
	result.DataSizeBytes = sizeBytes

	s.publishHandoffEvent(ctx, snapshot, transition, &result)
	s.recordPreservation(latencyMs, sizeBytes, transition, true)

	s.logger.Info("intelligence preserved", map[string]interface{}{
		"leadId":    leadID,
		"sourceBot": transition.SourceBot,
		"targetBot": transition.TargetBot,
		"latencyMs": latencyMs,
		"sizeKb":    float64(sizeBytes) / 1024,
	})
	return result
}

func (s *Service) preserveFailed(ctx context.Context, leadID, locationID string, transition models.BotTransition, message string, start time.Time) models.ContextHandoff {
	latencyMs := elapsedMs(start)

	s.logger.Error("intelligence preservation failed", map[string]interface{}{
		"leadId":    leadID,
		"targetBot": transition.TargetBot,
		"error":     message,
	})
	s.recordPreservation(latencyMs, 0, transition, false)

	return models.NewFailureHandoff(leadID, locationID, message, latencyMs)
}

// Retrieve returns the preserved snapshot for a lead/destination pair,
// or absent: on a miss, a tenant mismatch, or staleness. A stale
// snapshot is proactively deleted.
func (s *Service) Retrieve(ctx context.Context, leadID string, targetBot models.BotType, locationID string) (*models.IntelligenceSnapshot, bool) {
	start := time.Now()
	s.totalRetrievals.Add(1)

	key := handoffKey(leadID, targetBot)
	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		s.recordRetrieval(start, "error")
		return nil, false
	}
	if !found {
		s.logger.Debug("no preserved context found", map[string]interface{}{
			"leadId":    leadID,
			"targetBot": targetBot,
		})
		s.recordRetrieval(start, "miss")
		return nil, false
	}

	snapshot, err := models.SnapshotFromJSON(value)
	if err != nil {
		s.logger.Error("cached snapshot unreadable", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		s.recordRetrieval(start, "corrupt")
		return nil, false
	}

	if locationID != "" && snapshot.LocationID != locationID {
		s.logger.Warn("location mismatch on retrieval", map[string]interface{}{
			"leadId":    leadID,
			"requested": locationID,
			"stored":    snapshot.LocationID,
			"error":     commonerrors.NewTenantMismatchError(locationID, snapshot.LocationID).Error(),
		})
		s.recordRetrieval(start, "tenant_mismatch")
		return nil, false
	}

	// Staleness check beyond the cache's own TTL; a rebuilt cache
	// node may resurrect entries past their intended lifetime.
	age := snapshot.Age(time.Now().UTC())
	if age > s.cfg.CacheTTL() {
		s.logger.Warn("expired intelligence snapshot", map[string]interface{}{
			"leadId":     leadID,
			"ageSeconds": age.Seconds(),
			"maxSeconds": s.cfg.CacheTTLSec,
		})
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("stale snapshot delete failed", map[string]interface{}{
				"key":   key,
				"error": err,
			})
		}
		s.recordRetrieval(start, "expired")
		return nil, false
	}

	s.retrievalHits.Add(1)
	s.recordRetrieval(start, "hit")

	s.logger.Info("intelligence retrieved", map[string]interface{}{
		"leadId":     leadID,
		"targetBot":  targetBot,
		"ageSeconds": age.Seconds(),
	})
	return snapshot, true
}

// GetTransitionHistory returns the lead's audit trail, or an empty
// history on miss, corruption, or tenant mismatch. Never errors.
func (s *Service) GetTransitionHistory(ctx context.Context, leadID, locationID string) *models.TransitionHistory {
	key := historyKey(leadID)
	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("history cache read failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return models.NewTransitionHistory(leadID, locationID)
	}
	if !found {
		return models.NewTransitionHistory(leadID, locationID)
	}

	history, err := models.HistoryFromJSON(value)
	if err != nil {
		s.logger.Error("cached history unreadable", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return models.NewTransitionHistory(leadID, locationID)
	}

	if locationID != "" && history.LocationID != locationID {
		s.logger.Warn("location mismatch on history", map[string]interface{}{
			"leadId": leadID,
		})
		return models.NewTransitionHistory(leadID, locationID)
	}
	return history
}

// CleanupExpiredContexts exists for operational symmetry; the cache's
// TTL does the actual expiry.
func (s *Service) CleanupExpiredContexts(ctx context.Context, locationID string) int {
	s.logger.Debug("cleanup triggered, cache TTL handles expiry", map[string]interface{}{
		"locationId": locationID,
	})
	return 0
}

// GetMetrics reports the rolling performance view. Overall status is
// excellent when both operations meet their p99 target, good when one
// does, degraded otherwise.
func (s *Service) GetMetrics() Metrics {
	m := Metrics{
		TotalPreservations:     s.totalPreservations.Load(),
		FailedPreservations:    s.failedPreservations.Load(),
		TotalRetrievals:        s.totalRetrievals.Load(),
		RetrievalHits:          s.retrievalHits.Load(),
		PreservationP99Ms:      s.preserveWindow.p99(),
		RetrievalP99Ms:         s.retrieveWindow.p99(),
		OversizedSnapshotCount: s.oversizedSnapshots.Load(),
	}
	m.PreservationWithinSLA = m.PreservationP99Ms <= float64(s.cfg.PreservationTargetMs)
	m.RetrievalWithinSLA = m.RetrievalP99Ms <= float64(s.cfg.RetrievalTargetMs)

	switch {
	case m.PreservationWithinSLA && m.RetrievalWithinSLA:
		m.Status = StatusExcellent
	case m.PreservationWithinSLA || m.RetrievalWithinSLA:
		m.Status = StatusGood
	default:
		m.Status = StatusDegraded
	}

	if m.TotalPreservations > 0 {
		m.AverageSnapshotSizeKB = float64(s.snapshotBytesTotal.Load()) / float64(m.TotalPreservations) / 1024
	}
	return m
}

func (s *Service) updateTransitionHistory(ctx context.Context, leadID, locationID string, transition models.BotTransition, snapshot *models.IntelligenceSnapshot) {
	history := s.GetTransitionHistory(ctx, leadID, locationID)

	record := models.NewSuccessHandoff(leadID, locationID, snapshot.SnapshotID,
		transition.TransitionID, 0, "", s.cfg.CacheTTL())
	history.AddTransition(transition, record)

	serialized, err := history.ToJSON()
	if err != nil {
		s.logger.Error("history serialization failed", map[string]interface{}{
			"leadId": leadID,
			"error":  err,
		})
		return
	}
	if err := s.cache.Set(ctx, historyKey(leadID), serialized, s.cfg.HistoryTTL()); err != nil {
		s.logger.Warn("history cache write failed", map[string]interface{}{
			"leadId": leadID,
			"error":  err,
		})
	}
}

func (s *Service) publishHandoffEvent(ctx context.Context, snapshot *models.IntelligenceSnapshot, transition models.BotTransition, result *models.ContextHandoff) {
	payload := map[string]interface{}{
		"locationId":            snapshot.LocationID,
		"sourceBot":             transition.SourceBot,
		"targetBot":             transition.TargetBot,
		"transitionReason":      transition.TransitionReason,
		"handoffSuccess":        result.Success,
		"preservationLatencyMs": result.PreservationLatencyMs,
		"intelligenceQuality":   assessQuality(snapshot),
		"dataSizeKb":            float64(result.DataSizeBytes) / 1024,
		"cacheTtlHours":         s.cfg.CacheTTL().Hours(),
	}
	if err := s.sink.Publish(ctx, snapshot.LeadID, events.EventBotHandoff, payload); err != nil {
		metrics.EventPublishFailures.WithLabelValues(events.EventBotHandoff).Inc()
		s.logger.Warn("handoff event publish failed", map[string]interface{}{
			"leadId": snapshot.LeadID,
			"error":  err,
		})
	}
}

func (s *Service) recordPreservation(latencyMs float64, sizeBytes int, transition models.BotTransition, success bool) {
	s.totalPreservations.Add(1)
	if !success {
		s.failedPreservations.Add(1)
	}
	s.snapshotBytesTotal.Add(int64(sizeBytes))
	s.preserveWindow.record(latencyMs)

	status := "success"
	if !success {
		status = "failed"
	}
	metrics.HandoffPreservations.WithLabelValues(string(transition.TargetBot), status).Inc()
	metrics.HandoffDuration.WithLabelValues("preserve").Observe(latencyMs / 1000)
}

func (s *Service) recordRetrieval(start time.Time, result string) {
	latencyMs := elapsedMs(start)
	s.retrieveWindow.record(latencyMs)
	metrics.HandoffRetrievals.WithLabelValues(result).Inc()
	metrics.HandoffDuration.WithLabelValues("retrieve").Observe(latencyMs / 1000)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
