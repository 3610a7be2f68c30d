package handoff

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intelligence/internal/cache"
	"lead-intelligence/internal/common/config"
	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/common/logger/loggertest"
	"lead-intelligence/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type capturingSink struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
}

func (s *capturingSink) Publish(ctx context.Context, leadID, eventType string, payload map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *capturingSink) last() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payloads) == 0 {
		return nil
	}
	return s.payloads[len(s.payloads)-1]
}

func testHandoffConfig() *config.HandoffConfig {
	return &config.HandoffConfig{
		CacheTTLSec:          7200,
		HistoryTTLSec:        86400,
		PreservationTargetMs: 50,
		RetrievalTargetMs:    30,
		MaxSnapshotKB:        100,
	}
}

func createTestService(t *testing.T) (*Service, *capturingSink, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sink := &capturingSink{}
	svc := NewService(testHandoffConfig(), cache.NewRedisCache(client), sink, loggertest.New(t))
	return svc, sink, mr
}

func qualifiedBuyerTransition(leadID string) models.BotTransition {
	transition := models.NewBotTransition(leadID, "loc-1",
		models.BotJorgeSeller, models.BotJorgeBuyer, models.ReasonQualifiedBuyer)
	transition.HandoffMessage = "Seller qualified, wants to buy next home"
	return transition
}

func richIntelligenceData() map[string]interface{} {
	return map[string]interface{}{
		"propertyIntelligence": map[string]interface{}{
			"topMatches": []interface{}{
				map[string]interface{}{"id": "prop-1", "score": 92.0},
				map[string]interface{}{"id": "prop-2", "score": 85.0},
				map[string]interface{}{"id": "prop-3", "score": 80.0},
				map[string]interface{}{"id": "prop-4", "score": 76.0},
				map[string]interface{}{"id": "prop-5", "score": 71.0},
				map[string]interface{}{"id": "prop-6", "score": 65.0},
			},
			"matchCount":           6.0,
			"bestMatchScore":       92.0,
			"presentationStrategy": "lead_with_best_match",
		},
		"conversationIntelligence": map[string]interface{}{
			"objections": []interface{}{
				map[string]interface{}{"type": "price", "severity": "high", "confidence": 0.75},
			},
			"overallSentiment":        0.6,
			"sentimentTrend":          "improving",
			"qualityScore":            80.0,
			"responseRecommendations": []interface{}{"Anchor on value before price"},
		},
		"preferenceIntelligence": map[string]interface{}{
			"budgetRange":         map[string]interface{}{"min": 400000.0, "max": 550000.0},
			"locationPreferences": map[string]interface{}{"Austin": 1.0},
			"featurePreferences":  map[string]interface{}{"pool": 1.0},
			"urgencyLevel":        0.8,
			"profileCompleteness": 0.85,
			"preferences":         map[string]interface{}{"moveTimeline": "1-3 months"},
		},
		"conversationHistory": []interface{}{
			map[string]interface{}{"role": "user", "content": "hi", "timestamp": "2026-08-29T10:00:00Z"},
			map[string]interface{}{"role": "assistant", "content": "hello", "timestamp": "2026-08-29T10:00:30Z"},
			map[string]interface{}{"role": "user", "content": "selling my house", "timestamp": "2026-08-29T10:01:00Z"},
			map[string]interface{}{"role": "assistant", "content": "tell me more", "timestamp": "2026-08-29T10:01:30Z"},
			map[string]interface{}{"role": "user", "content": "and buying a new one", "timestamp": "2026-08-29T10:02:00Z"},
		},
		"qualificationScores": map[string]interface{}{"FRS": 82.0, "PCS": 78.0},
	}
}

// ==========================
// 1. Preserve Tests
// ==========================

func TestPreserve_Success(t *testing.T) {
	svc, sink, mr := createTestService(t)
	transition := qualifiedBuyerTransition("lead-1")

	result := svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), transition, "loc-1")

	require.True(t, result.Success)
	assert.Equal(t, models.HandoffSuccess, result.Status)
	assert.NotEmpty(t, result.SnapshotID)
	assert.Equal(t, transition.TransitionID, result.TransitionID)
	assert.Equal(t, 7200, result.CacheTTLSeconds)
	assert.Greater(t, result.DataSizeBytes, 0)

	// Snapshot lands under the destination-scoped key.
	assert.True(t, mr.Exists("intelligence:handoff:lead-1:jorge-buyer"))
	// History is re-cached under its own longer-lived key.
	assert.True(t, mr.Exists("intelligence:history:lead-1"))

	event := sink.last()
	require.NotNil(t, event)
	assert.Equal(t, true, event["handoffSuccess"])
	assert.Equal(t, "excellent", event["intelligenceQuality"])
}

func TestPreserve_LocationFallsBackToTransition(t *testing.T) {
	svc, _, _ := createTestService(t)
	transition := qualifiedBuyerTransition("lead-1")

	result := svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), transition, "")

	assert.Equal(t, "loc-1", result.LocationID)
}

func TestPreserve_SecondPreserveOverwrites(t *testing.T) {
	svc, _, _ := createTestService(t)
	transition := qualifiedBuyerTransition("lead-1")

	first := svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), transition, "loc-1")
	second := svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), transition, "loc-1")

	snapshot, found := svc.Retrieve(context.Background(), "lead-1", models.BotJorgeBuyer, "loc-1")
	require.True(t, found)
	assert.Equal(t, second.SnapshotID, snapshot.SnapshotID)
	assert.NotEqual(t, first.SnapshotID, snapshot.SnapshotID)
}

func TestPreserve_CacheFailureReturnsFailureHandoff(t *testing.T) {
	svc, _, mr := createTestService(t)
	mr.Close()

	result := svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), qualifiedBuyerTransition("lead-1"), "loc-1")

	assert.False(t, result.Success)
	assert.Equal(t, models.HandoffFailed, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.GreaterOrEqual(t, result.PreservationLatencyMs, 0.0)
}

// panickingCache blows up on writes, modelling a broken backend client.
type panickingCache struct{}

func (panickingCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (panickingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	panic("cache backend invariant violated")
}

func (panickingCache) Delete(ctx context.Context, key string) error { return nil }

func TestPreserve_PanickingCacheReturnsFailureHandoff(t *testing.T) {
	svc := NewService(testHandoffConfig(), panickingCache{}, &capturingSink{}, logger.NewNoOpLogger())

	var result models.ContextHandoff
	require.NotPanics(t, func() {
		result = svc.Preserve(context.Background(), "lead-1", richIntelligenceData(),
			qualifiedBuyerTransition("lead-1"), "loc-1")
	})

	assert.False(t, result.Success)
	assert.Equal(t, models.HandoffFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "panic")

	metrics := svc.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalPreservations)
	assert.Equal(t, int64(1), metrics.FailedPreservations)
}

func TestPreserve_EmptyIntelligenceStillSucceeds(t *testing.T) {
	svc, sink, _ := createTestService(t)

	result := svc.Preserve(context.Background(), "lead-1", map[string]interface{}{},
		qualifiedBuyerTransition("lead-1"), "loc-1")

	require.True(t, result.Success)
	event := sink.last()
	require.NotNil(t, event)
	assert.Equal(t, "minimal", event["intelligenceQuality"])
}

// ==========================
// 2. Retrieve Tests
// ==========================

func TestRetrieve_RoundTrip(t *testing.T) {
	svc, _, _ := createTestService(t)
	transition := qualifiedBuyerTransition("lead-1")
	svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), transition, "loc-1")

	snapshot, found := svc.Retrieve(context.Background(), "lead-1", models.BotJorgeBuyer, "loc-1")

	require.True(t, found)
	assert.Equal(t, "lead-1", snapshot.LeadID)
	assert.Equal(t, models.BotJorgeSeller, snapshot.SourceBot)
	assert.Equal(t, models.BotJorgeBuyer, snapshot.TargetBot)
	assert.Equal(t, models.ReasonQualifiedBuyer, snapshot.TransitionReason)

	// Dense subset: top-5 truncation out of the six provided.
	assert.Len(t, snapshot.PreservedIntelligence.TopPropertyMatches, 5)
	assert.Equal(t, 92.0, snapshot.PreservedIntelligence.BestMatchScore)
	require.NotNil(t, snapshot.PreservedIntelligence.BudgetRange)
	assert.Equal(t, 550000.0, snapshot.PreservedIntelligence.BudgetRange.Max)

	// Buyer-bot guidance from the fixed rule table.
	assert.Equal(t, "consultative", snapshot.StrategicApproach)
	assert.Contains(t, snapshot.RecommendedNextActions, "Establish budget and timeline")
	assert.Empty(t, snapshot.WarningFlags)

	// Summary template for a qualified buyer carries the scores.
	assert.Contains(t, snapshot.ConversationSummary, "FRS 82")
	assert.Contains(t, snapshot.ConversationSummary, "PCS 78")

	assert.Equal(t, 5, snapshot.ConversationLength)
	require.NotNil(t, snapshot.LastMessageTimestamp)
}

func TestRetrieve_MissIsAbsentNotError(t *testing.T) {
	svc, _, _ := createTestService(t)

	snapshot, found := svc.Retrieve(context.Background(), "lead-unknown", models.BotJorgeBuyer, "loc-1")

	assert.False(t, found)
	assert.Nil(t, snapshot)
}

func TestRetrieve_TenantIsolation(t *testing.T) {
	svc, _, _ := createTestService(t)
	svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), qualifiedBuyerTransition("lead-1"), "loc-1")

	snapshot, found := svc.Retrieve(context.Background(), "lead-1", models.BotJorgeBuyer, "loc-other")

	assert.False(t, found)
	assert.Nil(t, snapshot)

	// The right tenant still reads it.
	_, found = svc.Retrieve(context.Background(), "lead-1", models.BotJorgeBuyer, "loc-1")
	assert.True(t, found)
}

func TestRetrieve_StaleSnapshotIsEvicted(t *testing.T) {
	svc, _, mr := createTestService(t)

	stale := buildSnapshot("lead-1", "loc-1", richIntelligenceData(), &models.BotTransition{
		TransitionID: "t-1",
		SourceBot:    models.BotJorgeSeller,
		TargetBot:    models.BotJorgeBuyer,
	})
	stale.SnapshotTimestamp = time.Now().UTC().Add(-3 * time.Hour)
	serialized, err := stale.ToJSON()
	require.NoError(t, err)
	mr.Set("intelligence:handoff:lead-1:jorge-buyer", serialized)

	snapshot, found := svc.Retrieve(context.Background(), "lead-1", models.BotJorgeBuyer, "loc-1")

	assert.False(t, found)
	assert.Nil(t, snapshot)
	assert.False(t, mr.Exists("intelligence:handoff:lead-1:jorge-buyer"), "stale snapshot must be deleted")
}

// ==========================
// 3. History Tests
// ==========================

func TestGetTransitionHistory_Aggregates(t *testing.T) {
	svc, _, _ := createTestService(t)
	data := richIntelligenceData()

	svc.Preserve(context.Background(), "lead-1", data, qualifiedBuyerTransition("lead-1"), "loc-1")
	svc.Preserve(context.Background(), "lead-1", data,
		models.NewBotTransition("lead-1", "loc-1", models.BotJorgeBuyer, models.BotHumanAgent, models.ReasonEscalationRequested),
		"loc-1")

	history := svc.GetTransitionHistory(context.Background(), "lead-1", "loc-1")

	assert.Equal(t, 2, history.TotalTransitions)
	assert.Equal(t, 2, history.SuccessfulHandoffs)
	assert.Equal(t, 0, history.FailedHandoffs)
	assert.Len(t, history.Records, 2)
	require.NotNil(t, history.FirstTransitionAt)
	require.NotNil(t, history.LastTransitionAt)
	assert.Equal(t, models.BotHumanAgent, history.Records[1].Transition.TargetBot)
}

func TestGetTransitionHistory_UnknownLeadIsEmpty(t *testing.T) {
	svc, _, _ := createTestService(t)

	history := svc.GetTransitionHistory(context.Background(), "lead-unknown", "loc-1")

	assert.Equal(t, 0, history.TotalTransitions)
	assert.Empty(t, history.Records)
}

func TestGetTransitionHistory_TenantIsolation(t *testing.T) {
	svc, _, _ := createTestService(t)
	svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), qualifiedBuyerTransition("lead-1"), "loc-1")

	history := svc.GetTransitionHistory(context.Background(), "lead-1", "loc-other")

	assert.Equal(t, 0, history.TotalTransitions)
}

// ==========================
// 4. Metrics Tests
// ==========================

func TestGetMetrics(t *testing.T) {
	svc, _, _ := createTestService(t)
	svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), qualifiedBuyerTransition("lead-1"), "loc-1")
	svc.Retrieve(context.Background(), "lead-1", models.BotJorgeBuyer, "loc-1")
	svc.Retrieve(context.Background(), "lead-2", models.BotJorgeBuyer, "loc-1")

	m := svc.GetMetrics()

	assert.Equal(t, int64(1), m.TotalPreservations)
	assert.Equal(t, int64(0), m.FailedPreservations)
	assert.Equal(t, int64(2), m.TotalRetrievals)
	assert.Equal(t, int64(1), m.RetrievalHits)
	assert.Greater(t, m.AverageSnapshotSizeKB, 0.0)
	assert.Contains(t, []string{StatusExcellent, StatusGood, StatusDegraded}, m.Status)
}

func TestGetMetrics_FailedPreservationCounted(t *testing.T) {
	svc, _, mr := createTestService(t)
	mr.Close()

	svc.Preserve(context.Background(), "lead-1", richIntelligenceData(), qualifiedBuyerTransition("lead-1"), "loc-1")

	m := svc.GetMetrics()
	assert.Equal(t, int64(1), m.TotalPreservations)
	assert.Equal(t, int64(1), m.FailedPreservations)
}
