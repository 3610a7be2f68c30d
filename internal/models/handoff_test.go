package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// 1. Transition Tests
// ==========================

func TestNewBotTransition(t *testing.T) {
	transition := NewBotTransition("lead-1", "loc-1", BotJorgeSeller, BotJorgeBuyer, ReasonQualifiedBuyer)

	assert.NotEmpty(t, transition.TransitionID)
	assert.Equal(t, PriorityNormal, transition.Priority)
	assert.Equal(t, BotJorgeSeller, transition.SourceBot)
	assert.False(t, transition.InitiatedAt.IsZero())

	other := NewBotTransition("lead-1", "loc-1", BotJorgeSeller, BotJorgeBuyer, ReasonQualifiedBuyer)
	assert.NotEqual(t, transition.TransitionID, other.TransitionID)
}

// ==========================
// 2. Snapshot Tests
// ==========================

func TestIntelligenceSnapshot_Age(t *testing.T) {
	ts := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	snapshot := &IntelligenceSnapshot{SnapshotTimestamp: ts}

	assert.Equal(t, time.Hour, snapshot.Age(ts.Add(time.Hour)))
}

func TestIntelligenceSnapshot_JSONRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	lastMsg := ts.Add(-time.Minute)
	snapshot := &IntelligenceSnapshot{
		SnapshotID:            "snap-1",
		LeadID:                "lead-1",
		LocationID:            "loc-1",
		SourceBot:             BotJorgeSeller,
		TargetBot:             BotJorgeBuyer,
		SnapshotTimestamp:     ts,
		PreservedIntelligence: EmptyPreservedIntelligence(),
		ConversationSummary:   "qualified",
		ConversationLength:    5,
		LastMessageTimestamp:  &lastMsg,
		QualificationScores:   map[string]float64{"FRS": 82},
		ReadinessIndicators:   []string{"financially_ready"},
		RecommendedNextActions: []string{
			"Establish budget and timeline",
		},
		StrategicApproach:     "consultative",
		ConversationGoals:     []string{"Schedule property viewings"},
		WarningFlags:          []string{},
		TransitionReason:      ReasonQualifiedBuyer,
		ConfidenceLevel:       0.9,
		DataCompletenessRatio: 0.8,
	}

	serialized, err := snapshot.ToJSON()
	require.NoError(t, err)

	restored, err := SnapshotFromJSON(serialized)
	require.NoError(t, err)
	assert.Equal(t, snapshot, restored)
}

func TestSnapshotFromJSON_Malformed(t *testing.T) {
	_, err := SnapshotFromJSON("not json")
	assert.Error(t, err)
}

// ==========================
// 3. History Tests
// ==========================

func successHandoff(latencyMs float64) ContextHandoff {
	return NewSuccessHandoff("lead-1", "loc-1", "snap-1", "t-1", latencyMs, "key", 2*time.Hour)
}

func TestTransitionHistory_IncrementalAverage(t *testing.T) {
	history := NewTransitionHistory("lead-1", "loc-1")

	transition := NewBotTransition("lead-1", "loc-1", BotJorgeSeller, BotJorgeBuyer, ReasonQualifiedBuyer)
	history.AddTransition(transition, successHandoff(10))
	history.AddTransition(transition, successHandoff(20))
	history.AddTransition(transition, successHandoff(60))

	assert.Equal(t, 3, history.TotalTransitions)
	assert.Equal(t, 3, history.SuccessfulHandoffs)
	assert.InDelta(t, 30, history.AverageHandoffLatencyMs, 0.0001)
}

func TestTransitionHistory_CountsFailures(t *testing.T) {
	history := NewTransitionHistory("lead-1", "loc-1")
	transition := NewBotTransition("lead-1", "loc-1", BotJorgeSeller, BotJorgeBuyer, ReasonQualifiedBuyer)

	history.AddTransition(transition, successHandoff(10))
	history.AddTransition(transition, NewFailureHandoff("lead-1", "loc-1", "cache down", 5))

	assert.Equal(t, 2, history.TotalTransitions)
	assert.Equal(t, 1, history.SuccessfulHandoffs)
	assert.Equal(t, 1, history.FailedHandoffs)
}

func TestTransitionHistory_BoundedRetention(t *testing.T) {
	history := NewTransitionHistory("lead-1", "loc-1")

	for i := 0; i < maxHistoryRecords+10; i++ {
		transition := NewBotTransition("lead-1", "loc-1", BotJorgeSeller, BotJorgeBuyer, ReasonQualifiedBuyer)
		transition.HandoffMessage = fmt.Sprintf("handoff %d", i)
		history.AddTransition(transition, successHandoff(float64(i)))
	}

	// Records are pruned; lifetime aggregates are not.
	assert.Len(t, history.Records, maxHistoryRecords)
	assert.Equal(t, maxHistoryRecords+10, history.TotalTransitions)
	assert.Equal(t, "handoff 10", history.Records[0].Transition.HandoffMessage)
}

func TestTransitionHistory_Timestamps(t *testing.T) {
	history := NewTransitionHistory("lead-1", "loc-1")

	first := NewBotTransition("lead-1", "loc-1", BotJorgeSeller, BotJorgeBuyer, ReasonQualifiedBuyer)
	first.InitiatedAt = time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	second := NewBotTransition("lead-1", "loc-1", BotJorgeBuyer, BotHumanAgent, ReasonEscalationRequested)
	second.InitiatedAt = time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)

	history.AddTransition(first, successHandoff(10))
	history.AddTransition(second, successHandoff(10))

	require.NotNil(t, history.FirstTransitionAt)
	require.NotNil(t, history.LastTransitionAt)
	assert.Equal(t, first.InitiatedAt, *history.FirstTransitionAt)
	assert.Equal(t, second.InitiatedAt, *history.LastTransitionAt)
}

func TestTransitionHistory_JSONRoundTrip(t *testing.T) {
	history := NewTransitionHistory("lead-1", "loc-1")
	transition := NewBotTransition("lead-1", "loc-1", BotJorgeSeller, BotJorgeBuyer, ReasonQualifiedBuyer)
	transition.InitiatedAt = time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	handoff := successHandoff(12)
	handoff.HandoffInitiatedAt = transition.InitiatedAt
	handoff.HandoffCompletedAt = transition.InitiatedAt
	handoff.ContextExpiresAt = transition.InitiatedAt.Add(2 * time.Hour)
	history.AddTransition(transition, handoff)

	serialized, err := history.ToJSON()
	require.NoError(t, err)

	restored, err := HistoryFromJSON(serialized)
	require.NoError(t, err)
	assert.Equal(t, history, restored)
}

// ==========================
// 4. Handoff Result Tests
// ==========================

func TestNewSuccessHandoff(t *testing.T) {
	result := NewSuccessHandoff("lead-1", "loc-1", "snap-1", "t-1", 12.5, "intelligence:handoff:lead-1:jorge-buyer", 2*time.Hour)

	assert.True(t, result.Success)
	assert.Equal(t, HandoffSuccess, result.Status)
	assert.Equal(t, 7200, result.CacheTTLSeconds)
	assert.Equal(t, result.HandoffCompletedAt.Add(2*time.Hour), result.ContextExpiresAt)
}

func TestNewFailureHandoff(t *testing.T) {
	result := NewFailureHandoff("lead-1", "loc-1", "cache write failed", 4.2)

	assert.False(t, result.Success)
	assert.Equal(t, HandoffFailed, result.Status)
	assert.Equal(t, "cache write failed", result.ErrorMessage)
	assert.Equal(t, 4.2, result.PreservationLatencyMs)
}
