package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intelligence/internal/models"
)

// ==========================
// 1. Extraction Tests
// ==========================

func TestExtractPreservedIntelligence_EmptyDataKeepsDefaults(t *testing.T) {
	preserved := extractPreservedIntelligence(map[string]interface{}{})

	assert.Empty(t, preserved.TopPropertyMatches)
	assert.Equal(t, float64(50), preserved.ConversationQualityScore)
	assert.Equal(t, models.TrendStable, preserved.SentimentTrend)
	assert.Equal(t, 0.5, preserved.UrgencyLevel)
	assert.Equal(t, "responsive", preserved.EngagementPattern)
	assert.Equal(t, "professional", preserved.CommunicationStyle)
	assert.Equal(t, "analytical", preserved.DecisionMakingStyle)
	assert.Equal(t, "moderate", preserved.RiskTolerance)
}

func TestExtractPreservedIntelligence_BehavioralOverrides(t *testing.T) {
	preserved := extractPreservedIntelligence(map[string]interface{}{
		"engagementPattern":  "proactive",
		"communicationStyle": "casual",
	})

	assert.Equal(t, "proactive", preserved.EngagementPattern)
	assert.Equal(t, "casual", preserved.CommunicationStyle)
	assert.Equal(t, "analytical", preserved.DecisionMakingStyle)
}

func TestExtractMatches_TruncatesToFive(t *testing.T) {
	matches := make([]interface{}, 8)
	for i := range matches {
		matches[i] = map[string]interface{}{"id": "p", "score": 50.0}
	}

	out := extractMatches(map[string]interface{}{"topMatches": matches}, topMatchKeepLimit)
	assert.Len(t, out, 5)
}

// ==========================
// 2. Summary Template Tests
// ==========================

func TestConversationSummary_ByReason(t *testing.T) {
	scores := map[string]float64{"FRS": 82, "PCS": 78}
	data := richIntelligenceData()

	tests := []struct {
		reason   models.TransitionReason
		contains string
	}{
		{models.ReasonQualifiedBuyer, "FRS 82/PCS 78"},
		{models.ReasonQualifiedSeller, "interested in selling current property"},
		{models.ReasonEscalationRequested, "human agent intervention"},
		{models.ReasonDormantReturn, "5 messages exchanged"},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			transition := &models.BotTransition{TransitionReason: tt.reason}
			assert.Contains(t, conversationSummary(data, transition, scores), tt.contains)
		})
	}
}

// ==========================
// 3. Guidance Rule Table Tests
// ==========================

func TestStrategicGuidance(t *testing.T) {
	buyer := strategicGuidance(models.BotJorgeBuyer)
	assert.Equal(t, "consultative", buyer.approach)
	assert.Len(t, buyer.nextActions, 3)
	assert.Len(t, buyer.goals, 3)
	assert.Empty(t, buyer.warnings)

	seller := strategicGuidance(models.BotJorgeSeller)
	assert.Equal(t, "confrontational", seller.approach)
	assert.Contains(t, seller.goals, "Secure listing commitment")

	human := strategicGuidance(models.BotHumanAgent)
	assert.Equal(t, "supportive", human.approach)
	assert.Equal(t, []string{"Complex situation requiring human touch"}, human.warnings)

	other := strategicGuidance(models.BotLeadNurture)
	assert.Equal(t, "consultative", other.approach)
	assert.Equal(t, []string{"Continue conversation"}, other.nextActions)
}

// ==========================
// 4. Heuristic Tests
// ==========================

func TestConfidenceLevel(t *testing.T) {
	// conversation 5/5=1.0, all three components present=1.0, quality 80/100=0.8.
	assert.InDelta(t, 0.9333, confidenceLevel(richIntelligenceData()), 0.001)

	// Nothing present: 0 + 0 + default-quality 0.5, averaged.
	assert.InDelta(t, 0.1667, confidenceLevel(map[string]interface{}{}), 0.001)
}

func TestDataCompleteness(t *testing.T) {
	assert.Equal(t, 1.0, dataCompleteness(richIntelligenceData()))
	assert.Equal(t, 0.0, dataCompleteness(map[string]interface{}{}))

	partial := map[string]interface{}{
		"conversationIntelligence": map[string]interface{}{
			"overallSentiment": 0.2,
			"qualityScore":     60.0,
		},
	}
	assert.InDelta(t, 0.2, dataCompleteness(partial), 0.001)
}

func TestReadinessIndicators(t *testing.T) {
	indicators := readinessIndicators(richIntelligenceData(), map[string]float64{"FRS": 82, "PCS": 78})

	assert.Contains(t, indicators, "financially_ready")
	assert.Contains(t, indicators, "psychologically_committed")
	assert.Contains(t, indicators, "positive_sentiment")
	assert.Contains(t, indicators, "property_matches_available")
	assert.Contains(t, indicators, "complete_profile")
}

func TestReadinessIndicators_NegativeSentiment(t *testing.T) {
	data := map[string]interface{}{
		"conversationIntelligence": map[string]interface{}{"overallSentiment": -0.4},
	}
	indicators := readinessIndicators(data, nil)

	assert.Contains(t, indicators, "negative_sentiment")
	assert.NotContains(t, indicators, "positive_sentiment")
}

func TestAssessQuality_Bands(t *testing.T) {
	snapshot := &models.IntelligenceSnapshot{
		PreservedIntelligence: models.EmptyPreservedIntelligence(),
	}
	assert.Equal(t, "minimal", assessQuality(snapshot))

	snapshot.PreservedIntelligence.TopPropertyMatches = []models.PropertyMatch{{ID: "p1"}}
	assert.Equal(t, "poor", assessQuality(snapshot))

	snapshot.PreservedIntelligence.ResponseRecommendations = []string{"a"}
	assert.Equal(t, "fair", assessQuality(snapshot))

	snapshot.PreservedIntelligence.BudgetRange = &models.BudgetRange{Max: 500000}
	assert.Equal(t, "good", assessQuality(snapshot))

	snapshot.ConfidenceLevel = 0.9
	assert.Equal(t, "excellent", assessQuality(snapshot))
}

func TestLastMessageTimestamp(t *testing.T) {
	ts := lastMessageTimestamp(richIntelligenceData())
	require.NotNil(t, ts)
	assert.Equal(t, "2026-08-29T10:02:00Z", ts.Format("2006-01-02T15:04:05Z07:00"))

	assert.Nil(t, lastMessageTimestamp(map[string]interface{}{}))
	assert.Nil(t, lastMessageTimestamp(map[string]interface{}{
		"conversationHistory": []interface{}{map[string]interface{}{"role": "user"}},
	}))
}
