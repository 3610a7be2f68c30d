package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/models"
)

func createTestAnalyzer(t *testing.T) *Analyzer {
	return NewAnalyzer(logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func message(role, content string) models.ConversationMessage {
	return models.ConversationMessage{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// ==========================
// 1. Objection Detection Tests
// ==========================

func TestDetectObjections(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		expectedTypes []string
	}{
		{"price objection", "Honestly that house is too expensive for us", []string{"price"}},
		{"timing objection", "We're just looking right now", []string{"timing"}},
		{"trust objection", "You seem pushy, we already talked to another agent", []string{"trust"}},
		{"no objection", "That place looks wonderful, when can we see it?", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objections := detectObjections([]models.ConversationMessage{message("user", tt.content)})

			require.Len(t, objections, len(tt.expectedTypes))
			for i, expected := range tt.expectedTypes {
				assert.Equal(t, expected, objections[i].Type)
				assert.NotEmpty(t, objections[i].SuggestedReplies)
			}
		})
	}
}

func TestDetectObjections_DeduplicatesByType(t *testing.T) {
	window := []models.ConversationMessage{
		message("user", "That's too expensive"),
		message("user", "Way over budget for us"),
	}

	objections := detectObjections(window)

	require.Len(t, objections, 1)
	assert.Equal(t, "price", objections[0].Type)
}

// ==========================
// 2. Sentiment Tests
// ==========================

func TestMessageSentiment(t *testing.T) {
	assert.Greater(t, messageSentiment("I love it, this is perfect"), 0.0)
	assert.Less(t, messageSentiment("No, this is a bad problem"), 0.0)
	assert.Equal(t, 0.0, messageSentiment("We viewed the house on Tuesday"))
	assert.Equal(t, 1.0, messageSentiment("love great perfect excited yes"))
}

func TestSentimentTrend(t *testing.T) {
	improving := []models.ConversationMessage{
		message("user", "This is a problem"),
		message("user", "Not sure about this"),
		message("user", "Actually that sounds good"),
		message("user", "I love this one, perfect"),
	}
	declining := []models.ConversationMessage{
		message("user", "This looks great"),
		message("user", "Very excited"),
		message("user", "Hmm, that is a concern"),
		message("user", "No, this is frustrating"),
	}

	assert.Equal(t, models.TrendImproving, sentimentTrend(improving))
	assert.Equal(t, models.TrendDeclining, sentimentTrend(declining))
	assert.Equal(t, models.TrendStable, sentimentTrend(improving[:2]))
}

// ==========================
// 3. Quality and Action Tests
// ==========================

func TestQualityScore(t *testing.T) {
	assert.Equal(t, float64(50), qualityScore(nil, nil))

	window := []models.ConversationMessage{
		message("user", "We want a 3 bedroom in Austin under 500k, what do you have available?"),
		message("assistant", "Here are three options."),
		message("user", "Can you tell me more about the second one? What year was it built?"),
		message("assistant", "Built in 2015."),
	}
	user := filterByRole(window, "user")

	score := qualityScore(window, user)
	assert.Greater(t, score, 40.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestNextBestAction(t *testing.T) {
	trust := []models.Objection{{Type: "trust"}}
	price := []models.Objection{{Type: "price"}}

	assert.Equal(t, "rebuild_rapport", nextBestAction(trust, 0, 50))
	assert.Equal(t, "address_objections", nextBestAction(price, 0, 50))
	assert.Equal(t, "advance_to_showing", nextBestAction(nil, 0.5, 70))
	assert.Equal(t, "de_escalate", nextBestAction(nil, -0.5, 50))
	assert.Equal(t, "continue_discovery", nextBestAction(nil, 0.1, 50))
}

// ==========================
// 4. Analyze Tests
// ==========================

func TestAnalyze_FullWindow(t *testing.T) {
	analyzer := createTestAnalyzer(t)
	window := []models.ConversationMessage{
		message("user", "We love the Hyde Park area but that listing is too expensive"),
		message("assistant", "I can pull comparable options nearby."),
		message("user", "That sounds good, thanks"),
	}

	analysis, err := analyzer.Analyze(context.Background(), "lead-1", window)

	require.NoError(t, err)
	require.Len(t, analysis.Objections, 1)
	assert.Equal(t, "price", analysis.Objections[0].Type)
	assert.NotEmpty(t, analysis.CoachingOpportunities)
	assert.NotEmpty(t, analysis.ResponseRecommendations)
	assert.Equal(t, "address_objections", analysis.NextBestAction)
}

func TestAnalyze_EmptyWindowIsNeutral(t *testing.T) {
	analyzer := createTestAnalyzer(t)

	analysis, err := analyzer.Analyze(context.Background(), "lead-1", nil)

	require.NoError(t, err)
	assert.Empty(t, analysis.Objections)
	assert.Equal(t, 0.0, analysis.OverallSentiment)
	assert.Equal(t, models.TrendStable, analysis.SentimentTrend)
	assert.Equal(t, float64(50), analysis.QualityScore)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	analyzer := createTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.Analyze(ctx, "lead-1", nil)
	assert.Error(t, err)
}
