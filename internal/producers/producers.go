// internal/producers/producers.go
package producers

import (
	"context"
	"time"

	"lead-intelligence/internal/models"
)

// Producer names, used for failure recording and per-call metrics.
const (
	NamePropertyMatcher      = "property_matcher"
	NameConversationAnalyzer = "conversation_analyzer"
	NamePreferenceLearner    = "preference_learner"
)

// PropertyMatchResult is one scored listing from the property matcher.
type PropertyMatchResult struct {
	ID                      string                 `json:"id"`
	ConfidenceScore         float64                `json:"confidenceScore"` // 0-1
	PresentationStrategy    string                 `json:"presentationStrategy,omitempty"`
	OptimalPresentationTime *time.Time             `json:"optimalPresentationTime,omitempty"`
	BehavioralReasoning     string                 `json:"behavioralReasoning,omitempty"`
	Metadata                map[string]interface{} `json:"metadata,omitempty"`
}

// ConversationAnalysis is the conversation analyzer's full output.
type ConversationAnalysis struct {
	Objections              []models.Objection `json:"objections"`
	OverallSentiment        float64            `json:"overallSentiment"`
	SentimentTrend          string             `json:"sentimentTrend"`
	QualityScore            float64            `json:"qualityScore"`
	CoachingOpportunities   []string           `json:"coachingOpportunities"`
	ResponseRecommendations []string           `json:"responseRecommendations"`
	NextBestAction          string             `json:"nextBestAction,omitempty"`
}

// PreferenceProfile is the learner's view of a lead's preferences.
type PreferenceProfile struct {
	BudgetMin           *float64           `json:"budgetMin,omitempty"`
	BudgetMax           *float64           `json:"budgetMax,omitempty"`
	BedroomsMin         *int               `json:"bedroomsMin,omitempty"`
	BedroomsMax         *int               `json:"bedroomsMax,omitempty"`
	BathroomsMin        *float64           `json:"bathroomsMin,omitempty"`
	MoveTimeline        string             `json:"moveTimeline,omitempty"`
	ProfileCompleteness float64            `json:"profileCompleteness"`
	UrgencyLevel        float64            `json:"urgencyLevel"`
	LocationPreferences map[string]float64 `json:"locationPreferences"`
	FeaturePreferences  map[string]float64 `json:"featurePreferences"`
}

// PropertyMatcher finds listings matching a lead's learned preferences.
type PropertyMatcher interface {
	FindMatches(ctx context.Context, leadID, locationID string, preferences map[string]interface{}, window []models.ConversationMessage, maxResults int) ([]PropertyMatchResult, error)
}

// ConversationAnalyzer extracts objections, sentiment and quality from
// a conversation window.
type ConversationAnalyzer interface {
	Analyze(ctx context.Context, leadID string, window []models.ConversationMessage) (*ConversationAnalysis, error)
}

// PreferenceLearner maintains and serves learned lead preferences.
// LearnFromConversation is a fire-and-forget update invoked alongside
// the read path.
type PreferenceLearner interface {
	GetProfile(ctx context.Context, leadID string) (*PreferenceProfile, error)
	LearnFromConversation(ctx context.Context, leadID string, window []models.ConversationMessage) error
}
