// internal/models/intelligence.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sentiment trend labels reported by the conversation analyzer.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// ConversationMessage is one turn of the lead conversation window.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PropertyMatch is a single scored listing match.
type PropertyMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PropertyIntelligence is the property matcher's contribution to a context.
type PropertyIntelligence struct {
	TopMatches           []PropertyMatch `json:"topMatches"`
	MatchCount           int             `json:"matchCount"`
	BestMatchScore       float64         `json:"bestMatchScore"` // 0-100
	PresentationStrategy string          `json:"presentationStrategy,omitempty"`
	Reasoning            string          `json:"reasoning,omitempty"`
}

// EmptyPropertyIntelligence is the neutral value substituted when the
// property matcher fails or returns nothing.
func EmptyPropertyIntelligence() PropertyIntelligence {
	return PropertyIntelligence{
		TopMatches:     []PropertyMatch{},
		MatchCount:     0,
		BestMatchScore: 0,
	}
}

// Objection is a detected lead objection with handling guidance.
type Objection struct {
	Type             string   `json:"type"`
	Severity         string   `json:"severity"`
	Confidence       float64  `json:"confidence"`
	Context          string   `json:"context,omitempty"`
	SuggestedReplies []string `json:"suggestedReplies,omitempty"`
}

// ConversationIntelligence is the conversation analyzer's contribution.
type ConversationIntelligence struct {
	Objections              []Objection `json:"objections"`
	OverallSentiment        float64     `json:"overallSentiment"` // -1..1
	SentimentTrend          string      `json:"sentimentTrend"`
	QualityScore            float64     `json:"qualityScore"` // 0-100
	CoachingOpportunities   []string    `json:"coachingOpportunities"`
	ResponseRecommendations []string    `json:"responseRecommendations"`
	NextBestAction          string      `json:"nextBestAction,omitempty"`
}

// EmptyConversationIntelligence returns the neutral conversation value:
// flat sentiment, median quality, no detections.
func EmptyConversationIntelligence() ConversationIntelligence {
	return ConversationIntelligence{
		Objections:              []Objection{},
		OverallSentiment:        0,
		SentimentTrend:          TrendStable,
		QualityScore:            50,
		CoachingOpportunities:   []string{},
		ResponseRecommendations: []string{},
	}
}

// BudgetRange is a lead's learned budget band.
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PreferenceIntelligence is the preference learner's contribution.
type PreferenceIntelligence struct {
	Preferences         map[string]interface{} `json:"preferences"`
	ProfileCompleteness float64                `json:"profileCompleteness"` // 0-1
	BudgetRange         *BudgetRange           `json:"budgetRange,omitempty"`
	UrgencyLevel        float64                `json:"urgencyLevel"` // 0-1
	LocationPreferences map[string]float64     `json:"locationPreferences"`
	FeaturePreferences  map[string]float64     `json:"featurePreferences"`
	PreferenceGaps      []string               `json:"preferenceGaps"`
}

// EmptyPreferenceIntelligence returns the neutral preference value.
// Urgency defaults to 0.5, unknown rather than low.
func EmptyPreferenceIntelligence() PreferenceIntelligence {
	return PreferenceIntelligence{
		Preferences:         map[string]interface{}{},
		ProfileCompleteness: 0,
		UrgencyLevel:        0.5,
		LocationPreferences: map[string]float64{},
		FeaturePreferences:  map[string]float64{},
		PreferenceGaps:      []string{},
	}
}

// PerformanceMetrics records how a single aggregation call went.
type PerformanceMetrics struct {
	ProducerDurationsMs map[string]float64 `json:"producerDurationsMs"`
	ServiceFailures     []string           `json:"serviceFailures"`
	CacheHit            bool               `json:"cacheHit"`
	StartedAt           time.Time          `json:"startedAt"`
	CompletedAt         time.Time          `json:"completedAt"`
	TotalDurationMs     float64            `json:"totalDurationMs"`
}

// AggregatedContext is the merged, composite-scored intelligence bundle
// for one lead/bot pairing. It is the unit cached by the aggregator and
// returned to bots; callers must not mutate it after it is returned.
type AggregatedContext struct {
	LeadID     string `json:"leadId"`
	LocationID string `json:"locationId"`
	BotType    string `json:"botType"`

	Property     PropertyIntelligence     `json:"propertyIntelligence"`
	Conversation ConversationIntelligence `json:"conversationIntelligence"`
	Preference   PreferenceIntelligence   `json:"preferenceIntelligence"`

	Performance PerformanceMetrics `json:"performanceMetrics"`
	CacheHit    bool               `json:"cacheHit"`
	GeneratedAt time.Time          `json:"generatedAt"`

	// Derived fields, populated only by CalculateCompositeScores.
	CompositeEngagementScore float64  `json:"compositeEngagementScore"`
	RecommendedApproach      string   `json:"recommendedApproach"`
	PriorityInsights         []string `json:"priorityInsights"`
}

// NeutralContext builds a fully-neutral context for a lead, used when
// aggregation itself fails after producer isolation should have made
// that impossible. The reason is recorded as a service failure.
func NeutralContext(leadID, locationID, botType, reason string) *AggregatedContext {
	now := time.Now().UTC()
	ctx := &AggregatedContext{
		LeadID:       leadID,
		LocationID:   locationID,
		BotType:      botType,
		Property:     EmptyPropertyIntelligence(),
		Conversation: EmptyConversationIntelligence(),
		Preference:   EmptyPreferenceIntelligence(),
		Performance: PerformanceMetrics{
			ProducerDurationsMs: map[string]float64{},
			ServiceFailures:     []string{reason},
			StartedAt:           now,
			CompletedAt:         now,
		},
		GeneratedAt: now,
	}
	ctx.CalculateCompositeScores()
	return ctx
}

// CalculateCompositeScores fills the derived fields from the three
// component signals. Deterministic; called once per fresh context.
func (c *AggregatedContext) CalculateCompositeScores() {
	propertyFactor := c.Property.BestMatchScore / 100
	if propertyFactor > 1 {
		propertyFactor = 1
	}

	conversationFactor := (c.Conversation.OverallSentiment + 1) / 2
	if conversationFactor < 0 {
		conversationFactor = 0
	}

	preferenceFactor := c.Preference.ProfileCompleteness

	c.CompositeEngagementScore = (propertyFactor + conversationFactor + preferenceFactor) / 3
	c.RecommendedApproach = recommendApproach(c.BotType, c.CompositeEngagementScore)
	c.PriorityInsights = c.buildPriorityInsights()
}

// recommendApproach maps the composite score into an approach label by
// bot family: three bands for seller bots, two for buyer bots, a fixed
// nurture label for everything else.
func recommendApproach(botType string, score float64) string {
	switch {
	case strings.Contains(botType, "seller"):
		if score > 0.7 {
			return "confrontational"
		}
		if score > 0.4 {
			return "consultative"
		}
		return "nurture"
	case strings.Contains(botType, "buyer"):
		if score > 0.6 {
			return "consultative_priority"
		}
		return "consultative"
	default:
		return "nurture"
	}
}

// buildPriorityInsights evaluates the candidate observations in fixed
// priority order and keeps the first three that fire.
func (c *AggregatedContext) buildPriorityInsights() []string {
	insights := []string{}

	if c.Property.MatchCount > 0 {
		insights = append(insights, fmt.Sprintf(
			"%d property matches available with best score %.0f/100",
			c.Property.MatchCount, c.Property.BestMatchScore))
	}

	if n := len(c.Conversation.Objections); n > 0 {
		insights = append(insights, fmt.Sprintf(
			"%d objections detected and awaiting resolution", n))
	}

	if c.Preference.ProfileCompleteness > 0.7 {
		insights = append(insights, "Preference profile is well established")
	} else if c.Preference.ProfileCompleteness < 0.3 {
		insights = append(insights, "Preference profile needs development")
	}

	if c.Conversation.OverallSentiment > 0.3 {
		insights = append(insights, "Lead sentiment is strongly positive")
	} else if c.Conversation.OverallSentiment < -0.3 {
		insights = append(insights, "Lead sentiment is trending negative")
	}

	if len(insights) > 3 {
		insights = insights[:3]
	}
	return insights
}

// ToJSON serializes the context for caching.
func (c *AggregatedContext) ToJSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal aggregated context: %w", err)
	}
	return string(data), nil
}

// ContextFromJSON deserializes a cached context.
func ContextFromJSON(data string) (*AggregatedContext, error) {
	var ctx AggregatedContext
	if err := json.Unmarshal([]byte(data), &ctx); err != nil {
		return nil, fmt.Errorf("unmarshal aggregated context: %w", err)
	}
	return &ctx, nil
}
