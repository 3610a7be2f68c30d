// internal/handoff/snapshot.go
package handoff

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lead-intelligence/internal/models"
)

const topMatchKeepLimit = 5

// buildSnapshot assembles the extended-TTL snapshot from a duck-typed
// intelligence map plus the transition decision. The map is shaped
// like an AggregatedContext's serialized form but may come from
// anywhere; every extraction tolerates missing or oddly-typed fields.
func buildSnapshot(leadID, locationID string, intelligenceData map[string]interface{}, transition *models.BotTransition) *models.IntelligenceSnapshot {
	guidance := strategicGuidance(transition.TargetBot)
	scores := extractQualificationScores(intelligenceData)

	return &models.IntelligenceSnapshot{
		SnapshotID:        uuid.New().String(),
		LeadID:            leadID,
		LocationID:        locationID,
		SourceBot:         transition.SourceBot,
		TargetBot:         transition.TargetBot,
		SnapshotTimestamp: time.Now().UTC(),

		PreservedIntelligence: extractPreservedIntelligence(intelligenceData),

		ConversationSummary:  conversationSummary(intelligenceData, transition, scores),
		ConversationLength:   conversationLength(intelligenceData),
		LastMessageTimestamp: lastMessageTimestamp(intelligenceData),

		QualificationScores:       scores,
		TemperatureClassification: getString(intelligenceData, "temperatureClassification"),
		ReadinessIndicators:       readinessIndicators(intelligenceData, scores),

		RecommendedNextActions: guidance.nextActions,
		StrategicApproach:      guidance.approach,
		ConversationGoals:      guidance.goals,
		WarningFlags:           guidance.warnings,

		TransitionReason: transition.TransitionReason,
		HandoffMessage:   transition.HandoffMessage,

		ConfidenceLevel:       confidenceLevel(intelligenceData),
		DataCompletenessRatio: dataCompleteness(intelligenceData),
	}
}

// extractPreservedIntelligence keeps the dense subset: top-5 matches,
// conversation signals, preference signals, behavioral labels.
func extractPreservedIntelligence(data map[string]interface{}) models.PreservedIntelligence {
	preserved := models.EmptyPreservedIntelligence()

	property := getMap(data, "propertyIntelligence")
	preserved.TopPropertyMatches = extractMatches(property, topMatchKeepLimit)
	preserved.BestMatchScore = getFloat(property, "bestMatchScore", 0)
	preserved.PropertyPresentationStrategy = getString(property, "presentationStrategy")

	conversation := getMap(data, "conversationIntelligence")
	preserved.ConversationQualityScore = getFloat(conversation, "qualityScore", 50)
	preserved.OverallSentiment = getFloat(conversation, "overallSentiment", 0)
	preserved.SentimentTrend = getStringDefault(conversation, "sentimentTrend", models.TrendStable)
	preserved.KeyObjections = extractObjections(conversation)
	preserved.ResponseRecommendations = getStringSlice(conversation, "responseRecommendations")

	preference := getMap(data, "preferenceIntelligence")
	if budget := getMap(preference, "budgetRange"); budget != nil {
		preserved.BudgetRange = &models.BudgetRange{
			Min: getFloat(budget, "min", 0),
			Max: getFloat(budget, "max", 0),
		}
	}
	preserved.LocationPreferences = getWeightMap(preference, "locationPreferences")
	preserved.FeaturePreferences = getWeightMap(preference, "featurePreferences")
	preserved.MoveTimeline = getString(getMap(preference, "preferences"), "moveTimeline")
	preserved.UrgencyLevel = getFloat(preference, "urgencyLevel", 0.5)
	preserved.ProfileCompleteness = getFloat(preference, "profileCompleteness", 0)

	if v := getString(data, "engagementPattern"); v != "" {
		preserved.EngagementPattern = v
	}
	if v := getString(data, "communicationStyle"); v != "" {
		preserved.CommunicationStyle = v
	}
	if v := getString(data, "decisionMakingStyle"); v != "" {
		preserved.DecisionMakingStyle = v
	}
	if v := getString(data, "riskTolerance"); v != "" {
		preserved.RiskTolerance = v
	}

	return preserved
}

// conversationSummary picks a short template by transition reason.
func conversationSummary(data map[string]interface{}, transition *models.BotTransition, scores map[string]float64) string {
	objections := getSlice(getMap(data, "conversationIntelligence"), "objections")

	switch transition.TransitionReason {
	case models.ReasonQualifiedBuyer:
		return fmt.Sprintf(
			"Seller qualified with FRS %.0f/PCS %.0f, expressed buyer interest. %d objections addressed. Ready for buyer consultation.",
			scores["FRS"], scores["PCS"], len(objections))
	case models.ReasonQualifiedSeller:
		return "Buyer qualified, also interested in selling current property. Property preferences established. Transition to seller qualification."
	case models.ReasonEscalationRequested:
		return "Complex situation requiring human agent intervention. Review conversation history and address concerns."
	default:
		return fmt.Sprintf("Bot transition initiated. %d messages exchanged, qualification in progress.",
			conversationLength(data))
	}
}

type guidance struct {
	nextActions []string
	approach    string
	goals       []string
	warnings    []string
}

// strategicGuidance is a fixed rule table keyed by destination bot.
func strategicGuidance(target models.BotType) guidance {
	switch target {
	case models.BotJorgeBuyer:
		return guidance{
			approach: "consultative",
			nextActions: []string{
				"Review property preferences from seller conversation",
				"Establish budget and timeline",
				"Present property matches with strategic reasoning",
			},
			goals: []string{
				"Qualify buying motivation and capacity",
				"Identify property criteria",
				"Schedule property viewings",
			},
			warnings: []string{},
		}
	case models.BotJorgeSeller:
		return guidance{
			approach: "confrontational",
			nextActions: []string{
				"Challenge on timeline and motivation",
				"Qualify financial readiness",
				"Present Jorge's value proposition",
			},
			goals: []string{
				"Establish selling urgency",
				"Qualify price expectations",
				"Secure listing commitment",
			},
			warnings: []string{},
		}
	case models.BotHumanAgent:
		return guidance{
			approach: "supportive",
			nextActions: []string{
				"Review complete conversation history",
				"Address unresolved objections",
				"Provide personalized consultation",
			},
			goals:    []string{},
			warnings: []string{"Complex situation requiring human touch"},
		}
	default:
		return guidance{
			approach:    "consultative",
			nextActions: []string{"Continue conversation"},
			goals:       []string{"Maintain engagement"},
			warnings:    []string{},
		}
	}
}

func extractQualificationScores(data map[string]interface{}) map[string]float64 {
	scores := map[string]float64{}
	for name, value := range getMap(data, "qualificationScores") {
		if v, ok := asFloat(value); ok {
			scores[name] = v
		}
	}
	return scores
}

// readinessIndicators evaluates the fixed indicator checklist.
func readinessIndicators(data map[string]interface{}, scores map[string]float64) []string {
	indicators := []string{}

	if scores["FRS"] >= 75 {
		indicators = append(indicators, "financially_ready")
	}
	if scores["PCS"] >= 75 {
		indicators = append(indicators, "psychologically_committed")
	}

	sentiment := getFloat(getMap(data, "conversationIntelligence"), "overallSentiment", 0)
	if sentiment > 0.5 {
		indicators = append(indicators, "positive_sentiment")
	} else if sentiment < -0.2 {
		indicators = append(indicators, "negative_sentiment")
	}

	if getFloat(getMap(data, "propertyIntelligence"), "matchCount", 0) > 0 {
		indicators = append(indicators, "property_matches_available")
	}
	if getFloat(getMap(data, "preferenceIntelligence"), "profileCompleteness", 0) > 0.7 {
		indicators = append(indicators, "complete_profile")
	}

	return indicators
}

// confidenceLevel averages conversation depth, component presence and
// conversation quality into 0-1.
func confidenceLevel(data map[string]interface{}) float64 {
	conversationFactor := float64(conversationLength(data)) / 5
	if conversationFactor > 1 {
		conversationFactor = 1
	}

	present := 0
	if len(getSlice(getMap(data, "propertyIntelligence"), "topMatches")) > 0 {
		present++
	}
	if len(getMap(data, "conversationIntelligence")) > 0 {
		present++
	}
	if len(getMap(data, "preferenceIntelligence")) > 0 {
		present++
	}
	presenceFactor := float64(present) / 3

	qualityFactor := getFloat(getMap(data, "conversationIntelligence"), "qualityScore", 50) / 100

	return (conversationFactor + presenceFactor + qualityFactor) / 3
}

// dataCompleteness is a fixed 10-field checklist across the three
// intelligence components.
func dataCompleteness(data map[string]interface{}) float64 {
	completed := 0

	property := getMap(data, "propertyIntelligence")
	if len(getSlice(property, "topMatches")) > 0 {
		completed++
	}
	if getFloat(property, "bestMatchScore", 0) > 0 {
		completed++
	}
	if getString(property, "presentationStrategy") != "" {
		completed++
	}

	conversation := getMap(data, "conversationIntelligence")
	if len(getSlice(conversation, "objections")) > 0 {
		completed++
	}
	if _, ok := conversation["overallSentiment"]; ok {
		completed++
	}
	if getFloat(conversation, "qualityScore", 0) > 0 {
		completed++
	}
	if len(getStringSlice(conversation, "responseRecommendations")) > 0 {
		completed++
	}

	preference := getMap(data, "preferenceIntelligence")
	if getMap(preference, "budgetRange") != nil {
		completed++
	}
	if len(getWeightMap(preference, "locationPreferences")) > 0 {
		completed++
	}
	if getFloat(preference, "profileCompleteness", 0) > 0 {
		completed++
	}

	return float64(completed) / 10
}

// assessQuality grades a snapshot 0-4 for the handoff event payload.
func assessQuality(snapshot *models.IntelligenceSnapshot) string {
	score := 0
	preserved := snapshot.PreservedIntelligence

	if len(preserved.TopPropertyMatches) > 0 {
		score++
	}
	if len(preserved.KeyObjections) > 0 || len(preserved.ResponseRecommendations) > 0 {
		score++
	}
	if preserved.BudgetRange != nil || len(preserved.LocationPreferences) > 0 {
		score++
	}
	if snapshot.ConfidenceLevel > 0.8 {
		score++
	}

	switch score {
	case 4:
		return "excellent"
	case 3:
		return "good"
	case 2:
		return "fair"
	case 1:
		return "poor"
	default:
		return "minimal"
	}
}

func conversationLength(data map[string]interface{}) int {
	return len(getSlice(data, "conversationHistory"))
}

func lastMessageTimestamp(data map[string]interface{}) *time.Time {
	history := getSlice(data, "conversationHistory")
	if len(history) == 0 {
		return nil
	}
	last, ok := history[len(history)-1].(map[string]interface{})
	if !ok {
		return nil
	}
	raw := getString(last, "timestamp")
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

func extractMatches(property map[string]interface{}, limit int) []models.PropertyMatch {
	matches := []models.PropertyMatch{}
	for i, raw := range getSlice(property, "topMatches") {
		if i >= limit {
			break
		}
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		match := models.PropertyMatch{
			ID:    getString(m, "id"),
			Score: getFloat(m, "score", 0),
		}
		if meta, ok := m["metadata"].(map[string]interface{}); ok {
			match.Metadata = meta
		}
		matches = append(matches, match)
	}
	return matches
}

func extractObjections(conversation map[string]interface{}) []models.Objection {
	objections := []models.Objection{}
	for _, raw := range getSlice(conversation, "objections") {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		objections = append(objections, models.Objection{
			Type:             getString(m, "type"),
			Severity:         getString(m, "severity"),
			Confidence:       getFloat(m, "confidence", 0),
			Context:          getString(m, "context"),
			SuggestedReplies: getStringSlice(m, "suggestedReplies"),
		})
	}
	return objections
}

// --- duck-typed map access helpers ---

func getMap(data map[string]interface{}, key string) map[string]interface{} {
	if data == nil {
		return nil
	}
	if m, ok := data[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

func getSlice(data map[string]interface{}, key string) []interface{} {
	if data == nil {
		return nil
	}
	if s, ok := data[key].([]interface{}); ok {
		return s
	}
	return nil
}

func getFloat(data map[string]interface{}, key string, fallback float64) float64 {
	if data == nil {
		return fallback
	}
	if v, ok := asFloat(data[key]); ok {
		return v
	}
	return fallback
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func getString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func getStringDefault(data map[string]interface{}, key, fallback string) string {
	if s := getString(data, key); s != "" {
		return s
	}
	return fallback
}

func getStringSlice(data map[string]interface{}, key string) []string {
	out := []string{}
	switch s := data[key].(type) {
	case []string:
		return s
	case []interface{}:
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
	}
	return out
}

func getWeightMap(data map[string]interface{}, key string) map[string]float64 {
	out := map[string]float64{}
	if data == nil {
		return out
	}
	switch m := data[key].(type) {
	case map[string]float64:
		return m
	case map[string]interface{}:
		for k, v := range m {
			if f, ok := asFloat(v); ok {
				out[k] = f
			}
		}
	}
	return out
}
