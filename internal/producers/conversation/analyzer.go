// internal/producers/conversation/analyzer.go
package conversation

import (
	"context"
	"strings"

	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/models"
	"lead-intelligence/internal/producers"
)

// Objection detection is keyword-driven: each objection type carries
// trigger phrases plus the replies a bot can lean on.
type objectionPattern struct {
	objType          string
	severity         string
	triggers         []string
	suggestedReplies []string
	coaching         string
}

var objectionPatterns = []objectionPattern{
	{
		objType:      "price",
		severity:     "high",
		triggers:     []string{"too expensive", "can't afford", "over budget", "price is high", "cheaper"},
		suggestedReplies: []string{
			"Acknowledge the budget concern and pivot to total monthly cost.",
			"Offer comparable listings in a lower bracket.",
		},
		coaching: "Lead is price sensitive; anchor on value before price.",
	},
	{
		objType:      "timing",
		severity:     "medium",
		triggers:     []string{"not ready", "maybe next year", "just looking", "too soon", "need more time"},
		suggestedReplies: []string{
			"Respect the timeline and propose a low-pressure market update cadence.",
		},
		coaching: "Timeline is soft; shift to nurture touchpoints.",
	},
	{
		objType:      "trust",
		severity:     "high",
		triggers:     []string{"don't trust", "scam", "pushy", "pressure", "another agent"},
		suggestedReplies: []string{
			"Slow down, share credentials and recent client outcomes.",
		},
		coaching: "Trust gap detected; reduce pitch density, add proof points.",
	},
	{
		objType:      "location",
		severity:     "low",
		triggers:     []string{"wrong area", "too far", "bad neighborhood", "different part of town"},
		suggestedReplies: []string{
			"Ask which areas feel right and re-filter matches.",
		},
		coaching: "Location preferences not yet captured accurately.",
	},
	{
		objType:      "condition",
		severity:     "low",
		triggers:     []string{"needs work", "too old", "fixer", "renovation", "repairs"},
		suggestedReplies: []string{
			"Surface move-in-ready alternatives or renovation financing.",
		},
		coaching: "Filter for condition; lead is not a project buyer.",
	},
}

var positiveTerms = []string{
	"love", "great", "perfect", "excited", "interested", "yes", "awesome",
	"beautiful", "thanks", "thank you", "sounds good", "let's do it", "ready",
}

var negativeTerms = []string{
	"no", "not", "hate", "bad", "never", "problem", "worried", "concern",
	"unfortunately", "frustrated", "disappointed", "stop", "annoying",
}

type Analyzer struct {
	logger logger.Logger
}

func NewAnalyzer(log logger.Logger) *Analyzer {
	return &Analyzer{
		logger: log.WithFields(map[string]interface{}{"producer": producers.NameConversationAnalyzer}),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, leadID string, window []models.ConversationMessage) (*producers.ConversationAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userMessages := filterByRole(window, "user")

	objections := detectObjections(userMessages)
	sentiment := overallSentiment(userMessages)
	trend := sentimentTrend(userMessages)
	quality := qualityScore(window, userMessages)

	analysis := &producers.ConversationAnalysis{
		Objections:              objections,
		OverallSentiment:        sentiment,
		SentimentTrend:          trend,
		QualityScore:            quality,
		CoachingOpportunities:   coachingOpportunities(objections, quality),
		ResponseRecommendations: responseRecommendations(objections),
		NextBestAction:          nextBestAction(objections, sentiment, quality),
	}

	a.logger.Debug("conversation analyzed", map[string]interface{}{
		"leadId":     leadID,
		"messages":   len(window),
		"objections": len(objections),
		"sentiment":  sentiment,
	})
	return analysis, nil
}

func filterByRole(window []models.ConversationMessage, role string) []models.ConversationMessage {
	out := make([]models.ConversationMessage, 0, len(window))
	for _, msg := range window {
		if strings.EqualFold(msg.Role, role) {
			out = append(out, msg)
		}
	}
	return out
}

func detectObjections(messages []models.ConversationMessage) []models.Objection {
	var objections []models.Objection
	seen := make(map[string]bool)

	for _, msg := range messages {
		lower := strings.ToLower(msg.Content)
		for _, pattern := range objectionPatterns {
			if seen[pattern.objType] {
				continue
			}
			for _, trigger := range pattern.triggers {
				if strings.Contains(lower, trigger) {
					seen[pattern.objType] = true
					objections = append(objections, models.Objection{
						Type:             pattern.objType,
						Severity:         pattern.severity,
						Confidence:       0.75,
						Context:          msg.Content,
						SuggestedReplies: pattern.suggestedReplies,
					})
					break
				}
			}
		}
	}
	return objections
}

// messageSentiment counts lexicon hits and normalizes into [-1, 1].
func messageSentiment(content string) float64 {
	lower := strings.ToLower(content)
	score := 0
	for _, term := range positiveTerms {
		if strings.Contains(lower, term) {
			score++
		}
	}
	for _, term := range negativeTerms {
		if strings.Contains(lower, term) {
			score--
		}
	}
	switch {
	case score > 3:
		return 1
	case score < -3:
		return -1
	default:
		return float64(score) / 3
	}
}

func overallSentiment(messages []models.ConversationMessage) float64 {
	if len(messages) == 0 {
		return 0
	}
	total := 0.0
	for _, msg := range messages {
		total += messageSentiment(msg.Content)
	}
	return total / float64(len(messages))
}

// sentimentTrend compares the first and second halves of the window.
func sentimentTrend(messages []models.ConversationMessage) string {
	if len(messages) < 4 {
		return models.TrendStable
	}
	mid := len(messages) / 2
	early := overallSentiment(messages[:mid])
	late := overallSentiment(messages[mid:])

	switch {
	case late-early > 0.15:
		return models.TrendImproving
	case early-late > 0.15:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// qualityScore blends engagement heuristics into 0-100. An empty
// window scores a neutral 50.
func qualityScore(window, userMessages []models.ConversationMessage) float64 {
	if len(window) == 0 {
		return 50
	}

	depth := float64(len(window)) * 5
	if depth > 30 {
		depth = 30
	}

	participation := 0.0
	if len(window) > 0 {
		participation = float64(len(userMessages)) / float64(len(window)) * 30
	}

	substance := 0.0
	questions := 0.0
	for _, msg := range userMessages {
		if len(msg.Content) > 40 {
			substance += 5
		}
		if strings.Contains(msg.Content, "?") {
			questions += 5
		}
	}
	if substance > 25 {
		substance = 25
	}
	if questions > 15 {
		questions = 15
	}

	return depth + participation + substance + questions
}

func coachingOpportunities(objections []models.Objection, quality float64) []string {
	var out []string
	for _, obj := range objections {
		for _, pattern := range objectionPatterns {
			if pattern.objType == obj.Type {
				out = append(out, pattern.coaching)
				break
			}
		}
	}
	if quality < 30 {
		out = append(out, "Engagement is shallow; ask open-ended discovery questions.")
	}
	return out
}

func responseRecommendations(objections []models.Objection) []string {
	var out []string
	for _, obj := range objections {
		out = append(out, obj.SuggestedReplies...)
	}
	return out
}

func nextBestAction(objections []models.Objection, sentiment, quality float64) string {
	for _, obj := range objections {
		if obj.Type == "trust" {
			return "rebuild_rapport"
		}
	}
	switch {
	case len(objections) > 0:
		return "address_objections"
	case sentiment > 0.3 && quality > 60:
		return "advance_to_showing"
	case sentiment < -0.3:
		return "de_escalate"
	default:
		return "continue_discovery"
	}
}
