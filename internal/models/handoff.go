// internal/models/handoff.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BotType names a conversational agent role in the ecosystem.
type BotType string

const (
	BotJorgeSeller BotType = "jorge-seller"
	BotJorgeBuyer  BotType = "jorge-buyer"
	BotLeadNurture BotType = "lead-bot"
	BotHumanAgent  BotType = "human-agent"
)

// TransitionReason classifies why a handoff was initiated.
type TransitionReason string

const (
	ReasonQualifiedBuyer      TransitionReason = "qualified_buyer"
	ReasonQualifiedSeller     TransitionReason = "qualified_seller"
	ReasonEscalationRequested TransitionReason = "escalation_requested"
	ReasonDormantReturn       TransitionReason = "dormant_return"
	ReasonManualHandoff       TransitionReason = "manual_handoff"
)

// HandoffStatus is the outcome classification of a preserve operation.
type HandoffStatus string

const (
	HandoffSuccess HandoffStatus = "success"
	HandoffFailed  HandoffStatus = "failed"
	HandoffPartial HandoffStatus = "partial"
	HandoffExpired HandoffStatus = "expired"
)

// PriorityLevel ranks how urgently the target bot should pick up.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityNormal PriorityLevel = "normal"
	PriorityHigh   PriorityLevel = "high"
	PriorityUrgent PriorityLevel = "urgent"
)

// BotTransition is the transition decision handed to the preservation
// service. Created elsewhere; consumed read-only here.
type BotTransition struct {
	TransitionID        string           `json:"transitionId"`
	LeadID              string           `json:"leadId"`
	LocationID          string           `json:"locationId"`
	SourceBot           BotType          `json:"sourceBot"`
	TargetBot           BotType          `json:"targetBot"`
	TransitionReason    TransitionReason `json:"transitionReason"`
	HandoffMessage      string           `json:"handoffMessage,omitempty"`
	RecommendedApproach string           `json:"recommendedApproach,omitempty"`
	Priority            PriorityLevel    `json:"priorityLevel"`
	InitiatedAt         time.Time        `json:"initiatedAt"`
	ExpectedDurationSec int              `json:"expectedDurationSeconds,omitempty"`
}

// NewBotTransition builds a transition with a fresh id and normal priority.
func NewBotTransition(leadID, locationID string, source, target BotType, reason TransitionReason) BotTransition {
	return BotTransition{
		TransitionID:     uuid.New().String(),
		LeadID:           leadID,
		LocationID:       locationID,
		SourceBot:        source,
		TargetBot:        target,
		TransitionReason: reason,
		Priority:         PriorityNormal,
		InitiatedAt:      time.Now().UTC(),
	}
}

// PreservedIntelligence is the dense subset of an AggregatedContext that
// survives a handoff, plus behavioral labels with fixed defaults.
type PreservedIntelligence struct {
	TopPropertyMatches           []PropertyMatch    `json:"topPropertyMatches"`
	BestMatchScore               float64            `json:"bestMatchScore"`
	PropertyPresentationStrategy string             `json:"propertyPresentationStrategy,omitempty"`
	ConversationQualityScore     float64            `json:"conversationQualityScore"`
	OverallSentiment             float64            `json:"overallSentiment"`
	SentimentTrend               string             `json:"sentimentTrend"`
	KeyObjections                []Objection        `json:"keyObjections"`
	ResponseRecommendations      []string           `json:"responseRecommendations"`
	BudgetRange                  *BudgetRange       `json:"budgetRange,omitempty"`
	LocationPreferences          map[string]float64 `json:"locationPreferences"`
	FeaturePreferences           map[string]float64 `json:"featurePreferences"`
	MoveTimeline                 string             `json:"moveTimeline,omitempty"`
	UrgencyLevel                 float64            `json:"urgencyLevel"`
	ProfileCompleteness          float64            `json:"profileCompleteness"`
	EngagementPattern            string             `json:"engagementPattern"`
	CommunicationStyle           string             `json:"communicationStyle"`
	DecisionMakingStyle          string             `json:"decisionMakingStyle"`
	RiskTolerance                string             `json:"riskTolerance"`
}

// EmptyPreservedIntelligence returns the neutral preserved subset with
// the fixed behavioral defaults.
func EmptyPreservedIntelligence() PreservedIntelligence {
	return PreservedIntelligence{
		TopPropertyMatches:       []PropertyMatch{},
		ConversationQualityScore: 50,
		SentimentTrend:           TrendStable,
		KeyObjections:            []Objection{},
		ResponseRecommendations:  []string{},
		LocationPreferences:      map[string]float64{},
		FeaturePreferences:       map[string]float64{},
		UrgencyLevel:             0.5,
		EngagementPattern:        "responsive",
		CommunicationStyle:       "professional",
		DecisionMakingStyle:      "analytical",
		RiskTolerance:            "moderate",
	}
}

// IntelligenceSnapshot is the extended-TTL bundle preserved across a
// handoff. Never mutated after creation.
type IntelligenceSnapshot struct {
	SnapshotID        string    `json:"snapshotId"`
	LeadID            string    `json:"leadId"`
	LocationID        string    `json:"locationId"`
	SourceBot         BotType   `json:"sourceBot"`
	TargetBot         BotType   `json:"targetBot,omitempty"`
	SnapshotTimestamp time.Time `json:"snapshotTimestamp"`

	PreservedIntelligence PreservedIntelligence `json:"preservedIntelligence"`

	ConversationSummary  string     `json:"conversationSummary"`
	ConversationLength   int        `json:"conversationLength"`
	LastMessageTimestamp *time.Time `json:"lastMessageTimestamp,omitempty"`

	QualificationScores       map[string]float64 `json:"qualificationScores"`
	TemperatureClassification string             `json:"temperatureClassification,omitempty"`
	ReadinessIndicators       []string           `json:"readinessIndicators"`

	RecommendedNextActions []string `json:"recommendedNextActions"`
	StrategicApproach      string   `json:"strategicApproach"`
	ConversationGoals      []string `json:"conversationGoals"`
	WarningFlags           []string `json:"warningFlags"`

	TransitionReason TransitionReason `json:"transitionReason"`
	HandoffMessage   string           `json:"handoffMessage,omitempty"`

	ConfidenceLevel       float64 `json:"confidenceLevel"`
	DataCompletenessRatio float64 `json:"dataCompletenessRatio"`
}

// Age returns how old the snapshot is at the given instant.
func (s *IntelligenceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.SnapshotTimestamp)
}

// ToJSON serializes the snapshot for caching.
func (s *IntelligenceSnapshot) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal intelligence snapshot: %w", err)
	}
	return string(data), nil
}

// SnapshotFromJSON deserializes a cached snapshot.
func SnapshotFromJSON(data string) (*IntelligenceSnapshot, error) {
	var snap IntelligenceSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal intelligence snapshot: %w", err)
	}
	return &snap, nil
}

// ContextHandoff is the audit record returned by Preserve.
type ContextHandoff struct {
	Success    bool          `json:"success"`
	Status     HandoffStatus `json:"status"`
	LeadID     string        `json:"leadId"`
	LocationID string        `json:"locationId"`

	SnapshotID   string `json:"snapshotId,omitempty"`
	TransitionID string `json:"transitionId,omitempty"`

	PreservationLatencyMs float64 `json:"preservationLatencyMs"`
	RetrievalLatencyMs    float64 `json:"retrievalLatencyMs,omitempty"`
	DataSizeBytes         int     `json:"dataSizeBytes"`

	CacheKey        string `json:"cacheKey,omitempty"`
	CacheTTLSeconds int    `json:"cacheTtlSeconds,omitempty"`
	CacheHit        bool   `json:"cacheHit"`

	HandoffInitiatedAt time.Time `json:"handoffInitiatedAt"`
	HandoffCompletedAt time.Time `json:"handoffCompletedAt"`
	ContextExpiresAt   time.Time `json:"contextExpiresAt,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`
}

// NewSuccessHandoff builds the success audit record for a preserve call.
func NewSuccessHandoff(leadID, locationID, snapshotID, transitionID string, latencyMs float64, cacheKey string, cacheTTL time.Duration) ContextHandoff {
	now := time.Now().UTC()
	return ContextHandoff{
		Success:               true,
		Status:                HandoffSuccess,
		LeadID:                leadID,
		LocationID:            locationID,
		SnapshotID:            snapshotID,
		TransitionID:          transitionID,
		PreservationLatencyMs: latencyMs,
		CacheKey:              cacheKey,
		CacheTTLSeconds:       int(cacheTTL.Seconds()),
		HandoffInitiatedAt:    now,
		HandoffCompletedAt:    now,
		ContextExpiresAt:      now.Add(cacheTTL),
	}
}

// NewFailureHandoff builds the failure audit record. Never raised as an
// error; returned so callers always get a value.
func NewFailureHandoff(leadID, locationID, errorMessage string, latencyMs float64) ContextHandoff {
	now := time.Now().UTC()
	return ContextHandoff{
		Success:               false,
		Status:                HandoffFailed,
		LeadID:                leadID,
		LocationID:            locationID,
		PreservationLatencyMs: latencyMs,
		HandoffInitiatedAt:    now,
		HandoffCompletedAt:    now,
		ErrorMessage:          errorMessage,
	}
}

// maxHistoryRecords bounds the retained transition log. Running
// aggregates cover the full lifetime regardless of pruning.
const maxHistoryRecords = 50

// TransitionRecord pairs a transition with its handoff outcome.
type TransitionRecord struct {
	Transition BotTransition  `json:"transition"`
	Handoff    ContextHandoff `json:"handoff"`
}

// TransitionHistory is the per-lead append-only handoff audit trail.
type TransitionHistory struct {
	LeadID     string             `json:"leadId"`
	LocationID string             `json:"locationId"`
	Records    []TransitionRecord `json:"records"`

	TotalTransitions        int     `json:"totalTransitions"`
	SuccessfulHandoffs      int     `json:"successfulHandoffs"`
	FailedHandoffs          int     `json:"failedHandoffs"`
	AverageHandoffLatencyMs float64 `json:"averageHandoffLatencyMs"`

	FirstTransitionAt *time.Time `json:"firstTransitionAt,omitempty"`
	LastTransitionAt  *time.Time `json:"lastTransitionAt,omitempty"`
}

// NewTransitionHistory returns an empty history for a lead.
func NewTransitionHistory(leadID, locationID string) *TransitionHistory {
	return &TransitionHistory{
		LeadID:     leadID,
		LocationID: locationID,
		Records:    []TransitionRecord{},
	}
}

// AddTransition appends a transition/handoff pair and updates the
// running aggregates incrementally.
func (h *TransitionHistory) AddTransition(transition BotTransition, handoff ContextHandoff) {
	h.Records = append(h.Records, TransitionRecord{Transition: transition, Handoff: handoff})
	if len(h.Records) > maxHistoryRecords {
		h.Records = h.Records[len(h.Records)-maxHistoryRecords:]
	}

	h.TotalTransitions++
	if handoff.Success {
		h.SuccessfulHandoffs++
	} else {
		h.FailedHandoffs++
	}

	n := float64(h.TotalTransitions)
	h.AverageHandoffLatencyMs = (h.AverageHandoffLatencyMs*(n-1) + handoff.PreservationLatencyMs) / n

	now := transition.InitiatedAt
	if h.FirstTransitionAt == nil {
		h.FirstTransitionAt = &now
	}
	h.LastTransitionAt = &now
}

// ToJSON serializes the history for caching.
func (h *TransitionHistory) ToJSON() (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("marshal transition history: %w", err)
	}
	return string(data), nil
}

// HistoryFromJSON deserializes a cached history.
func HistoryFromJSON(data string) (*TransitionHistory, error) {
	var h TransitionHistory
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("unmarshal transition history: %w", err)
	}
	return &h, nil
}
