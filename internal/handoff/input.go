// internal/handoff/input.go
package handoff

import (
	"encoding/json"
	"fmt"

	commonerrors "lead-intelligence/internal/common/errors"
	"lead-intelligence/internal/common/validation"
	"lead-intelligence/internal/models"
)

// preserveRequestSchema validates raw preserve payloads arriving from
// upstream bot services before they are trusted.
var preserveRequestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"leadId", "sourceBot", "targetBot", "transitionReason"},
	"properties": map[string]interface{}{
		"leadId":           map[string]interface{}{"type": "string", "minLength": 1},
		"locationId":       map[string]interface{}{"type": "string"},
		"sourceBot":        map[string]interface{}{"type": "string", "minLength": 1},
		"targetBot":        map[string]interface{}{"type": "string", "minLength": 1},
		"transitionReason": map[string]interface{}{"type": "string", "minLength": 1},
		"handoffMessage":   map[string]interface{}{"type": "string"},
		"intelligenceData": map[string]interface{}{"type": "object"},
	},
}

// PreserveRequest is the external preserve payload after validation.
type PreserveRequest struct {
	LeadID           string                 `json:"leadId"`
	LocationID       string                 `json:"locationId,omitempty"`
	SourceBot        string                 `json:"sourceBot"`
	TargetBot        string                 `json:"targetBot"`
	TransitionReason string                 `json:"transitionReason"`
	HandoffMessage   string                 `json:"handoffMessage,omitempty"`
	IntelligenceData map[string]interface{} `json:"intelligenceData,omitempty"`
}

// ParsePreserveRequest validates and decodes a raw preserve payload.
func ParsePreserveRequest(raw []byte) (*PreserveRequest, error) {
	var document map[string]interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, commonerrors.NewInvalidHandoffInputError(fmt.Sprintf("malformed JSON: %v", err))
	}

	result, err := validation.ValidateDocument(preserveRequestSchema, document)
	if err != nil {
		return nil, commonerrors.NewInvalidHandoffInputError(err.Error())
	}
	if err := result.MustPass(); err != nil {
		return nil, commonerrors.NewInvalidHandoffInputError(err.Error())
	}

	var request PreserveRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return nil, commonerrors.NewInvalidHandoffInputError(fmt.Sprintf("decode: %v", err))
	}
	return &request, nil
}

// Transition builds the typed transition from a validated request.
func (r *PreserveRequest) Transition() models.BotTransition {
	transition := models.NewBotTransition(r.LeadID, r.LocationID,
		models.BotType(r.SourceBot), models.BotType(r.TargetBot),
		models.TransitionReason(r.TransitionReason))
	transition.HandoffMessage = r.HandoffMessage
	return transition
}

// IntelligenceDataFromContext flattens an AggregatedContext into the
// duck-typed map shape Preserve consumes, attaching the conversation
// window and qualification scores the context itself does not carry.
func IntelligenceDataFromContext(aggregated *models.AggregatedContext, window []models.ConversationMessage, qualificationScores map[string]float64) (map[string]interface{}, error) {
	raw, err := aggregated.ToJSON()
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}

	if len(window) > 0 {
		history := make([]interface{}, 0, len(window))
		for _, msg := range window {
			history = append(history, map[string]interface{}{
				"role":      msg.Role,
				"content":   msg.Content,
				"timestamp": msg.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		data["conversationHistory"] = history
	}

	if len(qualificationScores) > 0 {
		scores := map[string]interface{}{}
		for name, value := range qualificationScores {
			scores[name] = value
		}
		data["qualificationScores"] = scores
	}
	return data, nil
}
