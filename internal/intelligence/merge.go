// internal/intelligence/merge.go
package intelligence

import (
	"lead-intelligence/internal/models"
	"lead-intelligence/internal/producers"
)

const topMatchLimit = 10

func propertyIntelligenceFromMatches(matches []producers.PropertyMatchResult) models.PropertyIntelligence {
	if len(matches) == 0 {
		return models.EmptyPropertyIntelligence()
	}

	intel := models.PropertyIntelligence{
		TopMatches: make([]models.PropertyMatch, 0, len(matches)),
		MatchCount: len(matches),
	}
	for i, match := range matches {
		if i >= topMatchLimit {
			break
		}
		intel.TopMatches = append(intel.TopMatches, models.PropertyMatch{
			ID:       match.ID,
			Score:    match.ConfidenceScore * 100,
			Metadata: match.Metadata,
		})
	}

	// Producer output is ordered by confidence descending.
	best := matches[0]
	intel.BestMatchScore = best.ConfidenceScore * 100
	intel.PresentationStrategy = best.PresentationStrategy
	intel.Reasoning = best.BehavioralReasoning
	return intel
}

func conversationIntelligenceFromAnalysis(analysis *producers.ConversationAnalysis) models.ConversationIntelligence {
	if analysis == nil {
		return models.EmptyConversationIntelligence()
	}
	intel := models.ConversationIntelligence{
		Objections:              analysis.Objections,
		OverallSentiment:        analysis.OverallSentiment,
		SentimentTrend:          analysis.SentimentTrend,
		QualityScore:            analysis.QualityScore,
		CoachingOpportunities:   analysis.CoachingOpportunities,
		ResponseRecommendations: analysis.ResponseRecommendations,
		NextBestAction:          analysis.NextBestAction,
	}
	if intel.Objections == nil {
		intel.Objections = []models.Objection{}
	}
	if intel.CoachingOpportunities == nil {
		intel.CoachingOpportunities = []string{}
	}
	if intel.ResponseRecommendations == nil {
		intel.ResponseRecommendations = []string{}
	}
	return intel
}

func preferenceIntelligenceFromProfile(profile *producers.PreferenceProfile) models.PreferenceIntelligence {
	if profile == nil {
		return models.EmptyPreferenceIntelligence()
	}

	intel := models.PreferenceIntelligence{
		Preferences:         map[string]interface{}{},
		ProfileCompleteness: profile.ProfileCompleteness,
		UrgencyLevel:        profile.UrgencyLevel,
		LocationPreferences: profile.LocationPreferences,
		FeaturePreferences:  profile.FeaturePreferences,
		PreferenceGaps:      []string{},
	}
	if intel.LocationPreferences == nil {
		intel.LocationPreferences = map[string]float64{}
	}
	if intel.FeaturePreferences == nil {
		intel.FeaturePreferences = map[string]float64{}
	}

	if profile.BudgetMin != nil {
		intel.Preferences["budgetMin"] = *profile.BudgetMin
	}
	if profile.BudgetMax != nil {
		intel.Preferences["budgetMax"] = *profile.BudgetMax
	}
	if profile.BudgetMin != nil || profile.BudgetMax != nil {
		budget := &models.BudgetRange{}
		if profile.BudgetMin != nil {
			budget.Min = *profile.BudgetMin
		}
		if profile.BudgetMax != nil {
			budget.Max = *profile.BudgetMax
		}
		intel.BudgetRange = budget
	} else {
		intel.PreferenceGaps = append(intel.PreferenceGaps, "budget")
	}

	if profile.BedroomsMin != nil {
		intel.Preferences["bedroomsMin"] = *profile.BedroomsMin
	}
	if profile.BedroomsMax != nil {
		intel.Preferences["bedroomsMax"] = *profile.BedroomsMax
	}
	if profile.BedroomsMin == nil && profile.BedroomsMax == nil {
		intel.PreferenceGaps = append(intel.PreferenceGaps, "bedrooms")
	}

	if profile.BathroomsMin != nil {
		intel.Preferences["bathroomsMin"] = *profile.BathroomsMin
	}

	if profile.MoveTimeline != "" {
		intel.Preferences["moveTimeline"] = profile.MoveTimeline
	} else {
		intel.PreferenceGaps = append(intel.PreferenceGaps, "timeline")
	}

	if len(intel.LocationPreferences) == 0 {
		intel.PreferenceGaps = append(intel.PreferenceGaps, "location")
	}

	return intel
}
