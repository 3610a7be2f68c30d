// internal/producers/propertymatch/matcher.go
package propertymatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	commonerrors "lead-intelligence/internal/common/errors"
	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/models"
	"lead-intelligence/internal/producers"
)

const (
	StrategyLeadWithBest  = "lead_with_best_match"
	StrategyComparative   = "comparative_showcase"
	StrategyNurtureOption = "nurture_with_options"
)

// searchPreferences is the parsed, typed view of the raw preference
// map the aggregator hands in.
type searchPreferences struct {
	budgetMin   *float64
	budgetMax   *float64
	bedroomsMin *int
	locations   []string
	features    []string
	urgency     float64
}

type Matcher struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewMatcher(client *elasticsearch.Client, index string, log logger.Logger) *Matcher {
	return &Matcher{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"producer": producers.NamePropertyMatcher}),
	}
}

func (m *Matcher) FindMatches(ctx context.Context, leadID, locationID string, preferences map[string]interface{}, window []models.ConversationMessage, maxResults int) ([]producers.PropertyMatchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	prefs := parsePreferences(preferences)

	// Over-fetch so weighted scoring can reorder beyond ES relevance.
	listings, err := searchListings(ctx, m.client, m.index, prefs, maxResults*3)
	if err != nil {
		return nil, commonerrors.NewSearchQueryFailedError(m.index, err)
	}

	results := make([]producers.PropertyMatchResult, 0, len(listings))
	for _, listing := range listings {
		confidence, reasoning := scoreListing(listing, prefs)
		results = append(results, producers.PropertyMatchResult{
			ID:                      listing.ID,
			ConfidenceScore:         confidence,
			PresentationStrategy:    presentationStrategy(confidence),
			OptimalPresentationTime: presentationTime(prefs.urgency),
			BehavioralReasoning:     reasoning,
			Metadata: map[string]interface{}{
				"price":    listing.Price,
				"bedrooms": listing.Bedrooms,
				"city":     listing.City,
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ConfidenceScore > results[j].ConfidenceScore
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	m.logger.Info("matches found", map[string]interface{}{
		"leadId":     leadID,
		"locationId": locationID,
		"count":      len(results),
	})
	return results, nil
}

// scoreListing blends four weighted fit factors into a 0-1 confidence.
// Unknown preference dimensions score a neutral 50.
func scoreListing(listing Listing, prefs *searchPreferences) (float64, string) {
	budget := budgetFit(listing.Price, prefs.budgetMin, prefs.budgetMax)
	rooms := roomFit(listing.Bedrooms, prefs.bedroomsMin)
	location := locationFit(listing, prefs.locations)
	features := featureFit(listing.Features, prefs.features)

	score := budget*0.35 + location*0.25 + rooms*0.20 + features*0.20

	best := "budget"
	bestValue := budget
	for name, v := range map[string]float64{"location": location, "layout": rooms, "features": features} {
		if v > bestValue {
			best, bestValue = name, v
		}
	}
	reasoning := fmt.Sprintf("strongest alignment on %s fit (%.0f/100)", best, bestValue)

	return score / 100, reasoning
}

func budgetFit(price float64, min, max *float64) float64 {
	if max == nil || *max <= 0 {
		return 50
	}
	lo := 0.0
	if min != nil {
		lo = *min
	}
	switch {
	case price >= lo && price <= *max:
		return 100
	case price > *max:
		over := (price - *max) / *max
		if over >= 0.5 {
			return 0
		}
		return 100 - over*200
	default:
		under := (lo - price) / lo
		if under >= 0.5 {
			return 40
		}
		return 100 - under*120
	}
}

func roomFit(bedrooms int, min *int) float64 {
	if min == nil {
		return 50
	}
	switch {
	case bedrooms >= *min:
		return 100
	case bedrooms == *min-1:
		return 60
	default:
		return 30
	}
}

func locationFit(listing Listing, locations []string) float64 {
	if len(locations) == 0 {
		return 50
	}
	for _, loc := range locations {
		if strings.EqualFold(listing.City, loc) || strings.EqualFold(listing.Neighborhood, loc) {
			return 100
		}
	}
	return 40
}

func featureFit(have, want []string) float64 {
	if len(want) == 0 {
		return 50
	}
	haveSet := make(map[string]bool, len(have))
	for _, f := range have {
		haveSet[strings.ToLower(f)] = true
	}
	matched := 0
	for _, f := range want {
		if haveSet[strings.ToLower(f)] {
			matched++
		}
	}
	return float64(matched) / float64(len(want)) * 100
}

func presentationStrategy(confidence float64) string {
	switch {
	case confidence > 0.8:
		return StrategyLeadWithBest
	case confidence > 0.6:
		return StrategyComparative
	default:
		return StrategyNurtureOption
	}
}

// presentationTime suggests when to surface matches: urgent leads get
// an immediate slot, others the next morning touchpoint.
func presentationTime(urgency float64) *time.Time {
	now := time.Now().UTC()
	var at time.Time
	if urgency > 0.7 {
		at = now
	} else {
		at = time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
	return &at
}

func parsePreferences(raw map[string]interface{}) *searchPreferences {
	prefs := &searchPreferences{urgency: 0.5}
	if raw == nil {
		return prefs
	}
	if v, ok := toFloat(raw["budgetMin"]); ok {
		prefs.budgetMin = &v
	}
	if v, ok := toFloat(raw["budgetMax"]); ok {
		prefs.budgetMax = &v
	}
	if v, ok := toFloat(raw["bedroomsMin"]); ok {
		n := int(v)
		prefs.bedroomsMin = &n
	}
	if v, ok := toFloat(raw["urgencyLevel"]); ok {
		prefs.urgency = v
	}
	prefs.locations = toStringSlice(raw["locations"])
	prefs.features = toStringSlice(raw["features"])
	return prefs
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toStringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
