package propertymatch

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// ==========================
// 1. Fit Factor Tests
// ==========================

func TestBudgetFit(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		min, max *float64
		expected float64
	}{
		{"no budget stated", 450000, nil, nil, 50},
		{"inside range", 450000, floatPtr(400000), floatPtr(500000), 100},
		{"at upper bound", 500000, floatPtr(400000), floatPtr(500000), 100},
		{"slightly over budget", 550000, floatPtr(400000), floatPtr(500000), 80},
		{"far over budget", 800000, floatPtr(400000), floatPtr(500000), 0},
		{"no lower bound", 100000, nil, floatPtr(500000), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, budgetFit(tt.price, tt.min, tt.max), 0.01)
		})
	}
}

func TestRoomFit(t *testing.T) {
	assert.Equal(t, float64(50), roomFit(3, nil))
	assert.Equal(t, float64(100), roomFit(4, intPtr(3)))
	assert.Equal(t, float64(100), roomFit(3, intPtr(3)))
	assert.Equal(t, float64(60), roomFit(2, intPtr(3)))
	assert.Equal(t, float64(30), roomFit(1, intPtr(3)))
}

func TestLocationFit(t *testing.T) {
	listing := Listing{City: "Austin", Neighborhood: "Hyde Park"}

	assert.Equal(t, float64(50), locationFit(listing, nil))
	assert.Equal(t, float64(100), locationFit(listing, []string{"austin"}))
	assert.Equal(t, float64(100), locationFit(listing, []string{"Round Rock", "Hyde Park"}))
	assert.Equal(t, float64(40), locationFit(listing, []string{"Dallas"}))
}

func TestFeatureFit(t *testing.T) {
	have := []string{"Pool", "Garage", "Solar"}

	assert.Equal(t, float64(50), featureFit(have, nil))
	assert.Equal(t, float64(100), featureFit(have, []string{"pool", "garage"}))
	assert.Equal(t, float64(50), featureFit(have, []string{"pool", "basement"}))
	assert.Equal(t, float64(0), featureFit(have, []string{"basement"}))
}

// ==========================
// 2. Listing Scoring Tests
// ==========================

func TestScoreListing_AllFactorsAligned(t *testing.T) {
	prefs := &searchPreferences{
		budgetMin:   floatPtr(400000),
		budgetMax:   floatPtr(500000),
		bedroomsMin: intPtr(3),
		locations:   []string{"Austin"},
		features:    []string{"pool"},
	}
	listing := Listing{
		ID: "l-1", Price: 450000, Bedrooms: 4, City: "Austin",
		Features: []string{"Pool", "Garage"},
	}

	score, reasoning := scoreListing(listing, prefs)

	assert.InDelta(t, 1.0, score, 0.001)
	assert.NotEmpty(t, reasoning)
}

func TestScoreListing_NoPreferencesIsNeutral(t *testing.T) {
	score, _ := scoreListing(Listing{ID: "l-1", Price: 450000}, &searchPreferences{})
	assert.InDelta(t, 0.5, score, 0.001)
}

func TestScoreListing_OrderingByConfidence(t *testing.T) {
	prefs := &searchPreferences{
		budgetMax: floatPtr(500000),
		locations: []string{"Austin"},
	}
	strong := Listing{ID: "strong", Price: 480000, City: "Austin"}
	weak := Listing{ID: "weak", Price: 650000, City: "Dallas"}

	strongScore, _ := scoreListing(strong, prefs)
	weakScore, _ := scoreListing(weak, prefs)

	assert.Greater(t, strongScore, weakScore)
}

// ==========================
// 3. Strategy and Parsing Tests
// ==========================

func TestPresentationStrategy(t *testing.T) {
	assert.Equal(t, StrategyLeadWithBest, presentationStrategy(0.9))
	assert.Equal(t, StrategyComparative, presentationStrategy(0.7))
	assert.Equal(t, StrategyNurtureOption, presentationStrategy(0.5))
}

func TestParsePreferences(t *testing.T) {
	raw := map[string]interface{}{
		"budgetMin":    float64(400000),
		"budgetMax":    500000,
		"bedroomsMin":  float64(3),
		"urgencyLevel": 0.8,
		"locations":    []interface{}{"Austin", "Round Rock"},
		"features":     []string{"pool"},
	}

	prefs := parsePreferences(raw)

	require.NotNil(t, prefs.budgetMin)
	assert.Equal(t, float64(400000), *prefs.budgetMin)
	require.NotNil(t, prefs.budgetMax)
	assert.Equal(t, float64(500000), *prefs.budgetMax)
	require.NotNil(t, prefs.bedroomsMin)
	assert.Equal(t, 3, *prefs.bedroomsMin)
	assert.Equal(t, 0.8, prefs.urgency)
	assert.Equal(t, []string{"Austin", "Round Rock"}, prefs.locations)
	assert.Equal(t, []string{"pool"}, prefs.features)
}

func TestParsePreferences_Nil(t *testing.T) {
	prefs := parsePreferences(nil)
	assert.Nil(t, prefs.budgetMin)
	assert.Equal(t, 0.5, prefs.urgency)
}

// ==========================
// 4. Query Builder Tests
// ==========================

func TestBuildListingQuery_RequiresIndex(t *testing.T) {
	_, err := buildListingQuery("", &searchPreferences{}, 10)
	assert.ErrorIs(t, err, ErrMissingIndex)
}

func TestBuildListingQuery_BudgetFilterWithHeadroom(t *testing.T) {
	prefs := &searchPreferences{budgetMax: floatPtr(500000)}

	req, err := buildListingQuery("listings", prefs, 10)
	require.NoError(t, err)
	require.NotNil(t, req.Body)

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := boolQuery["filter"].([]interface{})
	require.Len(t, filters, 2)

	priceRange := filters[1].(map[string]interface{})["range"].(map[string]interface{})["price"].(map[string]interface{})
	assert.InDelta(t, 575000, priceRange["lte"].(float64), 0.01)
}
