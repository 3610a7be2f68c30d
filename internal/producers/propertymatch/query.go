// internal/producers/propertymatch/query.go
package propertymatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrMissingIndex = errors.New("index name is required")

// Listing is the subset of an indexed property document the matcher
// scores against.
type Listing struct {
	ID           string   `json:"id"`
	Price        float64  `json:"price"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    float64  `json:"bathrooms"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Features     []string `json:"features"`
	DaysOnMarket int      `json:"days_on_market"`
	Status       string   `json:"status"`
}

// buildListingQuery builds the candidate search. Hard constraints go
// into filter clauses; soft preferences become should clauses so the
// scorer still sees near misses.
func buildListingQuery(index string, prefs *searchPreferences, size int) (*esapi.SearchRequest, error) {
	if index == "" {
		return nil, ErrMissingIndex
	}

	filterClauses := []interface{}{
		map[string]interface{}{
			"term": map[string]interface{}{"status": "active"},
		},
	}
	shouldClauses := []interface{}{}

	if prefs.budgetMax != nil {
		// Allow 15% headroom over stated budget; scoring penalizes it.
		rangeBody := map[string]interface{}{"lte": *prefs.budgetMax * 1.15}
		if prefs.budgetMin != nil {
			rangeBody["gte"] = *prefs.budgetMin * 0.85
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"price": rangeBody},
		})
	}

	if prefs.bedroomsMin != nil {
		shouldClauses = append(shouldClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"bedrooms": map[string]interface{}{"gte": *prefs.bedroomsMin},
			},
		})
	}

	for _, loc := range prefs.locations {
		shouldClauses = append(shouldClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  loc,
				"fields": []string{"city^2", "neighborhood"},
			},
		})
	}

	for _, feature := range prefs.features {
		shouldClauses = append(shouldClauses, map[string]interface{}{
			"term": map[string]interface{}{"features": feature},
		})
	}

	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filterClauses,
				"should": shouldClauses,
			},
		},
	}

	body, _ := json.Marshal(queryBody)

	from := 0
	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}
	return &req, nil
}

func searchListings(ctx context.Context, client *elasticsearch.Client, index string, prefs *searchPreferences, size int) ([]Listing, error) {
	req, err := buildListingQuery(index, prefs, size)
	if err != nil {
		return nil, err
	}

	res, err := req.Do(ctx, client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	hits, ok := r["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("malformed search response")
	}
	rawHits, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("malformed search response")
	}

	listings := make([]Listing, 0, len(rawHits))
	for _, hit := range rawHits {
		hm, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hm["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		raw, _ := json.Marshal(source)
		var listing Listing
		if err := json.Unmarshal(raw, &listing); err != nil {
			continue
		}
		if listing.ID == "" {
			if id, ok := hm["_id"].(string); ok {
				listing.ID = id
			}
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
