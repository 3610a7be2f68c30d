// internal/producers/preferences/signals.go
package preferences

import (
	"regexp"
	"strconv"
	"strings"

	"lead-intelligence/internal/models"
)

// conversationSignals are the preference hints pulled out of one
// conversation window.
type conversationSignals struct {
	budgetMin   *float64
	budgetMax   *float64
	bedroomsMin *int
	timeline    string
	urgency     float64
	locations   map[string]float64
	features    map[string]float64
}

func (s *conversationSignals) isEmpty() bool {
	return s.budgetMin == nil && s.budgetMax == nil && s.bedroomsMin == nil &&
		s.timeline == "" && len(s.locations) == 0 && len(s.features) == 0 &&
		s.urgency == 0.5
}

var (
	// "$450,000", "450k", "450K"
	moneyPattern = regexp.MustCompile(`\$?\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*([kK])?`)

	budgetMaxPattern = regexp.MustCompile(`(?i)(?:under|below|up to|max(?:imum)?(?: of)?|no more than)\s+(\$?\s*\d[\d,\.]*\s*[kK]?)`)
	budgetMinPattern = regexp.MustCompile(`(?i)(?:over|above|at least|starting at|min(?:imum)?(?: of)?)\s+(\$?\s*\d[\d,\.]*\s*[kK]?)`)
	rangePattern     = regexp.MustCompile(`(?i)between\s+(\$?\s*\d[\d,\.]*\s*[kK]?)\s+and\s+(\$?\s*\d[\d,\.]*\s*[kK]?)`)

	bedroomsPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:\+\s*)?(?:bed(?:room)?s?|br\b)`)

	// Capture group stays case-sensitive so only proper nouns match.
	locationPattern = regexp.MustCompile(`\b(?:[Ii]n|[Nn]ear|[Aa]round|[Cc]lose to)\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)?)`)
)

var featureTerms = []string{
	"pool", "garage", "yard", "backyard", "solar", "basement", "fireplace",
	"fence", "patio", "office", "garden", "new construction",
}

var timelineSignals = []struct {
	triggers []string
	timeline string
	urgency  float64
}{
	{[]string{"asap", "immediately", "right away", "this week"}, "immediate", 0.9},
	{[]string{"this month", "next month", "30 days", "60 days"}, "1-3 months", 0.7},
	{[]string{"this year", "6 months", "few months"}, "3-6 months", 0.5},
	{[]string{"next year", "no rush", "eventually", "someday"}, "12+ months", 0.2},
}

func extractSignals(window []models.ConversationMessage) *conversationSignals {
	signals := &conversationSignals{
		urgency:   0.5,
		locations: map[string]float64{},
		features:  map[string]float64{},
	}

	for _, msg := range window {
		if !strings.EqualFold(msg.Role, "user") {
			continue
		}
		content := msg.Content
		lower := strings.ToLower(content)

		if m := rangePattern.FindStringSubmatch(content); m != nil {
			if v, ok := parseMoney(m[1]); ok {
				signals.budgetMin = &v
			}
			if v, ok := parseMoney(m[2]); ok {
				signals.budgetMax = &v
			}
		} else {
			if m := budgetMaxPattern.FindStringSubmatch(content); m != nil {
				if v, ok := parseMoney(m[1]); ok {
					signals.budgetMax = &v
				}
			}
			if m := budgetMinPattern.FindStringSubmatch(content); m != nil {
				if v, ok := parseMoney(m[1]); ok {
					signals.budgetMin = &v
				}
			}
		}

		if m := bedroomsPattern.FindStringSubmatch(content); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n < 20 {
				signals.bedroomsMin = &n
			}
		}

		for _, m := range locationPattern.FindAllStringSubmatch(content, -1) {
			signals.locations[strings.TrimSpace(m[1])] = 1.0
		}

		for _, feature := range featureTerms {
			if strings.Contains(lower, feature) {
				signals.features[feature] = 1.0
			}
		}

		for _, ts := range timelineSignals {
			for _, trigger := range ts.triggers {
				if strings.Contains(lower, trigger) {
					signals.timeline = ts.timeline
					signals.urgency = ts.urgency
				}
			}
		}
	}

	return signals
}

// parseMoney normalizes "$450,000" and "450k" style amounts. Bare
// numbers under 10000 are treated as thousands, matching how leads
// actually quote budgets in chat.
func parseMoney(raw string) (float64, bool) {
	m := moneyPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	digits := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		v *= 1000
	} else if v < 10000 {
		v *= 1000
	}
	return v, true
}
