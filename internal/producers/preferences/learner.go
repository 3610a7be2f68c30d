// internal/producers/preferences/learner.go
package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	commonerrors "lead-intelligence/internal/common/errors"
	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/models"
	"lead-intelligence/internal/producers"
)

const profileCacheTTL = 10 * time.Minute

type Learner struct {
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

func NewLearner(db *sql.DB, redisClient *redis.Client, log logger.Logger) *Learner {
	return &Learner{
		db:     db,
		redis:  redisClient,
		logger: log.WithFields(map[string]interface{}{"producer": producers.NamePreferenceLearner}),
	}
}

func profileCacheKey(leadID string) string {
	return "lead:preferences:" + leadID
}

// GetProfile serves the learned profile, redis first, postgres on miss.
func (l *Learner) GetProfile(ctx context.Context, leadID string) (*producers.PreferenceProfile, error) {
	cacheKey := profileCacheKey(leadID)
	if val, err := l.redis.Get(ctx, cacheKey).Result(); err == nil {
		var profile producers.PreferenceProfile
		if err := json.Unmarshal([]byte(val), &profile); err == nil {
			return &profile, nil
		}
	}

	profile, err := l.loadProfile(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(profile); err == nil {
		if err := l.redis.Set(ctx, cacheKey, data, profileCacheTTL).Err(); err != nil {
			l.logger.Warn("profile cache write failed", map[string]interface{}{
				"leadId": leadID,
				"error":  err,
			})
		}
	}
	return profile, nil
}

func (l *Learner) loadProfile(ctx context.Context, leadID string) (*producers.PreferenceProfile, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT budget_min, budget_max, bedrooms_min, bedrooms_max, bathrooms_min,
		       move_timeline, urgency_level, location_preferences, feature_preferences
		FROM lead_preferences WHERE lead_id = $1`, leadID)

	var (
		profile      producers.PreferenceProfile
		budgetMin    sql.NullFloat64
		budgetMax    sql.NullFloat64
		bedroomsMin  sql.NullInt64
		bedroomsMax  sql.NullInt64
		bathroomsMin sql.NullFloat64
		timeline     sql.NullString
		urgency      sql.NullFloat64
		locPrefs     []byte
		featPrefs    []byte
	)

	err := row.Scan(&budgetMin, &budgetMax, &bedroomsMin, &bedroomsMax, &bathroomsMin,
		&timeline, &urgency, &locPrefs, &featPrefs)
	if err == sql.ErrNoRows {
		// New lead, nothing learned yet.
		empty := emptyProfile()
		return &empty, nil
	}
	if err != nil {
		return nil, commonerrors.NewPreferenceStoreFailedError(err)
	}

	if budgetMin.Valid {
		profile.BudgetMin = &budgetMin.Float64
	}
	if budgetMax.Valid {
		profile.BudgetMax = &budgetMax.Float64
	}
	if bedroomsMin.Valid {
		n := int(bedroomsMin.Int64)
		profile.BedroomsMin = &n
	}
	if bedroomsMax.Valid {
		n := int(bedroomsMax.Int64)
		profile.BedroomsMax = &n
	}
	if bathroomsMin.Valid {
		profile.BathroomsMin = &bathroomsMin.Float64
	}
	if timeline.Valid {
		profile.MoveTimeline = timeline.String
	}
	if urgency.Valid {
		profile.UrgencyLevel = urgency.Float64
	} else {
		profile.UrgencyLevel = 0.5
	}

	profile.LocationPreferences = map[string]float64{}
	profile.FeaturePreferences = map[string]float64{}
	if len(locPrefs) > 0 {
		_ = json.Unmarshal(locPrefs, &profile.LocationPreferences)
	}
	if len(featPrefs) > 0 {
		_ = json.Unmarshal(featPrefs, &profile.FeaturePreferences)
	}

	profile.ProfileCompleteness = completeness(&profile)
	return &profile, nil
}

func emptyProfile() producers.PreferenceProfile {
	return producers.PreferenceProfile{
		UrgencyLevel:        0.5,
		LocationPreferences: map[string]float64{},
		FeaturePreferences:  map[string]float64{},
	}
}

// completeness is the populated fraction of the seven learnable
// dimensions.
func completeness(p *producers.PreferenceProfile) float64 {
	filled := 0
	if p.BudgetMin != nil || p.BudgetMax != nil {
		filled++
	}
	if p.BedroomsMin != nil || p.BedroomsMax != nil {
		filled++
	}
	if p.BathroomsMin != nil {
		filled++
	}
	if p.MoveTimeline != "" {
		filled++
	}
	if len(p.LocationPreferences) > 0 {
		filled++
	}
	if len(p.FeaturePreferences) > 0 {
		filled++
	}
	if p.UrgencyLevel != 0.5 {
		filled++
	}
	return float64(filled) / 7
}

// LearnFromConversation extracts preference signals from the window
// and upserts them. Invoked fire-and-forget alongside the read path.
func (l *Learner) LearnFromConversation(ctx context.Context, leadID string, window []models.ConversationMessage) error {
	signals := extractSignals(window)
	if signals.isEmpty() {
		return nil
	}

	locJSON, _ := json.Marshal(signals.locations)
	featJSON, _ := json.Marshal(signals.features)

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO lead_preferences
			(lead_id, budget_min, budget_max, bedrooms_min, move_timeline, urgency_level,
			 location_preferences, feature_preferences, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (lead_id) DO UPDATE SET
			budget_min = COALESCE(EXCLUDED.budget_min, lead_preferences.budget_min),
			budget_max = COALESCE(EXCLUDED.budget_max, lead_preferences.budget_max),
			bedrooms_min = COALESCE(EXCLUDED.bedrooms_min, lead_preferences.bedrooms_min),
			move_timeline = COALESCE(NULLIF(EXCLUDED.move_timeline, ''), lead_preferences.move_timeline),
			urgency_level = EXCLUDED.urgency_level,
			location_preferences = lead_preferences.location_preferences || EXCLUDED.location_preferences,
			feature_preferences = lead_preferences.feature_preferences || EXCLUDED.feature_preferences,
			updated_at = NOW()`,
		leadID, signals.budgetMin, signals.budgetMax, signals.bedroomsMin,
		signals.timeline, signals.urgency, locJSON, featJSON)
	if err != nil {
		return commonerrors.NewPreferenceStoreFailedError(err)
	}

	// Learned something new, drop the cached profile.
	if err := l.redis.Del(ctx, profileCacheKey(leadID)).Err(); err != nil {
		l.logger.Warn("profile cache invalidation failed", map[string]interface{}{
			"leadId": leadID,
			"error":  err,
		})
	}
	return nil
}
