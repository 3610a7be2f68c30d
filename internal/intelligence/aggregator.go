// internal/intelligence/aggregator.go
package intelligence

import (
	"context"
	"fmt"
	"time"

	"lead-intelligence/internal/cache"
	"lead-intelligence/internal/common/config"
	commonerrors "lead-intelligence/internal/common/errors"
	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/common/metrics"
	"lead-intelligence/internal/events"
	"lead-intelligence/internal/models"
	"lead-intelligence/internal/producers"
)

// Aggregator merges the three producer signals into one cached,
// composite-scored context per lead/bot pairing. Enhance never
// returns an error; every failure degrades to neutral values.
type Aggregator struct {
	cfg      *config.IntelligenceConfig
	cache    cache.Cache
	sink     events.Sink
	matcher  producers.PropertyMatcher
	analyzer producers.ConversationAnalyzer
	learner  producers.PreferenceLearner
	logger   logger.Logger
	tracker  *latencyTracker
}

func NewAggregator(
	cfg *config.IntelligenceConfig,
	cacheStore cache.Cache,
	sink events.Sink,
	matcher producers.PropertyMatcher,
	analyzer producers.ConversationAnalyzer,
	learner producers.PreferenceLearner,
	log logger.Logger,
) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		cache:    cacheStore,
		sink:     sink,
		matcher:  matcher,
		analyzer: analyzer,
		learner:  learner,
		logger:   log.WithFields(map[string]interface{}{"component": "intelligence-aggregator"}),
		tracker:  newLatencyTracker(float64(cfg.LatencyTargetMs)),
	}
}

// Enhance returns a fresh-or-cached AggregatedContext for a bot turn.
func (a *Aggregator) Enhance(ctx context.Context, botType, leadID, locationID string, window []models.ConversationMessage, explicitPreferences map[string]interface{}) (result *models.AggregatedContext) {
	start := time.Now()

	// Producer isolation should make a panic here impossible; the
	// never-raise contract still holds if one slips through.
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("aggregation panic recovered", map[string]interface{}{
				"leadId": leadID,
				"panic":  r,
			})
			result = models.NeutralContext(leadID, locationID, botType, fmt.Sprintf("aggregation panic: %v", r))
		}
	}()

	key := ContextCacheKey(leadID, locationID, botType)

	if cached := a.readCache(ctx, key); cached != nil {
		cached.CacheHit = true
		cached.Performance.CacheHit = true
		a.finishCall(ctx, cached, start, true)
		return cached
	}

	merged := a.fanOut(ctx, botType, leadID, locationID, window, explicitPreferences, start)
	merged.CalculateCompositeScores()

	a.writeCache(ctx, key, merged)
	a.finishCall(ctx, merged, start, false)

	// Learning is a side effect of the read path, detached from the
	// request lifetime.
	go a.learnInBackground(leadID, window)

	return merged
}

// GetMetrics reports the rolling performance view.
func (a *Aggregator) GetMetrics() Metrics {
	return a.tracker.snapshot()
}

func (a *Aggregator) readCache(ctx context.Context, key string) *models.AggregatedContext {
	value, found, err := a.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble is a miss, never a failure.
		a.logger.Warn("context cache read failed", map[string]interface{}{
			"key":   key,
			"error": commonerrors.NewCacheReadFailedError(key, err).Error(),
		})
		return nil
	}
	if !found {
		return nil
	}
	cached, err := models.ContextFromJSON(value)
	if err != nil {
		a.logger.Warn("cached context unreadable, rebuilding", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return nil
	}
	return cached
}

func (a *Aggregator) writeCache(ctx context.Context, key string, merged *models.AggregatedContext) {
	data, err := merged.ToJSON()
	if err != nil {
		a.logger.Error("context serialization failed", map[string]interface{}{
			"leadId": merged.LeadID,
			"error":  err,
		})
		return
	}
	if err := a.cache.Set(ctx, key, data, a.cfg.ActiveCacheTTL()); err != nil {
		a.logger.Warn("context cache write failed", map[string]interface{}{
			"key":   key,
			"error": commonerrors.NewCacheWriteFailedError(key, err).Error(),
		})
	}
}

// fanOut runs all three producers concurrently, each bounded by its
// own timeout, and joins every outcome before merging. One producer's
// failure never disturbs the other two.
func (a *Aggregator) fanOut(ctx context.Context, botType, leadID, locationID string, window []models.ConversationMessage, explicitPreferences map[string]interface{}, start time.Time) *models.AggregatedContext {
	timeout := a.cfg.ProducerTimeout()

	matchCh := callProducer(ctx, timeout, func(callCtx context.Context) ([]producers.PropertyMatchResult, error) {
		return a.matcher.FindMatches(callCtx, leadID, locationID, explicitPreferences, window, a.cfg.MaxMatches)
	})
	analysisCh := callProducer(ctx, timeout, func(callCtx context.Context) (*producers.ConversationAnalysis, error) {
		return a.analyzer.Analyze(callCtx, leadID, window)
	})
	profileCh := callProducer(ctx, timeout, func(callCtx context.Context) (*producers.PreferenceProfile, error) {
		return a.learner.GetProfile(callCtx, leadID)
	})

	merged := &models.AggregatedContext{
		LeadID:       leadID,
		LocationID:   locationID,
		BotType:      botType,
		Property:     models.EmptyPropertyIntelligence(),
		Conversation: models.EmptyConversationIntelligence(),
		Preference:   models.EmptyPreferenceIntelligence(),
		Performance: models.PerformanceMetrics{
			ProducerDurationsMs: map[string]float64{},
			ServiceFailures:     []string{},
			StartedAt:           start.UTC(),
		},
		GeneratedAt: time.Now().UTC(),
	}

	matchOutcome := <-matchCh
	a.settle(merged, producers.NamePropertyMatcher, matchOutcome.durationMs, matchOutcome.err, func() {
		merged.Property = propertyIntelligenceFromMatches(matchOutcome.value)
	})

	analysisOutcome := <-analysisCh
	a.settle(merged, producers.NameConversationAnalyzer, analysisOutcome.durationMs, analysisOutcome.err, func() {
		merged.Conversation = conversationIntelligenceFromAnalysis(analysisOutcome.value)
	})

	profileOutcome := <-profileCh
	a.settle(merged, producers.NamePreferenceLearner, profileOutcome.durationMs, profileOutcome.err, func() {
		merged.Preference = preferenceIntelligenceFromProfile(profileOutcome.value)
	})

	return merged
}

// settle records one producer's outcome on the context under
// construction: success applies the merge, failure keeps the neutral
// value already in place.
func (a *Aggregator) settle(merged *models.AggregatedContext, producer string, durationMs float64, err error, apply func()) {
	merged.Performance.ProducerDurationsMs[producer] = durationMs
	metrics.ProducerDuration.WithLabelValues(producer).Observe(durationMs / 1000)

	if err != nil {
		reason := "error"
		if commonerrors.IsTimeout(err) {
			reason = "timeout"
		}
		merged.Performance.ServiceFailures = append(merged.Performance.ServiceFailures, producer)
		a.tracker.recordFailure(producer)
		metrics.ProducerFailures.WithLabelValues(producer, reason).Inc()
		a.logger.Warn("producer failed, substituting neutral value", map[string]interface{}{
			"producer": producer,
			"reason":   reason,
			"error":    err.Error(),
		})
		return
	}
	apply()
}

type outcome[T any] struct {
	value      T
	err        error
	durationMs float64
}

// callProducer bounds one producer call with its own timeout and
// always delivers exactly one outcome. A producer that ignores
// cancellation keeps running detached; its late result is discarded.
func callProducer[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) <-chan outcome[T] {
	out := make(chan outcome[T], 1)
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		started := time.Now()
		inner := make(chan outcome[T], 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					inner <- outcome[T]{err: fmt.Errorf("producer panic: %v", r)}
				}
			}()
			value, err := call(callCtx)
			inner <- outcome[T]{value: value, err: err}
		}()

		select {
		case result := <-inner:
			result.durationMs = float64(time.Since(started).Microseconds()) / 1000
			out <- result
		case <-callCtx.Done():
			out <- outcome[T]{
				err:        callCtx.Err(),
				durationMs: float64(time.Since(started).Microseconds()) / 1000,
			}
		}
	}()
	return out
}

// finishCall stamps timings, records rolling and exported metrics, and
// publishes the update event.
func (a *Aggregator) finishCall(ctx context.Context, merged *models.AggregatedContext, start time.Time, cacheHit bool) {
	completed := time.Now().UTC()
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	merged.Performance.CompletedAt = completed
	merged.Performance.TotalDurationMs = latencyMs

	a.tracker.recordCall(latencyMs, cacheHit)
	cacheLabel := "miss"
	if cacheHit {
		cacheLabel = "hit"
	}
	metrics.IntelligenceRequests.WithLabelValues(merged.BotType, cacheLabel).Inc()
	metrics.IntelligenceDuration.WithLabelValues(merged.BotType).Observe(latencyMs / 1000)

	a.publishUpdate(ctx, merged, latencyMs)

	a.logger.Info("context served", map[string]interface{}{
		"leadId":         merged.LeadID,
		"botType":        merged.BotType,
		"cacheHit":       cacheHit,
		"latencyMs":      latencyMs,
		"compositeScore": merged.CompositeEngagementScore,
		"failures":       merged.Performance.ServiceFailures,
	})
}

func (a *Aggregator) publishUpdate(ctx context.Context, merged *models.AggregatedContext, latencyMs float64) {
	payload := map[string]interface{}{
		"locationId":     merged.LocationID,
		"botType":        merged.BotType,
		"cacheHit":       merged.CacheHit,
		"compositeScore": merged.CompositeEngagementScore,
		"approach":       merged.RecommendedApproach,
		"latencyMs":      latencyMs,
	}
	if err := a.sink.Publish(ctx, merged.LeadID, events.EventIntelligenceUpdated, payload); err != nil {
		metrics.EventPublishFailures.WithLabelValues(events.EventIntelligenceUpdated).Inc()
		a.logger.Warn("update event publish failed", map[string]interface{}{
			"leadId": merged.LeadID,
			"error":  err,
		})
	}
}

func (a *Aggregator) learnInBackground(leadID string, window []models.ConversationMessage) {
	if len(window) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.learner.LearnFromConversation(ctx, leadID, window); err != nil {
		a.logger.Warn("background preference learning failed", map[string]interface{}{
			"leadId": leadID,
			"error":  err,
		})
	}
}
