package storage

import (
	"context"
	"time"

	"github.com/hiveboard/hiveboard/model"
)

// RetentionEngine periodically prunes events past a tenant's plan-based
// retention window, plus "cold" high-volume events (heartbeats, stray
// action_started) on a much shorter horizon.
type RetentionEngine struct {
	store    *Store
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

const (
	heartbeatColdAfter     = 10 * time.Minute
	actionStartedColdAfter = 24 * time.Hour
)

// NewRetentionEngine creates a pruning loop over store, running every
// interval (minimum 10s).
func NewRetentionEngine(store *Store, interval time.Duration) *RetentionEngine {
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	return &RetentionEngine{store: store, interval: interval, done: make(chan struct{})}
}

// Start runs one prune pass immediately, then on every tick until Stop.
func (r *RetentionEngine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.store.logger.Info().Dur("interval", r.interval).Msg("starting retention engine")
	go r.loop(ctx)
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (r *RetentionEngine) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
	r.store.logger.Info().Msg("retention engine stopped")
}

func (r *RetentionEngine) loop(ctx context.Context) {
	defer close(r.done)

	r.Prune(time.Now().UTC())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Prune(time.Now().UTC())
		}
	}
}

// PruneResult tallies what a single sweep removed.
type PruneResult struct {
	TTLPruned   int
	ColdPruned  int
	TotalPruned int
}

// Prune runs a single sweep: plan-TTL eviction for every tenant's events
// and alert_history, plus cold-event eviction for heartbeats/action_started
// regardless of plan. An unknown tenant_id has no plan to apply a TTL from,
// so its events are kept indefinitely rather than silently dropped; cold
// eviction still applies since it isn't plan-dependent. Persistence and
// logging only happen when something was actually pruned.
func (r *RetentionEngine) Prune(now time.Time) PruneResult {
	s := r.store

	s.tenantsMu.RLock()
	plans := make(map[string]model.Plan, len(s.tenants))
	for id, t := range s.tenants {
		plans[id] = t.Plan
	}
	s.tenantsMu.RUnlock()

	var ttlPruned, coldPruned int

	s.eventsMu.Lock()
	kept := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		ttlEvict, coldEvict := r.classify(e, plans, now)
		if ttlEvict || coldEvict {
			delete(s.eventIDs, eventKey(e.TenantID, e.EventID))
			if ttlEvict {
				ttlPruned++
			} else {
				coldPruned++
			}
			continue
		}
		kept = append(kept, e)
	}
	eventsChanged := ttlPruned+coldPruned > 0
	var eventsSnapshot []model.Event
	if eventsChanged {
		s.events = kept
		eventsSnapshot = make([]model.Event, len(kept))
		copy(eventsSnapshot, kept)
	}
	s.eventsMu.Unlock()

	s.alertHistoryMu.Lock()
	var historyPruned int
	keptHistory := make([]model.AlertHistory, 0, len(s.alertHistory))
	for _, h := range s.alertHistory {
		days, ok := retentionDaysFor(plans, h.TenantID)
		if ok && now.Sub(h.FiredAt) > time.Duration(days)*24*time.Hour {
			historyPruned++
			continue
		}
		keptHistory = append(keptHistory, h)
	}
	var historySnapshot []model.AlertHistory
	if historyPruned > 0 {
		s.alertHistory = keptHistory
		historySnapshot = make([]model.AlertHistory, len(keptHistory))
		copy(historySnapshot, keptHistory)
	}
	s.alertHistoryMu.Unlock()

	result := PruneResult{
		TTLPruned:  ttlPruned + historyPruned,
		ColdPruned: coldPruned,
	}
	result.TotalPruned = result.TTLPruned + result.ColdPruned
	if result.TotalPruned == 0 {
		return result
	}

	if eventsChanged {
		if err := persistJSON(s.dataDir, fileEvents, eventsSnapshot); err != nil {
			s.logger.Error().Err(err).Msg("retention: persist events")
		}
	}
	if historyPruned > 0 {
		if err := persistJSON(s.dataDir, fileAlertHistory, historySnapshot); err != nil {
			s.logger.Error().Err(err).Msg("retention: persist alert history")
		}
	}

	s.logger.Info().
		Int("ttl_pruned", result.TTLPruned).
		Int("cold_pruned", result.ColdPruned).
		Int("total_pruned", result.TotalPruned).
		Msg("retention: pruned")
	return result
}

// retentionDaysFor returns a tenant's plan-based retention window. ok=false
// means tenant_id is unknown to this store, so no TTL applies.
func retentionDaysFor(plans map[string]model.Plan, tenantID string) (int, bool) {
	plan, ok := plans[tenantID]
	if !ok {
		return 0, false
	}
	days, ok := model.RetentionDays[plan]
	if !ok {
		days = model.RetentionDays[model.PlanFree]
	}
	return days, true
}

// classify reports whether e should be evicted by plan TTL, by cold-event
// eviction, or both (ttlEvict takes precedence when tallying).
func (r *RetentionEngine) classify(e model.Event, plans map[string]model.Plan, now time.Time) (ttlEvict, coldEvict bool) {
	if days, ok := retentionDaysFor(plans, e.TenantID); ok && now.Sub(e.Timestamp) > time.Duration(days)*24*time.Hour {
		ttlEvict = true
	}
	if e.EventType == model.EventHeartbeat && now.Sub(e.Timestamp) > heartbeatColdAfter {
		coldEvict = true
	}
	if e.EventType == model.EventActionStarted && now.Sub(e.Timestamp) > actionStartedColdAfter {
		coldEvict = true
	}
	return
}
