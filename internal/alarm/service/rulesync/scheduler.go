package rulesync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
)

// Syncer is one datasource-bound rule synchronizer.
type Syncer interface {
	Name() string
	SyncRules(ctx context.Context, results []model.ThresholdResult, opts SyncOptions) (SyncSummary, error)
}

// ThresholdSource provides the latest threshold-computation output per
// datasource. The computation itself runs elsewhere; this subsystem only
// consumes its results.
type ThresholdSource interface {
	LatestResults(ctx context.Context, datasource string) ([]model.ThresholdResult, error)
}

type SchedulerDeps struct {
	Syncers  []Syncer
	Source   ThresholdSource
	Options  SyncOptions
	Interval time.Duration
}

// StartScheduler periodically re-synchronizes every datasource's rule set.
// A run is expected to complete or fail as a unit; there is no mid-run
// cancellation beyond ctx.
func StartScheduler(ctx context.Context, deps SchedulerDeps) {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Minute
	}
	t := time.NewTicker(deps.Interval)
	defer t.Stop()

	runAll(ctx, deps)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runAll(ctx, deps)
		}
	}
}

func runAll(ctx context.Context, deps SchedulerDeps) {
	for _, s := range deps.Syncers {
		results, err := deps.Source.LatestResults(ctx, s.Name())
		if err != nil {
			log.Error().Err(err).Str("datasource", s.Name()).Msg("load threshold results failed")
			continue
		}
		summary, err := s.SyncRules(ctx, results, deps.Options)
		if err != nil {
			log.Error().Err(err).Str("datasource", s.Name()).Msg("rule sync failed")
			continue
		}
		evt := log.Info()
		if summary.Failed > 0 {
			evt = log.Warn()
		}
		evt.Str("datasource", s.Name()).
			Int("total", summary.Total).Int("created", summary.Created).
			Int("updated", summary.Updated).Int("deleted", summary.Deleted).
			Int("failed", summary.Failed).
			Msg("rule sync completed")
	}
}
