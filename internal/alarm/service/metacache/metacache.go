package metacache

import (
	"context"
	"sync"
	"time"

	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshInterval is how often the metadata cache refetches when the
// config leaves the interval unset.
const DefaultRefreshInterval = 10 * time.Minute

const stopTimeout = 5 * time.Second

// MetadataAPI is the slice of the Prometheus HTTP v1 API the cache needs.
// promv1.API satisfies it directly.
type MetadataAPI interface {
	Metadata(ctx context.Context, metric, limit string) (map[string][]promv1.Metadata, error)
}

// Cache maps metric names to their advertised unit. Threshold rules pushed
// to vendors carry the unit so dashboards render values correctly; a metric
// missing from the cache simply gets no unit.
type Cache struct {
	api      MetadataAPI
	interval time.Duration

	mu    sync.RWMutex
	units map[string]string

	cancel context.CancelFunc
	done   chan struct{}
}

func New(api MetadataAPI, interval time.Duration) *Cache {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Cache{
		api:      api,
		interval: interval,
		units:    map[string]string{},
	}
}

// Unit returns the cached unit for metric.
func (c *Cache) Unit(metric string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.units[metric]
	return u, ok
}

// Refresh refetches all metric metadata once. A fetch failure keeps the
// previous snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	meta, err := c.api.Metadata(ctx, "", "")
	if err != nil {
		return err
	}
	units := make(map[string]string, len(meta))
	for metric, entries := range meta {
		for _, e := range entries {
			if e.Unit != "" {
				units[metric] = e.Unit
				break
			}
		}
	}
	c.mu.Lock()
	c.units = units
	c.mu.Unlock()
	log.Debug().Int("metrics", len(units)).Msg("metric metadata cache refreshed")
	return nil
}

// Start begins periodic refreshing. The first refresh runs synchronously so
// callers start with a populated cache when the backend is reachable.
func (c *Cache) Start(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial metadata refresh failed")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(runCtx); err != nil {
					log.Warn().Err(err).Msg("metadata refresh failed")
				}
			}
		}
	}()
}

// Stop halts the refresh loop, waiting briefly for an in-flight refresh.
func (c *Cache) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(stopTimeout):
		log.Warn().Msg("metadata cache did not stop in time")
	}
}
