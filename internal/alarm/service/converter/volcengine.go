package converter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
)

// convertVolc merges each resource of a Volcengine notification into its own
// event, keyed by the vendor's alert group id. Resources are independent and
// save concurrently.
func (c *Converter) convertVolc(ctx context.Context, a *model.VolcAlarm) ([]*model.Event, error) {
	if a.Type != model.VolcTypeMetric && a.Type != model.VolcTypeRecovered {
		log.Warn().Str("type", a.Type).Str("rule", a.RuleName).Msg("unknown volcengine alarm type")
		return nil, nil
	}
	if len(a.Resources) == 0 {
		return nil, nil
	}

	// One lookup covers every resource. The window anchors on the earliest
	// first-alert time so a late-delivered notification still finds the
	// event its incident opened.
	earliest := a.Resources[0].FirstAlertTime
	ids := make([]string, 0, len(a.Resources))
	for _, r := range a.Resources {
		ids = append(ids, r.AlertGroupID)
		if r.FirstAlertTime < earliest {
			earliest = r.FirstAlertTime
		}
	}
	since := time.Unix(earliest, 0).Add(-c.lookback)
	existing, err := c.store.FindVolcEvents(ctx, ids, since)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[string]*model.Event, len(existing))
	for _, ev := range existing {
		if ev.RawData.Volcengine != nil {
			byGroup[ev.RawData.Volcengine.Resource.AlertGroupID] = ev
		}
	}

	out := make([]*model.Event, len(a.Resources))
	errs := make([]error, len(a.Resources))
	var wg sync.WaitGroup
	for i := range a.Resources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := a.Resources[i]
			unlock := c.locks.lock("volc|" + r.AlertGroupID)
			defer unlock()

			if ev, ok := byGroup[r.AlertGroupID]; ok {
				c.applyVolc(ev, a.Type, r)
				if err := c.store.SaveEvent(ctx, ev); err != nil {
					errs[i] = err
					return
				}
				out[i] = ev
				return
			}
			if a.Type == model.VolcTypeRecovered {
				// A recovery with no open event has nothing to close.
				log.Info().Str("alert_group_id", r.AlertGroupID).Msg("dropping orphan volcengine recovery")
				return
			}
			ev := c.newEvent(model.SourceVolcengine)
			c.applyVolc(ev, a.Type, r)
			if err := c.store.InsertEvent(ctx, ev); err != nil {
				errs[i] = err
				return
			}
			out[i] = ev
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	events := make([]*model.Event, 0, len(out))
	for _, ev := range out {
		if ev != nil {
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events, nil
}

func (c *Converter) applyVolc(ev *model.Event, alarmType string, r model.VolcResource) {
	ev.Level = volcLevel(r.Level)
	if r.Region != "" {
		ev.Regions = mergeUnique(ev.Regions, []string{r.Region})
	}
	extractAssociations(r.Tags).applyTo(ev)
	ev.RawData = model.RawData{
		Source:     model.SourceVolcengine,
		Volcengine: &model.VolcEventData{Type: alarmType, Resource: r},
	}
	ev.UpdatedAt = c.now().UTC()
}

func volcLevel(level string) model.Level {
	switch level {
	case "critical":
		return model.LevelP0
	case "warning":
		return model.LevelP1
	default:
		return model.LevelP2
	}
}
