package converter

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
)

// convertAliyun merges an Aliyun CloudMonitor callback by (rule id, raw
// dimensions string). Consecutive notifications in the same alert state fold
// into the latest event; a state flip opens a new one, so one incident
// usually yields an ALERT event and an OK event.
func (c *Converter) convertAliyun(ctx context.Context, a *model.AliyunAlarm) ([]*model.Event, error) {
	if a.AlertState != model.AliyunStateAlert && a.AlertState != model.AliyunStateOK {
		log.Warn().Str("state", a.AlertState).Str("rule_id", a.RuleID).Msg("unknown aliyun alert state")
		return nil, nil
	}

	unlock := c.locks.lock("aliyun|" + a.RuleID + "|" + a.Dimensions)
	defer unlock()

	since := c.now().Add(-c.lookback)
	recent, err := c.store.FindAliyunEvents(ctx, a.RuleID, a.Dimensions, since)
	if err != nil {
		return nil, err
	}

	if len(recent) > 0 {
		latest := recent[0]
		if raw := latest.RawData.Aliyun; raw != nil && raw.AlertState == a.AlertState {
			c.applyAliyun(latest, a)
			if err := c.store.SaveEvent(ctx, latest); err != nil {
				return nil, err
			}
			return []*model.Event{latest}, nil
		}
	}

	ev := c.newEvent(model.SourceAliyun)
	c.applyAliyun(ev, a)
	if err := c.store.InsertEvent(ctx, ev); err != nil {
		return nil, err
	}
	return []*model.Event{ev}, nil
}

func (c *Converter) applyAliyun(ev *model.Event, a *model.AliyunAlarm) {
	ev.Level = aliyunLevel(a.TriggerLevel)
	if a.Region != "" {
		ev.Regions = mergeUnique(ev.Regions, []string{a.Region})
	}
	extractAssociations(a.Tags).applyTo(ev)
	ev.RawData = model.RawData{Source: model.SourceAliyun, Aliyun: a}
	ev.UpdatedAt = c.now().UTC()
}

func aliyunLevel(triggerLevel string) model.Level {
	switch triggerLevel {
	case "CRITICAL":
		return model.LevelP0
	case "WARN":
		return model.LevelP1
	default:
		return model.LevelP2
	}
}
