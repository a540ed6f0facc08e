package converter

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
)

// convertZabbix merges a Zabbix action callback by (host id, item id). Only
// the single most recent event for the pair is consulted: a repeat of the
// same trigger status folds into it, any other situation opens a new event.
func (c *Converter) convertZabbix(ctx context.Context, a *model.ZabbixAlarm) ([]*model.Event, error) {
	if a.TriggerStatus != model.ZabbixStatusProblem && a.TriggerStatus != model.ZabbixStatusOK {
		log.Warn().Str("status", a.TriggerStatus).Str("trigger_id", a.TriggerID).Msg("unknown zabbix trigger status")
		return nil, nil
	}

	unlock := c.locks.lock("zabbix|" + a.HostID + "|" + a.ItemID)
	defer unlock()

	since := c.now().Add(-c.lookback)
	latest, err := c.store.FindLatestZabbixEvent(ctx, a.HostID, a.ItemID, since)
	if err != nil {
		return nil, err
	}

	if latest != nil {
		if raw := latest.RawData.Zabbix; raw != nil && raw.TriggerStatus == a.TriggerStatus {
			c.applyZabbix(latest, a)
			if err := c.store.SaveEvent(ctx, latest); err != nil {
				return nil, err
			}
			return []*model.Event{latest}, nil
		}
	}

	ev := c.newEvent(model.SourceZabbix)
	c.applyZabbix(ev, a)
	if err := c.store.InsertEvent(ctx, ev); err != nil {
		return nil, err
	}
	return []*model.Event{ev}, nil
}

func (c *Converter) applyZabbix(ev *model.Event, a *model.ZabbixAlarm) {
	ev.Level = zabbixLevel(a.Message)
	extractAssociations(a.Tags).applyTo(ev)
	ev.RawData = model.RawData{Source: model.SourceZabbix, Zabbix: a}
	ev.UpdatedAt = c.now().UTC()
}

// zabbixLevel parses the severity out of the free-text message produced by
// the alert template, e.g. "Severity: High". Unrecognized text degrades to
// the lowest level rather than dropping the alarm.
func zabbixLevel(message string) model.Level {
	switch {
	case strings.Contains(message, "Severity: High"), strings.Contains(message, "Severity: Disaster"):
		return model.LevelP0
	case strings.Contains(message, "Severity: Average"), strings.Contains(message, "Severity: Warning"):
		return model.LevelP1
	default:
		log.Debug().Msg("zabbix message carries no known severity, defaulting to P2")
		return model.LevelP2
	}
}
