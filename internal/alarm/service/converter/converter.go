package converter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
)

// MergeLookback is how far back an inbound alarm searches for an Event to
// continue instead of opening a new one.
const MergeLookback = 3600 * time.Second

// EventStore is the persistence surface the merge engine needs. Semantics
// are last-write-wins per event id.
type EventStore interface {
	// FindVolcEvents returns volcengine events whose alert group id is in
	// groupIDs and that were updated at or after since.
	FindVolcEvents(ctx context.Context, groupIDs []string, since time.Time) ([]*model.Event, error)
	// FindAliyunEvents returns aliyun events for the exact (ruleID,
	// dimensions) pair updated at or after since, newest first.
	FindAliyunEvents(ctx context.Context, ruleID, dimensions string, since time.Time) ([]*model.Event, error)
	// FindLatestZabbixEvent returns the single most recent zabbix event for
	// (hostID, itemID) updated at or after since, or nil.
	FindLatestZabbixEvent(ctx context.Context, hostID, itemID string, since time.Time) (*model.Event, error)
	InsertEvent(ctx context.Context, ev *model.Event) error
	SaveEvent(ctx context.Context, ev *model.Event) error
}

// Converter turns raw vendor alarm payloads into deduplicated Events. One
// logical incident maps to few long-lived Event records even when the
// vendor notifies in bursts.
type Converter struct {
	store     EventStore
	agentType string
	lookback  time.Duration
	locks     *keyLocks
	now       func() time.Time // overridable for tests
}

func New(store EventStore, agentType string) *Converter {
	return &Converter{
		store:     store,
		agentType: agentType,
		lookback:  MergeLookback,
		locks:     newKeyLocks(),
		now:       time.Now,
	}
}

// Convert dispatches an alarm payload to its vendor handler. A payload
// whose runtime type does not match source indicates a caller bug upstream;
// it is logged and swallowed so one malformed alarm cannot poison a batch.
// Store errors inside a handler propagate to the caller.
func (c *Converter) Convert(ctx context.Context, source model.DataSource, payload any) ([]*model.Event, error) {
	switch source {
	case model.SourceVolcengine:
		a, ok := payload.(*model.VolcAlarm)
		if !ok {
			log.Error().Str("source", string(source)).Type("payload", payload).Msg("alarm payload type mismatch")
			return nil, nil
		}
		return c.convertVolc(ctx, a)
	case model.SourceAliyun:
		a, ok := payload.(*model.AliyunAlarm)
		if !ok {
			log.Error().Str("source", string(source)).Type("payload", payload).Msg("alarm payload type mismatch")
			return nil, nil
		}
		return c.convertAliyun(ctx, a)
	case model.SourceZabbix:
		a, ok := payload.(*model.ZabbixAlarm)
		if !ok {
			log.Error().Str("source", string(source)).Type("payload", payload).Msg("alarm payload type mismatch")
			return nil, nil
		}
		return c.convertZabbix(ctx, a)
	default:
		log.Warn().Str("source", string(source)).Msg("unsupported alarm source")
		return nil, nil
	}
}

func (c *Converter) newEvent(source model.DataSource) *model.Event {
	now := c.now().UTC()
	return &model.Event{
		ID:         uuid.NewString(),
		AgentType:  c.agentType,
		DataSource: source,
		Status:     model.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
