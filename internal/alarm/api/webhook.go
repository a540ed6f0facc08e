package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
)

// ReceiveAlarm handles POST /v1/alarms/:source. Vendors call back with their
// native payload shape; the converter collapses bursts into events. The
// vendor retries on non-2xx, so cache errors never fail the ack.
func (api *Api) ReceiveAlarm(c *gin.Context) {
	source := model.DataSource(c.Param("source"))

	payload, ok := bindAlarm(c, source)
	if !ok {
		return
	}

	events, err := api.conv.Convert(c.Request.Context(), source, payload)
	if err != nil {
		log.Error().Err(err).Str("source", string(source)).Msg("alarm conversion failed")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "failed to process alarm"))
		return
	}

	if api.cache != nil {
		for _, ev := range events {
			if cerr := api.cache.Put(c.Request.Context(), ev); cerr != nil {
				log.Error().Err(cerr).Str("event_id", ev.ID).Msg("event cache write failed")
			}
		}
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	log.Info().Str("source", string(source)).Int("events", len(ids)).Msg("alarm processed")
	c.JSON(http.StatusOK, map[string]any{"ok": true, "events": ids})
}

func bindAlarm(c *gin.Context, source model.DataSource) (any, bool) {
	var payload any
	switch source {
	case model.SourceVolcengine:
		payload = new(model.VolcAlarm)
	case model.SourceAliyun:
		payload = new(model.AliyunAlarm)
	case model.SourceZabbix:
		payload = new(model.ZabbixAlarm)
	default:
		c.JSON(http.StatusBadRequest, errorBody("INVALID_PARAMETER", "unknown alarm source"))
		return nil, false
	}
	if err := c.ShouldBindJSON(payload); err != nil {
		log.Error().Err(err).Str("source", string(source)).Msg("invalid alarm payload")
		c.JSON(http.StatusBadRequest, errorBody("INVALID_PARAMETER", "invalid JSON payload"))
		return nil, false
	}
	return payload, true
}
