package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/database"
	"github.com/opseye/opseye/internal/alarm/model"
)

type eventItem struct {
	ID         string   `json:"id"`
	AgentType  string   `json:"agentType"`
	DataSource string   `json:"datasource"`
	Level      string   `json:"level"`
	Regions    []string `json:"regions"`
	Projects   []string `json:"projects"`
	Products   []string `json:"products"`
	Customers  []string `json:"customers"`
	Status     string   `json:"status"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
}

type eventDetailResponse struct {
	eventItem
	RawData model.RawData `json:"rawData"`
}

func toEventItem(ev *model.Event) eventItem {
	return eventItem{
		ID:         ev.ID,
		AgentType:  ev.AgentType,
		DataSource: string(ev.DataSource),
		Level:      string(ev.Level),
		Regions:    ev.Regions,
		Projects:   ev.Projects,
		Products:   ev.Products,
		Customers:  ev.Customers,
		Status:     ev.Status,
		CreatedAt:  ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  ev.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// GetEventByID serves a single event, preferring the cache.
func (api *Api) GetEventByID(c *gin.Context) {
	eventID := c.Param("eventID")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_PARAMETER", "missing eventID"))
		return
	}

	if api.cache != nil {
		if ev, err := api.cache.Get(c.Request.Context(), eventID); err != nil {
			log.Error().Err(err).Str("event_id", eventID).Msg("event cache read failed")
		} else if ev != nil {
			c.JSON(http.StatusOK, eventDetailResponse{eventItem: toEventItem(ev), RawData: ev.RawData})
			return
		}
	}

	ev, err := api.events.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", err.Error()))
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, errorBody("NOT_FOUND", "event not found"))
		return
	}
	c.JSON(http.StatusOK, eventDetailResponse{eventItem: toEventItem(ev), RawData: ev.RawData})
}

// ListEvents serves GET /v1/events?datasource=&status=&level=&limit=.
func (api *Api) ListEvents(c *gin.Context) {
	limit := 20
	if limitStr := strings.TrimSpace(c.Query("limit")); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 || v > 100 {
			c.JSON(http.StatusBadRequest, errorBody("INVALID_PARAMETER", "limit must be 1-100"))
			return
		}
		limit = v
	}

	f := database.EventFilter{
		DataSource: strings.TrimSpace(c.Query("datasource")),
		Status:     strings.TrimSpace(c.Query("status")),
		Level:      strings.TrimSpace(c.Query("level")),
		Limit:      limit,
	}
	events, err := api.events.ListEvents(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", err.Error()))
		return
	}

	items := make([]eventItem, 0, len(events))
	for _, ev := range events {
		items = append(items, toEventItem(ev))
	}
	c.JSON(http.StatusOK, map[string]any{"items": items})
}
