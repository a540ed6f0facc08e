package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/opseye/opseye/internal/alarm/database"
	"github.com/opseye/opseye/internal/alarm/model"
)

// AlarmConverter merges inbound vendor alarms into events.
type AlarmConverter interface {
	Convert(ctx context.Context, source model.DataSource, payload any) ([]*model.Event, error)
}

// EventReader serves event queries from the database.
type EventReader interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, f database.EventFilter) ([]*model.Event, error)
}

// EventCache fronts the reader for hot events. May be nil when redis is not
// configured.
type EventCache interface {
	Put(ctx context.Context, ev *model.Event) error
	Get(ctx context.Context, id string) (*model.Event, error)
}

type Api struct {
	conv   AlarmConverter
	events EventReader
	cache  EventCache
}

func NewApi(router *gin.Engine, conv AlarmConverter, events EventReader, cache EventCache) *Api {
	api := &Api{conv: conv, events: events, cache: cache}
	api.setupRouters(router)
	return api
}

func (api *Api) setupRouters(router *gin.Engine) {
	router.POST("/v1/alarms/:source", api.ReceiveAlarm)
	router.GET("/v1/events", api.ListEvents)
	router.GET("/v1/events/:eventID", api.GetEventByID)
}

func errorBody(code, message string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": message}}
}
