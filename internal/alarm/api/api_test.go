package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/opseye/opseye/internal/alarm/database"
	"github.com/opseye/opseye/internal/alarm/model"
)

type fakeConverter struct {
	source model.DataSource
	got    any
	out    []*model.Event
	err    error
}

func (f *fakeConverter) Convert(ctx context.Context, source model.DataSource, payload any) ([]*model.Event, error) {
	f.source = source
	f.got = payload
	return f.out, f.err
}

type fakeReader struct {
	events map[string]*model.Event
	listed []*model.Event
}

func (f *fakeReader) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return f.events[id], nil
}

func (f *fakeReader) ListEvents(ctx context.Context, filter database.EventFilter) ([]*model.Event, error) {
	return f.listed, nil
}

type fakeCache struct {
	byID map[string]*model.Event
}

func (f *fakeCache) Put(ctx context.Context, ev *model.Event) error {
	f.byID[ev.ID] = ev
	return nil
}

func (f *fakeCache) Get(ctx context.Context, id string) (*model.Event, error) {
	return f.byID[id], nil
}

func newTestAPI(conv AlarmConverter, reader EventReader, cache EventCache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewApi(router, conv, reader, cache)
	return router
}

func TestReceiveAlarmDispatchesAndCaches(t *testing.T) {
	ev := &model.Event{ID: "ev-1", DataSource: model.SourceZabbix, Status: model.StatusPending}
	conv := &fakeConverter{out: []*model.Event{ev}}
	cache := &fakeCache{byID: map[string]*model.Event{}}
	router := newTestAPI(conv, &fakeReader{}, cache)

	body := `{"host_id":"h-1","item_id":"it-1","trigger_status":"PROBLEM","message":"Severity: High"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/alarms/zabbix", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if conv.source != model.SourceZabbix {
		t.Fatalf("converter source = %s", conv.source)
	}
	alarm, ok := conv.got.(*model.ZabbixAlarm)
	if !ok {
		t.Fatalf("payload type = %T", conv.got)
	}
	if alarm.HostID != "h-1" || alarm.TriggerStatus != "PROBLEM" {
		t.Fatalf("payload = %+v", alarm)
	}
	if cache.byID["ev-1"] == nil {
		t.Fatal("event not written through to cache")
	}

	var resp struct {
		OK     bool     `json:"ok"`
		Events []string `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || len(resp.Events) != 1 || resp.Events[0] != "ev-1" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestReceiveAlarmRejectsUnknownSource(t *testing.T) {
	router := newTestAPI(&fakeConverter{}, &fakeReader{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/alarms/nagios", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestReceiveAlarmRejectsInvalidJSON(t *testing.T) {
	router := newTestAPI(&fakeConverter{}, &fakeReader{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/alarms/aliyun", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetEventPrefersCacheThenFallsBack(t *testing.T) {
	cached := &model.Event{ID: "cached", DataSource: model.SourceAliyun}
	stored := &model.Event{ID: "stored", DataSource: model.SourceZabbix}
	cache := &fakeCache{byID: map[string]*model.Event{"cached": cached}}
	reader := &fakeReader{events: map[string]*model.Event{"stored": stored}}
	router := newTestAPI(&fakeConverter{}, reader, cache)

	for _, tt := range []struct {
		id   string
		want int
	}{
		{"cached", http.StatusOK},
		{"stored", http.StatusOK},
		{"absent", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/events/"+tt.id, nil)
		router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Fatalf("GET %s status = %d, want %d", tt.id, w.Code, tt.want)
		}
	}
}

func TestListEventsValidatesLimit(t *testing.T) {
	router := newTestAPI(&fakeConverter{}, &fakeReader{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/events?limit=0", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/events?limit=50&datasource=zabbix", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
