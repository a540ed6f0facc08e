package metacache

import (
	"context"
	"errors"
	"testing"

	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
)

type fakeAPI struct {
	meta map[string][]promv1.Metadata
	err  error
}

func (f *fakeAPI) Metadata(ctx context.Context, metric, limit string) (map[string][]promv1.Metadata, error) {
	return f.meta, f.err
}

func TestRefreshPopulatesUnits(t *testing.T) {
	api := &fakeAPI{meta: map[string][]promv1.Metadata{
		"cpu_usage":  {{Unit: "percent"}},
		"disk_bytes": {{Unit: ""}, {Unit: "bytes"}},
		"unitless":   {{Unit: ""}},
	}}
	c := New(api, 0)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if u, ok := c.Unit("cpu_usage"); !ok || u != "percent" {
		t.Fatalf("cpu_usage unit = (%q, %v)", u, ok)
	}
	// First non-empty unit wins across metadata entries.
	if u, ok := c.Unit("disk_bytes"); !ok || u != "bytes" {
		t.Fatalf("disk_bytes unit = (%q, %v)", u, ok)
	}
	if _, ok := c.Unit("unitless"); ok {
		t.Fatal("metric with empty unit should not resolve")
	}
	if _, ok := c.Unit("absent"); ok {
		t.Fatal("unknown metric should not resolve")
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	api := &fakeAPI{meta: map[string][]promv1.Metadata{"cpu": {{Unit: "percent"}}}}
	c := New(api, 0)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	api.err = errors.New("backend down")
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("refresh should report the fetch error")
	}
	if u, ok := c.Unit("cpu"); !ok || u != "percent" {
		t.Fatalf("snapshot lost after failed refresh: (%q, %v)", u, ok)
	}
}
