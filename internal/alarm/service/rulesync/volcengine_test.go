package rulesync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	prommodel "github.com/prometheus/common/model"

	"github.com/opseye/opseye/internal/alarm/model"
	"github.com/opseye/opseye/internal/alarm/service/ratelimit"
	"github.com/opseye/opseye/internal/alarm/service/vendorapi"
)

type fakeVolcClient struct {
	mu     sync.Mutex
	nextID int
	rules  map[string]vendorapi.VolcRule
}

func newFakeVolcClient() *fakeVolcClient {
	return &fakeVolcClient{rules: map[string]vendorapi.VolcRule{}}
}

func (f *fakeVolcClient) ListRules(ctx context.Context, namespace string, pageNum, pageSize int) ([]vendorapi.VolcRule, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []vendorapi.VolcRule
	for _, r := range f.rules {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	lo := (pageNum - 1) * pageSize
	if lo >= len(all) {
		return nil, len(all), nil
	}
	hi := lo + pageSize
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi], len(all), nil
}

func (f *fakeVolcClient) CreateRule(ctx context.Context, r *vendorapi.VolcRule) (*vendorapi.OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("volc-%d", f.nextID)
	stored := *r
	stored.ID = id
	f.rules[id] = stored
	return &vendorapi.OpResult{Status: vendorapi.StatusOK, RuleID: id}, nil
}

func (f *fakeVolcClient) UpdateRule(ctx context.Context, ruleID string, r *vendorapi.VolcRule) (*vendorapi.OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[ruleID]; !ok {
		return &vendorapi.OpResult{Status: vendorapi.StatusFailed, Message: "no such rule"}, nil
	}
	stored := *r
	stored.ID = ruleID
	f.rules[ruleID] = stored
	return &vendorapi.OpResult{Status: vendorapi.StatusOK, RuleID: ruleID}, nil
}

func (f *fakeVolcClient) DeleteRules(ctx context.Context, ruleIDs []string) (*vendorapi.OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ruleIDs {
		delete(f.rules, id)
	}
	return &vendorapi.OpResult{Status: vendorapi.StatusOK}, nil
}

type staticUnits map[string]string

func (u staticUnits) Unit(metric string) (string, bool) {
	v, ok := u[metric]
	return v, ok
}

func testVolcSyncer(client vendorapi.VolcRuleClient) *VolcSyncer {
	ds := Datasource{Name: "edge", Namespace: "VCM_ECS"}
	cred := vendorapi.Credential{Vendor: "volcengine", AccessKey: "ak-volc"}
	units := staticUnits{"cpu": "Percent"}
	return NewVolcSyncer(ds, cred, client, ratelimit.NewRegistry(), units)
}

func TestVolcSyncGroupsBothBoundsIntoOneRule(t *testing.T) {
	client := newFakeVolcClient()
	s := testVolcSyncer(client)

	res := model.ThresholdResult{
		UniqueKey: "cpu|host=h1",
		Labels:    prommodel.LabelSet{"host": "h1"},
		Thresholds: []model.PeriodThreshold{
			{StartHour: 9, EndHour: 18, Upper: f64(85), Lower: f64(5), WindowSize: 3},
		},
	}
	summary, err := s.SyncRules(context.Background(), []model.ThresholdResult{res}, SyncOptions{Level: "P1"})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Created != 1 || summary.Total != 1 {
		t.Fatalf("summary = %+v, want one created rule", summary)
	}
	for _, r := range client.rules {
		if r.Name != "edge_cpu|host=h1_09:00-17:59" {
			t.Fatalf("rule name = %q", r.Name)
		}
		if len(r.Conditions) != 2 {
			t.Fatalf("conditions = %+v, want upper and lower in one rule", r.Conditions)
		}
		if r.Conditions[0].MetricUnit != "Percent" {
			t.Fatalf("unit = %q, want lookup result", r.Conditions[0].MetricUnit)
		}
		if r.EffectiveStart != "09:00" || r.EffectiveEnd != "17:59" {
			t.Fatalf("window = %s-%s", r.EffectiveStart, r.EffectiveEnd)
		}
	}
}

func TestVolcSyncReconstructsIdentityOnRerun(t *testing.T) {
	client := newFakeVolcClient()
	s := testVolcSyncer(client)
	ctx := context.Background()

	res := model.ThresholdResult{
		UniqueKey: "cpu|host=h1",
		Labels:    prommodel.LabelSet{"host": "h1"},
		Thresholds: []model.PeriodThreshold{
			{StartHour: 0, EndHour: 24, Upper: f64(85), WindowSize: 3},
		},
	}

	if _, err := s.SyncRules(ctx, []model.ThresholdResult{res}, SyncOptions{}); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	// The second run only sees vendor-native rules; identity must be
	// rebuilt from condition metric + original dimensions.
	second, err := s.SyncRules(ctx, []model.ThresholdResult{res}, SyncOptions{})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Created != 0 || second.Deleted != 0 || second.Updated != 1 {
		t.Fatalf("second summary = %+v, want a single update", second)
	}
}

func TestVolcSyncDeletesOrphanedRule(t *testing.T) {
	client := newFakeVolcClient()
	s := testVolcSyncer(client)
	ctx := context.Background()

	res := model.ThresholdResult{
		UniqueKey: "cpu|host=h1",
		Labels:    prommodel.LabelSet{"host": "h1"},
		Thresholds: []model.PeriodThreshold{
			{StartHour: 0, EndHour: 24, Upper: f64(85), WindowSize: 3},
		},
	}
	if _, err := s.SyncRules(ctx, []model.ThresholdResult{res}, SyncOptions{}); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	summary, err := s.SyncRules(ctx, nil, SyncOptions{})
	if err != nil {
		t.Fatalf("delete sync: %v", err)
	}
	if summary.Deleted != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want one delete", summary)
	}
	if len(client.rules) != 0 {
		t.Fatalf("%d rules left", len(client.rules))
	}
}

func TestVolcSyncIgnoresForeignRules(t *testing.T) {
	client := newFakeVolcClient()
	// A rule created by some other system in the same namespace.
	client.rules["foreign-1"] = vendorapi.VolcRule{
		ID:   "foreign-1",
		Name: "other-team_disk|host=h2_00:00-23:59",
		Conditions: []vendorapi.VolcCondition{
			{MetricName: "disk", ComparisonOperator: ">", Threshold: 90},
		},
		OriginalDimensions: map[string][]string{"host": {"h2"}},
		EffectiveStart:     "00:00",
	}
	s := testVolcSyncer(client)

	summary, err := s.SyncRules(context.Background(), nil, SyncOptions{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Deleted != 0 || summary.Total != 0 {
		t.Fatalf("summary = %+v, foreign rule must not be touched", summary)
	}
	if len(client.rules) != 1 {
		t.Fatal("foreign rule deleted")
	}
}
