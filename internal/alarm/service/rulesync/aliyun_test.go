package rulesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	prommodel "github.com/prometheus/common/model"

	"github.com/opseye/opseye/internal/alarm/model"
	"github.com/opseye/opseye/internal/alarm/service/ratelimit"
	"github.com/opseye/opseye/internal/alarm/service/vendorapi"
)

type fakeAliyunClient struct {
	mu     sync.Mutex
	nextID int
	rules  map[string]vendorapi.AliyunRule // id -> rule

	failCreateNames map[string]bool // names whose create errors at transport level
	bizFailNames    map[string]bool // names whose create reports vendor "failed"
}

func newFakeAliyunClient() *fakeAliyunClient {
	return &fakeAliyunClient{rules: map[string]vendorapi.AliyunRule{}}
}

func (f *fakeAliyunClient) ListRules(ctx context.Context, namespace string, page, pageSize int) ([]vendorapi.AliyunRule, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []vendorapi.AliyunRule
	for _, r := range f.rules {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	lo := (page - 1) * pageSize
	if lo >= len(all) {
		return nil, len(all), nil
	}
	hi := lo + pageSize
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi], len(all), nil
}

func (f *fakeAliyunClient) CreateRule(ctx context.Context, r *vendorapi.AliyunRule) (*vendorapi.OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateNames[r.Name] {
		return nil, errors.New("connection reset")
	}
	if f.bizFailNames[r.Name] {
		return &vendorapi.OpResult{Status: vendorapi.StatusFailed, Message: "quota exceeded"}, nil
	}
	f.nextID++
	id := fmt.Sprintf("rule-%d", f.nextID)
	stored := *r
	stored.ID = id
	f.rules[id] = stored
	return &vendorapi.OpResult{Status: vendorapi.StatusOK, RuleID: id}, nil
}

func (f *fakeAliyunClient) UpdateRule(ctx context.Context, ruleID string, r *vendorapi.AliyunRule) (*vendorapi.OpResult, error) {
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

func (f *fakeAliyunClient) DeleteRules(ctx context.Context, ruleIDs []string) (*vendorapi.OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ruleIDs {
		delete(f.rules, id)
	}
	return &vendorapi.OpResult{Status: vendorapi.StatusOK}, nil
}

func testAliyunSyncer(client vendorapi.AliyunRuleClient) *AliyunSyncer {
	ds := Datasource{Name: "prod", Namespace: "acs_ecs"}
	cred := vendorapi.Credential{Vendor: "aliyun", AccessKey: "ak-test"}
	return NewAliyunSyncer(ds, cred, client, ratelimit.NewRegistry())
}

func upperResult(uk string, labels prommodel.LabelSet, bound float64, windowSize int) model.ThresholdResult {
	return model.ThresholdResult{
		UniqueKey: uk,
		Labels:    labels,
		Thresholds: []model.PeriodThreshold{
			{StartHour: 0, EndHour: 24, Upper: &bound, WindowSize: windowSize},
		},
	}
}

func TestAliyunSyncEmptyExisting(t *testing.T) {
	client := newFakeAliyunClient()
	s := testAliyunSyncer(client)

	res := upperResult("cpu|host=h1", prommodel.LabelSet{"host": "h1"}, 80, 3)
	summary, err := s.SyncRules(context.Background(), []model.ThresholdResult{res}, SyncOptions{Level: "P1"})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	want := SyncSummary{Total: 1, Created: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
	if len(client.rules) != 1 {
		t.Fatalf("rule count = %d, want 1", len(client.rules))
	}
	for _, r := range client.rules {
		if r.Name != "prod-cpu|host=h1-upper-0-24" {
			t.Fatalf("rule name = %q", r.Name)
		}
		if r.Threshold != 80 || r.Times != 3 || r.ComparisonOperator != ">=" {
			t.Fatalf("rule content = %+v", r)
		}
	}
}

func TestAliyunSyncIdempotentRerun(t *testing.T) {
	client := newFakeAliyunClient()
	s := testAliyunSyncer(client)
	ctx := context.Background()

	low := 10.0
	res := model.ThresholdResult{
		UniqueKey: "mem|host=h2",
		Labels:    prommodel.LabelSet{"host": "h2"},
		Thresholds: []model.PeriodThreshold{
			{StartHour: 0, EndHour: 12, Upper: f64(90), Lower: &low, WindowSize: 2},
			{StartHour: 12, EndHour: 24, Upper: f64(70), WindowSize: 2},
		},
	}

	first, err := s.SyncRules(ctx, []model.ThresholdResult{res}, SyncOptions{})
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	// 2 upper segments + 1 lower segment
	if first.Created != 3 || first.Failed != 0 {
		t.Fatalf("first summary = %+v", first)
	}

	second, err := s.SyncRules(ctx, []model.ThresholdResult{res}, SyncOptions{})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Created != 0 || second.Deleted != 0 || second.Updated != 3 || second.Failed != 0 {
		t.Fatalf("second summary = %+v, want all updates", second)
	}
}

func TestAliyunSyncFailureIsolation(t *testing.T) {
	client := newFakeAliyunClient()
	client.failCreateNames = map[string]bool{"prod-bad|host=h1-upper-0-24": true}
	s := testAliyunSyncer(client)

	results := []model.ThresholdResult{
		upperResult("bad|host=h1", prommodel.LabelSet{"host": "h1"}, 1, 1),
		upperResult("good|host=h1", prommodel.LabelSet{"host": "h1"}, 2, 1),
	}
	summary, err := s.SyncRules(context.Background(), results, SyncOptions{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Total != 2 || summary.Created != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want total=2 created=1 failed=1", summary)
	}
}

func TestAliyunSyncVendorBusinessFailureCountsAsFailed(t *testing.T) {
	client := newFakeAliyunClient()
	client.bizFailNames = map[string]bool{"prod-bad|host=h1-upper-0-24": true}
	s := testAliyunSyncer(client)

	results := []model.ThresholdResult{upperResult("bad|host=h1", prommodel.LabelSet{"host": "h1"}, 1, 1)}
	summary, err := s.SyncRules(context.Background(), results, SyncOptions{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Failed != 1 || summary.Created != 0 {
		t.Fatalf("summary = %+v, vendor-reported failure must count as failed", summary)
	}
}

func TestAliyunSyncSkipsEmptyThresholds(t *testing.T) {
	client := newFakeAliyunClient()
	s := testAliyunSyncer(client)

	results := []model.ThresholdResult{{UniqueKey: "idle|host=h9", Labels: prommodel.LabelSet{"host": "h9"}}}
	summary, err := s.SyncRules(context.Background(), results, SyncOptions{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Total != 0 {
		t.Fatalf("summary = %+v, want no operations", summary)
	}
}

func TestAliyunSyncDeletesStaleAndPaginates(t *testing.T) {
	client := newFakeAliyunClient()
	s := testAliyunSyncer(client)
	ctx := context.Background()

	// Seed more managed rules than one list page holds.
	var results []model.ThresholdResult
	for i := 0; i < listPageSize+20; i++ {
		uk := fmt.Sprintf("m%03d|host=h1", i)
		results = append(results, upperResult(uk, prommodel.LabelSet{"host": "h1"}, 50, 1))
	}
	if _, err := s.SyncRules(ctx, results, SyncOptions{}); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	if len(client.rules) != listPageSize+20 {
		t.Fatalf("seeded %d rules", len(client.rules))
	}

	// Desired shrinks to nothing: everything listed across pages must go.
	summary, err := s.SyncRules(ctx, nil, SyncOptions{})
	if err != nil {
		t.Fatalf("delete sync: %v", err)
	}
	if summary.Total != 1 || summary.Deleted != listPageSize+20 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want one batched delete covering %d rules", summary, listPageSize+20)
	}
	if len(client.rules) != 0 {
		t.Fatalf("%d rules left after delete", len(client.rules))
	}
}

func TestParseAliyunRuleName(t *testing.T) {
	key, start, ok := parseAliyunRuleName("prod-cpu|host=h1-upper-9-18")
	if !ok || key != "prod-cpu|host=h1-upper" || start != 9 {
		t.Fatalf("parse = (%q, %d, %v)", key, start, ok)
	}
	if _, _, ok := parseAliyunRuleName("someone-elses-rule"); ok {
		t.Fatal("foreign rule name should not parse")
	}
	if !strings.HasPrefix("prod-cpu|host=h1-upper-9-18", "prod-") {
		t.Fatal("sanity")
	}
}

func f64(v float64) *float64 { return &v }
