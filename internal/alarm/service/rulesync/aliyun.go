package rulesync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
	"github.com/opseye/opseye/internal/alarm/service/ratelimit"
	"github.com/opseye/opseye/internal/alarm/service/vendorapi"
)

// Datasource scopes a synchronizer to one configured data source. Name
// prefixes every managed rule so that foreign rules in the same namespace
// are never touched.
type Datasource struct {
	Name      string
	Namespace string
}

const listPageSize = 100

// Bound directions. Aliyun splits upper and lower bounds into separate
// rules; the direction is part of the rule identity.
const (
	dirUpper = "upper"
	dirLower = "lower"
)

// AliyunSyncer reconciles desired thresholds against the Aliyun
// CloudMonitor rule set for one datasource.
type AliyunSyncer struct {
	ds     Datasource
	cred   vendorapi.Credential
	client vendorapi.AliyunRuleClient
	limits *ratelimit.Registry
}

func NewAliyunSyncer(ds Datasource, cred vendorapi.Credential, client vendorapi.AliyunRuleClient, limits *ratelimit.Registry) *AliyunSyncer {
	return &AliyunSyncer{ds: ds, cred: cred, client: client, limits: limits}
}

func (s *AliyunSyncer) Name() string { return s.ds.Name }

// SyncRules fetches the existing rule set, builds the desired set from the
// threshold results, diffs, and executes all resulting operations
// concurrently. Individual operation failures only surface in the summary.
func (s *AliyunSyncer) SyncRules(ctx context.Context, results []model.ThresholdResult, opts SyncOptions) (SyncSummary, error) {
	existing, err := s.listAll(ctx)
	if err != nil {
		return SyncSummary{}, fmt.Errorf("list aliyun rules: %w", err)
	}

	existingGroups := map[string][]ExistingSegment{}
	for _, r := range existing {
		key, start, ok := parseAliyunRuleName(r.Name)
		if !ok || !strings.HasPrefix(r.Name, s.ds.Name+"-") {
			continue
		}
		existingGroups[key] = append(existingGroups[key], ExistingSegment{RuleID: r.ID, StartHour: start})
	}

	desired := s.buildDesired(results, opts)

	d := Diff(existingGroups, desired)
	log.Info().Str("datasource", s.ds.Name).
		Int("existing", len(existing)).Int("create", len(d.Creates)).
		Int("update", len(d.Updates)).Int("delete", len(d.DeleteIDs)).
		Msg("aliyun rule diff computed")

	ops := make([]operation, 0, len(d.Creates)+len(d.Updates)+1)
	for _, r := range d.Creates {
		r := r
		ops = append(ops, operation{kind: opCreate, count: 1, run: func(ctx context.Context) (*vendorapi.OpResult, error) {
			return s.client.CreateRule(ctx, r)
		}})
	}
	for id, r := range d.Updates {
		id, r := id, r
		ops = append(ops, operation{kind: opUpdate, count: 1, run: func(ctx context.Context) (*vendorapi.OpResult, error) {
			return s.client.UpdateRule(ctx, id, r)
		}})
	}
	if len(d.DeleteIDs) > 0 {
		ids := d.DeleteIDs
		ops = append(ops, operation{kind: opDelete, count: len(ids), run: func(ctx context.Context) (*vendorapi.OpResult, error) {
			return s.client.DeleteRules(ctx, ids)
		}})
	}

	return executeAll(ctx, s.ds.Name, s.limits, s.cred, ops), nil
}

func (s *AliyunSyncer) listAll(ctx context.Context) ([]vendorapi.AliyunRule, error) {
	var all []vendorapi.AliyunRule
	for page := 1; ; page++ {
		var rules []vendorapi.AliyunRule
		var total int
		err := s.limits.Do(ctx, s.cred, func(ctx context.Context) error {
			var lerr error
			rules, total, lerr = s.client.ListRules(ctx, s.ds.Namespace, page, listPageSize)
			return lerr
		})
		if err != nil {
			return nil, err
		}
		all = append(all, rules...)
		if len(rules) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// buildDesired derives up to two rules (one per bound direction) from every
// (result, period) pair. Results with no thresholds are skipped.
func (s *AliyunSyncer) buildDesired(results []model.ThresholdResult, opts SyncOptions) map[string][]DesiredSegment[*vendorapi.AliyunRule] {
	desired := map[string][]DesiredSegment[*vendorapi.AliyunRule]{}
	for _, res := range results {
		if len(res.Thresholds) == 0 {
			continue
		}
		metric := metricFromUniqueKey(res.UniqueKey)
		dims, _ := json.Marshal(res.Labels)
		for _, p := range model.SortedThresholds(res.Thresholds) {
			bounds := []struct {
				dir   string
				op    string
				value *float64
			}{
				{dirUpper, ">=", p.Upper},
				{dirLower, "<=", p.Lower},
			}
			for _, b := range bounds {
				if b.value == nil {
					continue
				}
				dir, op, bound := b.dir, b.op, b.value
				rule := &vendorapi.AliyunRule{
					Name:               fmt.Sprintf("%s-%s-%s-%d-%d", s.ds.Name, res.UniqueKey, dir, p.StartHour, p.EndHour),
					Namespace:          s.ds.Namespace,
					MetricName:         metric,
					Dimensions:         string(dims),
					ComparisonOperator: op,
					Threshold:          *bound,
					Times:              p.WindowSize,
					StartHour:          p.StartHour,
					EndHour:            p.EndHour,
					Level:              opts.Level,
					ContactGroups:      opts.ContactGroupIDs,
					Webhook:            opts.Webhook,
				}
				key := fmt.Sprintf("%s-%s-%s", s.ds.Name, res.UniqueKey, dir)
				desired[key] = append(desired[key], DesiredSegment[*vendorapi.AliyunRule]{StartHour: p.StartHour, Rule: rule})
			}
		}
	}
	return desired
}

// parseAliyunRuleName recovers the series group key and window start from a
// managed rule name "{ds}-{uniqueKey}-{direction}-{start}-{end}". Names not
// matching the scheme belong to other tooling and are ignored.
func parseAliyunRuleName(name string) (groupKey string, startHour int, ok bool) {
	parts := strings.Split(name, "-")
	if len(parts) < 5 {
		return "", 0, false
	}
	start, err1 := strconv.Atoi(parts[len(parts)-2])
	_, err2 := strconv.Atoi(parts[len(parts)-1])
	dir := parts[len(parts)-3]
	if err1 != nil || err2 != nil || (dir != dirUpper && dir != dirLower) {
		return "", 0, false
	}
	return strings.Join(parts[:len(parts)-2], "-"), start, true
}

// metricFromUniqueKey returns the metric name portion of a unique key
// ("metric|k=v|..." -> "metric").
func metricFromUniqueKey(uk string) string {
	if i := strings.IndexByte(uk, '|'); i >= 0 {
		return uk[:i]
	}
	return uk
}
