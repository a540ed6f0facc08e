package rulesync

import (
	"context"
	"fmt"
	"strings"

	prommodel "github.com/prometheus/common/model"
	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/model"
	"github.com/opseye/opseye/internal/alarm/service/ratelimit"
	"github.com/opseye/opseye/internal/alarm/service/vendorapi"
)

// UnitLookup resolves a metric's display unit from the background metadata
// cache. Injected so the synchronizer never owns the cache lifecycle.
type UnitLookup interface {
	Unit(metric string) (string, bool)
}

// VolcSyncer reconciles desired thresholds against the Volcengine alarm
// rule set for one datasource. Unlike Aliyun, both bound directions live in
// one rule as separate conditions.
type VolcSyncer struct {
	ds     Datasource
	cred   vendorapi.Credential
	client vendorapi.VolcRuleClient
	limits *ratelimit.Registry
	units  UnitLookup
}

func NewVolcSyncer(ds Datasource, cred vendorapi.Credential, client vendorapi.VolcRuleClient, limits *ratelimit.Registry, units UnitLookup) *VolcSyncer {
	return &VolcSyncer{ds: ds, cred: cred, client: client, limits: limits, units: units}
}

func (s *VolcSyncer) Name() string { return s.ds.Name }

func (s *VolcSyncer) SyncRules(ctx context.Context, results []model.ThresholdResult, opts SyncOptions) (SyncSummary, error) {
	existing, err := s.listAll(ctx)
	if err != nil {
		return SyncSummary{}, fmt.Errorf("list volcengine rules: %w", err)
	}

	existingGroups := map[string][]ExistingSegment{}
	for _, r := range existing {
		key, start, ok := s.reconstructIdentity(&r)
		if !ok {
			continue
		}
		existingGroups[key] = append(existingGroups[key], ExistingSegment{RuleID: r.ID, StartHour: start})
	}

	desired := s.buildDesired(results, opts)

	d := Diff(existingGroups, desired)
	log.Info().Str("datasource", s.ds.Name).
		Int("existing", len(existing)).Int("create", len(d.Creates)).
		Int("update", len(d.Updates)).Int("delete", len(d.DeleteIDs)).
		Msg("volcengine rule diff computed")

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

func (s *VolcSyncer) listAll(ctx context.Context) ([]vendorapi.VolcRule, error) {
	var all []vendorapi.VolcRule
	for page := 1; ; page++ {
		var rules []vendorapi.VolcRule
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

// buildDesired derives one rule per (result, period) pair, with up to two
// conditions when both bounds are set.
func (s *VolcSyncer) buildDesired(results []model.ThresholdResult, opts SyncOptions) map[string][]DesiredSegment[*vendorapi.VolcRule] {
	desired := map[string][]DesiredSegment[*vendorapi.VolcRule]{}
	for _, res := range results {
		if len(res.Thresholds) == 0 {
			continue
		}
		metric := metricFromUniqueKey(res.UniqueKey)
		unit, _ := s.units.Unit(metric)
		dims := make(map[string][]string, len(res.Labels))
		for k, v := range res.Labels {
			dims[string(k)] = []string{string(v)}
		}
		for _, p := range model.SortedThresholds(res.Thresholds) {
			var conds []vendorapi.VolcCondition
			if p.Upper != nil {
				conds = append(conds, vendorapi.VolcCondition{
					MetricName: metric, MetricUnit: unit, Namespace: s.ds.Namespace,
					ComparisonOperator: ">", Threshold: *p.Upper,
				})
			}
			if p.Lower != nil {
				conds = append(conds, vendorapi.VolcCondition{
					MetricName: metric, MetricUnit: unit, Namespace: s.ds.Namespace,
					ComparisonOperator: "<", Threshold: *p.Lower,
				})
			}
			if len(conds) == 0 {
				continue
			}
			from, to := formatVolcWindow(p.StartHour, p.EndHour)
			rule := &vendorapi.VolcRule{
				Name:               fmt.Sprintf("%s_%s_%s-%s", s.ds.Name, res.UniqueKey, from, to),
				Namespace:          s.ds.Namespace,
				EffectiveStart:     from,
				EffectiveEnd:       to,
				EvaluationCount:    p.WindowSize,
				Conditions:         conds,
				OriginalDimensions: dims,
				Level:              opts.Level,
				ContactGroupIDs:    opts.ContactGroupIDs,
				AlertMethods:       opts.AlertMethods,
				Webhook:            opts.Webhook,
			}
			key := fmt.Sprintf("%s_%s", s.ds.Name, res.UniqueKey)
			desired[key] = append(desired[key], DesiredSegment[*vendorapi.VolcRule]{StartHour: p.StartHour, Rule: rule})
		}
	}
	return desired
}

// reconstructIdentity rebuilds the series group key from rule content.
// Volcengine rules carry no stable content identity field, so the unique key
// is recomposed from the first condition's metric plus the original
// dimensions, then scoped by the datasource name prefix.
func (s *VolcSyncer) reconstructIdentity(r *vendorapi.VolcRule) (string, int, bool) {
	if len(r.Conditions) == 0 {
		return "", 0, false
	}
	if !strings.HasPrefix(r.Name, s.ds.Name+"_") {
		return "", 0, false
	}
	labels := prommodel.LabelSet{}
	for k, vs := range r.OriginalDimensions {
		if len(vs) > 0 {
			labels[prommodel.LabelName(k)] = prommodel.LabelValue(vs[0])
		}
	}
	uk := model.BuildUniqueKey(r.Conditions[0].MetricName, labels)
	start, ok := parseVolcWindowStart(r.EffectiveStart)
	if !ok {
		start = 0
	}
	return fmt.Sprintf("%s_%s", s.ds.Name, uk), start, true
}
