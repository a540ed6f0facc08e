package vendorapi

import (
	"context"
)

// DefaultConcurrencyQuota is applied when a credential does not carry an
// explicit quota. Two datasources sharing one access key share one budget.
const DefaultConcurrencyQuota = 10

// Credential is one vendor access credential. All outbound calls made with
// the same (vendor, access key) pair share one rate-limit group.
type Credential struct {
	Vendor    string
	AccessKey string
	SecretKey string
	Quota     int
}

// ConcurrencyGroup returns the rate-limit bucket key for this credential.
func (c Credential) ConcurrencyGroup() string {
	return c.Vendor + ":" + c.AccessKey
}

// ConcurrencyQuota returns the request budget for this credential's group.
func (c Credential) ConcurrencyQuota() int {
	if c.Quota > 0 {
		return c.Quota
	}
	return DefaultConcurrencyQuota
}

// OpResult is the vendor-reported outcome of a rule operation. A call can
// succeed at the transport level yet still report a business failure via
// Status "failed"; callers must treat both the same way.
type OpResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	RuleID  string `json:"rule_id,omitempty"`
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// AliyunRule is the vendor-native Aliyun CloudMonitor alarm rule. Name is
// the content-based identity composed by the synchronizer; ID is assigned by
// the vendor.
type AliyunRule struct {
	ID                 string   `json:"ruleId,omitempty"`
	Name               string   `json:"ruleName"`
	Namespace          string   `json:"namespace"`
	MetricName         string   `json:"metricName"`
	Dimensions         string   `json:"dimensions"`
	ComparisonOperator string   `json:"comparisonOperator"`
	Threshold          float64  `json:"threshold"`
	Times              int      `json:"times"`
	StartHour          int      `json:"startHour"`
	EndHour            int      `json:"endHour"`
	Level              string   `json:"level"`
	ContactGroups      []string `json:"contactGroups"`
	Webhook            string   `json:"webhook,omitempty"`
}

// AliyunRuleClient is the thin RPC wrapper around the Aliyun rule API.
// ListRules is paginated; callers loop until total is exhausted.
type AliyunRuleClient interface {
	ListRules(ctx context.Context, namespace string, page, pageSize int) (rules []AliyunRule, total int, err error)
	CreateRule(ctx context.Context, r *AliyunRule) (*OpResult, error)
	UpdateRule(ctx context.Context, ruleID string, r *AliyunRule) (*OpResult, error)
	DeleteRules(ctx context.Context, ruleIDs []string) (*OpResult, error)
}

// VolcCondition is one trigger condition inside a Volcengine rule. A rule
// carries up to two conditions, one per bound direction.
type VolcCondition struct {
	MetricName         string  `json:"MetricName"`
	MetricUnit         string  `json:"MetricUnit"`
	Namespace          string  `json:"Namespace"`
	ComparisonOperator string  `json:"ComparisonOperator"`
	Threshold          float64 `json:"Threshold"`
}

// VolcRule is the vendor-native Volcengine alarm rule. Volcengine has no
// stable content-based identity field, so the synchronizer reconstructs one
// from Conditions[0].MetricName and OriginalDimensions.
type VolcRule struct {
	ID                 string              `json:"Id,omitempty"`
	Name               string              `json:"RuleName"`
	Namespace          string              `json:"Namespace"`
	EffectiveStart     string              `json:"EffectStartAt"`
	EffectiveEnd       string              `json:"EffectEndAt"`
	EvaluationCount    int                 `json:"EvaluationCount"`
	Conditions         []VolcCondition     `json:"Conditions"`
	OriginalDimensions map[string][]string `json:"OriginalDimensions"`
	Level              string              `json:"Level"`
	ContactGroupIDs    []string            `json:"ContactGroupIds"`
	AlertMethods       []string            `json:"AlertMethods"`
	Webhook            string              `json:"Webhook,omitempty"`
}

// VolcRuleClient is the thin RPC wrapper around the Volcengine rule API.
type VolcRuleClient interface {
	ListRules(ctx context.Context, namespace string, pageNum, pageSize int) (rules []VolcRule, total int, err error)
	CreateRule(ctx context.Context, r *VolcRule) (*OpResult, error)
	UpdateRule(ctx context.Context, ruleID string, r *VolcRule) (*OpResult, error)
	DeleteRules(ctx context.Context, ruleIDs []string) (*OpResult, error)
}

// MetricClient fetches raw metric points. Consumed by the external
// threshold-computation stage; declared here so datasource wiring stays in
// one place.
type MetricClient interface {
	GetMetricData(ctx context.Context, namespace, metric string, dimensions map[string]string, start, end int64, period int) ([]DataPoint, error)
}

// DataPoint is one raw metric sample.
type DataPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}
