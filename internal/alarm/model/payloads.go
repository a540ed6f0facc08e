package model

// Vendor alarm payloads as posted to the webhook endpoints. Field names
// follow each vendor's callback document; unknown fields are dropped by the
// JSON decoder.

// Volcengine alarm types.
const (
	VolcTypeMetric    = "Metric"
	VolcTypeRecovered = "MetricRecovered"
)

// VolcAlarm is one Volcengine alarm notification. A single notification can
// carry many affected resources; each resource merges independently by its
// alert group id.
type VolcAlarm struct {
	Type      string         `json:"Type"`
	RuleName  string         `json:"RuleName"`
	RuleID    string         `json:"RuleId"`
	Namespace string         `json:"Namespace"`
	Resources []VolcResource `json:"Resources"`
}

// VolcResource is one affected resource inside a Volcengine alarm.
type VolcResource struct {
	AlertGroupID   string            `json:"AlertGroupId"`
	MetricName     string            `json:"MetricName"`
	Namespace      string            `json:"Namespace"`
	Region         string            `json:"Region"`
	Level          string            `json:"Level"`
	CurrentValue   string            `json:"CurrentValue"`
	FirstAlertTime int64             `json:"FirstAlertTime"`
	LastAlertTime  int64             `json:"LastAlertTime"`
	Dimensions     map[string]string `json:"Dimensions"`
	Tags           []Tag             `json:"Tags"`
}

// Aliyun alert states.
const (
	AliyunStateAlert = "ALERT"
	AliyunStateOK    = "OK"
)

// AliyunAlarm is one Aliyun CloudMonitor alarm callback. Dimensions is kept
// as the raw string the vendor sends and compared as opaque equality when
// merging.
type AliyunAlarm struct {
	RuleID       string `json:"ruleId"`
	RuleName     string `json:"alertName"`
	AlertState   string `json:"alertState"`
	MetricName   string `json:"metricName"`
	Namespace    string `json:"namespace"`
	Dimensions   string `json:"dimensions"`
	CurValue     string `json:"curValue"`
	TriggerLevel string `json:"triggerLevel"`
	Timestamp    int64  `json:"timestamp"`
	Region       string `json:"regionId"`
	Tags         []Tag  `json:"tags"`
}

// Zabbix trigger statuses.
const (
	ZabbixStatusProblem = "PROBLEM"
	ZabbixStatusOK      = "OK"
)

// ZabbixAlarm is one Zabbix action notification. Severity is embedded in the
// free-text Message per the alert-template convention.
type ZabbixAlarm struct {
	HostID        string `json:"host_id"`
	HostName      string `json:"host_name"`
	ItemID        string `json:"item_id"`
	TriggerID     string `json:"trigger_id"`
	TriggerName   string `json:"trigger_name"`
	TriggerStatus string `json:"trigger_status"`
	Message       string `json:"message"`
	EventTime     int64  `json:"event_time"`
	Tags          []Tag  `json:"tags"`
}
