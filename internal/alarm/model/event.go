package model

import (
	"time"
)

// DataSource identifies the monitoring vendor an alarm came from.
type DataSource string

const (
	SourceAliyun     DataSource = "aliyun"
	SourceVolcengine DataSource = "volcengine"
	SourceZabbix     DataSource = "zabbix"
)

// Level is the normalized severity of an event.
type Level string

const (
	LevelP0 Level = "P0"
	LevelP1 Level = "P1"
	LevelP2 Level = "P2"
)

// Event statuses. An event stays Pending until the notification pipeline
// picks it up; this subsystem never deletes events.
const (
	StatusPending  = "Pending"
	StatusNotified = "Notified"
	StatusClosed   = "Closed"
)

// Event is one logical incident. Bursty vendor notifications for the same
// merge key collapse into a single Event record within the lookback window.
type Event struct {
	ID         string     `json:"id"`
	AgentType  string     `json:"agent_type"`
	DataSource DataSource `json:"datasource"`
	Level      Level      `json:"level"`
	Regions    []string   `json:"regions"`
	Projects   []string   `json:"projects"`
	Products   []string   `json:"products"`
	Customers  []string   `json:"customers"`
	RawData    RawData    `json:"raw_data"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RawData holds the vendor-specific notification payload. Exactly one of the
// vendor fields is set, selected by Source; read sites must switch on Source
// rather than probing fields.
type RawData struct {
	Source     DataSource      `json:"source"`
	Volcengine *VolcEventData  `json:"volcengine,omitempty"`
	Aliyun     *AliyunAlarm    `json:"aliyun,omitempty"`
	Zabbix     *ZabbixAlarm    `json:"zabbix,omitempty"`
}

// VolcEventData is the per-event slice of a Volcengine alarm: the alarm type
// plus the single resource this event tracks.
type VolcEventData struct {
	Type     string       `json:"type"`
	Resource VolcResource `json:"resource"`
}

// Tag is a vendor-native key-value pair attached to rules or alarms.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
