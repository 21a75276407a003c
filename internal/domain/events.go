package domain

import "time"

// EventType — имя топика во внутреннем Event Bus: явная шина с именованными
// топиками вместо разрозненных decorator/listener-коллбэков. Подписчики
// регистрируются по имени топика, а не по типу payload'а.
type EventType string

const (
	EventItemAdded            EventType = "item.added"
	EventItemProcessing       EventType = "item.processing"
	EventItemCompleted        EventType = "item.completed"
	EventItemRetry            EventType = "item.retry"
	EventItemDLQ              EventType = "item.dlq"
	EventItemCancelled        EventType = "item.cancelled"
	EventItemDLQRetry         EventType = "item.dlq.retry"
	EventExtensionConnected   EventType = "extension.connected"
	EventExtensionDisconnected EventType = "extension.disconnected"
	EventExtensionHeartbeat   EventType = "extension.heartbeat"
	EventMetricsUpdated       EventType = "metrics.updated"
	EventCapacityReached      EventType = "capacity.reached"
)

// Event — единица, публикуемая в Event Bus. Payload зависит от Type и
// хранится как map для простоты маршалинга во внешние sinks
// (Prometheus, RabbitMQ forwarder).
type Event struct {
	Type          EventType      `json:"type"`
	Timestamp     time.Time      `json:"timestamp"`
	JobID         string         `json:"job_id,omitempty"`
	ExtensionID   string         `json:"extension_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Attrs         map[string]any `json:"attrs,omitempty"`
}
