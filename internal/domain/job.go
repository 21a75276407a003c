package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — отдельная единица работы, принятая через HTTP edge и поставленная
// в одну из priority lanes Queue Store.
//
// Job создаётся при enqueue и живёт в одном из трёх состояний хранения:
// в своей lane, в in-flight множестве (пока status=processing) или в DLQ
// (status=dead). Между этими состояниями job переводят методы Queue Store;
// их вызывают Dispatcher, HTTP edge (cancel, retry из DLQ), Failover
// Controller и retention.
type Job struct {
	// ID — уникальный идентификатор job, неизменный на всё время жизни движка.
	ID uuid.UUID `json:"id"`

	// Priority — lane, в которой job находится, пока не взят в работу.
	Priority Priority `json:"priority"`

	// Payload — входные данные для воркера: URL, заголовки, метаданные,
	// опциональный tool-activation hint (image_generation парам.).
	Payload Payload `json:"payload"`

	// Attempts — количество уже сделанных попыток выполнения.
	Attempts int `json:"attempts"`

	// MaxAttempts — порог DLQ: attempts >= MaxAttempts переводит job в dead.
	MaxAttempts int `json:"max_attempts"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	CreatedAt      time.Time  `json:"created_at"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	Error          string     `json:"error,omitempty"`
	Result         *Result    `json:"result,omitempty"`
	ProcessingTime time.Duration `json:"processing_time,omitempty"`

	// AssignedExtensionID — непусто тогда и только тогда, когда status=processing.
	AssignedExtensionID string `json:"assigned_extension_id,omitempty"`

	// CorrelationID связывает job со своим HTTP запросом и записями Event Bus.
	CorrelationID string `json:"correlation_id"`
}

// Payload — данные, которые воркер получает для выполнения job.
type Payload struct {
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	AddonID    string            `json:"addon_id,omitempty"`
	CallbackURL string           `json:"callback_url,omitempty"`

	// AITool — опциональный hint для активации конкретного инструмента
	// генерации изображений на стороне расширения (например "midjourney").
	AITool string `json:"ai_tool,omitempty"`

	// TargetExtensionID — если задано, Router обязан выбрать именно эту
	// сессию (reason=exact_match), минуя scoring.
	TargetExtensionID string `json:"target_extension_id,omitempty"`

	// RequiredCapabilities — набор capability-версий, которым должна
	// соответствовать выбранная сессия; пусто означает отсутствие
	// требований (capability-компонент scoring'а тогда максимален).
	RequiredCapabilities []Capability `json:"required_capabilities,omitempty"`
}

// Result — итог успешного выполнения job.
type Result struct {
	ImageURL string         `json:"image_url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewJob создаёт новую pending job с указанными payload/priority/maxAttempts.
func NewJob(payload Payload, priority Priority, maxAttempts int, correlationID string) *Job {
	return &Job{
		ID:            uuid.New(),
		Priority:      priority,
		Payload:       payload,
		MaxAttempts:   maxAttempts,
		Status:        JobStatusPending,
		CreatedAt:     time.Now(),
		CorrelationID: correlationID,
	}
}

// MarkProcessing переводит job в processing и закрепляет за ней extension.
func (j *Job) MarkProcessing(extensionID string, now time.Time) {
	j.Status = JobStatusProcessing
	j.AssignedExtensionID = extensionID
	j.Attempts++
	j.LastAttemptAt = &now
}

// MarkCompleted переводит job в терминальный статус completed.
func (j *Job) MarkCompleted(result *Result, processingTime time.Duration, now time.Time) {
	j.Status = JobStatusCompleted
	j.Result = result
	j.ProcessingTime = processingTime
	j.CompletedAt = &now
	j.AssignedExtensionID = ""
	j.NextRetryAt = nil
	j.Error = ""
}

// MarkRetrying переводит job обратно в pending с задержкой nextRetryAt.
// Счётчик Attempts уже увеличен до вызова (см. Reaper).
func (j *Job) MarkRetrying(errMsg string, nextRetryAt time.Time) {
	j.Status = JobStatusPending
	j.Error = errMsg
	j.NextRetryAt = &nextRetryAt
	j.AssignedExtensionID = ""
}

// MarkDetached возвращает job в pending после потери назначенной сессии,
// когда ни одно другое расширение не смогло немедленно её принять.
// В отличие от MarkRetrying, задержки нет — job должна быть рассмотрена
// снова на следующем тике диспетчера.
func (j *Job) MarkDetached(now time.Time) {
	j.Status = JobStatusPending
	j.AssignedExtensionID = ""
	j.NextRetryAt = &now
	j.LastAttemptAt = &now
}

// MarkDead переводит job в DLQ.
func (j *Job) MarkDead(errMsg string, now time.Time) {
	j.Status = JobStatusDead
	j.Error = errMsg
	j.CompletedAt = &now
	j.AssignedExtensionID = ""
	j.NextRetryAt = nil
}

// MarkCancelled отменяет job. Разрешено только из pending (см. Queue Store.Cancel).
func (j *Job) MarkCancelled(now time.Time) {
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
}

// CanRetry — attempts ещё не исчерпан dlqThreshold (= MaxAttempts).
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// ResetForDLQRetry готовит DLQ-запись к повторной постановке оператором.
// Error стирается (lossy) — это теряет данные для аудита, но поведение
// сознательно повторяет источник (см. DESIGN.md).
func (j *Job) ResetForDLQRetry(now time.Time) {
	j.Status = JobStatusPending
	j.Attempts = 0
	j.Error = ""
	j.NextRetryAt = nil
	j.LastAttemptAt = nil
	j.CompletedAt = nil
	j.AssignedExtensionID = ""
	_ = now
}
