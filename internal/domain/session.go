package domain

import "time"

// Capability — возможность, заявленная расширением при authenticate.
// Version сравнивается как major.minor (см. internal/router/capability.go).
type Capability struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExtensionSession — живая аутентифицированная сессия воркера-расширения.
//
// Ровно одна сессия на ExtensionID в Registry. SendChannel и изменяемые
// поля принадлежат паре I/O задач (см. internal/wire); счётчики
// успехов/неудач/среднего времени ответа обновляются только сообщениями
// от Dispatcher/Reaper, никогда напрямую из I/O горутин.
type ExtensionSession struct {
	ID             string       `json:"id"`
	Capabilities   []Capability `json:"capabilities,omitempty"`
	ConnectedAt    time.Time    `json:"connected_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`

	MessagesSent     uint64 `json:"messages_sent"`
	MessagesReceived uint64 `json:"messages_received"`

	InFlightCount int           `json:"in_flight_count"`
	Status        SessionStatus `json:"status"`

	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	SuccessCount      int64   `json:"success_count"`
	FailureCount      int64   `json:"failure_count"`
}

// UptimeRatio возвращает долю времени с момента ConnectedAt, в течение которой
// сессия не находилась в unhealthy/disconnected. Упрощённая модель,
// используемая для Availability компонента scoring'а: в отсутствие
// явного учёта простоя availability растёт монотонно по времени подключения
// относительно базового окна observationWindow.
func (s *ExtensionSession) UptimeRatio(now time.Time, observationWindow time.Duration) float64 {
	if observationWindow <= 0 {
		return 1
	}
	connectedFor := now.Sub(s.ConnectedAt)
	if connectedFor <= 0 {
		return 0
	}
	ratio := float64(connectedFor) / float64(observationWindow)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// RecordSuccess обновляет статистику сессии по успешному завершению job.
// avgResponseTimeMs обновляется скользящим средним (running mean).
func (s *ExtensionSession) RecordSuccess(responseTimeMs float64) {
	s.SuccessCount++
	s.updateAvgResponseTime(responseTimeMs)
}

// RecordFailure обновляет статистику сессии по неуспешному завершению job.
func (s *ExtensionSession) RecordFailure() {
	s.FailureCount++
}

func (s *ExtensionSession) updateAvgResponseTime(sampleMs float64) {
	total := s.SuccessCount
	if total <= 1 {
		s.AvgResponseTimeMs = sampleMs
		return
	}
	// running mean: avg_n = avg_{n-1} + (x_n - avg_{n-1}) / n
	s.AvgResponseTimeMs += (sampleMs - s.AvgResponseTimeMs) / float64(total)
}

// HasCapability ищет заявленную capability по имени.
func (s *ExtensionSession) HasCapability(name string) (Capability, bool) {
	for _, c := range s.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}
