// Package config loads engine configuration from a YAML file
// overlaid with environment variables, using koanf rather than ad hoc
// os.Getenv calls: the engine has enough independently-tunable knobs
// (queue capacity, retry schedule, heartbeat cadence, rate limit) that a
// single typed, mergeable source is worth the dependency — grounded on
// tomtom215-cartographus's koanf-based config loader.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds every recognized option, layered struct defaults < YAML file
// < environment variables.
type Config struct {
	// HTTPAddr is the listen address for the HTTP/WS surface.
	HTTPAddr string `koanf:"http_addr"`

	// MaxConcurrent is loaded (default 0) but not passed to or read by the
	// dispatcher, so it does not cap simultaneous in-flight jobs.
	MaxConcurrent int `koanf:"max_concurrent"`

	// RateLimit is tokens/sec for the dispatch-rate token bucket.
	RateLimit float64 `koanf:"rate_limit"`

	// RetryDelaysMs is the ordered backoff schedule.
	RetryDelaysMs []int `koanf:"retry_delays_ms"`

	// DLQThreshold is the attempt count at which a job goes to the DLQ.
	DLQThreshold int `koanf:"dlq_threshold"`

	// ProcessingTimeoutMs bounds how long a dispatched job may run before
	// the Reaper synthesizes a timeout failure.
	ProcessingTimeoutMs int `koanf:"processing_timeout_ms"`

	// MaxQueueSize is the optional admission cap (0 disables it).
	MaxQueueSize int `koanf:"max_queue_size"`

	// HeartbeatIntervalSec and UnhealthyThresholdSec configure the
	// Heartbeat Supervisor.
	HeartbeatIntervalSec  int `koanf:"heartbeat_interval_sec"`
	UnhealthyThresholdSec int `koanf:"unhealthy_threshold_sec"`
	MissedProbeLimit      int `koanf:"missed_probe_limit"`

	// SnapshotDSN, if set, enables the optional persistence hook via
	// internal/snapshot.
	SnapshotDSN string `koanf:"snapshot_dsn"`

	// EventForwardAMQPURL, if set, enables forwarding Event Bus topics to
	// an external RabbitMQ exchange via internal/eventforward.
	EventForwardAMQPURL string `koanf:"event_forward_amqp_url"`

	// DLQRetentionCron is the cron schedule for purging aged DLQ entries
	// (internal/retention); empty disables the job.
	DLQRetentionCron string `koanf:"dlq_retention_cron"`
	DLQRetentionAge  time.Duration `koanf:"dlq_retention_age"`
}

// Defaults returns the configuration used when no file/env override is
// present, matching the defaults named throughout .
func Defaults() Config {
	return Config{
		HTTPAddr:              ":8080",
		MaxConcurrent:         0,
		RateLimit:             50,
		RetryDelaysMs:         []int{1000, 5000, 15000},
		DLQThreshold:          3,
		ProcessingTimeoutMs:   30_000,
		MaxQueueSize:          0,
		HeartbeatIntervalSec:  30,
		UnhealthyThresholdSec: 60,
		MissedProbeLimit:      3,
		DLQRetentionCron:      "0 * * * *",
		DLQRetentionAge:       7 * 24 * time.Hour,
	}
}

// Load builds a Config from defaults, an optional YAML file at path (skipped
// if path is empty; an error is returned if the file cannot be loaded), and
// environment variables
// prefixed DISPATCH_ (e.g. DISPATCH_RATE_LIMIT=100, nested keys use "__").
func Load(path string) (Config, error) {
	k := koanf.New(".")
	defaults := Defaults()

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("DISPATCH_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "DISPATCH_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// ProcessingTimeout returns ProcessingTimeoutMs as a time.Duration.
func (c Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutMs) * time.Millisecond
}

// HeartbeatInterval returns HeartbeatIntervalSec as a time.Duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

// UnhealthyThreshold returns UnhealthyThresholdSec as a time.Duration.
func (c Config) UnhealthyThreshold() time.Duration {
	return time.Duration(c.UnhealthyThresholdSec) * time.Second
}
