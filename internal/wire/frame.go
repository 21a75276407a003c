// Package wire implements the engine<->extension protocol:
// one JSON frame per text message over a persistent bidirectional
// websocket at /ws. Grounded on tomtom215-cartographus's internal/websocket Hub/Client
// split, repurposed from broadcast fan-out to one Client per extension
// session with its own bounded outbound channel.
package wire

import "time"

// FrameType enumerates every inbound/outbound frame kind.
type FrameType string

const (
	// Inbound (extension -> engine)
	FrameAuthenticate             FrameType = "authenticate"
	FrameHeartbeat                FrameType = "heartbeat"
	FrameImageGenerated           FrameType = "image_generated"
	FrameImageGenerationFailed    FrameType = "image_generation_failed"
	FrameImageGenerationProgress  FrameType = "image_generation_progress"

	// Outbound (engine -> extension)
	FrameAuthenticationRequired FrameType = "authentication_required"
	FrameAuthenticationSuccess  FrameType = "authentication_success"
	FrameHeartbeatResponse      FrameType = "heartbeat_response"
	FrameGenerateImage          FrameType = "generate_image"
	FrameError                  FrameType = "error"
	FramePing                   FrameType = "ping"
)

// Frame is the envelope every message over /ws carries: a string type and
// a timestamp, plus a free-form Data payload specific to Type.
type Frame struct {
	Type      FrameType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// PingFrame is the shape of the low-level liveness probe. The heartbeat
// supervisor does not use this type; it sends registry's own pingFrame,
// which carries only the type field.
type PingFrame struct {
	Type      FrameType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthenticateData is the payload of an inbound "authenticate" frame.
type AuthenticateData struct {
	ExtensionID  string         `json:"extensionId"`
	Capabilities []CapabilityDTO `json:"capabilities,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// CapabilityDTO mirrors domain.Capability on the wire.
type CapabilityDTO struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HeartbeatData is the payload of an inbound "heartbeat" frame.
type HeartbeatData struct {
	Status  string         `json:"status,omitempty"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

// ImageGeneratedData is the payload of an inbound "image_generated" frame.
type ImageGeneratedData struct {
	RequestID     string         `json:"requestId"`
	ImageURL      string         `json:"imageUrl"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// ImageGenerationFailedData is the payload of an inbound
// "image_generation_failed" frame.
type ImageGenerationFailedData struct {
	RequestID     string `json:"requestId"`
	Error         string `json:"error"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ImageGenerationProgressData is the payload of an inbound
// "image_generation_progress" frame.
type ImageGenerationProgressData struct {
	RequestID     string  `json:"requestId"`
	Progress      float64 `json:"progress"`
	Status        string  `json:"status,omitempty"`
	CorrelationID string  `json:"correlationId,omitempty"`
}

// GenerateImageData is the payload of an outbound "generate_image" frame —
// the work assignment itself.
type GenerateImageData struct {
	RequestID     string         `json:"requestId"`
	Prompt        string         `json:"prompt"`
	Model         string         `json:"model,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	UserID        string         `json:"userId,omitempty"`
	CorrelationID string         `json:"correlationId"`
}

// ErrorData is the payload of an outbound "error" frame.
type ErrorData struct {
	Error string `json:"error"`
}
