package wire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shaiso/dispatch-engine/internal/registry"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // 1MiB, generous for base64'd metadata blobs
	sendBuffer     = 64
)

// Handler is the business-logic side of the wire protocol, implemented by
// the engine's bridge between /ws and the Router/Reaper/Registry. Kept as
// a narrow interface so internal/wire never imports internal/router or
// internal/reaper, avoiding a cyclic import — internal/reaper already
// depends on internal/wire's frame types. internal/registry is imported
// only for the Sender interface.
type Handler interface {
	// OnConnect registers the socket under its temporary id, unauthenticated,
	// as soon as the connection is accepted. sender is the Client itself,
	// passed as registry.Sender so the handler can call Registry methods
	// without this package importing internal/wire back.
	OnConnect(tempID string, sender registry.Sender)
	// OnAuthenticate validates the authenticate frame and collapses the
	// temporary id into the session's declared extensionId (registry.Rekey).
	OnAuthenticate(tempID string, sender registry.Sender, data AuthenticateData) error
	OnHeartbeat(id string, data HeartbeatData)
	OnImageGenerated(id string, data ImageGeneratedData)
	OnImageGenerationFailed(id string, data ImageGenerationFailedData)
	OnImageGenerationProgress(id string, data ImageGenerationProgressData)
	OnDisconnect(id string, reason string)
}

// Client wraps one /ws connection: a reader goroutine decoding inbound
// frames and a writer goroutine draining a bounded outbound channel,
// directly generalizing cartographus's Hub/Client split to a
// per-extension session instead of broadcast fan-out.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	handler Handler
	logger  *slog.Logger

	authenticated bool
}

// NewClient wraps conn with a temporary id until the authenticate frame
// arrives and assigns a sender channel.
func NewClient(conn *websocket.Conn, handler Handler, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		id:      "temp-" + uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		handler: handler,
		logger:  logger,
	}
}

// ID returns the client's current session id (temp-* until authenticated).
func (c *Client) ID() string { return c.id }

// Send implements registry.Sender: marshals frame and enqueues it on the
// bounded outbound channel. A full channel means the session is wedged:
// the connection is closed, so the read loop ends and the session is
// removed as a disconnect, and an error is returned.
func (c *Client) Send(frame any) error {
	body, err := Marshal(frame)
	if err != nil {
		return fmt.Errorf("wire: marshal frame: %w", err)
	}
	select {
	case c.send <- body:
		return nil
	default:
		_ = c.conn.Close()
		return fmt.Errorf("wire: outbound channel full for session %s", c.id)
	}
}

// Close sends a websocket close frame and tears down the connection.
func (c *Client) Close(code int, reason string) error {
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	return c.conn.Close()
}

// Run starts the read pump and blocks until the connection closes or ctx
// is cancelled; the write pump runs in its own goroutine. Intended to be
// launched once per accepted /ws connection.
func (c *Client) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(ctx)
	}()

	// ReadMessage blocks regardless of ctx; closing the socket on
	// cancellation is what actually unblocks readPump below.
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	c.handler.OnConnect(c.id, c)
	c.sendFrame(Frame{Type: FrameAuthenticationRequired, Timestamp: time.Now()})
	c.readPump(ctx)

	close(c.send)
	<-done
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case body, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				c.logger.Debug("wire: write failed, closing", "session_id", c.id, "error", err)
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.handler.OnDisconnect(c.id, "context cancelled")
			return
		default:
		}

		_, body, err := c.conn.ReadMessage()
		if err != nil {
			c.handler.OnDisconnect(c.id, err.Error())
			return
		}

		var frame Frame
		if err := Unmarshal(body, &frame); err != nil {
			c.sendFrame(Frame{Type: FrameError, Timestamp: time.Now(),
				Data: map[string]any{"error": "invalid json"}})
			continue
		}

		if !c.authenticated && frame.Type != FrameAuthenticate {
			c.sendFrame(Frame{Type: FrameError, Timestamp: time.Now(),
				Data: map[string]any{"error": "authenticate frame required first"}})
			continue
		}

		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame Frame) {
	switch frame.Type {
	case FrameAuthenticate:
		data, err := DecodeData[AuthenticateData](frame.Data)
		if err != nil || data.ExtensionID == "" {
			c.sendFrame(Frame{Type: FrameError, Timestamp: time.Now(),
				Data: map[string]any{"error": "malformed authenticate frame"}})
			return
		}
		if err := c.handler.OnAuthenticate(c.id, c, data); err != nil {
			c.sendFrame(Frame{Type: FrameError, Timestamp: time.Now(),
				Data: map[string]any{"error": err.Error()}})
			return
		}
		c.id = data.ExtensionID
		c.authenticated = true
		c.sendFrame(Frame{Type: FrameAuthenticationSuccess, Timestamp: time.Now(),
			Data: map[string]any{"extensionId": c.id}})

	case FrameHeartbeat:
		data, _ := DecodeData[HeartbeatData](frame.Data)
		c.handler.OnHeartbeat(c.id, data)
		c.sendFrame(Frame{Type: FrameHeartbeatResponse, Timestamp: time.Now()})

	case FrameImageGenerated:
		data, err := DecodeData[ImageGeneratedData](frame.Data)
		if err == nil {
			c.handler.OnImageGenerated(c.id, data)
		}

	case FrameImageGenerationFailed:
		data, err := DecodeData[ImageGenerationFailedData](frame.Data)
		if err == nil {
			c.handler.OnImageGenerationFailed(c.id, data)
		}

	case FrameImageGenerationProgress:
		data, err := DecodeData[ImageGenerationProgressData](frame.Data)
		if err == nil {
			c.handler.OnImageGenerationProgress(c.id, data)
		}

	default:
		c.sendFrame(Frame{Type: FrameError, Timestamp: time.Now(),
			Data: map[string]any{"error": "unknown frame type: " + string(frame.Type)}})
	}
}

func (c *Client) sendFrame(frame Frame) {
	if err := c.Send(frame); err != nil {
		c.logger.Debug("wire: failed to send frame", "session_id", c.id, "type", frame.Type, "error", err)
	}
}
