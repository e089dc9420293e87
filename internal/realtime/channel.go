// SPDX-License-Identifier: MIT

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Aivify/latvian-voice-agent/internal/log"
)

// Channel is one persistent bidirectional message channel scoped to a call.
// Channel-level errors and closes are terminal: no reconnect is attempted,
// the call bridge owns call continuity.
type Channel interface {
	// UpdateSession sends a session-wide configuration update. Fire and
	// forget: no acknowledgment is awaited.
	UpdateSession(update SessionUpdate) error

	// Speak requests verbatim synthesis of text. The response identifier for
	// correlation arrives asynchronously via a ResponseCreated event.
	Speak(text string) error

	// Events delivers normalized inbound events in wire order. The channel
	// is closed after a terminal ChannelClosed or ChannelError event.
	Events() <-chan Event

	// Close tears the channel down.
	Close() error
}

// Dialer opens websocket channels against the realtime service.
type Dialer struct {
	WSBase           string // e.g. "wss://api.openai.com"
	APIKey           string
	Model            string
	HandshakeTimeout time.Duration
}

// Dial opens the channel bound to callID, configured with the same
// codec/voice parameters used at acceptance.
func (d *Dialer) Dial(ctx context.Context, callID string, cfg SessionConfig) (Channel, error) {
	q := url.Values{}
	q.Set("model", d.Model)
	q.Set("call_id", callID)
	wsURL := fmt.Sprintf("%s/v1/realtime?%s", d.WSBase, q.Encode())

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	dialer := &websocket.Dialer{HandshakeTimeout: timeout}

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial channel (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial channel: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	ch := &wsChannel{
		conn:   conn,
		cfg:    cfg,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		logger: log.WithComponentFromContext(ctx, "channel"),
	}
	go ch.readLoop()
	return ch, nil
}

type wsChannel struct {
	conn   *websocket.Conn
	cfg    SessionConfig
	events chan Event
	done   chan struct{}
	logger zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *wsChannel) UpdateSession(update SessionUpdate) error {
	return c.writeJSON(map[string]any{
		"type":    wireSessionUpdate,
		"session": update,
	})
}

func (c *wsChannel) Speak(text string) error {
	return c.writeJSON(map[string]any{
		"type": wireResponseCreate,
		"response": map[string]any{
			"modalities":   []string{"audio", "text"},
			"instructions": text,
			"audio": map[string]string{
				"voice":  c.cfg.Voice,
				"format": c.cfg.OutputAudioFormat,
			},
		},
	})
}

func (c *wsChannel) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("channel write: %w", err)
	}
	return nil
}

func (c *wsChannel) Events() <-chan Event {
	return c.events
}

func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// emit hands an event to the consumer. A consumer that closed the channel may
// never drain the buffer, so every send also watches done.
func (c *wsChannel) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// readLoop normalizes inbound wire messages into Events until the transport
// fails or closes. It owns the events channel and closes it on exit.
func (c *wsChannel) readLoop() {
	defer close(c.events)

	// Response ids whose audio start has already been signalled; the first
	// audio delta only counts when no explicit start arrived before it.
	started := make(map[string]struct{})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.emit(ChannelClosed{Code: closeErr.Code, Reason: closeErr.Text})
			} else {
				c.emit(ChannelError{Err: err})
			}
			return
		}

		var evt wireEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.logger.Debug().
				Str("event", "channel.unparseable_message").
				Msg("dropping unparseable channel message")
			continue
		}

		switch evt.Type {
		case wireResponseCreated:
			if evt.Response != nil && evt.Response.ID != "" {
				if !c.emit(ResponseCreated{ID: evt.Response.ID}) {
					return
				}
			}
		case wireAudioStarted:
			if evt.Response != nil && evt.Response.ID != "" {
				started[evt.Response.ID] = struct{}{}
				if !c.emit(AudioStarted{ID: evt.Response.ID}) {
					return
				}
			}
		case wireAudioDelta:
			if evt.Response != nil && evt.Response.ID != "" {
				if _, seen := started[evt.Response.ID]; !seen {
					started[evt.Response.ID] = struct{}{}
					if !c.emit(AudioStarted{ID: evt.Response.ID, Implicit: true}) {
						return
					}
				}
			}
		case wireResponseDone:
			if evt.Response != nil && evt.Response.ID != "" {
				var ev Event = ResponseCompleted{ID: evt.Response.ID}
				if evt.Response.Status == "failed" {
					ev = ResponseFailed{ID: evt.Response.ID, Reason: "response status failed"}
				}
				if !c.emit(ev) {
					return
				}
			}
		case wireResponseFailed:
			if evt.Response != nil && evt.Response.ID != "" {
				if !c.emit(ResponseFailed{ID: evt.Response.ID, Reason: evt.Error.String()}) {
					return
				}
			}
		case wireError:
			// Service-level error notices carry no response id; surface them
			// as a failed utterance with an empty id so the sequencer can log
			// without tearing the session down.
			if !c.emit(ResponseFailed{Reason: evt.Error.String()}) {
				return
			}
		default:
			// Plenty of informational message kinds flow on the channel;
			// only the lifecycle events above matter to the sequencer.
		}
	}
}
