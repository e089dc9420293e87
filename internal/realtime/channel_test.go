// SPDX-License-Identifier: MIT

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer upgrades one connection and hands it to the test.
type wsTestServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	query chan string
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	ts := &wsTestServer{
		conns: make(chan *websocket.Conn, 1),
		query: make(chan string, 1),
	}
	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.query <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		ts.conns <- conn
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func dialTestChannel(t *testing.T, ts *wsTestServer) (Channel, *websocket.Conn) {
	t.Helper()
	d := &Dialer{WSBase: ts.wsURL(), APIKey: "sk-test", Model: "gpt-4o-realtime-preview"}
	ch, err := d.Dial(context.Background(), "call-1", testSessionConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	remote := <-ts.conns
	return ch, remote
}

func recvEvent(t *testing.T, ch Channel) Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		require.True(t, ok, "events channel closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestDialQueryParameters(t *testing.T) {
	ts := newWSTestServer(t)
	_, _ = dialTestChannel(t, ts)

	raw := <-ts.query
	assert.Contains(t, raw, "call_id=call-1")
	assert.Contains(t, raw, "model=gpt-4o-realtime-preview")
}

func TestSpeakWireFormat(t *testing.T) {
	ts := newWSTestServer(t)
	ch, remote := dialTestChannel(t, ts)

	require.NoError(t, ch.Speak("Sveiki!"))

	var msg map[string]any
	require.NoError(t, remote.ReadJSON(&msg))
	assert.Equal(t, "response.create", msg["type"])

	resp := msg["response"].(map[string]any)
	assert.Equal(t, "Sveiki!", resp["instructions"])
	assert.Equal(t, []any{"audio", "text"}, resp["modalities"])

	audio := resp["audio"].(map[string]any)
	assert.Equal(t, "marin", audio["voice"])
	assert.Equal(t, "g711_ulaw", audio["format"])
}

func TestUpdateSessionExplicitNulls(t *testing.T) {
	ts := newWSTestServer(t)
	ch, remote := dialTestChannel(t, ts)

	require.NoError(t, ch.UpdateSession(SessionUpdate{
		Instructions: "strict",
		Temperature:  Temp(0),
	}))

	_, raw, err := remote.ReadMessage()
	require.NoError(t, err)

	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &msg))

	var session map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg["session"], &session))

	// Disabled turn detection and transcription are explicit nulls, and a
	// zero temperature survives marshalling.
	assert.Equal(t, "null", string(session["turn_detection"]))
	assert.Equal(t, "null", string(session["input_audio_transcription"]))
	assert.Equal(t, "0", string(session["temperature"]))
}

func TestEventNormalization(t *testing.T) {
	ts := newWSTestServer(t)
	ch, remote := dialTestChannel(t, ts)

	send := func(v any) {
		require.NoError(t, remote.WriteJSON(v))
	}

	send(map[string]any{"type": "response.created", "response": map[string]any{"id": "r1"}})
	assert.Equal(t, ResponseCreated{ID: "r1"}, recvEvent(t, ch))

	// Explicit audio start.
	send(map[string]any{"type": "response.output_audio_buffer.started", "response": map[string]any{"id": "r1"}})
	assert.Equal(t, AudioStarted{ID: "r1"}, recvEvent(t, ch))

	// Deltas after an explicit start do not re-signal.
	send(map[string]any{"type": "response.output_audio.delta", "response": map[string]any{"id": "r1"}})
	send(map[string]any{"type": "response.done", "response": map[string]any{"id": "r1", "status": "completed"}})
	assert.Equal(t, ResponseCompleted{ID: "r1"}, recvEvent(t, ch))

	// The first delta without an explicit start becomes an implicit start.
	send(map[string]any{"type": "response.created", "response": map[string]any{"id": "r2"}})
	assert.Equal(t, ResponseCreated{ID: "r2"}, recvEvent(t, ch))
	send(map[string]any{"type": "response.output_audio.delta", "response": map[string]any{"id": "r2"}})
	assert.Equal(t, AudioStarted{ID: "r2", Implicit: true}, recvEvent(t, ch))
	send(map[string]any{"type": "response.output_audio.delta", "response": map[string]any{"id": "r2"}})

	// Failed terminal status.
	send(map[string]any{"type": "response.done", "response": map[string]any{"id": "r2", "status": "failed"}})
	assert.Equal(t, ResponseFailed{ID: "r2", Reason: "response status failed"}, recvEvent(t, ch))

	// Unknown informational kinds are dropped.
	send(map[string]any{"type": "session.created"})

	// Service-level error notice without a response id.
	send(map[string]any{"type": "error", "error": map[string]any{"code": "rate_limited", "message": "slow down"}})
	assert.Equal(t, ResponseFailed{Reason: "rate_limited: slow down"}, recvEvent(t, ch))
}

func TestChannelClosedEvent(t *testing.T) {
	ts := newWSTestServer(t)
	ch, remote := dialTestChannel(t, ts)

	require.NoError(t, remote.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
		time.Now().Add(time.Second),
	))

	ev := recvEvent(t, ch)
	closed, ok := ev.(ChannelClosed)
	require.True(t, ok, "expected ChannelClosed, got %T", ev)
	assert.Equal(t, websocket.CloseGoingAway, closed.Code)
	assert.Equal(t, "bye", closed.Reason)

	// The events channel is closed after the terminal event.
	_, open := <-ch.Events()
	assert.False(t, open)
}

func TestCloseUnblocksStalledReadLoop(t *testing.T) {
	ts := newWSTestServer(t)
	ch, remote := dialTestChannel(t, ts)

	// Flood well past the event buffer with no consumer attached, leaving the
	// reader stalled on a full buffer.
	for i := 0; i < 100; i++ {
		require.NoError(t, remote.WriteJSON(map[string]any{
			"type":     "response.created",
			"response": map[string]any{"id": fmt.Sprintf("r%d", i)},
		}))
	}

	require.NoError(t, ch.Close())

	// The reader must abandon its blocked send and close the events channel.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch.Events():
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("events channel still open after Close")
		}
	}
}

func TestChannelErrorEvent(t *testing.T) {
	ts := newWSTestServer(t)
	ch, remote := dialTestChannel(t, ts)

	// A hard transport drop surfaces as ChannelError.
	require.NoError(t, remote.UnderlyingConn().Close())

	ev := recvEvent(t, ch)
	_, ok := ev.(ChannelError)
	assert.True(t, ok, "expected ChannelError, got %T", ev)
}
