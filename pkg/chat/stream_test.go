package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemill/promptcanvas/pkg/agent"
)

// sseServer replies to every request with the given pre-built SSE body
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

// collectStream runs one stream against the server body and gathers every
// callback until the terminal one fires.
func collectStream(t *testing.T, body string) ([]agent.Update, bool, error) {
	t.Helper()
	server := sseServer(t, body)

	var updates []agent.Update
	var closed bool
	var streamErr error
	done := make(chan struct{})

	callbacks := StreamCallbacks{
		OnUpdate: func(u agent.Update) { updates = append(updates, u) },
		OnClose: func() {
			closed = true
			close(done)
		},
		OnError: func(err error) {
			streamErr = err
			close(done)
		},
	}

	err := NewStreamClient(server.URL).Stream(context.Background(), "test-token", ChatRequest{}, callbacks)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never terminated")
	}

	return updates, closed, streamErr
}

func TestStreamClient(t *testing.T) {
	t.Run("should deliver updates in arrival order and close on the end frame", func(t *testing.T) {
		body := "data: {\"subtype\":\"react_thought\",\"thought\":\"first\"}\n\n" +
			"data: {\"subtype\":\"react_observation\",\"observation\":\"second\"}\n\n" +
			"data: {\"subtype\":\"end\",\"success\":true,\"final_message\":\"Done\"}\n\n"

		updates, closed, streamErr := collectStream(t, body)
		require.NoError(t, streamErr)
		assert.True(t, closed)

		require.Len(t, updates, 3)
		assert.Equal(t, "first", updates[0].Thought)
		assert.Equal(t, "second", updates[1].Observation)
		assert.True(t, updates[2].IsEnd())
	})

	t.Run("should drop heartbeat frames and keep-alive comments", func(t *testing.T) {
		body := ": keep-alive\n\n" +
			"data: \n\n" +
			"data: {\"subtype\":\"llm_chunk\",\"content\":\"hi\"}\n\n" +
			": keep-alive\n" +
			"data: {\"subtype\":\"end\",\"success\":true}\n\n"

		updates, closed, streamErr := collectStream(t, body)
		require.NoError(t, streamErr)
		assert.True(t, closed)

		require.Len(t, updates, 2)
		assert.Equal(t, agent.SubtypeLLMChunk, updates[0].Subtype)
		assert.True(t, updates[1].IsEnd())
	})

	t.Run("should join multi-line data fields with a newline", func(t *testing.T) {
		body := "data: {\"subtype\":\"react_thought\",\ndata: \"thought\":\"split\"}\n\n" +
			"data: {\"subtype\":\"end\",\"success\":true}\n\n"

		updates, _, streamErr := collectStream(t, body)
		require.NoError(t, streamErr)
		require.Len(t, updates, 2)
		assert.Equal(t, "split", updates[0].Thought)
	})

	t.Run("should close gracefully when the stream ends without an end frame", func(t *testing.T) {
		body := "data: {\"subtype\":\"react_thought\",\"thought\":\"only\"}\n\n"

		updates, closed, streamErr := collectStream(t, body)
		require.NoError(t, streamErr)
		assert.True(t, closed)
		require.Len(t, updates, 1)
	})

	t.Run("should flush a trailing frame not terminated by a blank line", func(t *testing.T) {
		body := "data: {\"subtype\":\"react_thought\",\"thought\":\"first\"}\n\n" +
			"data: {\"subtype\":\"react_observation\",\"observation\":\"trailing\"}"

		updates, closed, streamErr := collectStream(t, body)
		require.NoError(t, streamErr)
		assert.True(t, closed)
		require.Len(t, updates, 2)
		assert.Equal(t, "trailing", updates[1].Observation)
	})

	t.Run("should stop after a malformed frame with exactly one error", func(t *testing.T) {
		body := "data: {\"subtype\":\"react_thought\",\"thought\":\"good\"}\n\n" +
			"data: {not json\n\n" +
			"data: {\"subtype\":\"react_observation\",\"observation\":\"never delivered\"}\n\n"

		updates, closed, streamErr := collectStream(t, body)
		require.Error(t, streamErr)
		assert.ErrorIs(t, streamErr, agent.ErrMalformedFrame)
		assert.False(t, closed)

		// Updates before the malformed frame were delivered, none after
		require.Len(t, updates, 1)
		assert.Equal(t, "good", updates[0].Thought)
	})

	t.Run("should refuse an unauthenticated request before any connection", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer server.Close()

		err := NewStreamClient(server.URL).Stream(context.Background(), "", ChatRequest{}, StreamCallbacks{})
		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.EqualValues(t, 0, hits.Load())
	})

	t.Run("should surface a non-200 response synchronously with the server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"agent backend unavailable"}`))
		}))
		defer server.Close()

		err := NewStreamClient(server.URL).Stream(context.Background(), "test-token", ChatRequest{}, StreamCallbacks{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
		assert.Contains(t, err.Error(), "agent backend unavailable")
	})

	t.Run("should send auth and stream headers", func(t *testing.T) {
		var gotAuth, gotAccept, gotContentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotAccept = r.Header.Get("Accept")
			gotContentType = r.Header.Get("Content-Type")
			w.Write([]byte("data: {\"subtype\":\"end\",\"success\":true}\n\n"))
		}))
		defer server.Close()

		done := make(chan struct{})
		err := NewStreamClient(server.URL).Stream(context.Background(), "secret", ChatRequest{}, StreamCallbacks{
			OnUpdate: func(agent.Update) {},
			OnClose:  func() { close(done) },
			OnError:  func(error) { close(done) },
		})
		require.NoError(t, err)
		<-done

		assert.Equal(t, "Bearer secret", gotAuth)
		assert.Equal(t, "text/event-stream", gotAccept)
		assert.Equal(t, "application/json", gotContentType)
	})
}
