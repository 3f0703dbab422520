package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidemill/promptcanvas/pkg/agent"
	"github.com/tidemill/promptcanvas/pkg/logger"
)

// ErrUnauthenticated indicates no credential was available at stream-open time
var ErrUnauthenticated = errors.New("user not authenticated")

// ChatRequest is the body of an outgoing chat stream request
type ChatRequest struct {
	ConversationHistory []Turn           `json:"conversation_history"`
	InjectedContext     *InjectedContext `json:"injected_context,omitempty"`
	EnvID               string           `json:"env_id,omitempty"`
}

// StreamCallbacks receive the parsed updates of one agent stream. Exactly one
// terminal callback fires per stream: OnClose on graceful end-of-stream, or
// OnError on transport or parse failure. No update is delivered after either.
type StreamCallbacks struct {
	OnUpdate func(agent.Update)
	OnClose  func()
	OnError  func(error)
}

// StreamClient opens one request-scoped event stream per submitted prompt and
// forwards every non-heartbeat update in strict arrival order. It never
// retries: agent tasks are not safely resumable mid-tool-execution, so a
// silent retry could duplicate side effects.
type StreamClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewStreamClient creates a stream client for the chat endpoint. The HTTP
// client carries no timeout: upstream task duration is unbounded and the
// stream stays open until the server ends it.
func NewStreamClient(endpoint string) *StreamClient {
	return &StreamClient{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

// Stream opens the event stream. Setup failures (missing credential, encoding,
// connection, non-2xx status) are returned synchronously and no callback
// fires. Once the stream is open, Stream returns nil and the callbacks take
// over on a reader goroutine.
func (sc *StreamClient) Stream(ctx context.Context, token string, req ChatRequest, callbacks StreamCallbacks) error {
	if token == "" {
		return ErrUnauthenticated
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := sc.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errorBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}

		var errorResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(errorBody, &errorResp) == nil && errorResp.Error != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errorResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(errorBody))
	}

	go sc.readStream(ctx, resp.Body, callbacks)
	return nil
}

// readStream consumes server-sent event frames until the stream terminates.
// Update processing runs synchronously inside this loop, which is what keeps
// envelope application strictly FIFO for the stream.
func (sc *StreamClient) readStream(ctx context.Context, body io.ReadCloser, callbacks StreamCallbacks) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			callbacks.OnError(ctx.Err())
			return
		default:
		}

		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, ":"):
			// SSE comment, used as a keep-alive
			continue

		case strings.HasPrefix(line, "data:"):
			// Multiple data lines of one event are rejoined with a newline
			if data.Len() > 0 {
				data.WriteString("\n")
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))

		case line == "":
			frame := data.String()
			data.Reset()

			update, ok, err := agent.ParseUpdate([]byte(frame))
			if err != nil {
				logger.Error("Dropping stream after malformed frame: %v", err)
				callbacks.OnError(err)
				return
			}
			if !ok {
				// Heartbeat frame
				continue
			}

			callbacks.OnUpdate(update)

			if update.IsEnd() {
				callbacks.OnClose()
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		callbacks.OnError(fmt.Errorf("stream reading error: %w", err))
		return
	}

	// Flush a final frame that was not terminated by a blank line
	if frame := data.String(); frame != "" {
		update, ok, err := agent.ParseUpdate([]byte(frame))
		if err != nil {
			callbacks.OnError(err)
			return
		}
		if ok {
			callbacks.OnUpdate(update)
		}
	}

	callbacks.OnClose()
}
