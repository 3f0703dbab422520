package headless

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemill/promptcanvas/pkg/chat"
	"github.com/tidemill/promptcanvas/pkg/graph"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, bool) {
	return s.token, s.token != ""
}

func testClient(t *testing.T, body string) *chat.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return chat.NewClient(graph.NewStore(), staticTokens{token: "test-token"}, nil, server.URL, server.URL, "", 5*time.Second)
}

func TestRunnerRun(t *testing.T) {
	t.Run("should print every stage of a successful run", func(t *testing.T) {
		body := "data: {\"subtype\":\"react_thought\",\"thought\":\"Plan the steps\"}\n\n" +
			"data: {\"subtype\":\"react_observation\",\"observation\":\"found 3 results\"}\n\n" +
			"data: {\"subtype\":\"end\",\"success\":true,\"final_message\":\"Done\"}\n\n"

		var out bytes.Buffer
		runner := NewRunnerWith(testClient(t, body), &out)

		require.NoError(t, runner.Run(context.Background(), "What is the schema?"))

		printed := out.String()
		assert.Contains(t, printed, "Thought: Plan the steps")
		assert.Contains(t, printed, "Observation: found 3 results")
		assert.Contains(t, printed, "Task finished: Done")
	})

	t.Run("should fail when the task ends unsuccessfully", func(t *testing.T) {
		body := "data: {\"subtype\":\"end\",\"success\":false,\"final_message\":\"Tool crashed\"}\n\n"

		var out bytes.Buffer
		runner := NewRunnerWith(testClient(t, body), &out)

		err := runner.Run(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, out.String(), "Task failed: Tool crashed")
	})

	t.Run("should reject an empty prompt", func(t *testing.T) {
		var out bytes.Buffer
		runner := NewRunnerWith(testClient(t, ""), &out)

		assert.Error(t, runner.Run(context.Background(), ""))
	})

	t.Run("should surface submission errors", func(t *testing.T) {
		client := chat.NewClient(graph.NewStore(), staticTokens{}, nil, "http://127.0.0.1:0", "http://127.0.0.1:0", "", time.Second)

		var out bytes.Buffer
		runner := NewRunnerWith(client, &out)

		err := runner.Run(context.Background(), "hello")
		assert.ErrorIs(t, err, chat.ErrUnauthenticated)
	})
}
