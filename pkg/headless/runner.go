package headless

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tidemill/promptcanvas/pkg/agent"
	"github.com/tidemill/promptcanvas/pkg/auth"
	"github.com/tidemill/promptcanvas/pkg/chat"
	"github.com/tidemill/promptcanvas/pkg/config"
	"github.com/tidemill/promptcanvas/pkg/graph"
	"github.com/tidemill/promptcanvas/pkg/render"
)

// pollInterval is how often the runner re-reads the response node while the
// stream is open.
const pollInterval = 100 * time.Millisecond

// Runner drives a single prompt through the pipeline against an in-memory
// graph, printing each finalized stage as it lands in the store.
type Runner struct {
	client   *chat.Client
	store    *graph.Store
	renderer *render.Renderer
	out      io.Writer
}

// NewRunner wires a runner from global config and the persisted credential
func NewRunner() (*Runner, error) {
	settings := config.Get()

	tokens, err := auth.NewTokenStore(config.BuildSettingsPath("token.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	store := graph.NewStore()
	client := chat.NewClient(
		store,
		tokens,
		nil,
		settings.ChatURL(),
		settings.FeedbackURL(),
		settings.Server.EnvironmentID,
		settings.Server.RequestTimeout,
	)

	return &Runner{
		client:   client,
		store:    store,
		renderer: render.NewRenderer(),
		out:      os.Stdout,
	}, nil
}

// NewRunnerWith wires a runner from explicit collaborators (used by tests)
func NewRunnerWith(client *chat.Client, out io.Writer) *Runner {
	return &Runner{
		client:   client,
		store:    client.Store(),
		renderer: render.NewRenderer().WithoutHighlighting(),
		out:      out,
	}
}

// Run submits the prompt as a fresh conversation root and prints stages until
// the stream settles. It returns an error when the task ends in failure.
func (r *Runner) Run(ctx context.Context, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty in headless mode")
	}

	nodeID, err := r.client.SubmitPrompt(ctx, prompt, "")
	if err != nil {
		return err
	}

	printed := 0
	for {
		node, ok := r.store.Node(nodeID)
		if !ok {
			return fmt.Errorf("response node %s vanished", nodeID)
		}

		if node.Response != nil {
			for _, stage := range node.Response.Stages[printed:] {
				fmt.Fprintln(r.out, r.renderer.Stage(stage))
			}
			printed = len(node.Response.Stages)
		}

		if !node.IsLoading {
			if node.Response != nil && node.Response.Status == agent.TaskStatusError {
				return fmt.Errorf("agent task failed")
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
