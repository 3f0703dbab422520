package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidemill/promptcanvas/pkg/agent"
	"github.com/tidemill/promptcanvas/pkg/graph"
	"github.com/tidemill/promptcanvas/pkg/logger"
)

// errorLabelPrefix flags a failed response node without removing it from the
// graph, so the partial stage history stays visible.
const errorLabelPrefix = "[error] "

// TokenSource exposes the stored credential
type TokenSource interface {
	Token() (string, bool)
}

// ContextSource exposes the current schema selection and uploaded files to the
// context injector. A nil ContextSource injects nothing.
type ContextSource interface {
	SchemaSelection() (Schema, map[string]bool)
	Files() []UserFile
}

// ErrNodeNotFound indicates a submission referenced a node the store no longer holds
var ErrNodeNotFound = errors.New("node not found")

// ErrNodeLoading indicates an operation referenced a response node whose
// stream is still open.
var ErrNodeLoading = errors.New("node stream is still open")

// Client runs the prompt pipeline: history reconstruction, context injection,
// stream consumption, and per-update aggregation into the graph store.
type Client struct {
	store    *graph.Store
	tokens   TokenSource
	contexts ContextSource
	stream   *StreamClient
	feedback *FeedbackReporter
	envID    string
}

// NewClient wires a pipeline client against the given collaborators
func NewClient(store *graph.Store, tokens TokenSource, contexts ContextSource, chatEndpoint, feedbackEndpoint, envID string, requestTimeout time.Duration) *Client {
	return &Client{
		store:    store,
		tokens:   tokens,
		contexts: contexts,
		stream:   NewStreamClient(chatEndpoint),
		feedback: NewFeedbackReporter(feedbackEndpoint, requestTimeout),
		envID:    envID,
	}
}

// SubmitPrompt fires the whole pipeline for one prompt: it materializes the
// user-query node and a loading response node under parentNodeID, replays the
// reconstructed history plus the fresh prompt to the chat endpoint, and folds
// every stream update into the response node. It returns the response node ID
// once the stream is open. An empty parentNodeID starts a fresh conversation
// root. A follow-up under a chain holding a still-streaming response node is
// refused with ErrNodeLoading.
func (c *Client) SubmitPrompt(ctx context.Context, prompt, parentNodeID string) (string, error) {
	token, ok := c.tokens.Token()
	if !ok {
		// Refuse before any node is created or any connection attempted
		return "", ErrUnauthenticated
	}

	nodes, edges := c.store.Snapshot()

	var history []Turn
	if parentNodeID != "" {
		var err error
		history, err = HistoryThrough(nodes, edges, parentNodeID)
		if err != nil {
			return "", err
		}
	}

	userNode := graph.NewUserQueryNode(prompt)
	responseNode := graph.NewResponseNode(responseLabel(prompt))

	c.store.AddNode(userNode)
	if parentNodeID != "" {
		c.store.AddEdge(graph.NewEdge(parentNodeID, userNode.ID))
	}
	c.store.AddNode(responseNode)
	c.store.AddEdge(graph.NewEdge(userNode.ID, responseNode.ID))

	var injected *InjectedContext
	if c.contexts != nil {
		schema, selected := c.contexts.SchemaSelection()
		injected = BuildInjectedContext(schema, selected, c.contexts.Files())
	}

	req := ChatRequest{
		ConversationHistory: append(history, NewUserTurn(prompt)),
		InjectedContext:     injected,
		EnvID:               c.envID,
	}

	aggregator := agent.NewAggregator()
	nodeID := responseNode.ID

	callbacks := StreamCallbacks{
		OnUpdate: func(update agent.Update) {
			aggregator.Apply(update)
			c.writeResponse(nodeID, aggregator)
		},
		OnClose: func() {
			aggregator.Close()
			c.settleNode(nodeID, aggregator, false)
		},
		OnError: func(err error) {
			aggregator.Fail(err)
			c.settleNode(nodeID, aggregator, true)
		},
	}

	logger.Info("Submitting prompt from node %q (%d history turns)", parentNodeID, len(req.ConversationHistory))

	if err := c.stream.Stream(ctx, token, req, callbacks); err != nil {
		aggregator.Fail(err)
		c.settleNode(nodeID, aggregator, true)
		return nodeID, err
	}

	return nodeID, nil
}

// writeResponse copies the aggregator snapshot into the latest version of the
// response node. A vanished node means the user deleted it mid-stream; the
// update is dropped silently.
func (c *Client) writeResponse(nodeID string, aggregator *agent.Aggregator) {
	snapshot := aggregator.Response()
	c.store.UpdateNode(nodeID, func(n *graph.Node) {
		n.Response = &snapshot
	})
}

// settleNode finalizes a response node when its stream terminates
func (c *Client) settleNode(nodeID string, aggregator *agent.Aggregator, failed bool) {
	snapshot := aggregator.Response()
	c.store.UpdateNode(nodeID, func(n *graph.Node) {
		n.Response = &snapshot
		n.IsLoading = false
		if failed {
			n.Label = errorLabelPrefix + n.Label
		}
	})
}

// SubmitFeedback posts a like/dislike verdict for a terminal response node,
// together with the reconstructed conversation up to and including that node.
func (c *Client) SubmitFeedback(ctx context.Context, nodeID string, verdict FeedbackVerdict) error {
	token, ok := c.tokens.Token()
	if !ok {
		return ErrUnauthenticated
	}

	node, exists := c.store.Node(nodeID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if node.Type != graph.NodeTypeAIResponse {
		return fmt.Errorf("feedback requires an AI response node, got %s", node.Type)
	}
	if node.IsLoading {
		return fmt.Errorf("%w: %s", ErrNodeLoading, nodeID)
	}

	nodes, edges := c.store.Snapshot()
	history, err := ReconstructHistory(nodes, edges, nodeID)
	if err != nil {
		return err
	}

	// Response can be nil when the node came in through Replace
	var responseText string
	if node.Response != nil {
		responseText = node.Response.FlattenText()
	}

	report := FeedbackReport{
		TurnID:              nodeID,
		Feedback:            verdict,
		Prompt:              lastUserContent(history),
		Response:            responseText,
		ConversationHistory: append(history, NewAssistantTurn(node.Response)),
	}

	return c.feedback.Submit(ctx, token, report)
}

// FeedbackCommitted reports whether a verdict has been committed for the node
func (c *Client) FeedbackCommitted(nodeID string) (FeedbackVerdict, bool) {
	return c.feedback.Committed(nodeID)
}

// Store returns the graph store the client mutates
func (c *Client) Store() *graph.Store {
	return c.store
}

// lastUserContent returns the content of the most recent user turn
func lastUserContent(history []Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsUser() {
			return history[i].Content
		}
	}
	return ""
}

// responseLabel truncates long prompts for the node label
func responseLabel(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > 20 {
		return fmt.Sprintf("Response to: %q...", string(runes[:20]))
	}
	return fmt.Sprintf("Response to: %q", prompt)
}
