package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tidemill/promptcanvas/pkg/logger"
)

// FeedbackVerdict is a like/dislike signal on a terminal response node
type FeedbackVerdict string

const (
	FeedbackLike    FeedbackVerdict = "like"
	FeedbackDislike FeedbackVerdict = "dislike"
)

// ErrFeedbackCommitted indicates feedback was already committed for the node
var ErrFeedbackCommitted = errors.New("feedback already submitted for node")

// FeedbackReport is the payload posted for offline review
type FeedbackReport struct {
	TurnID              string          `json:"turn_id"`
	Feedback            FeedbackVerdict `json:"feedback"`
	Prompt              string          `json:"prompt"`
	Response            string          `json:"response"`
	ConversationHistory []Turn          `json:"conversation_history"`
}

// FeedbackReporter posts feedback reports and guarantees at most one committed
// verdict per node. The commit happens optimistically before the network call
// and is rolled back if the call fails, so the user can retry.
type FeedbackReporter struct {
	endpoint   string
	httpClient *http.Client

	mu        sync.Mutex
	committed map[string]FeedbackVerdict
}

// NewFeedbackReporter creates a reporter for the feedback endpoint
func NewFeedbackReporter(endpoint string, timeout time.Duration) *FeedbackReporter {
	return &FeedbackReporter{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		committed:  make(map[string]FeedbackVerdict),
	}
}

// Committed returns the committed verdict for a node, if any
func (fr *FeedbackReporter) Committed(nodeID string) (FeedbackVerdict, bool) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	verdict, ok := fr.committed[nodeID]
	return verdict, ok
}

// Submit posts a feedback report. A node with a committed verdict rejects
// further submissions; a failed post reverts the commit.
func (fr *FeedbackReporter) Submit(ctx context.Context, token string, report FeedbackReport) error {
	if token == "" {
		return ErrUnauthenticated
	}

	fr.mu.Lock()
	if _, exists := fr.committed[report.TurnID]; exists {
		fr.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFeedbackCommitted, report.TurnID)
	}
	fr.committed[report.TurnID] = report.Feedback
	fr.mu.Unlock()

	if err := fr.post(ctx, token, report); err != nil {
		fr.mu.Lock()
		delete(fr.committed, report.TurnID)
		fr.mu.Unlock()

		logger.Error("Feedback submission for node %s failed: %v", report.TurnID, err)
		return err
	}

	logger.Debug("Feedback %q committed for node %s", report.Feedback, report.TurnID)
	return nil
}

func (fr *FeedbackReporter) post(ctx context.Context, token string, report FeedbackReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fr.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := fr.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("feedback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feedback request failed with status %d", resp.StatusCode)
	}

	return nil
}
