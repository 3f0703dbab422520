package agent

import (
	"encoding/json"
	"strings"

	"github.com/tidemill/promptcanvas/pkg/logger"
)

// StreamState is the aggregator's lifecycle state
type StreamState int

const (
	// StreamOpen accepts envelopes
	StreamOpen StreamState = iota
	// StreamClosed is terminal; no further mutation is accepted
	StreamClosed
)

// TaskStatus is the terminal outcome of an aggregated response
type TaskStatus string

const (
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusError   TaskStatus = "error"
)

// thinkingStatus is the generic indicator shown while raw tokens stream in
const thinkingStatus = "Thinking..."

// Response is the render-ready view of an agent answer: the ordered finalized
// stages plus the transient streaming buffer and status message. It is mutated
// only through an Aggregator and is frozen once Status leaves TaskStatusRunning.
type Response struct {
	Stages         []Update   `json:"stages"`
	ThinkingStream string     `json:"thinking_stream,omitempty"`
	StatusMessage  string     `json:"status_message,omitempty"`
	Status         TaskStatus `json:"status"`
}

// LastStage returns the most recently finalized stage
func (r Response) LastStage() (Update, bool) {
	if len(r.Stages) == 0 {
		return Update{}, false
	}
	return r.Stages[len(r.Stages)-1], true
}

// FlattenText serializes a terminal response to the flat string form used when
// replaying it as an assistant turn in conversation history.
func (r Response) FlattenText() string {
	data, err := json.Marshal(r)
	if err != nil {
		// Response contains only JSON-encodable fields; this is unreachable
		// in practice but a stage dump beats losing the turn entirely.
		return r.StatusMessage
	}
	return string(data)
}

// Aggregator folds a sequence of stream updates into an evolving Response.
// One instance is scoped to one response node's stream. It is not safe for
// concurrent use: envelopes are applied in arrival order by the single
// delivery goroutine of that stream.
type Aggregator struct {
	state         StreamState
	stages        []Update
	thinking      strings.Builder
	statusMessage string
	status        TaskStatus
}

// NewAggregator creates an open aggregator with an empty response
func NewAggregator() *Aggregator {
	return &Aggregator{
		state:  StreamOpen,
		status: TaskStatusRunning,
	}
}

// State returns the aggregator's lifecycle state
func (a *Aggregator) State() StreamState {
	return a.state
}

// Apply folds one update into the response. It reports whether the update was
// accepted; updates arriving after the stream closed are discarded so a
// straggling frame cannot corrupt a response already treated as final.
func (a *Aggregator) Apply(update Update) bool {
	if a.state == StreamClosed {
		logger.Debug("Discarding late update %q after stream close", update.Subtype)
		return false
	}

	switch {
	case update.Subtype == SubtypeLLMChunk:
		a.thinking.WriteString(update.Content)
		a.statusMessage = thinkingStatus

	case update.IsDisplayable():
		a.thinking.Reset()
		a.stages = append(a.stages, update)
		a.statusMessage = ""
		if update.IsEnd() {
			a.close()
		}

	default:
		// Status notices leave stages and the thinking buffer untouched
		a.statusMessage = update.Message
	}

	return true
}

// Close marks a graceful end-of-stream and derives the final task status from
// the last stage. Closing an already-closed aggregator is a no-op.
func (a *Aggregator) Close() {
	if a.state == StreamClosed {
		return
	}
	a.close()
}

// Fail marks the stream as failed. The accumulated stages are kept so the
// partial history up to the failure stays visible.
func (a *Aggregator) Fail(err error) {
	if a.state == StreamClosed {
		return
	}

	logger.Error("Agent stream failed: %v", err)
	a.state = StreamClosed
	a.status = TaskStatusError
	a.statusMessage = ""
	a.thinking.Reset()
}

// close transitions to StreamClosed and settles the status
func (a *Aggregator) close() {
	a.state = StreamClosed
	a.statusMessage = ""

	last, ok := a.lastStage()
	switch {
	case ok && last.IsEnd() && !last.Success:
		a.status = TaskStatusError
	case !ok || !last.IsEnd():
		// The server cut off without a terminal stage. Absence of an explicit
		// failure is not treated as failure, but the gap is worth noticing.
		logger.Warn("Stream closed without an end stage; defaulting status to success")
		a.status = TaskStatusSuccess
	default:
		a.status = TaskStatusSuccess
	}
}

func (a *Aggregator) lastStage() (Update, bool) {
	if len(a.stages) == 0 {
		return Update{}, false
	}
	return a.stages[len(a.stages)-1], true
}

// Response returns a snapshot of the current aggregated response. The stage
// slice is copied so callers cannot mutate the aggregator's state.
func (a *Aggregator) Response() Response {
	stages := make([]Update, len(a.stages))
	copy(stages, a.stages)

	return Response{
		Stages:         stages,
		ThinkingStream: a.thinking.String(),
		StatusMessage:  a.statusMessage,
		Status:         a.status,
	}
}
