package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Update subtypes recognized by the aggregator. The server may emit subtypes
// outside this set; those carry free-form status text in Message.
const (
	SubtypeLLMChunk    = "llm_chunk"
	SubtypeThought     = "react_thought"
	SubtypeAction      = "react_action"
	SubtypeObservation = "react_observation"
	SubtypeEnd         = "end"
)

// ErrMalformedFrame indicates a stream frame that could not be parsed into an Update
var ErrMalformedFrame = errors.New("malformed stream frame")

// Update is a single frame from the agent stream. Subtype discriminates which
// payload fields are meaningful.
type Update struct {
	Type    string `json:"type,omitempty"`
	Subtype string `json:"subtype"`
	Message string `json:"message,omitempty"`

	// llm_chunk
	Content string `json:"content,omitempty"`

	// react_thought
	Thought string `json:"thought,omitempty"`

	// react_action
	ToolName string         `json:"tool_name,omitempty"`
	ToolArgs map[string]any `json:"tool_args,omitempty"`

	// react_observation
	Observation string `json:"observation,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`

	// end
	Success      bool   `json:"success,omitempty"`
	FinalMessage string `json:"final_message,omitempty"`
	FinalScript  string `json:"final_script,omitempty"`
}

// IsDisplayable reports whether the update is a finalized stage rather than
// transient streaming text or a status notice.
func (u Update) IsDisplayable() bool {
	switch u.Subtype {
	case SubtypeThought, SubtypeAction, SubtypeObservation, SubtypeEnd:
		return true
	}
	return false
}

// IsEnd reports whether the update terminates the stream
func (u Update) IsEnd() bool {
	return u.Subtype == SubtypeEnd
}

// ParseUpdate parses one raw stream frame into an Update. Empty frames are
// heartbeats: they return ok=false and must be dropped before the aggregator.
// A frame that is not valid JSON or lacks a subtype is a malformed frame.
func ParseUpdate(frame []byte) (Update, bool, error) {
	if len(bytes.TrimSpace(frame)) == 0 {
		return Update{}, false, nil
	}

	var update Update
	if err := json.Unmarshal(frame, &update); err != nil {
		return Update{}, false, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if update.Subtype == "" {
		return Update{}, false, fmt.Errorf("%w: missing subtype", ErrMalformedFrame)
	}

	return update, true, nil
}
