package chat

import (
	"strings"

	"github.com/tidemill/promptcanvas/pkg/agent"
)

// Turn is one prior conversation entry in the role/content form the chat
// endpoint expects. Assistant turns carry the flattened terminal view of an
// aggregated response.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NewUserTurn creates a user turn
func NewUserTurn(content string) Turn {
	return Turn{
		Role:    RoleUser,
		Content: strings.TrimSpace(content),
	}
}

// NewAssistantTurn creates an assistant turn from a terminal aggregated response
func NewAssistantTurn(resp *agent.Response) Turn {
	if resp == nil {
		return Turn{Role: RoleAssistant}
	}
	return Turn{
		Role:    RoleAssistant,
		Content: resp.FlattenText(),
	}
}

// IsUser reports whether the turn came from the user
func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

// IsAssistant reports whether the turn came from the agent
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}
