package chat

import (
	"errors"
	"fmt"

	"github.com/tidemill/promptcanvas/pkg/graph"
	"github.com/tidemill/promptcanvas/pkg/logger"
)

// ErrDataIntegrity indicates a conversation graph that violates the forest
// invariant (cycles, duplicate parents, or dangling references). This is a
// state-corruption bug, not a recoverable user error.
var ErrDataIntegrity = errors.New("conversation graph integrity violation")

// ReconstructHistory walks parent edges backward from the starting node and
// returns the prior turns oldest-first. The starting node itself is excluded;
// INPUT placeholder nodes are skipped. A cycle or a reference to a missing
// node aborts the walk, as does a response node whose stream is still open:
// only the terminal view of a response may be replayed as an assistant turn.
func ReconstructHistory(nodes []graph.Node, edges []graph.Edge, startID string) ([]Turn, error) {
	nodeByID := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}

	parentOf := make(map[string]string, len(edges))
	for _, e := range edges {
		if _, dup := parentOf[e.Target]; dup {
			logger.Error("Node %s has more than one incoming edge", e.Target)
			return nil, fmt.Errorf("%w: node %s has multiple parents", ErrDataIntegrity, e.Target)
		}
		parentOf[e.Target] = e.Source
	}

	if _, ok := nodeByID[startID]; !ok {
		logger.Error("History reconstruction started from unknown node %s", startID)
		return nil, fmt.Errorf("%w: starting node %s not found", ErrDataIntegrity, startID)
	}

	var turns []Turn
	visited := map[string]bool{startID: true}

	current, ok := parentOf[startID]
	for ok {
		if visited[current] {
			logger.Error("Cycle detected in conversation graph at node %s", current)
			return nil, fmt.Errorf("%w: cycle at node %s", ErrDataIntegrity, current)
		}
		visited[current] = true

		node, exists := nodeByID[current]
		if !exists {
			logger.Error("Edge references missing node %s", current)
			return nil, fmt.Errorf("%w: dangling reference to node %s", ErrDataIntegrity, current)
		}

		if node.Type == graph.NodeTypeAIResponse && node.IsLoading {
			return nil, fmt.Errorf("%w: %s", ErrNodeLoading, node.ID)
		}

		if turn, include := turnForNode(node); include {
			// Walking backwards, so prepend to keep oldest-first order
			turns = append([]Turn{turn}, turns...)
		}

		current, ok = parentOf[current]
	}

	return turns, nil
}

// HistoryThrough returns the turns up to and including the given node, in
// oldest-first order. This is the history a follow-up question from that node
// replays to the server.
func HistoryThrough(nodes []graph.Node, edges []graph.Edge, nodeID string) ([]Turn, error) {
	turns, err := ReconstructHistory(nodes, edges, nodeID)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if n.ID == nodeID {
			if n.Type == graph.NodeTypeAIResponse && n.IsLoading {
				return nil, fmt.Errorf("%w: %s", ErrNodeLoading, n.ID)
			}
			if turn, include := turnForNode(n); include {
				turns = append(turns, turn)
			}
			return turns, nil
		}
	}
	return turns, nil
}

// turnForNode classifies a node into a conversation turn. INPUT placeholders
// contribute nothing.
func turnForNode(node graph.Node) (Turn, bool) {
	switch node.Type {
	case graph.NodeTypeUserQuery:
		return NewUserTurn(node.Label), true
	case graph.NodeTypeAIResponse:
		return NewAssistantTurn(node.Response), true
	default:
		return Turn{}, false
	}
}
