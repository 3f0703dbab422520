package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tidemill/promptcanvas/pkg/agent"
)

// NodeType classifies how a node participates in history reconstruction
type NodeType string

const (
	// NodeTypeUserQuery is a submitted user prompt
	NodeTypeUserQuery NodeType = "USER_QUERY"
	// NodeTypeAIResponse is an agent answer holding an aggregated response
	NodeTypeAIResponse NodeType = "AI_RESPONSE"
	// NodeTypeInput is a not-yet-submitted placeholder
	NodeTypeInput NodeType = "INPUT"
)

// Node is one vertex of the conversation graph
type Node struct {
	ID        string          `json:"id"`
	Type      NodeType        `json:"node_type"`
	Label     string          `json:"label"`
	Response  *agent.Response `json:"agent_response,omitempty"`
	IsLoading bool            `json:"is_loading,omitempty"`
}

// Edge connects a parent turn (Source) to its follow-up (Target)
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// NewUserQueryNode creates a user-prompt node
func NewUserQueryNode(label string) Node {
	return Node{
		ID:    uuid.NewString(),
		Type:  NodeTypeUserQuery,
		Label: label,
	}
}

// NewResponseNode creates a loading AI-response node with an empty response
func NewResponseNode(label string) Node {
	return Node{
		ID:        uuid.NewString(),
		Type:      NodeTypeAIResponse,
		Label:     label,
		Response:  &agent.Response{Status: agent.TaskStatusRunning},
		IsLoading: true,
	}
}

// NewEdge connects source to target
func NewEdge(source, target string) Edge {
	return Edge{
		ID:     fmt.Sprintf("e-%s-%s", source, target),
		Source: source,
		Target: target,
	}
}

// Store holds the shared node/edge state. Multiple async callbacks (stream
// updates, feedback, user edits) race to read-then-write, so every mutation
// goes through the store lock and always sees the latest state rather than a
// stale snapshot captured earlier.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]Node
	order []string
	edges []Edge
}

// NewStore creates an empty graph store
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]Node),
	}
}

// Snapshot returns a copy of the current nodes (insertion order) and edges
func (s *Store) Snapshot() ([]Node, []Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		nodes = append(nodes, s.nodes[id])
	}

	edges := make([]Edge, len(s.edges))
	copy(edges, s.edges)

	return nodes, edges
}

// Replace swaps in a whole new node/edge set
func (s *Store) Replace(nodes []Node, edges []Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]Node, len(nodes))
	s.order = make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, exists := s.nodes[n.ID]; !exists {
			s.order = append(s.order, n.ID)
		}
		s.nodes[n.ID] = n
	}

	s.edges = make([]Edge, len(edges))
	copy(s.edges, edges)
}

// AddNode appends a node to the graph
func (s *Store) AddNode(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; !exists {
		s.order = append(s.order, n.ID)
	}
	s.nodes[n.ID] = n
}

// AddEdge appends an edge to the graph
func (s *Store) AddEdge(e Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges = append(s.edges, e)
}

// Node returns a node by ID
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	return n, ok
}

// UpdateNode applies patch to the latest version of the node under the store
// lock. It reports whether the node still existed; a vanished target is a
// silent no-op so updates for deleted nodes are dropped rather than failed.
func (s *Store) UpdateNode(id string, patch func(*Node)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return false
	}

	patch(&n)
	s.nodes[id] = n
	return true
}

// RemoveNode deletes a node and every edge touching it
func (s *Store) RemoveNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return
	}

	delete(s.nodes, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	s.edges = kept
}

// ParentEdge returns the unique incoming edge of a node
func (s *Store) ParentEdge(nodeID string) (Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.edges {
		if e.Target == nodeID {
			return e, true
		}
	}
	return Edge{}, false
}
