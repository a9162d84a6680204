package conversation

import (
	"github.com/pkg/errors"
)

var ErrIndexOutOfRange = errors.New("index out of range")

// HistoryEntry is the role/content pair that is sent along a completion request.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Timeline is an immutable snapshot of the ordered nodes of one conversation.
//
// Insertion order is chronological order. Every operation returns a new
// Timeline; the nodes slice of a snapshot is never written to after the
// snapshot has been returned, so snapshots can be shared freely between
// readers. Version counts the number of operations that produced the snapshot.
type Timeline struct {
	nodes   []Node
	version int64
}

// NewTimeline returns a timeline holding copies of the given nodes.
func NewTimeline(nodes ...Node) Timeline {
	return Timeline{nodes: copyNodes(nodes)}
}

func (t Timeline) Len() int {
	return len(t.nodes)
}

func (t Timeline) IsEmpty() bool {
	return len(t.nodes) == 0
}

func (t Timeline) Version() int64 {
	return t.version
}

// At returns the node at index i.
func (t Timeline) At(i int) (Node, error) {
	if i < 0 || i >= len(t.nodes) {
		return Node{}, errors.Wrapf(ErrIndexOutOfRange, "node %d of %d", i, len(t.nodes))
	}
	return t.nodes[i], nil
}

// Nodes returns a copy of the nodes, safe to modify.
func (t Timeline) Nodes() []Node {
	return copyNodes(t.nodes)
}

// Last returns the last node, if any.
func (t Timeline) Last() (Node, bool) {
	if len(t.nodes) == 0 {
		return Node{}, false
	}
	return t.nodes[len(t.nodes)-1], true
}

// Replace swaps out all nodes.
func (t Timeline) Replace(nodes []Node) Timeline {
	return Timeline{nodes: copyNodes(nodes), version: t.version + 1}
}

// Append adds a node at the end.
func (t Timeline) Append(node Node) Timeline {
	nodes := make([]Node, len(t.nodes), len(t.nodes)+1)
	copy(nodes, t.nodes)
	nodes = append(nodes, node.clone())
	return Timeline{nodes: nodes, version: t.version + 1}
}

// TruncateAfter drops every node with an index greater than i.
// i == -1 empties the timeline.
func (t Timeline) TruncateAfter(i int) (Timeline, error) {
	if i < -1 || i >= len(t.nodes) {
		return t, errors.Wrapf(ErrIndexOutOfRange, "truncate after %d of %d", i, len(t.nodes))
	}
	return Timeline{nodes: copyNodes(t.nodes[:i+1]), version: t.version + 1}, nil
}

// ReplaceAt swaps the node at index i.
func (t Timeline) ReplaceAt(i int, node Node) (Timeline, error) {
	if i < 0 || i >= len(t.nodes) {
		return t, errors.Wrapf(ErrIndexOutOfRange, "replace at %d of %d", i, len(t.nodes))
	}
	nodes := copyNodes(t.nodes)
	nodes[i] = node.clone()
	return Timeline{nodes: nodes, version: t.version + 1}, nil
}

// Prefix returns the nodes [0, i) as a new timeline.
func (t Timeline) Prefix(i int) (Timeline, error) {
	if i < 0 || i > len(t.nodes) {
		return t, errors.Wrapf(ErrIndexOutOfRange, "prefix %d of %d", i, len(t.nodes))
	}
	return Timeline{nodes: copyNodes(t.nodes[:i]), version: t.version}, nil
}

// History reduces the timeline to the role/content pairs of the selected
// versions.
func (t Timeline) History() []HistoryEntry {
	ret := make([]HistoryEntry, 0, len(t.nodes))
	for _, n := range t.nodes {
		ret = append(ret, HistoryEntry{Role: n.Role, Content: n.Content()})
	}
	return ret
}

// LastIndexOf returns the index of the last node with the given role strictly
// before index before, or -1.
func (t Timeline) LastIndexOf(role Role, before int) int {
	if before > len(t.nodes) {
		before = len(t.nodes)
	}
	for i := before - 1; i >= 0; i-- {
		if t.nodes[i].Role == role {
			return i
		}
	}
	return -1
}

// Validate checks the version store invariant of every node.
func (t Timeline) Validate() error {
	for i, n := range t.nodes {
		if err := n.Validate(); err != nil {
			return errors.Wrapf(err, "node %d", i)
		}
	}
	return nil
}

func copyNodes(nodes []Node) []Node {
	if len(nodes) == 0 {
		return nil
	}
	ret := make([]Node, len(nodes))
	for i, n := range nodes {
		ret[i] = n.clone()
	}
	return ret
}
