package conversation

import (
	"strings"

	"github.com/pkg/errors"
)

// Mutation represents a deterministic change to a timeline.
type Mutation interface {
	Apply(t Timeline) (Timeline, error)
	Name() string
}

// ApplyAll applies the mutations in order. If one fails, the original timeline
// is returned together with the error, so a sequence is applied all or nothing.
func ApplyAll(t Timeline, muts ...Mutation) (Timeline, error) {
	cur := t
	for _, m := range muts {
		if m == nil {
			return t, errors.New("mutation is nil")
		}
		next, err := m.Apply(cur)
		if err != nil {
			return t, errors.Wrapf(err, "mutation %s failed", m.Name())
		}
		cur = next
	}
	return cur, nil
}

type appendNodeMutation struct {
	node Node
}

func (m appendNodeMutation) Apply(t Timeline) (Timeline, error) {
	if err := m.node.Validate(); err != nil {
		return t, err
	}
	return t.Append(m.node), nil
}

func (m appendNodeMutation) Name() string { return "append_node" }

// MutateAppendNode appends a node.
func MutateAppendNode(node Node) Mutation {
	return appendNodeMutation{node: node}
}

// MutateAppendUserText appends a user node with a single variant.
func MutateAppendUserText(text string) Mutation {
	return appendTextMutation{role: RoleUser, variant: Variant{Content: text}}
}

// MutateAppendUserAttachment appends a user node carrying the name of an
// uploaded document. The text may be blank when a document is attached.
func MutateAppendUserAttachment(text, attachment string) Mutation {
	return appendAttachmentMutation{text: text, attachment: attachment}
}

type appendAttachmentMutation struct {
	text       string
	attachment string
}

func (m appendAttachmentMutation) Apply(t Timeline) (Timeline, error) {
	if strings.TrimSpace(m.text) == "" && strings.TrimSpace(m.attachment) == "" {
		return t, errors.New("text is empty")
	}
	return t.Append(NewUserNode(m.text, WithAttachment(m.attachment))), nil
}

func (m appendAttachmentMutation) Name() string { return "append_attachment" }

// MutateAppendAssistant appends an assistant node with a single variant.
func MutateAppendAssistant(variant Variant) Mutation {
	return appendTextMutation{role: RoleAssistant, variant: variant}
}

type appendTextMutation struct {
	role    Role
	variant Variant
}

func (m appendTextMutation) Apply(t Timeline) (Timeline, error) {
	if m.role == RoleUser && strings.TrimSpace(m.variant.Content) == "" {
		return t, errors.New("text is empty")
	}
	return t.Append(NewNode(m.role, m.variant)), nil
}

func (m appendTextMutation) Name() string { return "append_text" }

type appendVersionMutation struct {
	index   int
	role    Role
	variant Variant
}

// MutateAppendVersion adds a variant to the node at index and selects it. The
// node must have the given role.
func MutateAppendVersion(index int, role Role, variant Variant) Mutation {
	return appendVersionMutation{index: index, role: role, variant: variant}
}

func (m appendVersionMutation) Apply(t Timeline) (Timeline, error) {
	node, err := t.At(m.index)
	if err != nil {
		return t, err
	}
	if node.Role != m.role {
		return t, errors.Errorf("node %d is a %s node, expected %s", m.index, node.Role, m.role)
	}
	return t.ReplaceAt(m.index, node.AppendVersion(m.variant))
}

func (m appendVersionMutation) Name() string { return "append_version" }

type truncateAfterMutation struct {
	index int
}

// MutateTruncateAfter drops every node after index.
func MutateTruncateAfter(index int) Mutation {
	return truncateAfterMutation{index: index}
}

func (m truncateAfterMutation) Apply(t Timeline) (Timeline, error) {
	return t.TruncateAfter(m.index)
}

func (m truncateAfterMutation) Name() string { return "truncate_after" }

type navigateMutation struct {
	index int
	delta int
}

// MutateNavigate moves the selected version of the node at index by delta.
func MutateNavigate(index int, delta int) Mutation {
	return navigateMutation{index: index, delta: delta}
}

func (m navigateMutation) Apply(t Timeline) (Timeline, error) {
	node, err := t.At(m.index)
	if err != nil {
		return t, err
	}
	next := node.Navigate(m.delta)
	if next.CurrentVersionIndex == node.CurrentVersionIndex {
		return t, nil
	}
	return t.ReplaceAt(m.index, next)
}

func (m navigateMutation) Name() string { return "navigate" }

type replaceMutation struct {
	nodes []Node
}

// MutateReplace swaps out every node of the timeline.
func MutateReplace(nodes []Node) Mutation {
	return replaceMutation{nodes: nodes}
}

func (m replaceMutation) Apply(t Timeline) (Timeline, error) {
	for i, n := range m.nodes {
		if err := n.Validate(); err != nil {
			return t, errors.Wrapf(err, "node %d", i)
		}
	}
	return t.Replace(m.nodes), nil
}

func (m replaceMutation) Name() string { return "replace" }
