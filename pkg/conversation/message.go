package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Source is a citation attached to an assistant answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Variant is one content payload of a node. A node collects variants through
// edits (user nodes) and reruns (assistant nodes).
type Variant struct {
	Content string   `json:"content"`
	Sources []Source `json:"sources"`
}

func (v Variant) clone() Variant {
	ret := Variant{Content: v.Content}
	if len(v.Sources) > 0 {
		ret.Sources = append([]Source(nil), v.Sources...)
	}
	return ret
}

type NodeID uuid.UUID

func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *NodeID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

var ErrEmptyVersions = errors.New("node has no versions")

// Node is a single message of a timeline together with its version store.
//
// Node is a value type. All methods that change the version store return a new
// Node and leave the receiver untouched, so a Node held by an older Timeline
// snapshot never observes later edits.
type Node struct {
	ID                  NodeID    `json:"id"`
	Role                Role      `json:"role"`
	Versions            []Variant `json:"versions"`
	CurrentVersionIndex int       `json:"currentVersionIndex"`
	// Attachment names the document sent along with the first version.
	Attachment string `json:"attachment,omitempty"`
}

type NodeOption func(*Node)

func WithNodeID(id NodeID) NodeOption {
	return func(n *Node) {
		n.ID = id
	}
}

// NewNode creates a node holding a single variant, selected as current.
func NewNode(role Role, variant Variant, options ...NodeOption) Node {
	ret := Node{
		ID:       NewNodeID(),
		Role:     role,
		Versions: []Variant{variant.clone()},
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func WithAttachment(name string) NodeOption {
	return func(n *Node) {
		n.Attachment = name
	}
}

func NewUserNode(text string, options ...NodeOption) Node {
	return NewNode(RoleUser, Variant{Content: text}, options...)
}

func NewAssistantNode(text string, sources []Source, options ...NodeOption) Node {
	return NewNode(RoleAssistant, Variant{Content: text, Sources: sources}, options...)
}

// Current returns the selected variant.
func (n Node) Current() Variant {
	if len(n.Versions) == 0 {
		return Variant{}
	}
	return n.Versions[n.CurrentVersionIndex]
}

func (n Node) Content() string {
	return n.Current().Content
}

// DisplayContent is Content with the attachment note of a node that was never
// edited or rerun.
func (n Node) DisplayContent() string {
	if n.Attachment == "" || len(n.Versions) != 1 {
		return n.Content()
	}
	return n.Content() + "\n[Attached: " + n.Attachment + "]"
}

func (n Node) Sources() []Source {
	return n.Current().Sources
}

// AppendVersion adds a variant at the end of the version store and selects it.
func (n Node) AppendVersion(v Variant) Node {
	ret := n.clone()
	ret.Versions = append(ret.Versions, v.clone())
	ret.CurrentVersionIndex = len(ret.Versions) - 1
	return ret
}

// Navigate moves the current version by delta. Moving past either end leaves
// the node unchanged.
func (n Node) Navigate(delta int) Node {
	next := n.CurrentVersionIndex + delta
	if delta == 0 || next < 0 || next >= len(n.Versions) {
		return n
	}
	ret := n.clone()
	ret.CurrentVersionIndex = next
	return ret
}

func (n Node) VersionCount() int {
	return len(n.Versions)
}

// CurrentOrdinal is the 1-based position of the selected version.
func (n Node) CurrentOrdinal() int {
	return n.CurrentVersionIndex + 1
}

func (n Node) Validate() error {
	if !n.Role.Valid() {
		return errors.Errorf("invalid role %q", n.Role)
	}
	if len(n.Versions) == 0 {
		return ErrEmptyVersions
	}
	if n.CurrentVersionIndex < 0 || n.CurrentVersionIndex >= len(n.Versions) {
		return errors.Errorf("current version %d out of range [0, %d)", n.CurrentVersionIndex, len(n.Versions))
	}
	return nil
}

func (n Node) clone() Node {
	ret := n
	ret.Versions = make([]Variant, len(n.Versions))
	for i, v := range n.Versions {
		ret.Versions[i] = v.clone()
	}
	return ret
}

func (n Node) String() string {
	return fmt.Sprintf("[%s %d/%d]: %s", n.Role, n.CurrentOrdinal(), n.VersionCount(), strings.TrimRight(n.Content(), "\n"))
}
