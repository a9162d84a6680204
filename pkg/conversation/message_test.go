package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeSelectsSingleVariant(t *testing.T) {
	n := NewAssistantNode("hello", []Source{{Title: "Doc", URL: "#"}})

	require.NoError(t, n.Validate())
	assert.Equal(t, 1, n.VersionCount())
	assert.Equal(t, 1, n.CurrentOrdinal())
	assert.Equal(t, "hello", n.Content())
	assert.Equal(t, []Source{{Title: "Doc", URL: "#"}}, n.Sources())
}

func TestAppendVersionSelectsNewLast(t *testing.T) {
	n := NewUserNode("first")
	n2 := n.AppendVersion(Variant{Content: "second"})
	n3 := n2.AppendVersion(Variant{Content: "third"})

	assert.Equal(t, 3, n3.VersionCount())
	assert.Equal(t, 2, n3.CurrentVersionIndex)
	assert.Equal(t, "third", n3.Content())
	assert.Equal(t, "first", n3.Versions[0].Content)
	assert.Equal(t, "second", n3.Versions[1].Content)

	// earlier values are untouched
	assert.Equal(t, 1, n.VersionCount())
	assert.Equal(t, "first", n.Content())
	assert.Equal(t, 2, n2.VersionCount())
	assert.Equal(t, n.ID, n3.ID)
}

func TestNavigateStaysInBounds(t *testing.T) {
	n := NewAssistantNode("a", nil).
		AppendVersion(Variant{Content: "b"}).
		AppendVersion(Variant{Content: "c"})
	require.Equal(t, 2, n.CurrentVersionIndex)

	assert.Equal(t, 2, n.Navigate(1).CurrentVersionIndex)
	assert.Equal(t, 1, n.Navigate(-1).CurrentVersionIndex)
	assert.Equal(t, 0, n.Navigate(-2).CurrentVersionIndex)
	assert.Equal(t, 2, n.Navigate(-3).CurrentVersionIndex)
	assert.Equal(t, "b", n.Navigate(-1).Content())

	first := n.Navigate(-2)
	assert.Equal(t, 0, first.Navigate(-1).CurrentVersionIndex)
	assert.Equal(t, 2, first.Navigate(1).CurrentOrdinal())

	for delta := -5; delta <= 5; delta++ {
		moved := n.Navigate(delta)
		require.NoError(t, moved.Validate(), "delta %d", delta)
	}
}

func TestNavigateZeroIsIdempotent(t *testing.T) {
	n := NewUserNode("a").AppendVersion(Variant{Content: "b"}).Navigate(-1)
	same := n.Navigate(0)

	assert.Equal(t, n, same)
	assert.Equal(t, n, same.Navigate(0).Navigate(0))
}

func TestAppendVersionDoesNotAliasSources(t *testing.T) {
	sources := []Source{{Title: "a", URL: "u"}}
	n := NewAssistantNode("x", sources)
	sources[0].Title = "changed"

	assert.Equal(t, "a", n.Sources()[0].Title)
}

func TestValidateRejectsBrokenNodes(t *testing.T) {
	require.ErrorIs(t, Node{Role: RoleUser}.Validate(), ErrEmptyVersions)
	require.Error(t, Node{Role: "system", Versions: []Variant{{Content: "x"}}}.Validate())
	require.Error(t, Node{Role: RoleUser, Versions: []Variant{{Content: "x"}}, CurrentVersionIndex: 1}.Validate())
}

func TestDisplayContentNotesAttachmentUntilEdited(t *testing.T) {
	n := NewUserNode("see file", WithAttachment("a.pdf"))
	assert.Equal(t, "see file", n.Content())
	assert.Equal(t, "see file\n[Attached: a.pdf]", n.DisplayContent())

	edited := n.AppendVersion(Variant{Content: "see file again"})
	assert.Equal(t, "see file again", edited.DisplayContent())
	assert.Equal(t, "see file", edited.Navigate(-1).DisplayContent())
}
