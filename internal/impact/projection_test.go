package impact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NodeID_UnmarshalJSON(t *testing.T) {
	var node TreeNode
	err := json.Unmarshal([]byte(`{"id": 42, "niveau": 1, "user": {"id": "7", "username": "alice"}, "children": []}`), &node)
	require.NoError(t, err)
	assert.Equal(t, NodeID("42"), node.ID)
	assert.Equal(t, NodeID("7"), node.User.ID)
	assert.Equal(t, "", node.User.Image)

	var res TreeResponse
	err = json.Unmarshal([]byte(`{"success": true, "church_id": null, "total_nodes": 0, "tree": []}`), &res)
	require.NoError(t, err)
	assert.Equal(t, NodeID(""), res.ChurchID)

	err = json.Unmarshal([]byte(`{"id": {"nested": true}}`), &node)
	assert.Error(t, err)
}

func Test_BuildIndex(t *testing.T) {
	idx, err := BuildIndex(sampleTree())
	require.NoError(t, err)

	assert.Equal(t, 6, idx.Len())
	assert.Equal(t, []NodeID{"R", "A", "A1", "A2", "B", "B1"}, idx.IDs())
	assert.Equal(t, []NodeID{"R", "A", "B"}, idx.Branches())

	node, ok := idx.Lookup("A2")
	require.True(t, ok)
	assert.Equal(t, "anne", node.User.Username)

	parent, ok := idx.Parent("B1")
	assert.True(t, ok)
	assert.Equal(t, NodeID("B"), parent)
	_, ok = idx.Parent("R")
	assert.False(t, ok)

	assert.Equal(t, 0, idx.Depth("R"))
	assert.Equal(t, 2, idx.Depth("B1"))
	assert.Equal(t, -1, idx.Depth("missing"))
}

func Test_BuildIndex_RejectsMalformedTrees(t *testing.T) {
	tests := []struct {
		name  string
		roots []TreeNode
	}{
		{
			"duplicate ids",
			[]TreeNode{{ID: "R", Children: []TreeNode{{ID: "A", Niveau: 1}, {ID: "A", Niveau: 1}}}},
		},
		{
			"duplicate ids across roots",
			[]TreeNode{{ID: "R"}, {ID: "R"}},
		},
		{
			"niveau decreasing with depth",
			[]TreeNode{{ID: "R", Niveau: 2, Children: []TreeNode{{ID: "A", Niveau: 1}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildIndex(tt.roots)
			assert.ErrorIs(t, err, ErrInvalidTree)
		})
	}
}

func Test_InitialExpanded(t *testing.T) {
	tests := []struct {
		name  string
		roots []TreeNode
		want  ExpandedSet
	}{
		{
			"single root at niveau 0",
			sampleTree(),
			NewExpandedSet("R"),
		},
		{
			"root at niveau 0 is preferred over earlier roots",
			[]TreeNode{{ID: "X", Niveau: 1}, {ID: "Y", Niveau: 0}},
			NewExpandedSet("Y"),
		},
		{
			"falls back to the first root",
			[]TreeNode{{ID: "X", Niveau: 2}, {ID: "Y", Niveau: 1}},
			NewExpandedSet("X"),
		},
		{
			"empty tree",
			nil,
			NewExpandedSet(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InitialExpanded(tt.roots))
		})
	}
}

func Test_ExpandedSet_ToggleTwiceRestoresMembership(t *testing.T) {
	for _, initial := range []ExpandedSet{NewExpandedSet(), NewExpandedSet("A"), NewExpandedSet("A", "B")} {
		s := initial.Clone()
		before := s.Has("A")

		assert.Equal(t, !before, s.Toggle("A"))
		assert.Equal(t, before, s.Toggle("A"))
		assert.Equal(t, initial, s)
	}
}

func Test_ExpandedSet_IDs(t *testing.T) {
	s := NewExpandedSet("b", "c", "a")
	assert.Equal(t, []NodeID{"a", "b", "c"}, s.IDs())

	c := s.Clone()
	c.Toggle("a")
	assert.True(t, s.Has("a"))
	assert.False(t, c.Has("a"))
}

func Test_Project(t *testing.T) {
	roots := sampleTree()

	t.Run("only the expanded root shows its children", func(t *testing.T) {
		got := Project(roots, NewExpandedSet("R"))
		require.Len(t, got, 1)
		assert.True(t, got[0].Expanded)
		require.Len(t, got[0].Children, 2)
		assert.Equal(t, NodeID("A"), got[0].Children[0].ID)
		assert.True(t, got[0].Children[0].HasChildren)
		assert.False(t, got[0].Children[0].Expanded)
		assert.Nil(t, got[0].Children[0].Children)
	})

	t.Run("collapsed ancestors hide expanded descendants", func(t *testing.T) {
		got := Project(roots, NewExpandedSet("A"))
		require.Len(t, got, 1)
		assert.Nil(t, got[0].Children)
	})

	t.Run("expanded leaves render no children", func(t *testing.T) {
		got := Project(roots, NewExpandedSet("R", "B", "B1"))
		b1 := got[0].Children[1].Children[0]
		assert.Equal(t, NodeID("B1"), b1.ID)
		assert.True(t, b1.Expanded)
		assert.False(t, b1.HasChildren)
		assert.Nil(t, b1.Children)
		assert.Equal(t, "https://cdn.example.org/b1.png", b1.User.Image)
	})

	t.Run("inputs are left untouched", func(t *testing.T) {
		expanded := NewExpandedSet("R")
		Project(roots, expanded)
		assert.Equal(t, sampleTree(), roots)
		assert.Equal(t, NewExpandedSet("R"), expanded)
	})
}

func Test_Flatten(t *testing.T) {
	rows := Flatten(Project(sampleTree(), NewExpandedSet("R", "A", "B")))

	type line struct {
		prefix    string
		indicator string
		username  string
		depth     int
	}
	got := make([]line, 0, len(rows))
	for _, r := range rows {
		got = append(got, line{r.Prefix, r.Indicator, r.Username, r.Depth})
	}
	assert.Equal(t, []line{
		{"", "▾", "pasteur.jean", 0},
		{"├── ", "▾", "alice", 1},
		{"│   ├── ", "•", "amos", 2},
		{"│   └── ", "•", "anne", 2},
		{"└── ", "▾", "bruno", 1},
		{"    └── ", "•", "berthe", 2},
	}, got)

	collapsed := Flatten(Project(sampleTree(), NewExpandedSet("R")))
	require.Len(t, collapsed, 3)
	assert.Equal(t, "▸", collapsed[1].Indicator)
}
