package impact

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/acer-hub/hubclient/internal/session"
)

func okResponse(churchID string, tree []TreeNode) *TreeResponse {
	return &TreeResponse{Success: true, ChurchID: NodeID(churchID), Tree: tree}
}

func Test_Viewer_LoadTree(t *testing.T) {
	c := &fakeClient{trees: []*TreeResponse{okResponse("church-1", sampleTree())}}
	v := NewViewer(c, zaptest.NewLogger(t))

	require.NoError(t, v.LoadTree(context.Background(), "church-1"))
	assert.Equal(t, NewExpandedSet("R"), v.Expanded())

	view := v.Snapshot()
	assert.Equal(t, "church-1", view.ChurchID)
	assert.Equal(t, 6, view.TotalNodes)
	assert.Equal(t, []NodeID{"R"}, view.Expanded)
	assert.Empty(t, view.Error)
	assert.False(t, view.Loading)
	assert.NotNil(t, view.LoadedAt)
	require.Len(t, view.Tree, 1)
	assert.Len(t, view.Tree[0].Children, 2)

	node, ok := v.Lookup("B1")
	assert.True(t, ok)
	assert.Equal(t, "berthe", node.User.Username)
}

func Test_Viewer_LoadTree_ReportsTotalFromAPI(t *testing.T) {
	res := okResponse("church-1", sampleTree())
	res.TotalNodes = 120
	v := NewViewer(&fakeClient{trees: []*TreeResponse{res}}, zaptest.NewLogger(t))

	require.NoError(t, v.LoadTree(context.Background(), "church-1"))
	assert.Equal(t, 120, v.Snapshot().TotalNodes)
}

func Test_Viewer_LoadTree_Failures(t *testing.T) {
	tests := []struct {
		name        string
		client      *fakeClient
		wantErr     error
		wantMessage string
	}{
		{
			"request failure",
			&fakeClient{getErr: fmt.Errorf("%w: boom", ErrFetchFailed)},
			ErrFetchFailed,
			MessageLoadFailed,
		},
		{
			"permission denied",
			&fakeClient{getErr: fmt.Errorf("%w: %w", ErrFetchFailed, &session.APIError{StatusCode: 403, Code: session.CodePermissionDenied})},
			session.ErrPermissionDenied,
			MessagePermissionDenied,
		},
		{
			"API reports failure with a message",
			&fakeClient{trees: []*TreeResponse{{Success: false, Message: "Église introuvable"}}},
			ErrFetchFailed,
			"Église introuvable",
		},
		{
			"API reports failure without a message",
			&fakeClient{trees: []*TreeResponse{{Success: false}}},
			ErrFetchFailed,
			MessageLoadFailed,
		},
		{
			"empty tree",
			&fakeClient{trees: []*TreeResponse{okResponse("church-1", nil)}},
			ErrNoData,
			MessageNoData,
		},
		{
			"malformed tree",
			&fakeClient{trees: []*TreeResponse{okResponse("church-1", []TreeNode{{ID: "R"}, {ID: "R"}})}},
			ErrInvalidTree,
			MessageLoadFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Start from a loaded tree so we can see it being cleared
			first := &fakeClient{trees: []*TreeResponse{okResponse("church-1", sampleTree())}}
			v := NewViewer(first, zaptest.NewLogger(t))
			require.NoError(t, v.LoadTree(context.Background(), "church-1"))

			v.client = tt.client
			err := v.LoadTree(context.Background(), "church-1")
			assert.ErrorIs(t, err, tt.wantErr)

			view := v.Snapshot()
			assert.Equal(t, tt.wantMessage, view.Error)
			assert.Empty(t, view.Tree)
			assert.Nil(t, v.Tree())
			assert.Empty(t, view.Expanded)
			assert.Equal(t, 0, view.TotalNodes)
		})
	}
}

func Test_Viewer_FirstLoadFailureLeavesEmptyState(t *testing.T) {
	v := NewViewer(&fakeClient{getErr: errors.New("offline")}, zaptest.NewLogger(t))
	assert.Error(t, v.LoadTree(context.Background(), "church-1"))

	view := v.Snapshot()
	assert.Equal(t, MessageLoadFailed, view.Error)
	assert.Empty(t, view.Tree)
	assert.Nil(t, view.LoadedAt)
}

func Test_Viewer_ReloadResetsExpansionButKeepsViewport(t *testing.T) {
	c := &fakeClient{trees: []*TreeResponse{
		okResponse("church-1", sampleTree()),
		okResponse("church-1", sampleTree()),
	}}
	v := NewViewer(c, zaptest.NewLogger(t))
	require.NoError(t, v.LoadTree(context.Background(), "church-1"))

	v.ToggleNode("A")
	v.UpdateViewport(func(vp *Viewport) {
		vp.ZoomIn()
		vp.Pan = Point{X: 12, Y: 34}
	})

	require.NoError(t, v.LoadTree(context.Background(), "church-1"))
	assert.Equal(t, NewExpandedSet("R"), v.Expanded())
	assert.InDelta(t, 1.2, v.Viewport().Zoom, 1e-9)
	assert.Equal(t, Point{X: 12, Y: 34}, v.Viewport().Pan)
}

func Test_Viewer_RebuildTree(t *testing.T) {
	fresh := sampleTree()
	fresh[0].Children = append(fresh[0].Children, TreeNode{ID: "C", Niveau: 1, User: User{ID: "u-c", Username: "chloe"}})

	c := &fakeClient{trees: []*TreeResponse{
		okResponse("church-1", sampleTree()),
		okResponse("church-1", fresh),
	}}
	v := NewViewer(c, zaptest.NewLogger(t))
	require.NoError(t, v.LoadTree(context.Background(), "church-1"))
	v.ToggleNode("B")

	require.NoError(t, v.RebuildTree(context.Background(), "church-1"))
	assert.Equal(t, []string{"get:church-1", "update:church-1", "get:church-1"}, c.calls)

	view := v.Snapshot()
	assert.Equal(t, 7, view.TotalNodes)
	assert.Len(t, view.Tree[0].Children, 3)
	assert.Equal(t, []NodeID{"R"}, view.Expanded)
}

func Test_Viewer_RebuildTreeFailureKeepsTree(t *testing.T) {
	c := &fakeClient{
		trees:     []*TreeResponse{okResponse("church-1", sampleTree())},
		updateErr: fmt.Errorf("%w: update was not successful", ErrFetchFailed),
	}
	v := NewViewer(c, zaptest.NewLogger(t))
	require.NoError(t, v.LoadTree(context.Background(), "church-1"))

	err := v.RebuildTree(context.Background(), "church-1")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, []string{"get:church-1", "update:church-1"}, c.calls)

	view := v.Snapshot()
	assert.Equal(t, MessageRebuildFailed, view.Error)
	assert.Len(t, view.Tree, 1)
	assert.False(t, view.Loading)
}

func Test_Viewer_ExpandCollapse(t *testing.T) {
	v := NewViewer(&fakeClient{trees: []*TreeResponse{okResponse("church-1", sampleTree())}}, zaptest.NewLogger(t))
	require.NoError(t, v.LoadTree(context.Background(), "church-1"))

	v.ExpandAll()
	assert.Equal(t, NewExpandedSet("R", "A", "B"), v.Expanded())

	v.ExpandToLevel(1)
	assert.Equal(t, NewExpandedSet("R"), v.Expanded())

	v.ExpandToLevel(2)
	assert.Equal(t, NewExpandedSet("R", "A", "B"), v.Expanded())

	v.CollapseAll()
	assert.Equal(t, NewExpandedSet(), v.Expanded())
	assert.Nil(t, v.Snapshot().Tree[0].Children)

	assert.True(t, v.ToggleNode("R"))
	assert.False(t, v.ToggleNode("R"))
}
