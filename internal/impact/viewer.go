package impact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acer-hub/hubclient/internal/session"
)

// Messages shown to the user in place of the tree
const (
	MessageNoData           = "Aucune donnée disponible"
	MessageLoadFailed       = "Erreur lors du chargement de la chaîne d'impact"
	MessageRebuildFailed    = "Erreur lors de la mise à jour de la chaîne d'impact"
	MessagePermissionDenied = "Vous n'avez pas les droits nécessaires pour consulter cette chaîne d'impact"
)

// ErrNoData is returned when the API reports success but the tree is empty
var ErrNoData = errors.New("chain of impact is empty")

// Viewer holds the state of one chain-of-impact view: the tree as last fetched (never
// modified once loaded), the set of expanded nodes, and the pan/zoom viewport. The
// three are independent; reloading the tree resets the expanded set but leaves the
// viewport where the user put it. A Viewer is safe for concurrent use, but concurrent
// loads are not sequenced: whichever response arrives last wins.
type Viewer struct {
	client Client
	log    *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	churchID   string
	tree       []TreeNode
	index      *Index
	totalNodes int
	expanded   ExpandedSet
	viewport   Viewport
	loading    bool
	message    string
	loadedAt   time.Time
}

// View is a snapshot of a Viewer's state, ready to be rendered
type View struct {
	ChurchID   string       `json:"churchId"`
	TotalNodes int          `json:"totalNodes"`
	Tree       []RenderNode `json:"tree"`
	Expanded   []NodeID     `json:"expanded"`
	Viewport   Viewport     `json:"viewport"`
	Loading    bool         `json:"loading"`
	Error      string       `json:"error,omitempty"`
	LoadedAt   *time.Time   `json:"loadedAt,omitempty"`
}

// NewViewer initializes an empty viewer
func NewViewer(client Client, log *zap.Logger) *Viewer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Viewer{
		client:   client,
		log:      log,
		now:      time.Now,
		expanded: NewExpandedSet(),
		viewport: NewViewport(),
	}
}

// LoadTree fetches the chain of impact for a church and replaces the current tree with
// it, expanding only the root. On failure, or if the tree is empty, the current tree is
// cleared and a message is recorded for the user. There is no retry.
func (v *Viewer) LoadTree(ctx context.Context, churchID string) error {
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	res, err := v.client.GetTree(ctx, churchID)
	if err != nil {
		v.log.Warn("Failed to fetch chain of impact", zap.String("churchId", churchID), zap.Error(err))
		v.fail(churchID, messageFor(err, MessageLoadFailed))
		return err
	}
	if !res.Success {
		message := MessageLoadFailed
		if res.Message != "" {
			message = res.Message
		}
		v.fail(churchID, message)
		return fmt.Errorf("%w: API reported failure", ErrFetchFailed)
	}
	if len(res.Tree) == 0 {
		v.fail(churchID, MessageNoData)
		return ErrNoData
	}
	idx, err := BuildIndex(res.Tree)
	if err != nil {
		v.log.Warn("Rejected malformed chain of impact", zap.String("churchId", churchID), zap.Error(err))
		v.fail(churchID, MessageLoadFailed)
		return err
	}

	total := res.TotalNodes
	if total == 0 {
		total = idx.Len()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.churchID = churchID
	v.tree = res.Tree
	v.index = idx
	v.totalNodes = total
	v.expanded = InitialExpanded(res.Tree)
	v.loading = false
	v.message = ""
	v.loadedAt = v.now()
	v.log.Info("Loaded chain of impact", zap.String("churchId", churchID), zap.Int("totalNodes", total))
	return nil
}

// fail clears the tree and records a user-visible message
func (v *Viewer) fail(churchID string, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.churchID = churchID
	v.tree = nil
	v.index = nil
	v.totalNodes = 0
	v.expanded = NewExpandedSet()
	v.loading = false
	v.message = message
}

func messageFor(err error, fallback string) string {
	if errors.Is(err, session.ErrPermissionDenied) {
		return MessagePermissionDenied
	}
	return fallback
}

// RebuildTree asks the API to recompute the chain of impact for a church, then loads
// the fresh tree. A failed rebuild leaves the current tree in place and records a
// message for the user.
func (v *Viewer) RebuildTree(ctx context.Context, churchID string) error {
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	if err := v.client.UpdateTree(ctx, churchID); err != nil {
		v.log.Warn("Failed to rebuild chain of impact", zap.String("churchId", churchID), zap.Error(err))
		v.mu.Lock()
		v.loading = false
		v.message = messageFor(err, MessageRebuildFailed)
		v.mu.Unlock()
		return err
	}
	return v.LoadTree(ctx, churchID)
}

// ToggleNode flips whether a node is expanded, and reports whether it is now expanded
func (v *Viewer) ToggleNode(id NodeID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded.Toggle(id)
}

// ExpandAll expands every node that has children
func (v *Viewer) ExpandAll() {
	v.ExpandToLevel(-1)
}

// ExpandToLevel expands every node with children that sits fewer than depth levels
// below a root, collapsing the rest; a negative depth expands everything
func (v *Viewer) ExpandToLevel(depth int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.expanded = NewExpandedSet()
	if v.index == nil {
		return
	}
	for _, id := range v.index.Branches() {
		if depth < 0 || v.index.Depth(id) < depth {
			v.expanded[id] = struct{}{}
		}
	}
}

// CollapseAll collapses every node, leaving only the roots visible
func (v *Viewer) CollapseAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded = NewExpandedSet()
}

// Expanded returns a copy of the expanded set
func (v *Viewer) Expanded() ExpandedSet {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded.Clone()
}

// Lookup returns the node with the given id from the current tree
func (v *Viewer) Lookup(id NodeID) (TreeNode, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.index == nil {
		return TreeNode{}, false
	}
	node, ok := v.index.Lookup(id)
	if !ok {
		return TreeNode{}, false
	}
	return *node, true
}

// Tree returns the tree as last fetched; callers must not modify it
func (v *Viewer) Tree() []TreeNode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tree
}

// UpdateViewport applies fn to the viewport and returns the result
func (v *Viewer) UpdateViewport(fn func(vp *Viewport)) Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.viewport)
	return v.viewport
}

// Viewport returns the current pan/zoom state
func (v *Viewer) Viewport() Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewport
}

// Snapshot projects the current tree through the expanded set
func (v *Viewer) Snapshot() View {
	v.mu.Lock()
	defer v.mu.Unlock()

	view := View{
		ChurchID:   v.churchID,
		TotalNodes: v.totalNodes,
		Tree:       Project(v.tree, v.expanded),
		Expanded:   v.expanded.IDs(),
		Viewport:   v.viewport,
		Loading:    v.loading,
		Error:      v.message,
	}
	if !v.loadedAt.IsZero() {
		loadedAt := v.loadedAt
		view.LoadedAt = &loadedAt
	}
	return view
}
