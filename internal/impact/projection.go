package impact

import "strings"

// RenderNode is a node as it should be drawn: a node's children are only present when
// the node is expanded
type RenderNode struct {
	ID          NodeID       `json:"id"`
	Niveau      int          `json:"niveau"`
	User        User         `json:"user"`
	HasChildren bool         `json:"hasChildren"`
	Expanded    bool         `json:"expanded"`
	Children    []RenderNode `json:"children,omitempty"`
}

// Project maps a tree and an expanded set to the tree that should be rendered. It is a
// pure function of its inputs: neither argument is modified.
func Project(roots []TreeNode, expanded ExpandedSet) []RenderNode {
	out := make([]RenderNode, 0, len(roots))
	for i := range roots {
		out = append(out, project(&roots[i], expanded))
	}
	return out
}

func project(node *TreeNode, expanded ExpandedSet) RenderNode {
	r := RenderNode{
		ID:          node.ID,
		Niveau:      node.Niveau,
		User:        node.User,
		HasChildren: len(node.Children) > 0,
		Expanded:    expanded.Has(node.ID),
	}
	if r.Expanded && r.HasChildren {
		r.Children = make([]RenderNode, 0, len(node.Children))
		for i := range node.Children {
			r.Children = append(r.Children, project(&node.Children[i], expanded))
		}
	}
	return r
}

// InitialExpanded returns the expanded set for a freshly-loaded tree: just the root at
// niveau 0, or the first root if no node sits at niveau 0
func InitialExpanded(roots []TreeNode) ExpandedSet {
	if len(roots) == 0 {
		return NewExpandedSet()
	}
	for _, root := range roots {
		if root.Niveau == 0 {
			return NewExpandedSet(root.ID)
		}
	}
	return NewExpandedSet(roots[0].ID)
}

// Row is one visible line of a projected tree, for list-style rendering
type Row struct {
	ID        NodeID `json:"id"`
	Niveau    int    `json:"niveau"`
	Username  string `json:"username"`
	Depth     int    `json:"depth"`
	Prefix    string `json:"prefix"`
	Indicator string `json:"indicator"`
}

// Flatten lists the visible nodes of a projected tree in display order, with the
// branch-drawing prefix and expand indicator for each
func Flatten(nodes []RenderNode) []Row {
	rows := make([]Row, 0)
	appendRows(&rows, nodes, nil, 0)
	return rows
}

// appendRows walks siblings in order; open records, for each ancestor level, whether
// that ancestor has siblings still to come (and so needs a vertical line)
func appendRows(rows *[]Row, siblings []RenderNode, open []bool, depth int) {
	for i := range siblings {
		node := &siblings[i]
		last := i == len(siblings)-1

		var prefix strings.Builder
		if depth > 0 {
			for _, more := range open[1:] {
				if more {
					prefix.WriteString("│   ")
				} else {
					prefix.WriteString("    ")
				}
			}
			if last {
				prefix.WriteString("└── ")
			} else {
				prefix.WriteString("├── ")
			}
		}

		*rows = append(*rows, Row{
			ID:        node.ID,
			Niveau:    node.Niveau,
			Username:  node.User.Username,
			Depth:     depth,
			Prefix:    prefix.String(),
			Indicator: indicator(node),
		})
		if len(node.Children) > 0 {
			appendRows(rows, node.Children, append(open[:len(open):len(open)], !last), depth+1)
		}
	}
}

func indicator(node *RenderNode) string {
	if !node.HasChildren {
		return "•"
	}
	if node.Expanded {
		return "▾"
	}
	return "▸"
}
