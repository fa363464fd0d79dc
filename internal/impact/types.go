package impact

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeID identifies a node (or user, or church) in the chain of impact. The API is not
// consistent about whether ids are JSON numbers or strings, so both are accepted and
// normalized to their string form.
type NodeID string

// UnmarshalJSON accepts either a JSON string or a JSON number
func (id *NodeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = NodeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("node id must be a string or a number, got %s", data)
	}
	*id = NodeID(n.String())
	return nil
}

// User is the person occupying a position in the chain of impact
type User struct {
	ID       NodeID `json:"id"`
	Username string `json:"username"`
	Image    string `json:"image,omitempty"`
}

// TreeNode is one position in the chain of impact, as returned by the API. Niveau is
// the node's level in the hierarchy: 0 at the root, never decreasing with depth.
type TreeNode struct {
	ID       NodeID     `json:"id"`
	Niveau   int        `json:"niveau"`
	User     User       `json:"user"`
	Children []TreeNode `json:"children"`
}

// TreeResponse is the payload of GET /chaine-impact
type TreeResponse struct {
	Success    bool       `json:"success"`
	ChurchID   NodeID     `json:"church_id"`
	TotalNodes int        `json:"total_nodes"`
	Tree       []TreeNode `json:"tree"`
	Message    string     `json:"message,omitempty"`
}

// updateRequest is the payload of POST /chaine-impact/update
type updateRequest struct {
	ChurchID string `json:"church_id"`
}

// updateResponse is the result of POST /chaine-impact/update
type updateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
