package impact

import (
	"context"
	"sync"
)

// sampleTree is a small chain of impact:
//
//	R (0)
//	├── A (1)
//	│   ├── A1 (2)
//	│   └── A2 (2)
//	└── B (1)
//	    └── B1 (3)
func sampleTree() []TreeNode {
	return []TreeNode{
		{
			ID:     "R",
			Niveau: 0,
			User:   User{ID: "u-r", Username: "pasteur.jean"},
			Children: []TreeNode{
				{
					ID:     "A",
					Niveau: 1,
					User:   User{ID: "u-a", Username: "alice"},
					Children: []TreeNode{
						{ID: "A1", Niveau: 2, User: User{ID: "u-a1", Username: "amos"}},
						{ID: "A2", Niveau: 2, User: User{ID: "u-a2", Username: "anne"}},
					},
				},
				{
					ID:     "B",
					Niveau: 1,
					User:   User{ID: "u-b", Username: "bruno"},
					Children: []TreeNode{
						{ID: "B1", Niveau: 3, User: User{ID: "u-b1", Username: "berthe", Image: "https://cdn.example.org/b1.png"}},
					},
				},
			},
		},
	}
}

// fakeClient serves canned responses and records calls
type fakeClient struct {
	mu        sync.Mutex
	trees     []*TreeResponse
	getErr    error
	updateErr error
	calls     []string
}

var _ Client = (*fakeClient)(nil)

func (f *fakeClient) GetTree(ctx context.Context, churchID string) (*TreeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get:"+churchID)
	if f.getErr != nil {
		return nil, f.getErr
	}
	res := f.trees[0]
	if len(f.trees) > 1 {
		f.trees = f.trees[1:]
	}
	return res, nil
}

func (f *fakeClient) UpdateTree(ctx context.Context, churchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update:"+churchID)
	return f.updateErr
}
