// Package processes keeps a tree of business processes per project.
package processes

import (
	"sort"
	"time"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

// maxDepth bounds ancestor walks so corrupted data cannot loop forever.
const maxDepth = 64

var (
	ErrNotFound      = apperr.New(apperr.ErrNotFound, "process not found")
	ErrCycle         = apperr.New(apperr.ErrInvalid, "parent_id would create a cycle")
	ErrForeignParent = apperr.New(apperr.ErrInvalid, "parent_id must reference a process in this project")
	ErrTooDeep       = apperr.New(apperr.ErrInvalid, "process hierarchy is too deep")
)

type Process struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"-"`
	ParentID    *string   `json:"parent_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Node struct {
	Process
	Children []*Node `json:"children"`
}

type CreateInput struct {
	Name        string
	Description string
	Owner       string
	ParentID    *string
}

// UpdateInput carries the fields present in a PATCH. MoveParent is set when
// parent_id was sent; a nil ParentID then means the root.
type UpdateInput struct {
	Name        *string
	Description *string
	Owner       *string
	Position    *int
	MoveParent  bool
	ParentID    *string
}

func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Description == nil && in.Owner == nil && in.Position == nil && !in.MoveParent
}

// BuildTree nests a flat list. Siblings are ordered by position then name;
// a process whose parent is missing from the list becomes a root.
func BuildTree(list []Process) []*Node {
	nodes := make(map[string]*Node, len(list))
	for _, p := range list {
		nodes[p.ID] = &Node{Process: p, Children: []*Node{}}
	}

	roots := []*Node{}
	for _, p := range list {
		n := nodes[p.ID]
		if p.ParentID != nil {
			if parent, ok := nodes[*p.ParentID]; ok && parent != n {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	sortNodes(roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	return roots
}

func sortNodes(ns []*Node) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Position != ns[j].Position {
			return ns[i].Position < ns[j].Position
		}
		return ns[i].Name < ns[j].Name
	})
}
