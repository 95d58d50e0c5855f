package processes

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	items map[string]*Process
	seq   int
}

func newMemStore() *memStore { return &memStore{items: map[string]*Process{}} }

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
}

func (m *memStore) List(_ context.Context, projectID string) ([]Process, error) {
	out := []Process{}
	for _, p := range m.items {
		if p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, projectID, id string) (*Process, error) {
	if p, ok := m.items[id]; ok && p.ProjectID == projectID {
		return p, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) ParentOf(ctx context.Context, projectID, id string) (*string, error) {
	p, err := m.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	return p.ParentID, nil
}

func (m *memStore) Create(_ context.Context, projectID string, in CreateInput) (*Process, error) {
	p := &Process{ID: m.nextID(), ProjectID: projectID, ParentID: in.ParentID, Name: in.Name, Description: in.Description, Owner: in.Owner}
	m.items[p.ID] = p
	return p, nil
}

func (m *memStore) Update(ctx context.Context, projectID, id string, in UpdateInput) (*Process, error) {
	p, err := m.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.MoveParent {
		p.ParentID = in.ParentID
	}
	return p, nil
}

func (m *memStore) Delete(_ context.Context, projectID, id string) error {
	p, ok := m.items[id]
	if !ok || p.ProjectID != projectID {
		return ErrNotFound
	}
	for _, c := range m.items {
		if c.ParentID != nil && *c.ParentID == id {
			c.ParentID = p.ParentID
		}
	}
	delete(m.items, id)
	return nil
}

func mustCreate(t *testing.T, svc *Service, projectID, name string, parent *string) *Process {
	t.Helper()
	p, err := svc.Create(context.Background(), projectID, CreateInput{Name: name, ParentID: parent})
	require.NoError(t, err)
	return p
}

func TestUpdate_RejectsCycles(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	root := mustCreate(t, svc, "p-1", "Order to cash", nil)
	child := mustCreate(t, svc, "p-1", "Invoicing", &root.ID)
	grandchild := mustCreate(t, svc, "p-1", "Dunning", &child.ID)

	_, err := svc.Update(ctx, "p-1", root.ID, UpdateInput{MoveParent: true, ParentID: &root.ID})
	assert.ErrorIs(t, err, ErrCycle)

	_, err = svc.Update(ctx, "p-1", root.ID, UpdateInput{MoveParent: true, ParentID: &grandchild.ID})
	assert.ErrorIs(t, err, ErrCycle)

	moved, err := svc.Update(ctx, "p-1", grandchild.ID, UpdateInput{MoveParent: true, ParentID: &root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, *moved.ParentID)

	moved, err = svc.Update(ctx, "p-1", grandchild.ID, UpdateInput{MoveParent: true})
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
}

func TestParentMustBeInSameProject(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	other := mustCreate(t, svc, "p-2", "Procure to pay", nil)
	mine := mustCreate(t, svc, "p-1", "Order to cash", nil)

	_, err := svc.Create(ctx, "p-1", CreateInput{Name: "Billing", ParentID: &other.ID})
	assert.ErrorIs(t, err, ErrForeignParent)

	_, err = svc.Update(ctx, "p-1", mine.ID, UpdateInput{MoveParent: true, ParentID: &other.ID})
	assert.ErrorIs(t, err, ErrForeignParent)
}

func TestCheckNoCycle_StopsOnCorruptedLoop(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	a := mustCreate(t, svc, "p-1", "A", nil)
	b := mustCreate(t, svc, "p-1", "B", &a.ID)
	// a <-> b loop that the service itself would never write
	store.items[a.ID].ParentID = &b.ID
	c := mustCreate(t, svc, "p-1", "C", nil)

	_, err := svc.Update(context.Background(), "p-1", c.ID, UpdateInput{MoveParent: true, ParentID: &a.ID})
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestDelete_ReparentsChildren(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	root := mustCreate(t, svc, "p-1", "Root", nil)
	mid := mustCreate(t, svc, "p-1", "Mid", &root.ID)
	leaf := mustCreate(t, svc, "p-1", "Leaf", &mid.ID)

	require.NoError(t, svc.Delete(context.Background(), "p-1", mid.ID))
	assert.Equal(t, root.ID, *store.items[leaf.ID].ParentID)
}

func TestBuildTree(t *testing.T) {
	root, child := "r", "c"
	missing := "gone"
	list := []Process{
		{ID: "b", Name: "Beta", Position: 1},
		{ID: child, Name: "Child", ParentID: &root},
		{ID: root, Name: "Alpha", Position: 1},
		{ID: "o", Name: "Orphan", ParentID: &missing, Position: 0},
	}

	tree := BuildTree(list)
	require.Len(t, tree, 3)
	assert.Equal(t, "Orphan", tree[0].Name)
	assert.Equal(t, "Alpha", tree[1].Name)
	assert.Equal(t, "Beta", tree[2].Name)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "Child", tree[1].Children[0].Name)
	assert.Empty(t, tree[2].Children)
}
