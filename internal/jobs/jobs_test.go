package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/storage/objectstore"
)

type fakePurger struct {
	expired []ExpiredProject
	cutoff  time.Time
	deleted []string
}

func (f *fakePurger) Expired(_ context.Context, cutoff time.Time, _ int) ([]ExpiredProject, error) {
	f.cutoff = cutoff
	return f.expired, nil
}

func (f *fakePurger) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeObjects struct {
	fail    map[string]error
	deleted []string
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	if err := f.fail[key]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeFiles struct {
	cutoff time.Time
}

func (f *fakeFiles) FailStuck(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 2, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRunner(p ProjectPurger, o ObjectDeleter, f StuckFiles) *Runner {
	r := NewRunner(p, o, f, zap.NewNop())
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestPurgeProjects(t *testing.T) {
	purger := &fakePurger{expired: []ExpiredProject{
		{ID: "p-1", ObjectKeys: []string{"projects/p-1/files/a/x.pdf", "projects/p-1/files/b/y.pdf"}},
		{ID: "p-2", ObjectKeys: []string{"projects/p-2/files/c/z.pdf"}},
		{ID: "p-3"},
	}}
	objects := &fakeObjects{fail: map[string]error{"projects/p-2/files/c/z.pdf": errors.New("access denied")}}

	n, err := newRunner(purger, objects, &fakeFiles{}).PurgeProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"p-1", "p-3"}, purger.deleted)
	assert.Len(t, objects.deleted, 2)
	assert.Equal(t, fixedNow.Add(-Retention), purger.cutoff)
}

func TestPurgeProjects_StorageDisabled(t *testing.T) {
	purger := &fakePurger{expired: []ExpiredProject{{ID: "p-1", ObjectKeys: []string{"k"}}}}
	objects := &fakeObjects{fail: map[string]error{"k": objectstore.ErrNotConfigured}}

	n, err := newRunner(purger, objects, &fakeFiles{}).PurgeProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailStuckFiles(t *testing.T) {
	files := &fakeFiles{}
	n, err := newRunner(&fakePurger{}, &fakeObjects{}, files).FailStuckFiles(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, fixedNow.Add(-StuckAfter), files.cutoff)
}

func TestSchedule(t *testing.T) {
	c, err := newRunner(&fakePurger{}, &fakeObjects{}, &fakeFiles{}).Schedule(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}

func TestPurgeRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPurgeRepository(db)
	cutoff := fixedNow.Add(-Retention)

	mock.ExpectQuery(`FROM projects p\s+LEFT JOIN files f`).
		WithArgs(cutoff, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "keys"}).
			AddRow("p-1", `{projects/p-1/files/a/x.pdf}`).
			AddRow("p-2", `{}`))

	got, err := repo.Expired(context.Background(), cutoff, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"projects/p-1/files/a/x.pdf"}, got[0].ObjectKeys)
	assert.Empty(t, got[1].ObjectKeys)

	mock.ExpectExec(`DELETE FROM projects WHERE id = \$1 AND deleted_at IS NOT NULL`).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "p-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
