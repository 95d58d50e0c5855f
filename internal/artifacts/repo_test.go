package artifacts

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var artifactCols = []string{"id", "project_id", "catalog_id", "code", "name", "status", "content", "file_id", "created_at", "updated_at", "task_ids"}

func newRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepository_List(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()
	mock.ExpectQuery("FROM project_artifacts a").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(artifactCols).
			AddRow("a-1", "p-1", "c-1", "BRD", "BRD", "draft", "# BRD", nil, now, now, "{t-1,t-2}").
			AddRow("a-2", "p-1", "c-2", "RACI_MATRIX", "RACI", "approved", "", "f-1", now, now, "{}"))

	items, err := repo.List(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"t-1", "t-2"}, items[0].TaskIDs)
	assert.Nil(t, items[0].FileID)
	assert.Equal(t, []string{}, items[1].TaskIDs)
	require.NotNil(t, items[1].FileID)
	assert.Equal(t, "f-1", *items[1].FileID)
}

func TestRepository_GetCatalogByCode(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM artifact_catalog WHERE code = $1")).
		WithArgs("BRD").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "description", "knowledge_area", "template"}).
			AddRow("c-1", "BRD", "Business requirements document", "", "RADD", "# BRD"))

	item, err := repo.GetCatalog(context.Background(), "brd")
	require.NoError(t, err)
	assert.Equal(t, "# BRD", item.Template)
}

func TestRepository_UpdateMissing(t *testing.T) {
	repo, mock := newRepo(t)
	status := StatusApproved
	mock.ExpectExec(regexp.QuoteMeta("UPDATE project_artifacts SET updated_at = NOW(), status = $3, file_id = NULL WHERE id = $1 AND project_id = $2")).
		WithArgs("a-1", "p-1", "approved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), "p-1", "a-1", UpdateInput{Status: &status, ClearFile: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_LinkTaskOutsideProject(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()
	mock.ExpectQuery("FROM project_artifacts a").
		WithArgs("a-1", "p-1").
		WillReturnRows(sqlmock.NewRows(artifactCols).AddRow("a-1", "p-1", "c-1", "BRD", "BRD", "draft", "", nil, now, now, "{}"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("t-9", "p-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.LinkTask(context.Background(), "p-1", "a-1", "t-9")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Unlink(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec("DELETE FROM project_task_artifacts").
		WithArgs("a-1", "p-1", "t-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.UnlinkTask(context.Background(), "p-1", "a-1", "t-1"), ErrLinkNotFound)
}
