package revocations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgres_RevokeReportsInsertion(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	rev := models.Revocation{TokenID: "jti-1", IdentityID: "u-1", ExpiresAt: now.Add(time.Hour), RevokedAt: now}

	q := `(?s)^INSERT\s+INTO\s+token_revocations.*ON\s+CONFLICT\s+\(token_id\)\s+DO\s+NOTHING\s*$`
	mock.ExpectExec(q).WithArgs("jti-1", "u-1", rev.ExpiresAt, now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("jti-1", "u-1", rev.ExpiresAt, now).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Revoke(context.Background(), rev)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Revoke(context.Background(), rev)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPostgres_IsRevoked(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+token_revocations\s+WHERE\s+token_id\s*=\s*\$1\)$`).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := repo.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestPostgres_SubjectCutoff(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	before := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+subject_revocations.*GREATEST`).
		WithArgs("u-1", before).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`^SELECT\s+revoked_before\s+FROM\s+subject_revocations\s+WHERE\s+identity_id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"revoked_before"}).AddRow(before))
	mock.ExpectQuery(`^SELECT\s+revoked_before`).
		WithArgs("u-2").
		WillReturnError(sql.ErrNoRows)

	require.NoError(t, repo.RevokeSubject(context.Background(), "u-1", before))

	got, ok, err := repo.SubjectCutoff(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(before))

	_, ok, err = repo.SubjectCutoff(context.Background(), "u-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_Purge(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectExec(`^DELETE\s+FROM\s+token_revocations\s+WHERE\s+expires_at\s*<\s*\$1$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.Purge(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}
