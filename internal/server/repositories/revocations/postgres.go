package revocations

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/dbx"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Revoke(ctx context.Context, rev models.Revocation) (bool, error) {
	query :=
		`INSERT INTO token_revocations (token_id, identity_id, expires_at, revoked_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (token_id) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, rev.TokenID, rev.IdentityID, rev.ExpiresAt, rev.RevokedAt)
	if err != nil {
		return false, dbx.WrapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.WrapError(err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_revocations WHERE token_id = $1)`, tokenID).Scan(&revoked)
	if err != nil {
		return false, dbx.WrapError(err)
	}
	return revoked, nil
}

func (r *PostgresRepository) RevokeSubject(ctx context.Context, identityID string, before time.Time) error {
	query :=
		`INSERT INTO subject_revocations (identity_id, revoked_before)
		 VALUES ($1, $2)
		 ON CONFLICT (identity_id)
		 DO UPDATE SET revoked_before = GREATEST(subject_revocations.revoked_before, EXCLUDED.revoked_before)
		 `

	if _, err := r.db.ExecContext(ctx, query, identityID, before); err != nil {
		return dbx.WrapError(err)
	}
	return nil
}

func (r *PostgresRepository) SubjectCutoff(ctx context.Context, identityID string) (time.Time, bool, error) {
	var before time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT revoked_before FROM subject_revocations WHERE identity_id = $1`, identityID).Scan(&before)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, dbx.WrapError(err)
	}
	return before, true, nil
}

func (r *PostgresRepository) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, dbx.WrapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.WrapError(err)
	}
	return n, nil
}
