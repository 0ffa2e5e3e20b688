package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/dbx"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

const sessionColumns = `id, identity_id, session_key, ip_address, user_agent, device_class, location,
		is_active, created_at, last_activity`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s      models.Session
		device string
	)
	if err := row.Scan(&s.ID, &s.IdentityID, &s.SessionKey, &s.IPAddress, &s.UserAgent, &device, &s.Location,
		&s.IsActive, &s.CreatedAt, &s.LastActivity); err != nil {
		return nil, err
	}
	s.DeviceClass = models.DeviceClass(device)
	return &s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO sessions (` + sessionColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 `

	_, err := r.db.ExecContext(ctx, query, s.ID, s.IdentityID, s.SessionKey, s.IPAddress, s.UserAgent,
		string(s.DeviceClass), s.Location, s.IsActive, s.CreatedAt, s.LastActivity)
	if err != nil {
		return dbx.WrapError(err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.WrapError(err)
	}
	return s, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = GREATEST(last_activity, $2) WHERE id = $1 AND is_active`, id, at)
	if err != nil {
		return dbx.WrapError(err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return dbx.WrapError(err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) DeactivateAll(ctx context.Context, identityID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE identity_id = $1 AND is_active`, identityID)
	if err != nil {
		return 0, dbx.WrapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.WrapError(err)
	}
	return n, nil
}

func (r *PostgresRepository) ListByIdentity(ctx context.Context, identityID string) ([]models.Session, error) {
	query :=
		`SELECT ` + sessionColumns + ` FROM sessions
		 WHERE identity_id = $1
		 ORDER BY last_activity DESC, created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, identityID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, dbx.WrapError(err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return result, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.WrapError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
