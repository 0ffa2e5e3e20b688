package identities

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/dbx"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

const (
	emailConstraint    = "identities_email_key"
	usernameConstraint = "identities_username_key"

	identityColumns = `id, email, username, password_digest, role, first_name, last_name, phone,
		date_of_birth, profile_image, is_verified, is_active, last_login_ip, last_login_at,
		created_at, updated_at`
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		i           models.Identity
		role        string
		dateOfBirth sql.NullTime
		lastLoginAt sql.NullTime
	)

	err := row.Scan(&i.ID, &i.Email, &i.Username, &i.PasswordDigest, &role, &i.FirstName, &i.LastName, &i.Phone,
		&dateOfBirth, &i.ProfileImage, &i.IsVerified, &i.IsActive, &i.LastLoginIP, &lastLoginAt,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}

	i.Role = models.Role(role)
	if dateOfBirth.Valid {
		t := dateOfBirth.Time
		i.DateOfBirth = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		i.LastLoginAt = &t
	}
	return &i, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) error {
	query :=
		`INSERT INTO identities (` + identityColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 `

	_, err := r.db.ExecContext(ctx, query,
		identity.ID, identity.Email, identity.Username, identity.PasswordDigest, string(identity.Role),
		identity.FirstName, identity.LastName, identity.Phone, nullTime(identity.DateOfBirth),
		identity.ProfileImage, identity.IsVerified, identity.IsActive, identity.LastLoginIP,
		nullTime(identity.LastLoginAt), identity.CreatedAt, identity.UpdatedAt)

	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			switch constraint {
			case emailConstraint:
				return common.ErrDuplicateEmail
			case usernameConstraint:
				return common.ErrDuplicateUsername
			}
		}
		return dbx.WrapError(err)
	}

	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE ` + where

	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.WrapError(err)
	}
	return identity, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.getOne(ctx, "email = $1", strings.ToLower(email))
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Identity, error) {
	return r.getOne(ctx, "username = $1", username)
}

// exec runs an UPDATE/DELETE and maps "no rows affected" to ErrorNotFound.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbx.WrapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return dbx.WrapError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, digest string, at time.Time) error {
	return r.exec(ctx, `UPDATE identities SET password_digest = $2, updated_at = $3 WHERE id = $1`, id, digest, at)
}

func (r *PostgresRepository) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	return r.exec(ctx, `UPDATE identities SET last_login_ip = $2, last_login_at = $3 WHERE id = $1`, id, ip, at)
}

func (r *PostgresRepository) UpdatePersonal(ctx context.Context, id string, f models.PersonalFields, at time.Time) error {
	return r.exec(ctx,
		`UPDATE identities SET first_name = $2, last_name = $3, phone = $4, date_of_birth = $5, updated_at = $6
		 WHERE id = $1`,
		id, f.FirstName, f.LastName, f.Phone, nullTime(f.DateOfBirth), at)
}

func (r *PostgresRepository) SetProfileImage(ctx context.Context, id, key string, at time.Time) error {
	return r.exec(ctx, `UPDATE identities SET profile_image = $2, updated_at = $3 WHERE id = $1`, id, key, at)
}

func (r *PostgresRepository) SetVerified(ctx context.Context, id string, verified bool, at time.Time) error {
	return r.exec(ctx, `UPDATE identities SET is_verified = $2, updated_at = $3 WHERE id = $1`, id, verified, at)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return r.exec(ctx, `UPDATE identities SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, at)
}

func (r *PostgresRepository) SetRole(ctx context.Context, id string, role models.Role, at time.Time) error {
	return r.exec(ctx, `UPDATE identities SET role = $2, updated_at = $3 WHERE id = $1`, id, string(role), at)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
}

// likePattern escapes LIKE wildcards in s and wraps it for a substring match.
func likePattern(s string) string {
	if s == "" {
		return ""
	}
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

func (r *PostgresRepository) List(ctx context.Context, f models.IdentityFilter) ([]models.Identity, error) {
	query :=
		`SELECT ` + identityColumns + ` FROM identities
		 WHERE ($1 = '' OR role = $1)
		   AND ($2 = '' OR first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2 OR username ILIKE $2)
		 ORDER BY created_at DESC, id
		 LIMIT $3 OFFSET $4
		 `

	rows, err := r.db.QueryContext(ctx, query, string(f.Role), likePattern(f.Search), f.Limit, f.Offset)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var result []models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, dbx.WrapError(err)
		}
		result = append(result, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}

	return result, nil
}

func (r *PostgresRepository) Statistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{ByRole: make(map[models.Role]int64, len(models.Roles))}
	for _, role := range models.Roles {
		stats.ByRole[role] = 0
	}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active),
		        COUNT(*) FILTER (WHERE is_verified)
		 FROM identities`).Scan(&stats.Total, &stats.Active, &stats.Verified)
	if err != nil {
		return nil, dbx.WrapError(err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM identities GROUP BY role`)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			role  string
			count int64
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, dbx.WrapError(err)
		}
		stats.ByRole[models.Role(role)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}

	return stats, nil
}
