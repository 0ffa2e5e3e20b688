package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/medaccount/internal/dbx"
	"github.com/dmitrijs2005/medaccount/internal/server/migrations"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/identities"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/sessions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories bound either
// to the pool or to a transaction. The revocation set may be served by a
// different backend (Redis) via WithRevocations.
type PostgresRepositoryManager struct {
	db          *sql.DB
	revocations revocations.Repository
}

type Option func(*PostgresRepositoryManager)

// WithRevocations replaces the Postgres revocation set. The replacement is
// not part of WithTx transactions.
func WithRevocations(r revocations.Repository) Option {
	return func(m *PostgresRepositoryManager) {
		m.revocations = r
	}
}

// OpenPostgres opens a pgx-backed *sql.DB for dsn and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, dbx.WrapError(err)
	}
	return db, nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB, opts ...Option) *PostgresRepositoryManager {
	m := &PostgresRepositoryManager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type postgresRepositories struct {
	db          dbx.DBTX
	revocations revocations.Repository
}

func (r postgresRepositories) Identities() identities.Repository {
	return identities.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Profiles() profiles.Repository {
	return profiles.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Sessions() sessions.Repository {
	return sessions.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Revocations() revocations.Repository {
	if r.revocations != nil {
		return r.revocations
	}
	return revocations.NewPostgresRepository(r.db)
}

func (m *PostgresRepositoryManager) bound(db dbx.DBTX) postgresRepositories {
	return postgresRepositories{db: db, revocations: m.revocations}
}

func (m *PostgresRepositoryManager) Identities() identities.Repository {
	return m.bound(m.db).Identities()
}

func (m *PostgresRepositoryManager) Profiles() profiles.Repository {
	return m.bound(m.db).Profiles()
}

func (m *PostgresRepositoryManager) Sessions() sessions.Repository {
	return m.bound(m.db).Sessions()
}

func (m *PostgresRepositoryManager) Revocations() revocations.Repository {
	return m.bound(m.db).Revocations()
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, m.bound(tx))
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}
