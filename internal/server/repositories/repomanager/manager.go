// Package repomanager wires the credential store repositories together and
// gives callers atomic units of work across them.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/medaccount/internal/server/repositories/identities"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/sessions"
)

// Repositories is a set of repositories sharing one handle, either the
// connection pool or an open transaction.
type Repositories interface {
	Identities() identities.Repository
	Profiles() profiles.Repository
	Sessions() sessions.Repository
	Revocations() revocations.Repository
}

// RepositoryManager exposes non-transactional repositories directly and
// transactional ones through WithTx. If fn returns an error every write made
// through the Repositories it received is discarded.
type RepositoryManager interface {
	Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	RunMigrations(ctx context.Context) error
	Close() error
}
