package repomanager

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/identities"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/sessions"
)

type memoryState struct {
	identities map[string]models.Identity
	profiles   map[string]models.Profile
	sessions   map[string]models.Session
	revoked    map[string]models.Revocation
	cutoffs    map[string]time.Time
}

func newMemoryState() *memoryState {
	return &memoryState{
		identities: map[string]models.Identity{},
		profiles:   map[string]models.Profile{},
		sessions:   map[string]models.Session{},
		revoked:    map[string]models.Revocation{},
		cutoffs:    map[string]time.Time{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		identities: cloneMap(s.identities),
		profiles:   cloneMap(s.profiles),
		sessions:   cloneMap(s.sessions),
		revoked:    cloneMap(s.revoked),
		cutoffs:    cloneMap(s.cutoffs),
	}
}

// MemoryRepositoryManager keeps the whole store in process memory. It backs
// the server when no DSN is configured and the service tests. WithTx holds
// the write lock for the duration of fn, so transactions are serialised and
// rolled back by restoring a snapshot.
type MemoryRepositoryManager struct {
	mu    sync.RWMutex
	state *memoryState
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{state: newMemoryState()}
}

// memStore is the handle the memory repositories share. Inside WithTx the
// lock is already held and locked is true.
type memStore struct {
	m      *MemoryRepositoryManager
	locked bool
}

func (s memStore) read(fn func(st *memoryState) error) error {
	if !s.locked {
		s.m.mu.RLock()
		defer s.m.mu.RUnlock()
	}
	return fn(s.m.state)
}

func (s memStore) write(fn func(st *memoryState) error) error {
	if !s.locked {
		s.m.mu.Lock()
		defer s.m.mu.Unlock()
	}
	return fn(s.m.state)
}

func (s memStore) Identities() identities.Repository   { return memIdentities{s} }
func (s memStore) Profiles() profiles.Repository       { return memProfiles{s} }
func (s memStore) Sessions() sessions.Repository       { return memSessions{s} }
func (s memStore) Revocations() revocations.Repository { return memRevocations{s} }

func (m *MemoryRepositoryManager) store() memStore {
	return memStore{m: m}
}

func (m *MemoryRepositoryManager) Identities() identities.Repository {
	return m.store().Identities()
}

func (m *MemoryRepositoryManager) Profiles() profiles.Repository {
	return m.store().Profiles()
}

func (m *MemoryRepositoryManager) Sessions() sessions.Repository {
	return m.store().Sessions()
}

func (m *MemoryRepositoryManager) Revocations() revocations.Repository {
	return m.store().Revocations()
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	defer func() {
		if p := recover(); p != nil {
			m.state = snapshot
			panic(p)
		}
		if err != nil {
			m.state = snapshot
		}
	}()

	return fn(ctx, memStore{m: m, locked: true})
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}
