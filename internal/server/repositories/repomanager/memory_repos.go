package repomanager

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

type memIdentities struct{ s memStore }

func (r memIdentities) Create(ctx context.Context, identity *models.Identity) error {
	return r.s.write(func(st *memoryState) error {
		email := strings.ToLower(identity.Email)
		for _, existing := range st.identities {
			if existing.Email == email {
				return common.ErrDuplicateEmail
			}
		}
		for _, existing := range st.identities {
			if existing.Username == identity.Username {
				return common.ErrDuplicateUsername
			}
		}
		stored := *identity
		stored.Email = email
		st.identities[identity.ID] = stored
		return nil
	})
}

func (r memIdentities) find(match func(models.Identity) bool) (*models.Identity, error) {
	var found *models.Identity
	err := r.s.read(func(st *memoryState) error {
		for _, i := range st.identities {
			if match(i) {
				found = &i
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return found, err
}

func (r memIdentities) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.find(func(i models.Identity) bool { return i.ID == id })
}

func (r memIdentities) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	email = strings.ToLower(email)
	return r.find(func(i models.Identity) bool { return i.Email == email })
}

func (r memIdentities) GetByUsername(ctx context.Context, username string) (*models.Identity, error) {
	return r.find(func(i models.Identity) bool { return i.Username == username })
}

func (r memIdentities) update(id string, fn func(i *models.Identity)) error {
	return r.s.write(func(st *memoryState) error {
		i, ok := st.identities[id]
		if !ok {
			return common.ErrorNotFound
		}
		fn(&i)
		st.identities[id] = i
		return nil
	})
}

func (r memIdentities) UpdatePassword(ctx context.Context, id, digest string, at time.Time) error {
	return r.update(id, func(i *models.Identity) {
		i.PasswordDigest = digest
		i.UpdatedAt = at
	})
}

func (r memIdentities) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	return r.update(id, func(i *models.Identity) {
		i.LastLoginIP = ip
		i.LastLoginAt = &at
	})
}

func (r memIdentities) UpdatePersonal(ctx context.Context, id string, f models.PersonalFields, at time.Time) error {
	return r.update(id, func(i *models.Identity) {
		i.FirstName = f.FirstName
		i.LastName = f.LastName
		i.Phone = f.Phone
		i.DateOfBirth = f.DateOfBirth
		i.UpdatedAt = at
	})
}

func (r memIdentities) SetProfileImage(ctx context.Context, id, key string, at time.Time) error {
	return r.update(id, func(i *models.Identity) {
		i.ProfileImage = key
		i.UpdatedAt = at
	})
}

func (r memIdentities) SetVerified(ctx context.Context, id string, verified bool, at time.Time) error {
	return r.update(id, func(i *models.Identity) {
		i.IsVerified = verified
		i.UpdatedAt = at
	})
}

func (r memIdentities) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return r.update(id, func(i *models.Identity) {
		i.IsActive = active
		i.UpdatedAt = at
	})
}

func (r memIdentities) SetRole(ctx context.Context, id string, role models.Role, at time.Time) error {
	return r.update(id, func(i *models.Identity) {
		i.Role = role
		i.UpdatedAt = at
	})
}

// Delete mirrors the ON DELETE CASCADE of the profiles table.
func (r memIdentities) Delete(ctx context.Context, id string) error {
	return r.s.write(func(st *memoryState) error {
		if _, ok := st.identities[id]; !ok {
			return common.ErrorNotFound
		}
		delete(st.identities, id)
		delete(st.profiles, id)
		return nil
	})
}

func matchesSearch(i models.Identity, search string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, field := range []string{i.FirstName, i.LastName, i.Email, i.Username} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (r memIdentities) List(ctx context.Context, f models.IdentityFilter) ([]models.Identity, error) {
	var result []models.Identity
	err := r.s.read(func(st *memoryState) error {
		for _, i := range st.identities {
			if f.Role != "" && i.Role != f.Role {
				continue
			}
			if !matchesSearch(i, f.Search) {
				continue
			}
			result = append(result, i)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(a, b int) bool {
		if !result[a].CreatedAt.Equal(result[b].CreatedAt) {
			return result[a].CreatedAt.After(result[b].CreatedAt)
		}
		return result[a].ID < result[b].ID
	})

	if f.Offset >= len(result) {
		return nil, nil
	}
	result = result[f.Offset:]
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result, nil
}

func (r memIdentities) Statistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{ByRole: make(map[models.Role]int64, len(models.Roles))}
	for _, role := range models.Roles {
		stats.ByRole[role] = 0
	}

	err := r.s.read(func(st *memoryState) error {
		for _, i := range st.identities {
			stats.Total++
			if i.IsActive {
				stats.Active++
			}
			if i.IsVerified {
				stats.Verified++
			}
			stats.ByRole[i.Role]++
		}
		return nil
	})
	return stats, err
}

type memProfiles struct{ s memStore }

func (r memProfiles) Create(ctx context.Context, p *models.Profile) error {
	return r.s.write(func(st *memoryState) error {
		if _, ok := st.identities[p.IdentityID]; !ok {
			return common.ErrorNotFound
		}
		st.profiles[p.IdentityID] = *p
		return nil
	})
}

func (r memProfiles) GetByIdentityID(ctx context.Context, identityID string) (*models.Profile, error) {
	var found models.Profile
	err := r.s.read(func(st *memoryState) error {
		p, ok := st.profiles[identityID]
		if !ok {
			return common.ErrorNotFound
		}
		found = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r memProfiles) Update(ctx context.Context, p *models.Profile) error {
	return r.s.write(func(st *memoryState) error {
		current, ok := st.profiles[p.IdentityID]
		if !ok {
			return common.ErrorNotFound
		}
		updated := *p
		updated.CreatedAt = current.CreatedAt
		st.profiles[p.IdentityID] = updated
		return nil
	})
}

func (r memProfiles) DeleteByIdentityID(ctx context.Context, identityID string) error {
	return r.s.write(func(st *memoryState) error {
		if _, ok := st.profiles[identityID]; !ok {
			return common.ErrorNotFound
		}
		delete(st.profiles, identityID)
		return nil
	})
}

type memSessions struct{ s memStore }

func (r memSessions) Create(ctx context.Context, s *models.Session) error {
	return r.s.write(func(st *memoryState) error {
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r memSessions) Get(ctx context.Context, id string) (*models.Session, error) {
	var found models.Session
	err := r.s.read(func(st *memoryState) error {
		s, ok := st.sessions[id]
		if !ok {
			return common.ErrorNotFound
		}
		found = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r memSessions) Touch(ctx context.Context, id string, at time.Time) error {
	return r.s.write(func(st *memoryState) error {
		s, ok := st.sessions[id]
		if !ok || !s.IsActive {
			return common.ErrorNotFound
		}
		if at.After(s.LastActivity) {
			s.LastActivity = at
		}
		st.sessions[id] = s
		return nil
	})
}

func (r memSessions) Deactivate(ctx context.Context, id string) error {
	return r.s.write(func(st *memoryState) error {
		s, ok := st.sessions[id]
		if !ok {
			return common.ErrorNotFound
		}
		s.IsActive = false
		st.sessions[id] = s
		return nil
	})
}

func (r memSessions) DeactivateAll(ctx context.Context, identityID string) (int64, error) {
	var n int64
	err := r.s.write(func(st *memoryState) error {
		for id, s := range st.sessions {
			if s.IdentityID == identityID && s.IsActive {
				s.IsActive = false
				st.sessions[id] = s
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memSessions) ListByIdentity(ctx context.Context, identityID string) ([]models.Session, error) {
	var result []models.Session
	err := r.s.read(func(st *memoryState) error {
		for _, s := range st.sessions {
			if s.IdentityID == identityID {
				result = append(result, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(a, b int) bool {
		if !result[a].LastActivity.Equal(result[b].LastActivity) {
			return result[a].LastActivity.After(result[b].LastActivity)
		}
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})
	return result, nil
}

type memRevocations struct{ s memStore }

func (r memRevocations) Revoke(ctx context.Context, rev models.Revocation) (bool, error) {
	inserted := false
	err := r.s.write(func(st *memoryState) error {
		if _, ok := st.revoked[rev.TokenID]; ok {
			return nil
		}
		st.revoked[rev.TokenID] = rev
		inserted = true
		return nil
	})
	return inserted, err
}

func (r memRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked := false
	err := r.s.read(func(st *memoryState) error {
		_, revoked = st.revoked[tokenID]
		return nil
	})
	return revoked, err
}

func (r memRevocations) RevokeSubject(ctx context.Context, identityID string, before time.Time) error {
	return r.s.write(func(st *memoryState) error {
		if current, ok := st.cutoffs[identityID]; !ok || before.After(current) {
			st.cutoffs[identityID] = before
		}
		return nil
	})
}

func (r memRevocations) SubjectCutoff(ctx context.Context, identityID string) (time.Time, bool, error) {
	var (
		before time.Time
		ok     bool
	)
	err := r.s.read(func(st *memoryState) error {
		before, ok = st.cutoffs[identityID]
		return nil
	})
	return before, ok, err
}

func (r memRevocations) Purge(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.write(func(st *memoryState) error {
		for id, rev := range st.revoked {
			if rev.ExpiresAt.Before(now) {
				delete(st.revoked, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
