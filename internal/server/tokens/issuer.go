package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/revocations"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "medaccount"

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RotateRefresh makes Refresh revoke the presented refresh token and
	// return a new one.
	RotateRefresh bool
}

// Issuer is safe for concurrent use. Refresh-token revocations live in the
// revocations repository; access tokens are never looked up there.
type Issuer struct {
	cfg         Config
	revocations revocations.Repository
	now         func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(cfg Config, rev revocations.Repository, opts ...Option) *Issuer {
	i := &Issuer{cfg: cfg, revocations: rev, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) sign(identityID string, role models.Role, typ TokenType, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuerName,
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:         role,
		Type:         typ,
		IssuedAtNano: now.UnixNano(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing %s token: %w", typ, err)
	}
	return signed, claims.ExpiresAt.Time.UTC(), nil
}

// Issue mints a new access and refresh token for identity.
func (i *Issuer) Issue(identity *models.Identity) (TokenPair, error) {
	return i.issue(identity.ID, identity.Role)
}

func (i *Issuer) issue(identityID string, role models.Role) (TokenPair, error) {
	now := i.now()

	access, accessExp, err := i.sign(identityID, role, TypeAccess, i.cfg.AccessTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.sign(identityID, role, TypeRefresh, i.cfg.RefreshTTL, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// parse verifies signature, issuer, expiry and type. The returned error is
// one of ErrTokenExpired, ErrTokenSignatureInvalid or ErrTokenMalformed.
func (i *Issuer) parse(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, common.ErrTokenSignatureInvalid
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, common.ErrTokenExpired
		default:
			return nil, common.ErrTokenMalformed
		}
	}

	if claims.Type != want || claims.Subject == "" || claims.ID == "" {
		return nil, common.ErrTokenMalformed
	}
	return claims, nil
}

// ValidateAccess checks an access token by signature and time alone.
func (i *Issuer) ValidateAccess(token string) (*Claims, error) {
	return i.parse(token, TypeAccess)
}

// ParseRefresh validates a refresh token without consulting the revocation
// set. A bad signature is reported as ErrTokenMalformed.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	claims, err := i.parse(token, TypeRefresh)
	if errors.Is(err, common.ErrTokenSignatureInvalid) {
		return nil, common.ErrTokenMalformed
	}
	return claims, err
}

func (i *Issuer) checkNotRevoked(ctx context.Context, claims *Claims) error {
	revoked, err := i.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return common.ErrTokenRevoked
	}

	cutoff, ok, err := i.revocations.SubjectCutoff(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	issuedAt, precision := claims.issuedAt()
	if !issuedAt.After(cutoff.UTC().Truncate(precision)) {
		return common.ErrTokenRevoked
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new access token. With
// rotation enabled the presented token is revoked and a new refresh token is
// returned; of two concurrent refreshes of the same token only one succeeds.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := i.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := i.checkNotRevoked(ctx, claims); err != nil {
		return TokenPair{}, err
	}

	if !i.cfg.RotateRefresh {
		access, accessExp, err := i.sign(claims.Subject, claims.Role, TypeAccess, i.cfg.AccessTTL, i.now())
		if err != nil {
			return TokenPair{}, err
		}
		return TokenPair{
			AccessToken:      access,
			RefreshToken:     refreshToken,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: claims.ExpiresAt.Time.UTC(),
		}, nil
	}

	inserted, err := i.revocations.Revoke(ctx, i.revocation(claims))
	if err != nil {
		return TokenPair{}, err
	}
	if !inserted {
		return TokenPair{}, common.ErrTokenRevoked
	}

	return i.issue(claims.Subject, claims.Role)
}

func (i *Issuer) revocation(claims *Claims) models.Revocation {
	return models.Revocation{
		TokenID:    claims.ID,
		IdentityID: claims.Subject,
		ExpiresAt:  claims.ExpiresAt.Time,
		RevokedAt:  i.now(),
	}
}

// Revoke adds the refresh token to the revocation set. Revoking an already
// revoked or already expired token is a no-op.
func (i *Issuer) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := i.ParseRefresh(refreshToken)
	if errors.Is(err, common.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = i.revocations.Revoke(ctx, i.revocation(claims))
	return err
}

// RevokeSubject invalidates every refresh token of identityID issued up to
// now. Tokens minted afterwards stay valid, even within the same second.
func (i *Issuer) RevokeSubject(ctx context.Context, identityID string) error {
	return i.revocations.RevokeSubject(ctx, identityID, i.now())
}
