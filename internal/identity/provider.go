package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrEmptyInstallKey = errors.New("empty install key")
)

// IdentityStore binds install keys to anonymous uids.
type IdentityStore interface {
	GetOrCreate(ctx context.Context, installKey string, newUID func() string) (string, error)
}

// LocalProvider signs users in against the tracker's own database. Custom
// tokens are HS256 JWTs carrying the uid as subject.
type LocalProvider struct {
	secret     []byte
	identities IdentityStore
	now        func() time.Time
}

func NewLocalProvider(secret string, identities IdentityStore) *LocalProvider {
	return &LocalProvider{
		secret:     []byte(secret),
		identities: identities,
		now:        time.Now,
	}
}

func (p *LocalProvider) SignInWithCustomToken(_ context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (p *LocalProvider) SignInAnonymously(ctx context.Context, installKey string) (string, error) {
	if strings.TrimSpace(installKey) == "" {
		return "", ErrEmptyInstallKey
	}
	uid, err := p.identities.GetOrCreate(ctx, installKey, uuid.NewString)
	if err != nil {
		return "", fmt.Errorf("sign in anonymously: %w", err)
	}
	return uid, nil
}

// IssueToken creates a custom token for uid. A zero ttl issues a token that
// never expires.
func (p *LocalProvider) IssueToken(uid string, ttl time.Duration) (string, error) {
	if uid == "" {
		return "", errors.New("issue token: empty uid")
	}
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:  uid,
		IssuedAt: jwt.NewNumericDate(now),
		ID:       uuid.NewString(),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
