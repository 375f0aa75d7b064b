package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mwantia/folio/pkg/db/models"
	"github.com/mwantia/folio/pkg/db/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL = 30 * 24 * time.Hour

	// bcrypt ignores everything past 72 bytes
	maxPasswordLength = 72
	minPasswordLength = 8
	minSecretLength   = 32
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidUser        = errors.New("invalid user")
)

// Claims are carried by every session token.
type Claims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// Principal identifies the caller behind a verified token.
type Principal struct {
	UserID   uint   `json:"id"`
	Username string `json:"username"`
}

// Authenticator checks credentials against stored bcrypt hashes and issues
// signed session tokens.
type Authenticator struct {
	store  store.MetadataStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(s store.MetadataStore, secret []byte, ttl time.Duration) (*Authenticator, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &Authenticator{
		store:  s,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns how long issued tokens stay valid.
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// Provision creates a user with a bcrypt hash of password.
func (a *Authenticator) Provision(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, fmt.Errorf("%w: password must be between %d and %d bytes", ErrInvalidUser, minPasswordLength, maxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login verifies the credentials and returns a signed session token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := a.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.sign(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Verify checks signature and expiry of a session token.
func (a *Authenticator) Verify(token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return &Principal{
		UserID:   claims.UserID,
		Username: claims.Subject,
	}, nil
}

func (a *Authenticator) sign(user *models.User) (string, error) {
	now := a.now()
	claims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
