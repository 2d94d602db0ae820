// Package security provides authentication and authorization for stockchat.
package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/sync"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Common errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidFormat = errors.New("invalid token format")
	ErrTokenRevoked  = errors.New("token has been revoked")
)

// Token defaults.
const (
	DefaultIssuer     = "StockChatLive"
	DefaultAudience   = "StockChatLiveUsers"
	DefaultExpirySecs = 3600
)

// Claims is the JWT body issued to clients.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// TokenOptions configures a TokenManager.
type TokenOptions struct {
	// Secret is the HMAC key. A random key is generated when empty.
	Secret     []byte
	Issuer     string
	Audience   string
	ExpirySecs int
	Clock      clockwork.Clock
}

// TokenManager issues and validates HS256 bearer tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
	clock    clockwork.Clock
	parser   *jwt.Parser

	mu          sync.RWMutex
	revokedJTIs map[string]time.Time // jti -> revoked at (for cleanup)
}

// NewTokenManager creates a new token manager. Zero option fields take the defaults.
func NewTokenManager(opts TokenOptions) (*TokenManager, error) {
	secret := opts.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}

	tm := &TokenManager{
		secret:      secret,
		issuer:      opts.Issuer,
		audience:    opts.Audience,
		expiry:      time.Duration(opts.ExpirySecs) * time.Second,
		clock:       opts.Clock,
		revokedJTIs: make(map[string]time.Time),
	}
	if tm.issuer == "" {
		tm.issuer = DefaultIssuer
	}
	if tm.audience == "" {
		tm.audience = DefaultAudience
	}
	if tm.expiry <= 0 {
		tm.expiry = DefaultExpirySecs * time.Second
	}
	if tm.clock == nil {
		tm.clock = clockwork.NewRealClock()
	}

	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.clock.Now),
	)
	return tm, nil
}

// Issue signs a token for principal.
func (tm *TokenManager) Issue(principal string) (*domain.Token, error) {
	if principal == "" {
		return nil, errors.New("issue token: empty principal")
	}

	now := tm.clock.Now()
	expiresAt := now.Add(tm.expiry)
	jti := uuid.New().String()

	claims := Claims{
		Name: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			ID:        jti,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.Token{
		Value:     signed,
		ID:        jti,
		Principal: principal,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// ValidateToken validates a token and returns its principal.
func (tm *TokenManager) ValidateToken(token string) (*domain.Principal, error) {
	claims, err := tm.parse(token)
	if err != nil {
		return nil, err
	}

	tm.mu.RLock()
	_, revoked := tm.revokedJTIs[claims.ID]
	tm.mu.RUnlock()
	if revoked {
		return nil, ErrTokenRevoked
	}

	return principalFromClaims(claims), nil
}

// RevokeToken revokes a token by its jti. Expired tokens may still be revoked.
func (tm *TokenManager) RevokeToken(token string) error {
	claims, err := tm.parse(token)
	if err != nil && !errors.Is(err, ErrExpiredToken) {
		return err
	}
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}

	tm.mu.Lock()
	tm.revokedJTIs[claims.ID] = tm.clock.Now()
	tm.mu.Unlock()

	return nil
}

// CleanupExpiredRevocations removes revocations older than maxAge.
func (tm *TokenManager) CleanupExpiredRevocations(maxAge time.Duration) int {
	cutoff := tm.clock.Now().Add(-maxAge)

	tm.mu.Lock()
	defer tm.mu.Unlock()

	removed := 0
	for jti, revokedAt := range tm.revokedJTIs {
		if revokedAt.Before(cutoff) {
			delete(tm.revokedJTIs, jti)
			removed++
		}
	}
	return removed
}

// parse verifies signature, issuer, audience and expiry. On ErrExpiredToken
// the claims are still returned.
func (tm *TokenManager) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidFormat
	}

	claims := &Claims{}
	_, err := tm.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrInvalidFormat
	case errors.Is(err, jwt.ErrTokenExpired):
		// Claims are only validated after the signature checks out.
		return claims, ErrExpiredToken
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func principalFromClaims(c *Claims) *domain.Principal {
	name := c.Name
	if name == "" {
		name = c.Subject
	}
	p := &domain.Principal{Name: name, TokenID: c.ID}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
