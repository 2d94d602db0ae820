package security

import (
	"errors"
	"fmt"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/sync"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is one entry of the credential table.
type User struct {
	Username     string
	PasswordHash string
}

// dummyHash is compared against when the username is unknown so both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("stockchat-dummy"), bcrypt.MinCost)

// Authenticator checks credentials against bcrypt hashes and issues tokens.
type Authenticator struct {
	tokens *TokenManager

	mu    sync.RWMutex
	users map[string][]byte
}

// NewAuthenticator creates an authenticator over users.
func NewAuthenticator(tokens *TokenManager, users []User) *Authenticator {
	a := &Authenticator{tokens: tokens}
	a.SetUsers(users)
	return a
}

// SetUsers replaces the credential table.
func (a *Authenticator) SetUsers(users []User) {
	table := make(map[string][]byte, len(users))
	for _, u := range users {
		table[u.Username] = []byte(u.PasswordHash)
	}

	a.mu.Lock()
	a.users = table
	a.mu.Unlock()
}

// UserCount returns the size of the credential table.
func (a *Authenticator) UserCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users)
}

// Authenticate verifies username and password and returns a signed token.
// Usernames are case-sensitive.
func (a *Authenticator) Authenticate(username, password string) (*domain.Token, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	a.mu.RLock()
	hash, ok := a.users[username]
	a.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return a.tokens.Issue(username)
}

// HashPassword returns the bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrMissingCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
