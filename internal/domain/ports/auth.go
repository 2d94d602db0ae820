// Package ports defines the interfaces between the core and its collaborators.
package ports

import (
	"context"

	"github.com/brianly1003/stockchat/internal/domain"
)

// Authenticator maps credentials to a signed, time-bounded token.
type Authenticator interface {
	Authenticate(username, password string) (*domain.Token, error)
}

// TokenValidator admits or rejects a bearer token presented by a connection.
type TokenValidator interface {
	ValidateToken(token string) (*domain.Principal, error)
}

// Publisher is a background producer driven by the process lifecycle.
type Publisher interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TokenRevoker invalidates a previously issued token before it expires.
type TokenRevoker interface {
	RevokeToken(token string) error
}
