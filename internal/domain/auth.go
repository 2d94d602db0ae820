package domain

import "time"

// AnonymousPrincipal is the sender name used when a connection carries no identity.
const AnonymousPrincipal = "Anonymous"

// Principal is the authenticated identity attached to a connection.
type Principal struct {
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// DisplayName returns the principal name, or AnonymousPrincipal when there is none.
func (p *Principal) DisplayName() string {
	if p == nil || p.Name == "" {
		return AnonymousPrincipal
	}
	return p.Name
}

// Token is a signed, time-bounded bearer token issued after authentication.
type Token struct {
	Value     string
	ID        string
	Principal string
	ExpiresAt time.Time
}
