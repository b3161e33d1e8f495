package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken covers every reason an identity token is refused:
// signature, audience, issuer, expiry or missing claims.
var ErrInvalidToken = errors.New("invalid identity token")

// ErrUnavailable means the token could not be checked at all, typically
// because the provider's signing keys could not be fetched.
var ErrUnavailable = errors.New("identity provider unavailable")

// Identity is what the provider vouches for. Facts only, no decisions.
type Identity struct {
	Subject string // provider-scoped stable id (sub)
	Email   string
	Name    string
}

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}
