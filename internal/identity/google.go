package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const GoogleIssuer = "https://accounts.google.com"

var tracer = otel.Tracer("github.com/geocoder89/profilehub/internal/identity")

type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers the issuer's jwks_uri and returns a verifier
// bound to clientID. Keys are fetched lazily and cached by go-oidc.
func NewGoogleVerifier(ctx context.Context, issuerURL, clientID string, timeout time.Duration) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("identity: google client id is required")
	}
	if issuerURL == "" {
		issuerURL = GoogleIssuer
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// the remote key set keeps using this context for key refreshes, so it
	// must outlive the caller's startup context.
	keyCtx := oidc.ClientContext(context.WithoutCancel(ctx), &http.Client{Timeout: timeout})

	provider, err := oidc.NewProvider(keyCtx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("identity: discover %s: %w", issuerURL, err)
	}

	var meta struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("identity: read discovery document: %w", err)
	}
	if meta.JWKSURL == "" {
		return nil, fmt.Errorf("identity: %s advertises no jwks_uri", issuerURL)
	}

	return NewVerifierWithKeySet(issuerURL, clientID, oidc.NewRemoteKeySet(keyCtx, meta.JWKSURL)), nil
}

// NewVerifierWithKeySet skips discovery and checks tokens against keys.
func NewVerifierWithKeySet(issuerURL, clientID string, keys oidc.KeySet) *GoogleVerifier {
	return &GoogleVerifier{
		verifier: oidc.NewVerifier(issuerURL, fetchGuard{keys}, &oidc.Config{ClientID: clientID}),
	}
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
}

func (g *GoogleVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	ctx, span := tracer.Start(ctx, "identity.verify")
	defer span.End()

	id, err := g.verify(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrUnavailable) {
			span.SetStatus(codes.Error, "identity provider unavailable")
		} else {
			span.SetStatus(codes.Error, "identity token rejected")
		}
		return Identity{}, err
	}

	span.SetAttributes(attribute.Bool("identity.email_present", id.Email != ""))
	return id, nil
}

func (g *GoogleVerifier) verify(ctx context.Context, rawToken string) (Identity, error) {
	if rawToken == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	fetch := &fetchFailure{}
	token, err := g.verifier.Verify(context.WithValue(ctx, fetchFailureKey{}, fetch), rawToken)
	if err != nil {
		if fetch.err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, fetch.err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims googleClaims
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}

	if token.Subject == "" || claims.Email == "" {
		return Identity{}, fmt.Errorf("%w: missing sub or email claim", ErrInvalidToken)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return Identity{}, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}

	return Identity{
		Subject: token.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}

// go-oidc flattens key set errors into a string, so a key fetch failure
// would look like a bad signature. fetchGuard notes fetch failures on the
// per-call fetchFailure carried in the context.
type fetchGuard struct {
	inner oidc.KeySet
}

type fetchFailureKey struct{}

type fetchFailure struct {
	err error
}

func (k fetchGuard) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.inner.VerifySignature(ctx, jwt)
	if err != nil && isFetchError(err) {
		if f, ok := ctx.Value(fetchFailureKey{}).(*fetchFailure); ok {
			f.err = err
		}
	}
	return payload, err
}

func isFetchError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return true
	}
	// RemoteKeySet reports non-2xx and undecodable jwks responses as plain
	// strings under these prefixes.
	msg := err.Error()
	return strings.HasPrefix(msg, "fetching keys") || strings.HasPrefix(msg, "oidc: get keys failed")
}
