package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	verifyFn func(ctx context.Context, raw string) (identity.Identity, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (identity.Identity, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, raw)
	}
	return identity.Identity{}, identity.ErrInvalidToken
}

type fakeIssuer struct {
	issueFn func(email string) (string, time.Time, error)
}

func (f *fakeIssuer) Issue(email string) (string, time.Time, error) {
	if f.issueFn != nil {
		return f.issueFn(email)
	}
	return "token-for-" + email, time.Now().Add(time.Hour), nil
}

type fakeUsersRepo struct {
	findOrCreateFn func(ctx context.Context, id identity.Identity, token string) (user.User, bool, error)
	getFn          func(ctx context.Context, email string) (user.User, error)
	updateFn       func(ctx context.Context, email string, patch user.ProfilePatch) (user.User, error)
}

func (f *fakeUsersRepo) FindOrCreate(ctx context.Context, id identity.Identity, token string) (user.User, bool, error) {
	if f.findOrCreateFn != nil {
		return f.findOrCreateFn(ctx, id, token)
	}
	return user.User{Email: id.Email, Name: id.Name}, true, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, email string, patch user.ProfilePatch) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, email, patch)
	}
	return user.User{}, user.ErrNotFound
}

// small helper function which returns the gin engine to mount one handler per test
func setupRouter(method, path string, h ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h...)

	return r
}

func validIdentity(_ context.Context, raw string) (identity.Identity, error) {
	if raw != "good-google-token" {
		return identity.Identity{}, fmt.Errorf("%w: bad signature", identity.ErrInvalidToken)
	}
	return identity.Identity{Subject: "g-42", Email: "ada@example.com", Name: "Ada"}, nil
}

func TestSignUpHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repo           *fakeUsersRepo
		issuer         *fakeIssuer
		wantStatus     int
		wantErrCode    string
		wantStoredUser string
	}{
		{
			name:           "new_user",
			body:           `{"idToken":"good-google-token"}`,
			repo:           &fakeUsersRepo{},
			wantStatus:     http.StatusOK,
			wantStoredUser: "ada@example.com",
		},
		{
			name: "existing_user_keeps_stored_name",
			body: `{"IdToken":"good-google-token"}`,
			repo: &fakeUsersRepo{findOrCreateFn: func(ctx context.Context, id identity.Identity, token string) (user.User, bool, error) {
				return user.User{ID: 1, Email: id.Email, Name: "Ada Lovelace"}, false, nil
			}},
			wantStatus:     http.StatusOK,
			wantStoredUser: "ada@example.com",
		},
		{
			name:        "missing_token",
			body:        `{}`,
			repo:        &fakeUsersRepo{},
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "invalid_request",
		},
		{
			name:        "malformed_json",
			body:        `{"idToken":`,
			repo:        &fakeUsersRepo{},
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "invalid_request",
		},
		{
			name:        "invalid_identity_token",
			body:        `{"idToken":"forged"}`,
			repo:        &fakeUsersRepo{},
			wantStatus:  http.StatusUnauthorized,
			wantErrCode: "unauthorized",
		},
		{
			name: "store_failure",
			body: `{"idToken":"good-google-token"}`,
			repo: &fakeUsersRepo{findOrCreateFn: func(ctx context.Context, id identity.Identity, token string) (user.User, bool, error) {
				return user.User{}, false, errors.New("connection refused")
			}},
			wantStatus:  http.StatusInternalServerError,
			wantErrCode: "internal_error",
		},
		{
			name: "signing_failure",
			body: `{"idToken":"good-google-token"}`,
			repo: &fakeUsersRepo{},
			issuer: &fakeIssuer{issueFn: func(string) (string, time.Time, error) {
				return "", time.Time{}, errors.New("boom")
			}},
			wantStatus:  http.StatusInternalServerError,
			wantErrCode: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := tt.issuer
			if issuer == nil {
				issuer = &fakeIssuer{}
			}

			h := handlers.NewAuthHandler(&fakeVerifier{verifyFn: validIdentity}, issuer, tt.repo, nil, nil)
			r := setupRouter(http.MethodPost, "/signup", h.SignUp)

			req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantErrCode != "" {
				var resp struct {
					Error handlers.APIError `json:"error"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if resp.Error.Code != tt.wantErrCode {
					t.Fatalf("error code = %q, want %q", resp.Error.Code, tt.wantErrCode)
				}
				return
			}

			var resp handlers.SignUpResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if resp.User.Email != tt.wantStoredUser {
				t.Fatalf("User.Email = %q, want %q", resp.User.Email, tt.wantStoredUser)
			}
			if resp.Token != "token-for-ada@example.com" {
				t.Fatalf("unexpected token %q", resp.Token)
			}
			if resp.Message == "" {
				t.Fatalf("expected a message")
			}
		})
	}
}

func TestSignUpHandler_ResponseUsesPascalCaseKeys(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeVerifier{verifyFn: validIdentity}, &fakeIssuer{}, &fakeUsersRepo{}, nil, nil)
	r := setupRouter(http.MethodPost, "/signup", h.SignUp)

	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(`{"idToken":"good-google-token"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"Message", "User", "Token"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing key %q in %s", key, w.Body.String())
		}
	}
}

func TestSignUpHandler_StoresIssuedToken(t *testing.T) {
	var stored string
	repo := &fakeUsersRepo{findOrCreateFn: func(ctx context.Context, id identity.Identity, token string) (user.User, bool, error) {
		stored = token
		if id.Subject != "g-42" {
			t.Errorf("subject not passed through: %q", id.Subject)
		}
		return user.User{Email: id.Email, Name: id.Name, SessionToken: token}, true, nil
	}}

	h := handlers.NewAuthHandler(&fakeVerifier{verifyFn: validIdentity}, &fakeIssuer{}, repo, nil, nil)
	r := setupRouter(http.MethodPost, "/signup", h.SignUp)

	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(`{"idToken":"good-google-token"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp handlers.SignUpResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored == "" || stored != resp.Token {
		t.Fatalf("stored token %q does not match returned token %q", stored, resp.Token)
	}
}

func TestSignUpHandler_VerifierOutageIsInternalError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "plain_error", err: errors.New("jwks fetch: connection refused")},
		{name: "provider_unavailable", err: fmt.Errorf("%w: fetching keys: dial tcp: connection refused", identity.ErrUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			repo := &fakeUsersRepo{findOrCreateFn: func(ctx context.Context, id identity.Identity, token string) (user.User, bool, error) {
				called = true
				return user.User{}, false, nil
			}}
			verifier := &fakeVerifier{verifyFn: func(context.Context, string) (identity.Identity, error) {
				return identity.Identity{}, tt.err
			}}

			h := handlers.NewAuthHandler(verifier, &fakeIssuer{}, repo, nil, nil)
			r := setupRouter(http.MethodPost, "/signup", h.SignUp)

			req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(`{"idToken":"good-google-token"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("got status %d, want 500, body=%s", w.Code, w.Body.String())
			}
			var resp struct {
				Error handlers.APIError `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Error.Code != "internal_error" {
				t.Fatalf("error code = %q, want internal_error", resp.Error.Code)
			}
			if called {
				t.Fatalf("store must not be touched when the token could not be verified")
			}
		})
	}
}
