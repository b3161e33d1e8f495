package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/gin-gonic/gin"
)

// identity verification includes a possible JWKS fetch
const signupTimeout = 15 * time.Second

type SessionIssuer interface {
	Issue(email string) (token string, expiresAt time.Time, err error)
}

type UserSignupStore interface {
	FindOrCreate(ctx context.Context, id identity.Identity, sessionToken string) (user.User, bool, error)
}

type AuthHandler struct {
	verifier identity.Verifier
	issuer   SessionIssuer
	users    UserSignupStore
	log      *slog.Logger
	prom     *observability.Prom
}

func NewAuthHandler(verifier identity.Verifier, issuer SessionIssuer, users UserSignupStore, log *slog.Logger, prom *observability.Prom) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		verifier: verifier,
		issuer:   issuer,
		users:    users,
		log:      log,
		prom:     prom,
	}
}

type SignUpRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type SignUpUser struct {
	Email string
	Name  string
}

type SignUpResponse struct {
	Message string
	User    SignUpUser
	Token   string
}

// SignUp exchanges a Google ID token for a session token, creating the
// user on first sight. Repeat signups return the stored user unchanged
// with a freshly issued token.
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), signupTimeout)
	defer cancel()

	id, err := h.verifier.Verify(cctx, req.IDToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			h.prom.ObserveSignup("invalid_token")
			RespondUnauthorized(ctx, "Invalid identity token")
			return
		}
		h.prom.ObserveSignup("error")
		h.log.ErrorContext(cctx, "identity verification failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not verify identity token")
		return
	}

	token, _, err := h.issuer.Issue(id.Email)
	if err != nil {
		h.prom.ObserveSignup("error")
		h.log.ErrorContext(cctx, "issue session token", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not issue session token")
		return
	}

	u, created, err := h.users.FindOrCreate(cctx, id, token)
	if err != nil {
		h.prom.ObserveSignup("error")
		h.log.ErrorContext(cctx, "find or create user", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not sign up user")
		return
	}

	if created {
		h.prom.ObserveSignup("created")
		h.log.InfoContext(cctx, "user created", "user_id", u.ID)
	} else {
		h.prom.ObserveSignup("existing")
	}

	ctx.JSON(http.StatusOK, SignUpResponse{
		Message: "User signed up successfully!",
		User:    SignUpUser{Email: u.Email, Name: u.Name},
		Token:   token,
	})
}
