package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/profilehub/internal/cache"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const profileTimeout = 3 * time.Second

type ProfileStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	UpdateProfile(ctx context.Context, email string, patch user.ProfilePatch) (user.User, error)
}

type ProfileHandler struct {
	store    ProfileStore
	cache    cache.ProfileCache
	log      *slog.Logger
	validate *validator.Validate
}

func NewProfileHandler(store ProfileStore, profileCache cache.ProfileCache, log *slog.Logger) *ProfileHandler {
	if profileCache == nil {
		profileCache = cache.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProfileHandler{
		store:    store,
		cache:    profileCache,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ProfileResponse renders unset optional fields as "".
type ProfileResponse struct {
	Email                        string
	Name                         string
	Address                      string
	JobType                      string
	GeneralAvailabilityStartTime string
	GeneralAvailabilityEndTime   string
}

func NewProfileResponse(u user.User) ProfileResponse {
	resp := ProfileResponse{Email: u.Email, Name: u.Name}
	if u.Address != nil {
		resp.Address = *u.Address
	}
	if u.JobType != nil {
		resp.JobType = *u.JobType
	}
	if u.AvailabilityStart != nil {
		resp.GeneralAvailabilityStartTime = u.AvailabilityStart.String()
	}
	if u.AvailabilityEnd != nil {
		resp.GeneralAvailabilityEndTime = u.AvailabilityEnd.String()
	}
	return resp
}

// UpdateProfileRequest fields may each be omitted; omitted and null fields
// keep their stored value.
type UpdateProfileRequest struct {
	Address                      user.Optional[string] `json:"Address"`
	JobType                      user.Optional[string] `json:"JobType"`
	GeneralAvailabilityStartTime user.Optional[string] `json:"GeneralAvailabilityStartTime"`
	GeneralAvailabilityEndTime   user.Optional[string] `json:"GeneralAvailabilityEndTime"`
}

type profileText struct {
	Address *string `json:"Address" validate:"omitnil,max=500"`
	JobType *string `json:"JobType" validate:"omitnil,max=100"`
}

func (h *ProfileHandler) GetProfile(ctx *gin.Context) {
	email, ok := middlewares.EmailFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), profileTimeout)
	defer cancel()

	u, hit, err := h.cache.Get(cctx, email)
	if err != nil {
		h.log.WarnContext(cctx, "profile cache get failed", "err", err)
	}

	if !hit {
		u, err = h.store.GetByEmail(cctx, email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				_ = h.cache.Delete(cctx, email)
				RespondNotFound(ctx, "User not found")
				return
			}
			h.log.ErrorContext(cctx, "get profile", "err", err, "request_id", requestIDFrom(ctx))
			RespondInternal(ctx, "Could not load profile")
			return
		}

		if err := h.cache.Set(cctx, u); err != nil {
			h.log.WarnContext(cctx, "profile cache set failed", "err", err)
		}
	}

	RespondJSONWithETag(ctx, http.StatusOK, NewProfileResponse(u))
}

func (h *ProfileHandler) UpdateProfile(ctx *gin.Context) {
	email, ok := middlewares.EmailFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	var req UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	patch, ok := h.buildPatch(ctx, req)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), profileTimeout)
	defer cancel()

	// nothing to write: confirm the user exists and leave the row alone
	if patch.IsEmpty() {
		if _, err := h.store.GetByEmail(cctx, email); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				RespondNotFound(ctx, "User not found")
				return
			}
			h.log.ErrorContext(cctx, "update profile", "err", err, "request_id", requestIDFrom(ctx))
			RespondInternal(ctx, "Could not update profile")
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"Message": "Profile updated successfully"})
		return
	}

	u, err := h.store.UpdateProfile(cctx, email, patch)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(cctx, "update profile", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not update profile")
		return
	}

	if err := h.cache.Set(cctx, u); err != nil {
		h.log.WarnContext(cctx, "profile cache set failed", "err", err)
		// a stale entry must not outlive the write
		_ = h.cache.Delete(cctx, email)
	}

	ctx.JSON(http.StatusOK, gin.H{"Message": "Profile updated successfully"})
}

// buildPatch validates text lengths and parses the time fields. It writes
// the 400 response itself and reports false on any invalid field.
func (h *ProfileHandler) buildPatch(ctx *gin.Context, req UpdateProfileRequest) (user.ProfilePatch, bool) {
	patch := user.ProfilePatch{
		Address: req.Address,
		JobType: req.JobType,
	}

	text := profileText{}
	if v, ok := req.Address.Get(); ok {
		text.Address = &v
	}
	if v, ok := req.JobType.Get(); ok {
		text.JobType = &v
	}
	if err := h.validate.Struct(text); err != nil {
		RespondBadRequest(ctx, "Invalid request body", parseBindError(err, &text))
		return user.ProfilePatch{}, false
	}

	var fields []FieldError

	parseTime := func(field string, in user.Optional[string]) user.Optional[user.TimeOfDay] {
		raw, ok := in.Get()
		if !ok {
			return user.Optional[user.TimeOfDay]{}
		}
		t, err := user.ParseTimeOfDay(raw)
		if err != nil {
			fields = append(fields, FieldError{
				Field:   field,
				Rule:    "time",
				Message: "must be a time of day formatted HH:MM",
			})
			return user.Optional[user.TimeOfDay]{}
		}
		return user.Some(t)
	}

	patch.AvailabilityStart = parseTime("GeneralAvailabilityStartTime", req.GeneralAvailabilityStartTime)
	patch.AvailabilityEnd = parseTime("GeneralAvailabilityEndTime", req.GeneralAvailabilityEndTime)

	if len(fields) > 0 {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": fields})
		return user.ProfilePatch{}, false
	}

	return patch, true
}
