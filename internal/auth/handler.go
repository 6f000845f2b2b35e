package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
	"github.com/yatri-app/backend/pkg/response"
	"github.com/yatri-app/backend/pkg/utils"
)

// ContextClaims is the gin context key holding the authenticated *Claims.
const ContextClaims = "auth_claims"

const (
	maxDisplayName = 80
	maxBio         = 500
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest is the body for PATCH /profiles/me.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

// SignOutHook runs after a token is revoked.
type SignOutHook func(ctx context.Context, userID uuid.UUID)

// Handler handles auth and profile endpoints.
type Handler struct {
	users  store.UserStore
	jwt    *JWTService
	auth   *Authenticator
	hooks  []SignOutHook
	logger *zap.Logger
}

// NewHandler creates an auth handler. Hooks run on every sign-out.
func NewHandler(users store.UserStore, jwt *JWTService, authn *Authenticator, logger *zap.Logger, hooks ...SignOutHook) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, auth: authn, hooks: hooks, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || len([]rune(name)) > maxDisplayName {
		response.BadRequest(c, "display_name must be 1-80 characters")
		return
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil {
		response.BadRequest(c, "invalid email")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user := &models.User{
		Email:        strings.ToLower(addr.Address),
		PasswordHash: hash,
		DisplayName:  name,
	}
	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Error(c, store.Translate("auth.register", err, "user not found"), "failed to create user")
		return
	}

	token, _, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user.ToProfile()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("login lookup", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, _, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToProfile()})
}

// Logout handles POST /auth/logout. The token stays rejected until it expires
// and the user's live trip chats are closed.
func (h *Handler) Logout(c *gin.Context) {
	claims := c.MustGet(ContextClaims).(*Claims)
	ctx := c.Request.Context()
	if err := h.auth.Revoke(ctx, claims); err != nil {
		h.logger.Error("revoke token", zap.String("user_id", claims.UserID.String()), zap.Error(err))
		response.ServiceUnavailable(c, "Failed to sign out")
		return
	}
	for _, hook := range h.hooks {
		hook(ctx, claims.UserID)
	}
	response.NoContent(c)
}

// Me handles GET /profiles/me.
func (h *Handler) Me(c *gin.Context) {
	claims := c.MustGet(ContextClaims).(*Claims)
	user, err := h.users.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, store.Translate("profiles.me", err, "profile not found"), "Failed to load profile")
		return
	}
	response.OK(c, user.ToProfile())
}

// UpdateMe handles PATCH /profiles/me. Verified status cannot be changed here.
func (h *Handler) UpdateMe(c *gin.Context) {
	claims := c.MustGet(ContextClaims).(*Claims)
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	ctx := c.Request.Context()
	current, err := h.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		response.Error(c, store.Translate("profiles.update", err, "profile not found"), "Failed to update profile")
		return
	}
	name, bio, err := mergeProfile(current, req)
	if err != nil {
		response.Error(c, err, "Failed to update profile")
		return
	}
	user, err := h.users.UpdateProfile(ctx, claims.UserID, name, bio)
	if err != nil {
		response.Error(c, store.Translate("profiles.update", err, "profile not found"), "Failed to update profile")
		return
	}
	response.OK(c, user.ToProfile())
}

func mergeProfile(current *models.User, req UpdateProfileRequest) (string, string, error) {
	name, bio := current.DisplayName, current.Bio
	if req.DisplayName != nil {
		name = strings.TrimSpace(*req.DisplayName)
		if name == "" || len([]rune(name)) > maxDisplayName {
			return "", "", apperr.Validation("display_name must be 1-80 characters")
		}
	}
	if req.Bio != nil {
		bio = strings.TrimSpace(*req.Bio)
		if len([]rune(bio)) > maxBio {
			return "", "", apperr.Validation("bio must be at most 500 characters")
		}
	}
	return name, bio, nil
}
