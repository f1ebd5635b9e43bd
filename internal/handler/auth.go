package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/middleware"
	"github.com/iliyamo/ajali/internal/service"
)

// IdentityAPI is the part of service.IdentityService the auth endpoints use.
type IdentityAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Session, error)
	Authenticate(ctx context.Context, email, password string) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	Logout(ctx context.Context, actor *access.Actor, refreshRaw string) error
}

var _ IdentityAPI = (*service.IdentityService)(nil)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Identity IdentityAPI
}

func NewAuthHandler(identity IdentityAPI) *AuthHandler {
	return &AuthHandler{Identity: identity}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResp struct {
	Message          string    `json:"message"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	UserID           string    `json:"user_id"`
	Role             string    `json:"role"`
	User             userJSON  `json:"user"`
}

func toSession(msg string, s service.Session) sessionResp {
	return sessionResp{
		Message:          msg,
		AccessToken:      s.Access.Token,
		AccessExpiresAt:  s.Access.Exp,
		RefreshToken:     s.Refresh.Raw, // raw back to client, only the hash is stored
		RefreshExpiresAt: s.Refresh.Exp,
		UserID:           s.User.ID,
		Role:             s.User.Role,
		User:             toUser(s.User, true),
	}
}

// Register: create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Identity.Register(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toSession("User registered successfully", sess))
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Identity.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSession("Login successful", sess))
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Identity.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSession("Token refreshed", sess))
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when the body has none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Identity.Logout(ctx, middleware.ActorFrom(c), req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Logged out"))
}

// Me returns the signed-in account as loaded by the auth middleware.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return apperr.Unauthorized(apperr.CodeUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUser(u, true)})
}
