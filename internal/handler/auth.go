package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/config"
	"github.com/iliyamo/vacation-rental-marketplace/internal/middleware"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
	"github.com/iliyamo/vacation-rental-marketplace/internal/utils"
)

// AuthStore is the persistence used by AuthHandler.
type AuthStore interface {
	storage.UserStore
	storage.TokenStore
}

// AuthHandler serves registration, login and token rotation.
type AuthHandler struct {
	cfg   config.AuthConfig
	store AuthStore
	log   *slog.Logger
}

func NewAuthHandler(cfg config.AuthConfig, store AuthStore, log *slog.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, store: store, log: log.With(slog.String("component", "handler/auth"))}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"max=32"`
	// Self-registration may only pick a guest or host account.
	Role string `json:"role" validate:"omitempty,oneof=user owner"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    *model.User `json:"user"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	role := model.Role(req.Role)
	if role == "" {
		role = model.RoleUser
	}
	hash, err := utils.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		return fail(c, h.log, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
		Status:       model.UserActive,
	}
	if err := h.store.CreateUser(ctx, u); err != nil {
		return fail(c, h.log, err)
	}
	h.log.Info("user registered", slog.Uint64("user_id", u.ID), slog.String("role", string(u.Role)))
	return h.issue(c, http.StatusCreated, u)
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return fail(c, h.log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if u.Status != model.UserActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account suspended"})
	}
	return h.issue(c, http.StatusOK, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := withTimeout(c)
	defer cancel()

	userID, err := h.store.ValidateRefresh(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return fail(c, h.log, err)
	}
	u, err := h.store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return fail(c, h.log, err)
	}
	if u.Status != model.UserActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account suspended"})
	}
	if err := h.store.RevokeRefresh(ctx, hash); err != nil {
		return fail(c, h.log, err)
	}
	return h.issue(c, http.StatusOK, u)
}

// Logout revokes the refresh token in the body, or every refresh token of
// the authenticated caller when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := withTimeout(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.store.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
			}
			return fail(c, h.log, err)
		}
		if err := h.store.RevokeRefresh(ctx, hash); err != nil {
			return fail(c, h.log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	if uid, ok := middleware.UserID(c); ok {
		if err := h.store.RevokeAllRefresh(ctx, uid); err != nil {
			return fail(c, h.log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refreshToken"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := middleware.UserID(c)

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.store.GetUserByID(ctx, uid)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) issue(c echo.Context, status int, u *model.User) error {
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, u.ID, string(u.Role), h.cfg.AccessTTLMin)
	if err != nil {
		return fail(c, h.log, err)
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, h.log, err)
	}
	if err := h.store.StoreRefresh(c.Request().Context(), u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(status, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
