package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/config"
	"github.com/itportfolio/apptrack/internal/repository"
	"github.com/itportfolio/apptrack/internal/uploader"
	"github.com/itportfolio/apptrack/internal/utils"
)

// AuthHandler bundles dependencies for the identity endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Uploader uploader.Uploader
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, up uploader.Uploader) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Uploader: up}
}

// ----- DTOs -----

type registerReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns the identity snapshot with a
// freshly signed token, so clients are logged in immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "full_name, email and password are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, req.FullName, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "email already registered")
		}
		return fail(c, http.StatusInternalServerError, "could not create account")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "user": u, "token": access.Token})
}

// Login verifies credentials and returns the stored identity plus a new
// token. An unknown email is a not-found failure; a wrong password for an
// existing account is unauthorized. Both carry the same generic message so
// the response body never confirms that an email is registered.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "invalid credentials")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u, "token": access.Token})
}

// Me returns the identity the presented token resolved to. Clients use it
// on startup to reconcile their cached snapshot with the server's view.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u})
}

// UpdateProfile overwrites name and email, rehashes the password only when
// a new one was supplied, and forwards an optional avatar file to the asset
// host. The update is deliberately permissive: name/email/password are
// applied first, and an avatar-upload failure afterwards is reported
// without rolling them back.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	fullName := strings.TrimSpace(c.FormValue("full_name"))
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	password := c.FormValue("password")
	if fullName == "" || email == "" {
		return fail(c, http.StatusBadRequest, "full_name and email are required")
	}

	var hashPtr *string
	if password != "" {
		hash, err := utils.HashPassword(password, h.Cfg.BcryptCost)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "could not hash password")
		}
		hashPtr = &hash
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, uid, fullName, email, hashPtr, nil); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "email already registered")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "account not found")
		}
		return fail(c, http.StatusInternalServerError, "update failed")
	}

	if fh, err := c.FormFile("avatar"); err == nil && fh != nil {
		if h.Uploader == nil {
			return fail(c, http.StatusBadGateway, "avatar uploads are not configured")
		}
		src, err := fh.Open()
		if err != nil {
			return fail(c, http.StatusBadRequest, "could not read avatar file")
		}
		defer src.Close()
		url, err := h.Uploader.Upload(c.Request().Context(), fh.Filename, src)
		if err != nil {
			// Name/email/password are already persisted at this point.
			return fail(c, http.StatusBadGateway, "avatar upload failed")
		}
		if err := h.Users.UpdateProfile(ctx, uid, fullName, email, nil, &url); err != nil {
			return fail(c, http.StatusInternalServerError, "could not store avatar url")
		}
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not load profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "profile updated", "user": u})
}
