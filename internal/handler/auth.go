package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/unit-inventory/internal/config"
	"github.com/iliyamo/unit-inventory/internal/middleware"
	"github.com/iliyamo/unit-inventory/internal/model"
	"github.com/iliyamo/unit-inventory/internal/repository"
	"github.com/iliyamo/unit-inventory/internal/utils"
)

// AuthHandler bundles dependencies for login and staff management.
type AuthHandler struct {
	Cfg   config.Config
	Staff *repository.StaffRepo
	log   *zap.Logger
}

func NewAuthHandler(cfg config.Config, s *repository.StaffRepo, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Cfg: cfg, Staff: s, log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type createStaffReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"` // MANAGER | SALES | EMPLOYEE
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type staffPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
type loginResp struct {
	Staff  staffPart `json:"staff"`
	Access tokenPart `json:"access"`
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Staff.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return c.JSON(http.StatusUnauthorized, apiError{Error: "unauthorized", Message: "invalid credentials"})
		}
		return writeError(c, h.log, err)
	}
	if !s.IsActive || !utils.VerifyPassword(s.PasswordHash, req.Password) {
		h.log.Info("login rejected", zap.Uint64("staff_id", s.ID), zap.Bool("active", s.IsActive))
		return c.JSON(http.StatusUnauthorized, apiError{Error: "unauthorized", Message: "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, s.ID, s.Role, s.Name, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, loginResp{
		Staff:  staffPart{ID: s.ID, Email: s.Email, Name: s.Name, Role: s.Role},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// CreateStaff adds a staff account.  Managers only.
func (h *AuthHandler) CreateStaff(c echo.Context) error {
	var req createStaffReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if req.Email == "" || req.Name == "" {
		return badRequest(c, "email/name required")
	}
	if !model.ValidRole(req.Role) {
		return badRequest(c, "role must be MANAGER, SALES or EMPLOYEE")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Staff.Create(ctx, req.Email, req.Name, req.Password, req.Role, h.Cfg.BcryptCost)
	switch {
	case errors.Is(err, utils.ErrWeakPassword):
		return badRequest(c, "password must be at least 8 characters")
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, apiError{Error: "email_exists", Message: "email already exists"})
	case err != nil:
		return writeError(c, h.log, err)
	}
	h.log.Info("staff created", zap.Uint64("staff_id", id), zap.String("role", req.Role))
	return c.JSON(http.StatusCreated, staffPart{ID: id, Email: req.Email, Name: req.Name, Role: req.Role})
}

// EnsureManager creates the first MANAGER from the bootstrap credentials
// when the staff table is empty.  It is a no-op otherwise.
func EnsureManager(ctx context.Context, cfg config.Config, staff *repository.StaffRepo, log *zap.Logger) error {
	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return nil
	}
	n, err := staff.Count(ctx)
	if err != nil || n > 0 {
		return err
	}
	id, err := staff.Create(ctx, cfg.BootstrapEmail, "Manager", cfg.BootstrapPassword, model.RoleManager, cfg.BcryptCost)
	if err != nil {
		return err
	}
	log.Info("bootstrap manager created", zap.Uint64("staff_id", id))
	return nil
}

// Me returns the authenticated staff member.
func (h *AuthHandler) Me(c echo.Context) error {
	s, err := h.Staff.GetByID(c.Request().Context(), middleware.StaffID(c))
	if err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return c.JSON(http.StatusUnauthorized, apiError{Error: "unauthorized", Message: "staff account no longer exists"})
		}
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, staffPart{ID: s.ID, Email: s.Email, Name: s.Name, Role: s.Role})
}
