package handler

import (
	"net/http"

	"asyncops/internal/logger"
	"asyncops/internal/middleware"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

func NewAuthHandler(auth *service.AuthService, users *service.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !bind(c, &req) {
		return
	}
	u, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	logger.Info("register.ok", "uid", u.ID, "email", u.Email)
	c.JSON(http.StatusCreated, u)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !bind(c, &req) {
		return
	}
	u, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logger.Warn("login.failed", "email", req.Email)
		fail(c, err)
		return
	}
	logger.Info("login.ok", "uid", u.ID, "role", u.Role)
	c.JSON(http.StatusOK, model.LoginResponse{AccessToken: token, TokenType: "bearer", User: *u})
}

// GET /api/auth/me, GET /api/users/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// PATCH /api/users/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req model.UserUpdateRequest
	if !bind(c, &req) {
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// POST /api/users/me/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req model.PasswordChangeRequest
	if !bind(c, &req) {
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), middleware.CurrentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/users/for-assignment
func (h *AuthHandler) ForAssignment(c *gin.Context) {
	users, err := h.users.ForAssignment(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, users)
}

// GET /api/users (admin)
func (h *AuthHandler) ListUsers(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	f := service.UserFilter{Role: c.Query("role"), Search: c.Query("search"), PageQuery: q}
	users, total, err := h.users.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page(users, total, q))
}

// GET /api/users/:id (admin)
func (h *AuthHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
