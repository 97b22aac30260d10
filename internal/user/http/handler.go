package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/request"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/response"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
)

type UserHandler struct {
	svc        user.Service
	jwtManager *auth.JWTManager
}

func NewUserHandler(svc user.Service, jwtManager *auth.JWTManager) *UserHandler {
	return &UserHandler{
		svc:        svc,
		jwtManager: jwtManager,
	}
}

//
// POST /v1/auth/register
//

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	u, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailAlreadyUsed):
			c.JSON(http.StatusConflict, response.ErrorResponse{Error: "email already used"})
		case errors.Is(err, user.ErrEmailRequired), errors.Is(err, user.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: err.Error()})
		default:
			response.Error(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, NewUserResponse(u))
}

//
// POST /v1/auth/login
//

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	u, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "invalid email or password"})
		case errors.Is(err, user.ErrInactiveUser):
			c.JSON(http.StatusForbidden, response.ErrorResponse{Error: "user is inactive"})
		default:
			response.Error(c, err)
		}
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		User:        NewUserResponse(u),
	})
}

//
// GET /v1/users/me
//

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.svc.GetByID(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "user not found"})
			return
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewUserResponse(u))
}

//
// PATCH /v1/users/:id/role
//

func (h *UserHandler) SetRole(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid user id", err)
		return
	}

	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	ctx := c.Request.Context()

	actor, err := h.svc.GetByID(ctx, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !actor.IsPrivileged() {
		c.JSON(http.StatusForbidden, response.ErrorResponse{Error: "only administrators can change roles"})
		return
	}

	u, err := h.svc.SetRole(ctx, uri.ID, user.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			c.JSON(http.StatusNotFound, response.ErrorResponse{Error: "user not found"})
		case errors.Is(err, user.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: err.Error()})
		default:
			response.Error(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, NewUserResponse(u))
}
