package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register creates a user. With organization_name the user becomes the admin of a new
// organization; with invite_token the user joins the inviting organization.
func (h *AuthHandler) Register(c *gin.Context) {
	type RegisterRequest struct {
		Email            string `json:"email" binding:"required"`
		Password         string `json:"password" binding:"required"`
		FirstName        string `json:"first_name" binding:"max=100"`
		LastName         string `json:"last_name" binding:"max=100"`
		OrganizationName string `json:"organization_name"`
		InviteToken      string `json:"invite_token"`
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.authService.Register(services.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		OrganizationName: req.OrganizationName,
		InviteToken:      req.InviteToken,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to register user")
		return
	}

	c.JSON(http.StatusCreated, toAuthResponse(result))
}

// Login authenticates a user and issues a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.authService.Login(services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to login")
		return
	}

	c.JSON(http.StatusOK, toAuthResponse(result))
}

// Profile returns the authenticated user and their organization.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.authService.Profile(userID)
	if err != nil {
		respondServiceError(c, err, "Failed to load profile")
		return
	}

	c.JSON(http.StatusOK, dto.ToProfileDTO(*user))
}

func toAuthResponse(result *services.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.ToUserDTO(*result.User),
	}
}
