// Auth HTTP handlers - identity and profile surface for the webview
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagekit/sagekit/pkg/service"
)

// AuthHandler handles auth-related HTTP requests
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		auth: auth,
	}
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.GET("/identity", h.Identity)
		auth.POST("/sign_in", h.SignIn)
		auth.POST("/logout", h.Logout)
		auth.GET("/user", h.GetUser)
	}
}

// Identity returns the signed-in identity as last observed
// GET /api/v1/auth/identity
func (h *AuthHandler) Identity(c *gin.Context) {
	info := h.auth.Current()
	c.JSON(http.StatusOK, gin.H{
		"id":            info.ID,
		"expiration":    info.Expiration,
		"authenticated": info.IsAuthenticated(),
	})
}

// SignIn asks the host to begin its sign-in flow
// POST /api/v1/auth/sign_in
func (h *AuthHandler) SignIn(c *gin.Context) {
	if err := h.auth.SignIn(c.Request.Context()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true})
}

// Logout drops the host-side session
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// GetUser returns the signed-in user's profile
// GET /api/v1/auth/user
func (h *AuthHandler) GetUser(c *gin.Context) {
	info, err := h.auth.GetUser(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
