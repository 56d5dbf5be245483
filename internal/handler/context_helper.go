package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-insights/internal/middleware"
	"github.com/noah-isme/gradebook-insights/internal/models"
	appErrors "github.com/noah-isme/gradebook-insights/pkg/errors"
	"github.com/noah-isme/gradebook-insights/pkg/response"
)

// requireClaims returns the caller's claims or writes 401.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok || claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}
