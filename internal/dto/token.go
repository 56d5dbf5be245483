package dto

import "github.com/noah-isme/gradebook-insights/internal/models"

// TokenRequest asks for a signed development token.
type TokenRequest struct {
	Subject string          `json:"subject" validate:"required"`
	Role    models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
}

// TokenResponse carries a signed access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
