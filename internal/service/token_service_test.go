package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-insights/internal/dto"
	"github.com/noah-isme/gradebook-insights/internal/models"
	appErrors "github.com/noah-isme/gradebook-insights/pkg/errors"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService(nil, TokenConfig{Secret: "secret", Issuer: "gradebook-insights", Expiry: time.Hour})

	issued, err := svc.Issue(dto.TokenRequest{Subject: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), issued.ExpiresIn)

	claims, err := svc.ValidateToken(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestTokenServiceRejects(t *testing.T) {
	svc := NewTokenService(nil, TokenConfig{Secret: "secret", Issuer: "gradebook-insights", Expiry: time.Hour})

	_, err := svc.Issue(dto.TokenRequest{Subject: "x", Role: "JANITOR"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	other := NewTokenService(nil, TokenConfig{Secret: "other", Issuer: "gradebook-insights"})
	issued, err := other.Issue(dto.TokenRequest{Subject: "x", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(issued.AccessToken)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	issued, err = svc.Issue(dto.TokenRequest{Subject: "x", Role: models.RoleAdmin})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(issued.AccessToken)
	assert.Error(t, err)

	foreign := NewTokenService(nil, TokenConfig{Secret: "secret", Issuer: "someone-else"})
	issued, err = foreign.Issue(dto.TokenRequest{Subject: "x", Role: models.RoleAdmin})
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(issued.AccessToken)
	assert.Error(t, err)
}
