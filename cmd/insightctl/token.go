package main

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gradebook-insights/internal/dto"
	"github.com/noah-isme/gradebook-insights/internal/models"
	"github.com/noah-isme/gradebook-insights/internal/service"
)

var (
	tokenSubject string
	tokenRole    string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "user id placed in the token (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(models.RoleTeacher), "ADMIN, TEACHER or STUDENT")
	_ = tokenCmd.MarkFlagRequired("subject")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed access token for local testing",
	Long: `Sign an access token with JWT_SECRET so the insights API can be called
without an identity provider.

Examples:
  insightctl token --subject teacher-42
  insightctl token --subject ops --role ADMIN`,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadConfig()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	tokens := service.NewTokenService(validator.New(), service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
	resp, err := tokens.Issue(dto.TokenRequest{
		Subject: tokenSubject,
		Role:    models.UserRole(strings.ToUpper(tokenRole)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.AccessToken)
	return nil
}
