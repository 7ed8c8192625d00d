package auth

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/security"
)

type seedTxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type seedMemberRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	CreateTx(tx *gorm.DB, member *models.Member) error
}

// EnsureSeedAdmin creates the configured super-admin account on startup if
// it does not exist. The account goes through the regular member store with
// an Argon2id hash; there is no code-level credential backdoor.
func EnsureSeedAdmin(ctx context.Context, cfg config.AdminSeedConfig, pwCfg config.PasswordConfig, db seedTxRunner, repo seedMemberRepo, logg *logger.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" {
		logg.Info(ctx, "admin seed not configured, skipping")
		return nil
	}
	if cfg.Password == "" {
		return fmt.Errorf("admin seed email set but password missing")
	}
	if err := security.ValidatePasswordStrength(cfg.Password); err != nil {
		return fmt.Errorf("admin seed password: %w", err)
	}

	existing, err := repo.FindByEmail(ctx, email)
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("lookup seed admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := security.HashPassword(cfg.Password, pwCfg)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}

	admin := &models.Member{
		FullName:           cfg.FullName,
		EmailAddress:       email,
		TelephoneNumber:    "n/a",
		ResidentialAddress: "n/a",
		YearOfEntry:        0,
		PasswordHash:       hash,
		Role:               enums.MemberRoleSuperAdmin,
		IsPaid:             true,
		IsActive:           true,
	}
	if err := db.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.CreateTx(tx, admin)
	}); err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}

	logCtx := logg.WithField(ctx, "email", email)
	logg.Info(logCtx, "seed super admin created")
	return nil
}
