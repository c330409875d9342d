package auth

import (
	"context"
	"errors"
	"log"

	"github.com/shoplite/auth-service/internal/model"
	"github.com/shoplite/auth-service/internal/repository"
)

// EnsureSuperadmin creates the bootstrap superadmin account on first
// startup. No-op when the email is empty (seeding disabled) or the
// account already exists. Admin endpoints are role-gated, so without
// this seed there would be no way to create the first admin.
func (s *Service) EnsureSuperadmin(ctx context.Context, name, email, password string) error {
	if email == "" {
		return nil
	}
	email = normalizeEmail(email)
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if _, err := s.store.Create(ctx, model.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleSuperadmin,
		IsVerified:   true,
	}); err != nil {
		return err
	}
	log.Printf("seed: superadmin account %s created; change the default password", email)
	return nil
}
