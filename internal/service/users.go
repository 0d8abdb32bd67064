package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dan9191/ledger-service/internal/access"
	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/Dan9191/ledger-service/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Register creates a new user with hashed password and opens its default account
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUser,
		IsActive:     true,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.CreateAccount(ctx, &models.Account{
			UserID:   user.ID,
			Name:     models.DefaultAccountName,
			Balance:  decimal.Zero,
			Currency: s.currency(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

func (s *Service) currency() string {
	if s.config != nil && s.config.DefaultCurrency != "" {
		return s.config.DefaultCurrency
	}
	return models.DefaultCurrency
}

// Me returns the principal's own profile
func (s *Service) Me(ctx context.Context, p models.Principal) (*models.User, error) {
	return s.store.GetUserByID(ctx, p.ID)
}

// Disable soft-deletes the principal. Repeated calls are harmless.
func (s *Service) Disable(ctx context.Context, p models.Principal) (*models.User, error) {
	user, err := s.store.SetUserActive(ctx, p.ID, false)
	if err != nil {
		return nil, err
	}
	s.log.Infof("User disabled: %s", user.Email)
	return user, nil
}

// ListUsers returns all users. Admin only.
func (s *Service) ListUsers(ctx context.Context, p models.Principal) ([]models.User, error) {
	if !access.Authorize(p, models.RoleAdmin) {
		return nil, models.ErrForbidden
	}
	return s.store.ListUsers(ctx)
}

// GetUserByEmail looks a user up by e-mail. Admin only.
func (s *Service) GetUserByEmail(ctx context.Context, p models.Principal, email string) (*models.User, error) {
	if !access.Authorize(p, models.RoleAdmin) {
		return nil, models.ErrForbidden
	}
	return s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// DeleteUser hard-deletes a user and its accounts. Admin only.
func (s *Service) DeleteUser(ctx context.Context, p models.Principal, id int64) error {
	if !access.Authorize(p, models.RoleAdmin) {
		return models.ErrForbidden
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Infof("User %d deleted by admin %d", id, p.ID)
	return nil
}

// MyAccount returns the principal's default account
func (s *Service) MyAccount(ctx context.Context, p models.Principal) (*models.Account, error) {
	return s.store.GetAccountByUser(ctx, p.ID)
}

// PromoteAdmins grants ADMIN to the listed users. Unknown e-mails are skipped.
func (s *Service) PromoteAdmins(ctx context.Context, emails []string) error {
	for _, email := range emails {
		user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		if errors.Is(err, models.ErrUserNotFound) {
			s.log.Warnf("Admin %s is not registered, skipping", email)
			continue
		}
		if err != nil {
			return err
		}
		if user.Role == models.RoleAdmin {
			continue
		}
		if err := s.store.SetUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("failed to promote %s: %w", email, err)
		}
		s.log.Infof("User promoted to admin: %s", user.Email)
	}
	return nil
}
