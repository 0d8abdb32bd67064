package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Dan9191/ledger-service/internal/models"
)

const maxCategoryName = 50

// CreateCategory adds a category owned by the principal
func (s *Service) CreateCategory(ctx context.Context, p models.Principal, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxCategoryName {
		return nil, models.ErrInvalidCategory
	}

	category := &models.Category{Name: name, UserID: p.ID}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.log.Infof("Category %q created for user %d", name, p.ID)
	return category, nil
}

// ListCategories returns the principal's categories
func (s *Service) ListCategories(ctx context.Context, p models.Principal) ([]models.Category, error) {
	return s.store.ListCategories(ctx, p.ID)
}
