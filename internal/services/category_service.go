package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
)

// DefaultCategories are the shared categories every user can pick from.
var DefaultCategories = []models.Category{
	{Name: "Food & Dining", Color: "#EF4444"},
	{Name: "Transportation", Color: "#F59E0B"},
	{Name: "Shopping", Color: "#8B5CF6"},
	{Name: "Entertainment", Color: "#EC4899"},
	{Name: "Bills & Utilities", Color: "#3B82F6"},
	{Name: "Healthcare", Color: "#10B981"},
	{Name: "Travel", Color: "#06B6D4"},
	{Name: "Education", Color: "#6366F1"},
	{Name: "Other", Color: models.DefaultCategoryColor},
}

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// accessibleCategories scopes a query to the user's own categories plus the
// shared defaults.
func accessibleCategories(userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(user_id = ? OR is_default = ?)", userID, true)
	}
}

// CreateCategory creates a new category owned by the user
func (s *categoryService) CreateCategory(userID, name, color string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if color == "" {
		color = models.DefaultCategoryColor
	}

	if err := s.checkNameAvailable(userID, name, ""); err != nil {
		return nil, err
	}

	category := &models.Category{
		UserID: &userID,
		Name:   name,
		Color:  color,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves a paginated list of the defaults and the user's
// own categories, defaults first.
func (s *categoryService) GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Category{}).Scopes(accessibleCategories(userID))
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Order("is_default DESC, name ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category the user owns or a default
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Scopes(accessibleCategories(userID)).Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// getOwnedCategory loads a category for modification. Defaults are refused.
func (s *categoryService) getOwnedCategory(userID, categoryID string) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.IsDefault {
		return nil, apperrors.ErrDefaultCategory
	}
	if !category.OwnedBy(userID) {
		return nil, apperrors.ErrCategoryNotFound
	}
	return category, nil
}

// UpdateCategory renames or recolors a category the user owns
func (s *categoryService) UpdateCategory(userID, categoryID string, name, color *string) (*models.Category, error) {
	category, err := s.getOwnedCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		if trimmed != category.Name {
			if err := s.checkNameAvailable(userID, trimmed, category.ID); err != nil {
				return nil, err
			}
		}
		updates["name"] = trimmed
	}
	if color != nil && *color != "" {
		updates["color"] = *color
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return category, nil
}

// DeleteCategory deletes a category the user owns. Categories still referenced
// by expenses or budgets are kept.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.getOwnedCategory(userID, categoryID)
	if err != nil {
		return err
	}

	var expenseCount, budgetCount int64
	if err := s.db.Model(&models.Expense{}).Where("category_id = ?", categoryID).Count(&expenseCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.Budget{}).Where("category_id = ?", categoryID).Count(&budgetCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if expenseCount > 0 || budgetCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// EnsureDefaultCategories creates any missing default category. Existing
// defaults are left untouched.
func (s *categoryService) EnsureDefaultCategories() error {
	for _, def := range DefaultCategories {
		var count int64
		if err := s.db.Model(&models.Category{}).
			Where("is_default = ? AND name = ?", true, def.Name).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			continue
		}

		category := &models.Category{Name: def.Name, Color: def.Color, IsDefault: true}
		if err := s.db.Create(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// checkNameAvailable rejects a name already used, ignoring case, by a default
// or another of the user's categories.
func (s *categoryService) checkNameAvailable(userID, name, excludeID string) error {
	query := s.db.Model(&models.Category{}).
		Scopes(accessibleCategories(userID)).
		Where("LOWER(name) = ?", strings.ToLower(name))
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}
