package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"expensetracker/internal/budget"
	"expensetracker/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Today is the date the fixed test clock reports.
var Today = budget.Date(2024, time.January, 20)

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category owned by userID.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: &userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Color:  models.DefaultCategoryColor,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateDefaultCategory creates a shared system category.
func CreateDefaultCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:      name,
		Color:     models.DefaultCategoryColor,
		IsDefault: true,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create default category: %v", err)
	}
	return category
}

// CreateTestExpense creates an expense of the given amount on date.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID, categoryID, amount string, date time.Time) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		UserID:      userID,
		CategoryID:  categoryID,
		Amount:      decimal.RequireFromString(amount),
		Description: fmt.Sprintf("Test Expense %d", nextID()),
		Date:        budget.DateOf(date),
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// CreateTestBudget creates a monthly budget for January 2024.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID, categoryID, amount string) *models.Budget {
	t.Helper()
	return CreateTestBudgetForWindow(t, db, userID, categoryID, amount, budget.Monthly,
		budget.Date(2024, time.January, 1), budget.Date(2024, time.January, 31))
}

// CreateTestBudgetForWindow creates a budget with explicit dates.
func CreateTestBudgetForWindow(t *testing.T, db *gorm.DB, userID, categoryID, amount string,
	periodType budget.PeriodType, start, end time.Time,
) *models.Budget {
	t.Helper()

	b := &models.Budget{
		UserID:     userID,
		CategoryID: categoryID,
		Amount:     decimal.RequireFromString(amount),
		PeriodType: periodType,
		StartDate:  start,
		EndDate:    end,
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return b
}
