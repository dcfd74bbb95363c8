// Package expenses implements the expense CRUD operations and the ownership
// gate deciding who may read or mutate a record.
package expenses

import (
	"errors"
	"fmt"
	"time"

	"spendtrack/internal/models"
	"spendtrack/internal/storage"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the referenced expense does not exist.
	ErrNotFound = errors.New("expense not found")
	// ErrNotOwner is returned when the caller is not the owner of the
	// referenced expense.
	ErrNotOwner = errors.New("expense belongs to another user")
)

// ValidationError reports a missing required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

// Input is the payload for creating an expense. All fields are required.
type Input struct {
	Title    string
	Amount   decimal.Decimal
	Category string
	Date     time.Time
}

// Patch is the payload for a partial update. Nil fields are left unchanged,
// so an explicit zero amount is distinguishable from an omitted one.
type Patch struct {
	Title    *string
	Amount   *decimal.Decimal
	Category *string
	Date     *time.Time
}

// Stats summarises one calendar month of a user's spending.
type Stats struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Total      decimal.Decimal  `json:"total"`
	Categories []CategoryStat   `json:"categories"`
	Expenses   []models.Expense `json:"expenses"`
}

// CategoryStat is one category's share of a monthly total.
type CategoryStat struct {
	Category   string          `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// Service implements the expense operations for authenticated callers.
type Service struct {
	db *storage.DB
}

// NewService creates an expenses service backed by db.
func NewService(db *storage.DB) *Service {
	return &Service{db: db}
}

// Add creates an expense owned by userID. The owner always comes from the
// verified caller, never from the payload. The amount is persisted as given;
// negative values are accepted.
func (s *Service) Add(userID string, in Input) (*models.Expense, error) {
	switch {
	case in.Title == "":
		return nil, &ValidationError{Field: "title"}
	case in.Amount.IsZero():
		return nil, &ValidationError{Field: "amount"}
	case in.Category == "":
		return nil, &ValidationError{Field: "category"}
	case in.Date.IsZero():
		return nil, &ValidationError{Field: "date"}
	}

	expense, err := s.db.CreateExpense(&models.Expense{
		UserID:   userID,
		Title:    in.Title,
		Amount:   in.Amount,
		Category: in.Category,
		Date:     in.Date,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return expense, nil
}

// List returns all expenses owned by userID, most recent first. The query is
// scoped by owner from the start, so no per-record check is needed.
func (s *Service) List(userID string) ([]models.Expense, error) {
	expenses, err := s.db.ListExpenses(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

// gate loads the expense and checks that userID owns it. Existence is checked
// before ownership, so NotFound is visible to any authenticated caller.
func (s *Service) gate(userID, expenseID string) (*models.Expense, error) {
	expense, err := s.db.GetExpense(expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if expense.UserID != userID {
		return nil, ErrNotOwner
	}
	return expense, nil
}

// Update applies the non-nil fields of patch to an expense owned by userID.
// The owner and ID are immutable.
func (s *Service) Update(userID, expenseID string, patch Patch) (*models.Expense, error) {
	expense, err := s.gate(userID, expenseID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		expense.Title = *patch.Title
	}
	if patch.Amount != nil {
		expense.Amount = *patch.Amount
	}
	if patch.Category != nil {
		expense.Category = *patch.Category
	}
	if patch.Date != nil {
		expense.Date = *patch.Date
	}

	if err := s.db.UpdateExpense(expense); err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	return expense, nil
}

// Delete removes an expense owned by userID. Deleting an already-deleted
// expense yields ErrNotFound.
func (s *Service) Delete(userID, expenseID string) error {
	if _, err := s.gate(userID, expenseID); err != nil {
		return err
	}
	if err := s.db.DeleteExpense(expenseID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

// MonthlyStats aggregates userID's expenses for one calendar month.
func (s *Service) MonthlyStats(userID string, year, month int) (*Stats, error) {
	totals, err := s.db.GetCategoryTotalsByMonth(userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	monthExpenses, err := s.db.GetExpensesByMonth(userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load month: %w", err)
	}

	var total decimal.Decimal
	for _, ct := range totals {
		total = total.Add(ct.Total)
	}

	categories := make([]CategoryStat, 0, len(totals))
	for _, ct := range totals {
		percentage := 0.0
		if total.Sign() > 0 {
			percentage, _ = ct.Total.Div(total).Mul(decimal.NewFromInt(100)).Float64()
		}
		categories = append(categories, CategoryStat{
			Category:   ct.Category,
			Total:      ct.Total,
			Count:      ct.Count,
			Percentage: percentage,
		})
	}

	return &Stats{
		Year:       year,
		Month:      month,
		Total:      total,
		Categories: categories,
		Expenses:   monthExpenses,
	}, nil
}
