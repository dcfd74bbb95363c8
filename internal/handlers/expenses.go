package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"spendtrack/internal/expenses"
	"spendtrack/internal/models"

	"github.com/shopspring/decimal"
)

// expenseRequest is the wire payload for create and update. Pointer fields
// keep "absent" distinguishable from an explicit zero value.
type expenseRequest struct {
	Title    *string          `json:"title"`
	Amount   *decimal.Decimal `json:"amount"`
	Category *string          `json:"category"`
	Date     *string          `json:"date"`
}

// dateLayouts are the accepted date formats, most specific first. Dates are
// taken at face value with no time-zone normalization.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// CreateExpense handles the creation of a new expense owned by the caller.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var in expenses.Input
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Amount != nil {
		in.Amount = *req.Amount
	}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.Date != nil && *req.Date != "" {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Date = date
	}

	expense, err := h.expenses.Add(user.ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

// ListExpenses returns all of the caller's expenses, most recent first.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	list, err := h.expenses.List(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []models.Expense{}
	}

	writeJSON(w, http.StatusOK, list)
}

// UpdateExpense applies a partial update to one of the caller's expenses.
// Omitted fields are left unchanged.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := expenses.Patch{
		Title:    req.Title,
		Amount:   req.Amount,
		Category: req.Category,
	}
	if req.Date != nil && *req.Date != "" {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Date = &date
	}

	expense, err := h.expenses.Update(user.ID, r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, expense)
}

// DeleteExpense removes one of the caller's expenses.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	if err := h.expenses.Delete(user.ID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "expense deleted successfully")
}
