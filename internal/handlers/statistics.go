package handlers

import (
	"net/http"
	"strconv"
	"time"

	"spendtrack/internal/expenses"
	"spendtrack/internal/models"
)

// Statistics returns the caller's monthly spending breakdown. Year and month
// come from query params and default to the current month.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil {
			year = y
		}
	}
	if monthStr := r.URL.Query().Get("month"); monthStr != "" {
		if m, err := strconv.Atoi(monthStr); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	stats, err := h.expenses.MonthlyStats(user.ID, year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if stats.Categories == nil {
		stats.Categories = []expenses.CategoryStat{}
	}
	if stats.Expenses == nil {
		stats.Expenses = []models.Expense{}
	}

	writeJSON(w, http.StatusOK, stats)
}
