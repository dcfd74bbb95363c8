package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as plain JSON numbers, matching the API the
	// browser client already speaks.
	decimal.MarshalJSONWithoutQuotes = true
}

// User represents a registered account. An account authenticates with a
// password, a linked Google identity, or both; PasswordHash and GoogleID are
// each optional but never both absent.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expense represents a single financial entry. UserID is the owning account,
// set at creation and immutable thereafter.
type Expense struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     time.Time       `json:"date"`
}

// CategoryTotal aggregates spending for one category within a month.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}
