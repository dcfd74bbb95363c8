package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"spendtrack/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a uniqueness constraint
	// (username, email or google id) is violated.
	ErrDuplicate = errors.New("record already exists")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			google_id TEXT UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			amount TEXT NOT NULL,
			category TEXT NOT NULL,
			date DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_user_date ON expenses(user_id, date)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user. A missing ID is generated. Returns
// ErrDuplicate when username, email or google id is already taken.
func (db *DB) CreateUser(u *models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	// Empty google id is stored as NULL so the unique index only applies
	// to linked accounts.
	var googleID sql.NullString
	if u.GoogleID != "" {
		googleID = sql.NullString{String: u.GoogleID, Valid: true}
	}

	_, err := db.conn.Exec(
		"INSERT INTO users (id, username, email, password_hash, google_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Username, u.Email, u.PasswordHash, googleID, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, u.Username)
		}
		return nil, err
	}

	return db.GetUserByID(u.ID)
}

const userColumns = "id, username, email, password_hash, google_id, created_at"

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var googleID sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &googleID, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.GoogleID = googleID.String
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(id string) (*models.User, error) {
	return db.scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE id = ?", id,
	))
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	return db.scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE username = ?", username,
	))
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	return db.scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE email = ?", email,
	))
}

// GetUserByGoogleID retrieves a user by its linked Google identifier.
func (db *DB) GetUserByGoogleID(googleID string) (*models.User, error) {
	return db.scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE google_id = ?", googleID,
	))
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

const expenseColumns = "id, user_id, title, amount, category, date"

// CreateExpense inserts a new expense. A missing ID is generated.
// Amounts are stored as decimal text so they round-trip exactly.
func (db *DB) CreateExpense(e *models.Expense) (*models.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}

	_, err := db.conn.Exec(
		"INSERT INTO expenses (id, user_id, title, amount, category, date) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.UserID, e.Title, e.Amount.String(), e.Category, e.Date,
	)
	if err != nil {
		return nil, err
	}

	return db.GetExpense(e.ID)
}

func scanExpense(scan func(dest ...any) error) (*models.Expense, error) {
	var e models.Expense
	var amount string
	if err := scan(&e.ID, &e.UserID, &e.Title, &amount, &e.Category, &e.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for expense %s: %w", e.ID, err)
	}
	e.Amount = dec
	return &e, nil
}

// GetExpense retrieves a single expense by ID, regardless of owner.
// Ownership is the caller's concern.
func (db *DB) GetExpense(id string) (*models.Expense, error) {
	row := db.conn.QueryRow(
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id,
	)
	return scanExpense(row.Scan)
}

func (db *DB) queryExpenses(query string, args ...any) ([]models.Expense, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows.Scan)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}

	return expenses, rows.Err()
}

// ListExpenses retrieves all expenses owned by userID, ordered by date
// descending.
func (db *DB) ListExpenses(userID string) ([]models.Expense, error) {
	return db.queryExpenses(
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? ORDER BY date DESC",
		userID,
	)
}

// GetExpensesByMonth retrieves userID's expenses within the given calendar
// month, ordered by date descending.
func (db *DB) GetExpensesByMonth(userID string, year, month int) ([]models.Expense, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return db.queryExpenses(
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? AND date >= ? AND date < ? ORDER BY date DESC",
		userID, start, end,
	)
}

// GetCategoryTotalsByMonth aggregates userID's spending per category for the
// given calendar month, largest total first. Totals are summed in Go because
// amounts are stored as decimal text.
func (db *DB) GetCategoryTotalsByMonth(userID string, year, month int) ([]models.CategoryTotal, error) {
	expenses, err := db.GetExpensesByMonth(userID, year, month)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*models.CategoryTotal)
	for _, e := range expenses {
		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &models.CategoryTotal{Category: e.Category}
			byCategory[e.Category] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
	}

	totals := make([]models.CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		totals = append(totals, *ct)
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].Total.Equal(totals[j].Total) {
			return totals[i].Total.GreaterThan(totals[j].Total)
		}
		return totals[i].Category < totals[j].Category
	})

	return totals, nil
}

// UpdateExpense overwrites the mutable fields of an existing expense.
// The owner and ID are never touched.
func (db *DB) UpdateExpense(e *models.Expense) error {
	res, err := db.conn.Exec(
		"UPDATE expenses SET title = ?, amount = ?, category = ?, date = ? WHERE id = ?",
		e.Title, e.Amount.String(), e.Category, e.Date, e.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpense removes an expense by ID. Returns ErrNotFound if no row
// was deleted.
func (db *DB) DeleteExpense(id string) error {
	res, err := db.conn.Exec("DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
