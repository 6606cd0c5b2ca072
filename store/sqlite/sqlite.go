/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

KEY TABLES:
  employees:       personnel directory (id, username, hire date)
  leave_balances:  one row per (personnel_id, year), optimistic version column
  leave_requests:  request rows with nullable balance-before/after audit columns

DECIMALS AND DATES:
  Balances are stored as TEXT decimal strings so no precision is lost.
  Calendar dates are stored as YYYY-MM-DD, timestamps as RFC3339.

CONCURRENCY:
  The pool is limited to a single connection. SQLite allows one writer at a
  time anyway, and ":memory:" databases exist per connection, so a second
  connection would see an empty schema. Every statement inside WithTx runs
  on the transaction, never on the pool.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewRequestService(store)

MIGRATION:
  Schema is auto-migrated on New(). NewFromDB skips it for callers that
  manage their own schema (and for sqlmock-driven tests).
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/firestation/leave-engine/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	conn
	db *sql.DB
}

var _ leave.TxStore = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := NewFromDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewFromDB wraps an existing handle without touching the schema.
func NewFromDB(db *sql.DB) *Store {
	return &Store{conn: conn{q: db}, db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_balances (
		id TEXT PRIMARY KEY,
		personnel_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		vacation TEXT NOT NULL,
		sick TEXT NOT NULL,
		emergency TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(personnel_id, year)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		personnel_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		num_days INTEGER NOT NULL CHECK (num_days >= 1),
		status TEXT NOT NULL DEFAULT 'Pending',
		reason TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		illness_type TEXT NOT NULL DEFAULT '',
		balance_record_id TEXT,
		balance_before TEXT,
		balance_after TEXT,
		deducted_type TEXT NOT NULL DEFAULT '',
		deducted_days INTEGER NOT NULL DEFAULT 0,
		reviewed_by TEXT NOT NULL DEFAULT '',
		review_note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_personnel
		ON leave_requests(personnel_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements leave.Store on top of a querier.
type conn struct {
	q querier
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

// SaveEmployee inserts or updates a personnel record.
func (c *conn) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	query := `
		INSERT INTO employees (id, username, name, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			name = excluded.name,
			hire_date = excluded.hire_date
	`
	_, err := c.q.ExecContext(ctx, query,
		emp.ID, emp.Username, emp.Name,
		emp.HireDate.Format(leave.DateLayout),
		time.Now().UTC().Format(time.RFC3339),
	)
	return mapErr(err)
}

func (c *conn) EmployeeByID(ctx context.Context, id string) (*leave.Employee, error) {
	return c.queryEmployee(ctx, "SELECT id, username, name, hire_date FROM employees WHERE id = ?", id)
}

func (c *conn) EmployeeByUsername(ctx context.Context, username string) (*leave.Employee, error) {
	return c.queryEmployee(ctx, "SELECT id, username, name, hire_date FROM employees WHERE username = ?", username)
}

// ListEmployees returns all employees ordered by name.
func (c *conn) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id, username, name, hire_date FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

func (c *conn) queryEmployee(ctx context.Context, query string, arg string) (*leave.Employee, error) {
	emp, err := scanEmployee(c.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return emp, err
}

func scanEmployee(row scanner) (*leave.Employee, error) {
	var emp leave.Employee
	var hireDate string
	if err := row.Scan(&emp.ID, &emp.Username, &emp.Name, &hireDate); err != nil {
		return nil, err
	}
	t, err := leave.ParseDate(hireDate)
	if err != nil {
		return nil, fmt.Errorf("employee %s: bad hire_date %q: %w", emp.ID, hireDate, err)
	}
	emp.HireDate = t
	return &emp, nil
}

// =============================================================================
// BALANCE STORE
// =============================================================================

const balanceColumns = `id, personnel_id, year, vacation, sick, emergency, version, created_at, updated_at`

func (c *conn) GetBalance(ctx context.Context, employeeID string, year int) (*leave.BalanceRecord, error) {
	row := c.q.QueryRowContext(ctx,
		"SELECT "+balanceColumns+" FROM leave_balances WHERE personnel_id = ? AND year = ?",
		employeeID, year)
	return balanceOrNil(scanBalance(row))
}

func (c *conn) GetBalanceByID(ctx context.Context, id string) (*leave.BalanceRecord, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+balanceColumns+" FROM leave_balances WHERE id = ?", id)
	return balanceOrNil(scanBalance(row))
}

func (c *conn) InsertBalance(ctx context.Context, rec leave.BalanceRecord) error {
	if rec.Version == 0 {
		rec.Version = 1
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmployeeID, rec.Year,
		rec.Vacation.String(), rec.Sick.String(), rec.Emergency.String(),
		rec.Version, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	return mapErr(err)
}

// UpdateBalance writes the three balances if the row is still at
// expectedVersion, and bumps the version.
func (c *conn) UpdateBalance(ctx context.Context, rec leave.BalanceRecord, expectedVersion int) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_balances
		SET vacation = ?, sick = ?, emergency = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		rec.Vacation.String(), rec.Sick.String(), rec.Emergency.String(),
		formatTime(rec.UpdatedAt), rec.ID, expectedVersion,
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leave.ErrConcurrentModification
	}
	return nil
}

func scanBalance(row scanner) (*leave.BalanceRecord, error) {
	var (
		rec                       leave.BalanceRecord
		vacation, sick, emergency string
		createdAt, updatedAt      string
	)
	if err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.Year,
		&vacation, &sick, &emergency, &rec.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if rec.Vacation, err = decimal.NewFromString(vacation); err != nil {
		return nil, fmt.Errorf("balance %s: vacation: %w", rec.ID, err)
	}
	if rec.Sick, err = decimal.NewFromString(sick); err != nil {
		return nil, fmt.Errorf("balance %s: sick: %w", rec.ID, err)
	}
	if rec.Emergency, err = decimal.NewFromString(emergency); err != nil {
		return nil, fmt.Errorf("balance %s: emergency: %w", rec.ID, err)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

const requestColumns = `id, personnel_id, leave_type, start_date, end_date, num_days, status,
	reason, location, illness_type, balance_record_id, balance_before, balance_after,
	deducted_type, deducted_days, reviewed_by, review_note, created_at, updated_at`

func (c *conn) InsertRequest(ctx context.Context, r leave.LeaveRequest) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, string(r.Type),
		r.StartDate.Format(leave.DateLayout), r.EndDate.Format(leave.DateLayout),
		r.Days, string(r.Status), r.Reason, r.Location, r.IllnessType,
		nullString(r.BalanceRecordID), nullDecimal(r.BalanceBefore), nullDecimal(r.BalanceAfter),
		string(r.DeductedType), r.DeductedDays, r.ReviewedBy, r.ReviewNote, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return mapErr(err)
}

func (c *conn) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (c *conn) ListRequestsByEmployee(ctx context.Context, employeeID string) ([]leave.LeaveRequest, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE personnel_id = ? ORDER BY start_date ASC, id ASC",
		employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// UpdateRequest rewrites every mutable column of an existing row.
func (c *conn) UpdateRequest(ctx context.Context, r leave.LeaveRequest) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_requests
		SET leave_type = ?, start_date = ?, end_date = ?, num_days = ?, status = ?,
			reason = ?, location = ?, illness_type = ?,
			balance_record_id = ?, balance_before = ?, balance_after = ?,
			deducted_type = ?, deducted_days = ?,
			reviewed_by = ?, review_note = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Type), r.StartDate.Format(leave.DateLayout), r.EndDate.Format(leave.DateLayout),
		r.Days, string(r.Status), r.Reason, r.Location, r.IllnessType,
		nullString(r.BalanceRecordID), nullDecimal(r.BalanceBefore), nullDecimal(r.BalanceAfter),
		string(r.DeductedType), r.DeductedDays,
		r.ReviewedBy, r.ReviewNote, formatTime(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leave.ErrNotFound
	}
	return nil
}

func (c *conn) DeleteRequest(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx, "DELETE FROM leave_requests WHERE id = ?", id)
	return err
}

func scanRequest(row scanner) (*leave.LeaveRequest, error) {
	var (
		r                       leave.LeaveRequest
		leaveType, status       string
		startDate, endDate      string
		recordID, before, after sql.NullString
		deductedType            string
		createdAt, updatedAt    string
		err                     error
	)
	if err := row.Scan(&r.ID, &r.EmployeeID, &leaveType, &startDate, &endDate, &r.Days, &status,
		&r.Reason, &r.Location, &r.IllnessType, &recordID, &before, &after,
		&deductedType, &r.DeductedDays, &r.ReviewedBy, &r.ReviewNote, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	r.Type = leave.LeaveType(leaveType)
	r.Status = leave.Status(status)
	if r.StartDate, err = leave.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("leave request %s: bad start_date %q: %w", r.ID, startDate, err)
	}
	if r.EndDate, err = leave.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("leave request %s: bad end_date %q: %w", r.ID, endDate, err)
	}
	r.DeductedType = leave.LeaveType(deductedType)
	r.BalanceRecordID = recordID.String
	r.BalanceBefore = parseNullDecimal(before)
	r.BalanceAfter = parseNullDecimal(after)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func balanceOrNil(rec *leave.BalanceRecord, err error) (*leave.BalanceRecord, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// mapErr turns unique-key violations into leave.ErrDuplicate.
func mapErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", leave.ErrDuplicate, err)
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
