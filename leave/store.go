/*
store.go - Persistence contracts for the leave engine

KEY INTERFACES:
  Directory:    personnel lookup (consumed, not owned)
  BalanceStore: one row per (employee, year), optimistic version column
  RequestStore: leave request rows
  TxStore:      Store plus WithTx for all-or-nothing multi-row writes

CONVENTIONS:
  - Lookups return (nil, nil) when the row does not exist.
  - InsertBalance returns ErrDuplicate when (employee, year) already exists.
  - UpdateBalance writes rec only if the stored version equals
    expectedVersion, then bumps it. Otherwise ErrConcurrentModification.
  - Raw driver errors are returned as-is; services wrap them.

IMPLEMENTATIONS:
  - store/sqlite: database/sql + go-sqlite3
  - store/memory: in-memory for tests and dev
*/
package leave

import "context"

type Directory interface {
	EmployeeByID(ctx context.Context, id string) (*Employee, error)
	EmployeeByUsername(ctx context.Context, username string) (*Employee, error)
}

type BalanceStore interface {
	GetBalance(ctx context.Context, employeeID string, year int) (*BalanceRecord, error)
	GetBalanceByID(ctx context.Context, id string) (*BalanceRecord, error)
	InsertBalance(ctx context.Context, rec BalanceRecord) error
	UpdateBalance(ctx context.Context, rec BalanceRecord, expectedVersion int) error
}

type RequestStore interface {
	InsertRequest(ctx context.Context, r LeaveRequest) error
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)
	ListRequestsByEmployee(ctx context.Context, employeeID string) ([]LeaveRequest, error)
	UpdateRequest(ctx context.Context, r LeaveRequest) error
	DeleteRequest(ctx context.Context, id string) error
}

// Store is everything the services need.
type Store interface {
	Directory
	BalanceStore
	RequestStore
}

// TxStore wraps Store with transaction support.
// If fn returns an error, every write made through the Store passed to fn
// is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
