// Package memory provides an in-memory leave.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/firestation/leave-engine/leave"
)

// Operation names accepted by FailOn.
const (
	OpEmployeeByID       = "EmployeeByID"
	OpEmployeeByUsername = "EmployeeByUsername"
	OpListEmployees      = "ListEmployees"
	OpGetBalance         = "GetBalance"
	OpGetBalanceByID     = "GetBalanceByID"
	OpInsertBalance      = "InsertBalance"
	OpUpdateBalance      = "UpdateBalance"
	OpInsertRequest      = "InsertRequest"
	OpGetRequest         = "GetRequest"
	OpListRequests       = "ListRequestsByEmployee"
	OpUpdateRequest      = "UpdateRequest"
	OpDeleteRequest      = "DeleteRequest"
)

// =============================================================================
// MEMORY STORE - no transactions; writes land immediately
// =============================================================================

type Memory struct {
	mu        sync.Mutex
	employees map[string]leave.Employee
	balances  map[string]leave.BalanceRecord
	requests  map[string]leave.LeaveRequest
	failures  map[string]error
}

var _ leave.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[string]leave.Employee),
		balances:  make(map[string]leave.BalanceRecord),
		requests:  make(map[string]leave.LeaveRequest),
		failures:  make(map[string]error),
	}
}

// SaveEmployee adds or replaces a personnel record. Usernames are unique.
func (m *Memory) SaveEmployee(_ context.Context, emp leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.employees {
		if id != emp.ID && existing.Username == emp.Username {
			return leave.ErrDuplicate
		}
	}
	m.employees[emp.ID] = emp
	return nil
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *Memory) EmployeeByID(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.employeeByIDLocked(id)
}

func (m *Memory) EmployeeByUsername(_ context.Context, username string) (*leave.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.employeeByUsernameLocked(username)
}

// ListEmployees returns every employee ordered by name.
func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[OpListEmployees]; err != nil {
		return nil, err
	}
	employees := make([]leave.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		employees = append(employees, emp)
	}
	sort.Slice(employees, func(i, j int) bool {
		if employees[i].Name != employees[j].Name {
			return employees[i].Name < employees[j].Name
		}
		return employees[i].ID < employees[j].ID
	})
	return employees, nil
}

func (m *Memory) GetBalance(_ context.Context, employeeID string, year int) (*leave.BalanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBalanceLocked(employeeID, year)
}

func (m *Memory) GetBalanceByID(_ context.Context, id string) (*leave.BalanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBalanceByIDLocked(id)
}

func (m *Memory) InsertBalance(_ context.Context, rec leave.BalanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBalanceLocked(rec)
}

func (m *Memory) UpdateBalance(_ context.Context, rec leave.BalanceRecord, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(rec, expectedVersion)
}

func (m *Memory) InsertRequest(_ context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRequestLocked(r)
}

func (m *Memory) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getRequestLocked(id)
}

func (m *Memory) ListRequestsByEmployee(_ context.Context, employeeID string) ([]leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listRequestsLocked(employeeID)
}

func (m *Memory) UpdateRequest(_ context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestLocked(r)
}

func (m *Memory) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRequestLocked(id)
}

// =============================================================================
// LOCKED IMPLEMENTATIONS
// =============================================================================

func (m *Memory) employeeByIDLocked(id string) (*leave.Employee, error) {
	if err := m.failures[OpEmployeeByID]; err != nil {
		return nil, err
	}
	emp, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (m *Memory) employeeByUsernameLocked(username string) (*leave.Employee, error) {
	if err := m.failures[OpEmployeeByUsername]; err != nil {
		return nil, err
	}
	for _, emp := range m.employees {
		if emp.Username == username {
			return &emp, nil
		}
	}
	return nil, nil
}

func (m *Memory) getBalanceLocked(employeeID string, year int) (*leave.BalanceRecord, error) {
	if err := m.failures[OpGetBalance]; err != nil {
		return nil, err
	}
	for _, rec := range m.balances {
		if rec.EmployeeID == employeeID && rec.Year == year {
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *Memory) getBalanceByIDLocked(id string) (*leave.BalanceRecord, error) {
	if err := m.failures[OpGetBalanceByID]; err != nil {
		return nil, err
	}
	rec, ok := m.balances[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) insertBalanceLocked(rec leave.BalanceRecord) error {
	if err := m.failures[OpInsertBalance]; err != nil {
		return err
	}
	if _, ok := m.balances[rec.ID]; ok {
		return leave.ErrDuplicate
	}
	for _, existing := range m.balances {
		if existing.EmployeeID == rec.EmployeeID && existing.Year == rec.Year {
			return leave.ErrDuplicate
		}
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	m.balances[rec.ID] = rec
	return nil
}

func (m *Memory) updateBalanceLocked(rec leave.BalanceRecord, expectedVersion int) error {
	if err := m.failures[OpUpdateBalance]; err != nil {
		return err
	}
	stored, ok := m.balances[rec.ID]
	if !ok || stored.Version != expectedVersion {
		return leave.ErrConcurrentModification
	}
	stored.Balances = rec.Balances
	stored.UpdatedAt = rec.UpdatedAt
	stored.Version = expectedVersion + 1
	m.balances[rec.ID] = stored
	return nil
}

func (m *Memory) insertRequestLocked(r leave.LeaveRequest) error {
	if err := m.failures[OpInsertRequest]; err != nil {
		return err
	}
	if _, ok := m.requests[r.ID]; ok {
		return leave.ErrDuplicate
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) getRequestLocked(id string) (*leave.LeaveRequest, error) {
	if err := m.failures[OpGetRequest]; err != nil {
		return nil, err
	}
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) listRequestsLocked(employeeID string) ([]leave.LeaveRequest, error) {
	if err := m.failures[OpListRequests]; err != nil {
		return nil, err
	}
	var result []leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) updateRequestLocked(r leave.LeaveRequest) error {
	if err := m.failures[OpUpdateRequest]; err != nil {
		return err
	}
	if _, ok := m.requests[r.ID]; !ok {
		return leave.ErrNotFound
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) deleteRequestLocked(id string) error {
	if err := m.failures[OpDeleteRequest]; err != nil {
		return err
	}
	delete(m.requests, id)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

var _ leave.TxStore = (*TxMemory)(nil)

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot that is
// restored if fn fails.
func (tm *TxMemory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	balances map[string]leave.BalanceRecord
	requests map[string]leave.LeaveRequest
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		balances: make(map[string]leave.BalanceRecord, len(tm.balances)),
		requests: make(map[string]leave.LeaveRequest, len(tm.requests)),
	}
	for k, v := range tm.balances {
		s.balances[k] = v
	}
	for k, v := range tm.requests {
		s.requests[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.balances = s.balances
	tm.requests = s.requests
}

// txMemoryView runs under the lock held by WithTx.
type txMemoryView struct {
	parent *Memory
}

func (v *txMemoryView) EmployeeByID(_ context.Context, id string) (*leave.Employee, error) {
	return v.parent.employeeByIDLocked(id)
}

func (v *txMemoryView) EmployeeByUsername(_ context.Context, username string) (*leave.Employee, error) {
	return v.parent.employeeByUsernameLocked(username)
}

func (v *txMemoryView) GetBalance(_ context.Context, employeeID string, year int) (*leave.BalanceRecord, error) {
	return v.parent.getBalanceLocked(employeeID, year)
}

func (v *txMemoryView) GetBalanceByID(_ context.Context, id string) (*leave.BalanceRecord, error) {
	return v.parent.getBalanceByIDLocked(id)
}

func (v *txMemoryView) InsertBalance(_ context.Context, rec leave.BalanceRecord) error {
	return v.parent.insertBalanceLocked(rec)
}

func (v *txMemoryView) UpdateBalance(_ context.Context, rec leave.BalanceRecord, expectedVersion int) error {
	return v.parent.updateBalanceLocked(rec, expectedVersion)
}

func (v *txMemoryView) InsertRequest(_ context.Context, r leave.LeaveRequest) error {
	return v.parent.insertRequestLocked(r)
}

func (v *txMemoryView) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	return v.parent.getRequestLocked(id)
}

func (v *txMemoryView) ListRequestsByEmployee(_ context.Context, employeeID string) ([]leave.LeaveRequest, error) {
	return v.parent.listRequestsLocked(employeeID)
}

func (v *txMemoryView) UpdateRequest(_ context.Context, r leave.LeaveRequest) error {
	return v.parent.updateRequestLocked(r)
}

func (v *txMemoryView) DeleteRequest(_ context.Context, id string) error {
	return v.parent.deleteRequestLocked(id)
}
