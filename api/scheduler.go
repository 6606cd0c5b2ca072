/*
scheduler.go - Year-open balance provisioning

PURPOSE:
  Periodically makes sure every employee has a balance record for the
  current year, so the first dashboard read of January does not have to
  create it and every record of a year is seeded close to the same date.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Goes through BalanceService.GetOrCreateBalance, so existing records are
    left untouched and a race with a request on the same record is safe
  - Remembers the last fully provisioned year and skips until it changes
  - A pass with failures is retried on the next tick

USAGE:
  scheduler := NewProvisioningScheduler(store, requests.Balances(), logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/firestation/leave-engine/leave"
)

// Roster lists every employee.
type Roster interface {
	ListEmployees(ctx context.Context) ([]leave.Employee, error)
}

// ProvisionResult summarizes one provisioning pass.
type ProvisionResult struct {
	Year    int
	Ensured int
	Failed  int
	Skipped bool
}

// ProvisioningScheduler opens balance records at the start of each year.
type ProvisioningScheduler struct {
	Roster        Roster
	Balances      *leave.BalanceService
	Clock         leave.Clock
	CheckInterval time.Duration
	Enabled       bool

	logger   *zap.Logger
	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	passMu   sync.Mutex
	lastYear int
}

func NewProvisioningScheduler(roster Roster, balances *leave.BalanceService, logger *zap.Logger) *ProvisioningScheduler {
	if logger == nil {
		logger = zap.L()
	}
	return &ProvisioningScheduler{
		Roster:        roster,
		Balances:      balances,
		Clock:         leave.SystemClock,
		CheckInterval: time.Hour,
		Enabled:       true,
		logger:        logger.Named("leave.provisioner"),
	}
}

// Start begins the scheduler. It is a no-op when disabled or already running.
func (ps *ProvisioningScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled || ps.CheckInterval <= 0 {
		ps.logger.Info("provisioning scheduler disabled")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)
	go ps.run()

	ps.logger.Info("provisioning scheduler started", zap.Duration("interval", ps.CheckInterval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (ps *ProvisioningScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker == nil {
		return
	}
	ps.ticker.Stop()
	close(ps.stop)
	ps.wg.Wait()
	ps.ticker = nil
	ps.logger.Info("provisioning scheduler stopped")
}

func (ps *ProvisioningScheduler) run() {
	defer ps.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-ps.stop
		cancel()
	}()

	ps.RunNow(ctx)
	for {
		select {
		case <-ps.ticker.C:
			ps.RunNow(ctx)
		case <-ps.stop:
			return
		}
	}
}

// RunNow provisions the current year unless that already succeeded.
func (ps *ProvisioningScheduler) RunNow(ctx context.Context) ProvisionResult {
	ps.passMu.Lock()
	defer ps.passMu.Unlock()

	year := ps.Clock.Now().Year()
	result := ProvisionResult{Year: year}
	if year == ps.lastYear {
		result.Skipped = true
		return result
	}

	employees, err := ps.Roster.ListEmployees(ctx)
	if err != nil {
		ps.logger.Error("provisioning failed: cannot list employees", zap.Int("year", year), zap.Error(err))
		return result
	}

	for _, emp := range employees {
		if ctx.Err() != nil {
			result.Failed += len(employees) - result.Ensured - result.Failed
			break
		}
		if _, err := ps.Balances.GetOrCreateBalance(ctx, emp.ID, emp.HireDate, year); err != nil {
			result.Failed++
			ps.logger.Warn("provisioning failed for employee",
				zap.String("employee_id", emp.ID),
				zap.Int("year", year),
				zap.Error(err),
			)
			continue
		}
		result.Ensured++
	}

	if result.Failed == 0 {
		ps.lastYear = year
	}
	ps.logger.Info("provisioning pass complete",
		zap.Int("year", year),
		zap.Int("ensured", result.Ensured),
		zap.Int("failed", result.Failed),
	)
	return result
}
