/*
main.go - leavectl, the station administrator's command line

PURPOSE:
  Drives the same leave services as the HTTP server directly against the
  SQLite database, for back-office work and demos.

COMMANDS:
  entitlement                     Entitlement calculator
  employee add|list               Personnel directory
  balance <username>              Reconciled balance
  request create|edit|delete|list Request lifecycle
  request approve|reject          Review a pending request
  seed                            Load a demo roster

GLOBAL FLAGS:
  --db         SQLite database path (default: LEAVE_DB_PATH or leave.db)
  --rebalance  Re-deduct balances on edit (default: LEAVE_EDIT_REBALANCE)
  --verbose    Log service activity to stderr

SEE ALSO:
  - config/config.go: Environment variables
*/
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firestation/leave-engine/config"
	"github.com/firestation/leave-engine/leave"
	"github.com/firestation/leave-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg, leave.SystemClock).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("error:"), describe(err))
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the store is open.
type app struct {
	cfg      config.Config
	verbose  bool
	store    *sqlite.Store
	logger   *zap.Logger
	requests *leave.RequestService
	reviews  *leave.ReviewService
	clock    leave.Clock
}

func newRootCmd(cfg config.Config, clock leave.Clock) *cobra.Command {
	a := &app{cfg: cfg, clock: clock}

	root := &cobra.Command{
		Use:           "leavectl",
		Short:         "Manage fire-station leave balances and requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	root.PersistentFlags().BoolVar(&a.cfg.EditRebalance, "rebalance", cfg.EditRebalance, "re-deduct balances when a request is edited")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log service activity to stderr")

	root.AddCommand(entitlementCmd(a))
	root.AddCommand(employeeCmd(a))
	root.AddCommand(balanceCmd(a))
	root.AddCommand(requestCmd(a))
	root.AddCommand(seedCmd(a))
	return root
}

// open connects to the database and builds the services. Commands that
// need no store (entitlement) never call it.
func (a *app) open() error {
	if a.store != nil {
		return nil
	}
	a.logger = zap.NewNop()
	if a.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		a.logger = l
	}

	store, err := sqlite.New(a.cfg.DBPath)
	if err != nil {
		return err
	}
	a.store = store

	opts := []leave.Option{
		leave.WithClock(a.clock),
		leave.WithLogger(a.logger),
		leave.WithEditPolicy(a.cfg.EditPolicy()),
	}
	a.requests = leave.NewRequestService(store, opts...)
	a.reviews = leave.NewReviewService(store, opts...)
	return nil
}

// withStore wraps a RunE so the store is open for its duration.
func (a *app) withStore(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(); err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args)
	}
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	a.logger.Sync()
	err := a.store.Close()
	a.store = nil
	return err
}

// employeeByUsername resolves the username argument most commands take.
func (a *app) employeeByUsername(cmd *cobra.Command, username string) (*leave.Employee, error) {
	emp, err := a.store.EmployeeByUsername(cmd.Context(), username)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, &leave.NotFoundError{Kind: "employee", ID: username}
	}
	return emp, nil
}

// describe renders leave errors with the same text station staff see in
// the dashboard and anything else verbatim.
func describe(err error) string {
	for _, sentinel := range []error{
		leave.ErrInvalidRange, leave.ErrInsufficientBalance, leave.ErrInvalidState,
		leave.ErrNotFound, leave.ErrInvalidType, leave.ErrOperationInFlight,
		leave.ErrConcurrentModification,
	} {
		if errors.Is(err, sentinel) {
			return leave.UserMessage(err)
		}
	}
	return err.Error()
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func statusColor(s leave.Status) string {
	switch s {
	case leave.StatusApproved:
		return green(string(s))
	case leave.StatusRejected:
		return red(string(s))
	default:
		return yellow(string(s))
	}
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
