package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firestation/leave-engine/leave"
)

// persona is one demo firefighter. Hire dates are relative to today so the
// roster always shows the same accrual situations.
type persona struct {
	id       string
	username string
	name     string
	hired    func(today time.Time) time.Time
	note     string
	request  *leave.CreateInput
}

func demoRoster(today time.Time) []persona {
	nextMonth := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return []persona{
		{
			id: "demo-recruit", username: "recruit", name: "Rookie Recruit",
			hired: func(t time.Time) time.Time { return t },
			note:  "hired this month, pro-rated first month",
		},
		{
			id: "demo-midyear", username: "midyear", name: "Mid-Year Hire",
			hired: func(t time.Time) time.Time { return t.AddDate(0, -5, 0) },
			note:  "five months of accrual, emergency capped at 5",
			request: &leave.CreateInput{
				Type: leave.TypeEmergency, StartDate: nextMonth, EndDate: nextMonth,
				Reason: "family emergency",
			},
		},
		{
			id: "demo-veteran", username: "veteran", name: "Station Veteran",
			hired: func(t time.Time) time.Time { return t.AddDate(-8, 0, 0) },
			note:  "full caps, one pending vacation",
			request: &leave.CreateInput{
				Type: leave.TypeVacation, StartDate: nextMonth.AddDate(0, 0, 6), EndDate: nextMonth.AddDate(0, 0, 9),
				Reason: "family trip", Location: "Baguio",
			},
		},
		{
			id: "demo-parent", username: "newparent", name: "New Parent",
			hired: func(t time.Time) time.Time { return t.AddDate(-2, 0, 0) },
			note:  "paternity leave, no balance deducted",
			request: &leave.CreateInput{
				Type: leave.TypePaternity, StartDate: nextMonth, EndDate: nextMonth.AddDate(0, 0, 6),
			},
		},
	}
}

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a demo roster with sample requests",
		Long: `Adds four demo firefighters covering a partial first month, a mid-year
hire, a capped veteran and an untracked paternity leave. Personas that
already exist are skipped, so the command can be re-run.`,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			today := leave.DateOnly(a.clock.Now())
			out := cmd.OutOrStdout()

			for _, p := range demoRoster(today) {
				existing, err := a.store.EmployeeByUsername(ctx, p.username)
				if err != nil {
					return err
				}
				if existing != nil {
					printf(out, "%s %-10s already present\n", yellow("-"), p.username)
					continue
				}

				emp := leave.Employee{ID: p.id, Username: p.username, Name: p.name, HireDate: p.hired(today)}
				if err := a.store.SaveEmployee(ctx, emp); err != nil {
					return fmt.Errorf("seed %s: %w", p.username, err)
				}
				if p.request != nil {
					in := *p.request
					in.EmployeeID = emp.ID
					if _, err := a.requests.Create(ctx, in); err != nil {
						return fmt.Errorf("seed %s request: %w", p.username, err)
					}
				}
				printf(out, "%s %-10s %s\n", green("✓"), p.username, p.note)
			}
			return nil
		}),
	}
}
