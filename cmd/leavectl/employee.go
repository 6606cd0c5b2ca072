package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/firestation/leave-engine/leave"
)

func entitlementCmd(a *app) *cobra.Command {
	var hired, asOf string
	cmd := &cobra.Command{
		Use:   "entitlement",
		Short: "Compute accrued leave for a hire date",
		Example: `  leavectl entitlement --hired 2024-06-16 --as-of 2024-06-20
  leavectl entitlement --hired 2020-01-06`,
		RunE: func(cmd *cobra.Command, args []string) error {
			hire, err := leave.ParseDate(hired)
			if err != nil {
				return fmt.Errorf("--hired: %w", err)
			}
			target := leave.DateOnly(a.clock.Now())
			if asOf != "" {
				if target, err = leave.ParseDate(asOf); err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
			}

			e := leave.ComputeEntitlement(hire, target)
			capped := leave.CappedEntitlement(hire, target)
			out := cmd.OutOrStdout()
			printf(out, "%s %s day(s) as of %s\n", bold("Entitlement:"), e.String(), target.Format(leave.DateLayout))
			printf(out, "  Vacation  %s\n  Sick      %s\n  Emergency %s\n",
				capped.Vacation.StringFixed(3), capped.Sick.StringFixed(3), capped.Emergency.StringFixed(3))
			return nil
		},
	}
	cmd.Flags().StringVar(&hired, "hired", "", "hire date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "target date (YYYY-MM-DD, default today)")
	cmd.MarkFlagRequired("hired")
	return cmd
}

func employeeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employee",
		Short: "Manage the personnel directory",
	}

	var username, name, hired string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an employee",
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			hire, err := leave.ParseDate(hired)
			if err != nil {
				return fmt.Errorf("--hired: %w", err)
			}
			emp := leave.Employee{ID: uuid.NewString(), Username: username, Name: name, HireDate: hire}
			if err := a.store.SaveEmployee(cmd.Context(), emp); err != nil {
				return fmt.Errorf("failed to add employee %s: %w", username, err)
			}
			printf(cmd.OutOrStdout(), "%s Added %s (%s), hired %s\n", green("✓"), emp.Name, emp.Username, hired)
			return nil
		}),
	}
	add.Flags().StringVar(&username, "username", "", "login name")
	add.Flags().StringVar(&name, "name", "", "full name")
	add.Flags().StringVar(&hired, "hired", "", "hire date (YYYY-MM-DD)")
	add.MarkFlagRequired("username")
	add.MarkFlagRequired("name")
	add.MarkFlagRequired("hired")

	list := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			employees, err := a.store.ListEmployees(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, bold("USERNAME\tNAME\tHIRED"))
			for _, e := range employees {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Username, e.Name, e.HireDate.Format(leave.DateLayout))
			}
			return w.Flush()
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}

func balanceCmd(a *app) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "balance <username>",
		Short: "Show stored and available balances",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			emp, err := a.employeeByUsername(cmd, args[0])
			if err != nil {
				return err
			}
			if year == 0 {
				year = a.clock.Now().Year()
			}
			view, err := a.requests.Balances().BalanceView(cmd.Context(), *emp, year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printf(out, "%s %s, %d\n", bold("Balance:"), emp.Name, year)
			if view.Estimated {
				printf(out, "%s store unavailable, showing an estimate\n", yellow("!"))
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tSTORED\tAVAILABLE")
			for _, t := range []leave.LeaveType{leave.TypeVacation, leave.TypeSick, leave.TypeEmergency} {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t, view.Stored.For(t).StringFixed(2), view.Available.For(t).StringFixed(2))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVar(&year, "year", 0, "balance year (default current year)")
	return cmd
}
