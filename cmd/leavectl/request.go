package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/firestation/leave-engine/leave"
)

func requestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "File, change and review leave requests",
	}
	cmd.AddCommand(
		requestCreateCmd(a),
		requestEditCmd(a),
		requestDeleteCmd(a),
		requestListCmd(a),
		requestReviewCmd(a, "approve", leave.StatusApproved),
		requestReviewCmd(a, "reject", leave.StatusRejected),
	)
	return cmd
}

func requestCreateCmd(a *app) *cobra.Command {
	var typ, from, to, reason, location, illness string
	cmd := &cobra.Command{
		Use:     "create <username>",
		Short:   "File a leave request",
		Args:    cobra.ExactArgs(1),
		Example: `  leavectl request create jdelacruz --type Vacation --from 2026-11-02 --to 2026-11-04 --location Baguio`,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			emp, err := a.employeeByUsername(cmd, args[0])
			if err != nil {
				return err
			}
			start, err := leave.ParseDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := leave.ParseDate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			res, err := a.requests.Create(cmd.Context(), leave.CreateInput{
				EmployeeID:  emp.ID,
				Type:        leave.LeaveType(typ),
				StartDate:   start,
				EndDate:     end,
				Reason:      reason,
				Location:    location,
				IllnessType: illness,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			r := res.Request
			printf(out, "%s Filed %s %s, %d day(s) %s to %s\n", green("✓"), r.Type, r.ID, r.Days,
				r.StartDate.Format(leave.DateLayout), r.EndDate.Format(leave.DateLayout))
			if r.BalanceBefore != nil {
				printf(out, "  %s balance %s -> %s\n", r.Type, r.BalanceBefore.StringFixed(2), r.BalanceAfter.StringFixed(2))
			}
			if !res.BalanceSynced {
				printf(out, "%s the balance could not be updated; ask an administrator to reconcile\n", yellow("!"))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&typ, "type", "", "Vacation, Sick, Emergency, Maternity or Paternity")
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	cmd.Flags().StringVar(&location, "location", "", "where the employee can be reached")
	cmd.Flags().StringVar(&illness, "illness", "", "illness type (sick leave)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func requestEditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <request-id>",
		Short: "Change a pending request",
		Args:  cobra.ExactArgs(1),
	}
	flags := cmd.Flags()
	flags.String("type", "", "new leave type")
	flags.String("from", "", "new first day (YYYY-MM-DD)")
	flags.String("to", "", "new last day (YYYY-MM-DD)")
	flags.String("reason", "", "new reason")
	flags.String("location", "", "new location")
	flags.String("illness", "", "new illness type")

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string) error {
		in := leave.EditInput{RequestID: args[0]}
		f := cmd.Flags()
		if f.Changed("type") {
			v, _ := f.GetString("type")
			t := leave.LeaveType(v)
			in.Type = &t
		}
		for _, d := range []struct {
			flag string
			dst  **time.Time
		}{{"from", &in.StartDate}, {"to", &in.EndDate}} {
			if !f.Changed(d.flag) {
				continue
			}
			v, _ := f.GetString(d.flag)
			parsed, err := leave.ParseDate(v)
			if err != nil {
				return fmt.Errorf("--%s: %w", d.flag, err)
			}
			*d.dst = &parsed
		}
		for _, s := range []struct {
			flag string
			dst  **string
		}{{"reason", &in.Reason}, {"location", &in.Location}, {"illness", &in.IllnessType}} {
			if f.Changed(s.flag) {
				v, _ := f.GetString(s.flag)
				*s.dst = &v
			}
		}

		updated, err := a.requests.Edit(cmd.Context(), in)
		if err != nil {
			return err
		}
		printf(cmd.OutOrStdout(), "%s Updated %s: %s, %d day(s) %s to %s\n", green("✓"), updated.ID, updated.Type,
			updated.Days, updated.StartDate.Format(leave.DateLayout), updated.EndDate.Format(leave.DateLayout))
		return nil
	})
	return cmd
}

func requestDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <request-id>",
		Aliases: []string{"withdraw"},
		Short:   "Withdraw a pending request and restore its days",
		Args:    cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			if err := a.requests.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s Withdrew %s\n", green("✓"), args[0])
			return nil
		}),
	}
}

func requestListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <username>",
		Short: "List an employee's requests",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			emp, err := a.employeeByUsername(cmd, args[0])
			if err != nil {
				return err
			}
			requests, err := a.requests.List(cmd.Context(), emp.ID)
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				printf(cmd.OutOrStdout(), "No requests for %s\n", emp.Username)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tFROM\tTO\tDAYS\tSTATUS")
			for _, r := range requests {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.Type,
					r.StartDate.Format(leave.DateLayout), r.EndDate.Format(leave.DateLayout), r.Days, statusColor(r.Status))
			}
			return w.Flush()
		}),
	}
}

func requestReviewCmd(a *app, verb string, to leave.Status) *cobra.Command {
	var reviewer, note string
	cmd := &cobra.Command{
		Use:   verb + " <request-id>",
		Short: fmt.Sprintf("Mark a pending request %s", to),
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			decide := a.reviews.Approve
			if to == leave.StatusRejected {
				decide = a.reviews.Reject
			}
			r, err := decide(cmd.Context(), args[0], reviewer, note)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s %s is now %s\n", green("✓"), r.ID, statusColor(r.Status))
			return nil
		}),
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewing officer")
	cmd.Flags().StringVar(&note, "note", "", "note for the employee")
	cmd.MarkFlagRequired("reviewer")
	return cmd
}
