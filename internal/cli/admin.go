package cli

import (
	"context"
	"fmt"
	"strings"

	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/models/user"

	"github.com/spf13/cobra"
)

// adminRun wraps an admin action: the session must verify as admin first.
func (a *app) adminRun(fn func(ctx context.Context, d *dashboard.Dashboard, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := a.dashboard(tender.Query{})
		if err != nil {
			return err
		}
		if err := a.requireAdmin(ctx, d); err != nil {
			return err
		}
		return fn(ctx, d, args)
	}
}

func (a *app) adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Approve users and hide tenders (admins only)",
	}

	pending := &cobra.Command{
		Use:   "pending",
		Short: "List users waiting for approval",
		Args:  cobra.NoArgs,
		RunE: a.adminRun(func(ctx context.Context, d *dashboard.Dashboard, _ []string) error {
			users, err := d.Admin.ListPendingUsers(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(a.out, "No users are waiting for approval")
				return nil
			}
			tw := a.table()
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Id, u.Name, u.Email)
			}
			return tw.Flush()
		}),
	}

	var role string
	approve := &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a pending user as employee or admin",
		Args:  cobra.ExactArgs(1),
		RunE: a.adminRun(func(ctx context.Context, d *dashboard.Dashboard, args []string) error {
			r, err := user.ParseApprovalRole(role)
			if err != nil {
				return errors.NewValidationError(err.Error())
			}
			if err := d.Admin.Approve(ctx, args[0], r); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Approved %s as %s\n", args[0], r)
			return nil
		}),
	}
	approve.Flags().StringVar(&role, "role", "employee", "employee or admin")

	reject := &cobra.Command{
		Use:   "reject ID",
		Short: "Reject a pending user or remove an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: a.adminRun(func(ctx context.Context, d *dashboard.Dashboard, args []string) error {
			if err := d.Admin.Reject(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s\n", args[0])
			return nil
		}),
	}

	users := &cobra.Command{
		Use:   "users TERM",
		Short: "Search users by name or email",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.adminRun(func(ctx context.Context, d *dashboard.Dashboard, args []string) error {
			found, err := d.Admin.SearchUsers(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(a.out, "No users found")
				return nil
			}
			tw := a.table()
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
			for _, u := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Id, u.Name, u.Email, u.Role)
			}
			return tw.Flush()
		}),
	}

	hide := &cobra.Command{
		Use:   "hide ID",
		Short: "Hide a tender from every list",
		Args:  cobra.ExactArgs(1),
		RunE: a.adminRun(func(ctx context.Context, d *dashboard.Dashboard, args []string) error {
			if err := d.Admin.HideTender(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Tender %s is hidden\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(pending, approve, reject, users, hide)
	return cmd
}
