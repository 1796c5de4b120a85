package cli

import (
	"fmt"

	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/models/user"

	"github.com/spf13/cobra"
)

func (a *app) loginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the token for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			st, err := d.Session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", st.Email, st.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			if err := d.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account, checking the token with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			if !d.Session.IsAuthenticated(ctx) {
				fmt.Fprintln(a.out, "Not logged in")
				return nil
			}
			role, err := d.Session.Verify(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s)\n", d.Session.State(ctx).Email, role)
			return nil
		},
	}
}

func (a *app) registerCommand() *cobra.Command {
	var req user.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Request an account; an admin has to approve it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			if err := d.Session.Register(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Registration submitted. Wait for an admin to approve your account.")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Name, "name", "", "full name")
	flags.StringVar(&req.Email, "email", "", "email address")
	flags.StringVar(&req.Password, "password", "", "password, at least 6 characters")
	flags.StringVar(&req.ConfirmPassword, "confirm-password", "", "the password again")
	flags.StringVar(&req.EmpId, "emp-id", "", "employee id")
	return cmd
}
