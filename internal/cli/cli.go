// Package cli implements tenderctl, a command line view over the tender
// dashboard. The session token is kept in a file between invocations.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"text/tabwriter"
	"time"

	"tender_dashboard/internal/client"
	"tender_dashboard/internal/collection"
	"tender_dashboard/internal/config"
	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/models/user"
	"tender_dashboard/internal/query"
	"tender_dashboard/internal/session"
	"tender_dashboard/internal/storage/postgres"
	"tender_dashboard/internal/storage/redis"

	"github.com/spf13/cobra"
)

type app struct {
	out     io.Writer
	errOut  io.Writer
	cfg     config.Config
	log     *slog.Logger
	closers []io.Closer
	d       *dashboard.Dashboard
}

// NewRootCommand builds the tenderctl command tree writing to out.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "tenderctl",
		Short:         "Browse, compare and moderate tenders from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = sl.New(errOut, cfg.LogLevel)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("api-url", "", "base URL of the tender API")
	flags.Duration("timeout", 0, "timeout of one API request")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("session-file", "", "where the login token is kept")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.registerCommand(),
		a.tendersCommand(),
		a.wishlistCommand(),
		a.compareCommand(),
		a.adminCommand(),
	)
	return root
}

// Execute runs the command tree and reports the exit code.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "Error:", describe(err))
		return 1
	}
	return 0
}

// describe turns an error into the sentence shown to the user.
func describe(err error) string {
	body := errors.HttpErrorOf(err)
	if len(body.Fields) == 0 {
		return body.Reason
	}
	msg := body.Reason
	for _, f := range body.Fields {
		msg += fmt.Sprintf("\n  %s: %s", f.Field, f.Rule)
	}
	return msg
}

// dashboard opens the local dashboard, starting from q. A zero q means the
// configured defaults.
func (a *app) dashboard(q tender.Query) (*dashboard.Dashboard, error) {
	if a.d != nil {
		return a.d, nil
	}
	if q == (tender.Query{}) {
		q = a.cfg.DefaultQuery()
	}

	path := a.cfg.SessionFile
	if path == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	var remarks dashboard.RemarksStore
	if a.cfg.PostgresConn != "" {
		st, err := postgres.New(a.cfg.PostgresConn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st)
		remarks = st
	}

	var cache query.Cache
	if a.cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c, err := redis.New(ctx, a.cfg.RedisAddr, a.cfg.CacheTTL)
		if err != nil {
			a.log.Warn("page cache unavailable", sl.Err(err))
		} else {
			a.closers = append(a.closers, c)
			cache = c
		}
	}

	a.d = dashboard.Local(a.log, session.NewFileStore(path), remarks, cache, dashboard.Options{
		Client:   client.Config{BaseURL: a.cfg.APIBaseURL, Timeout: a.cfg.APITimeout, Debug: a.cfg.LogLevel == "debug"},
		Defaults: q,
		Location: a.cfg.Location(),
	})
	return a.d, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil && a.log != nil {
			a.log.Warn("close failed", sl.Err(err))
		}
	}
	a.closers = nil
}

func (a *app) requireLogin(ctx context.Context, d *dashboard.Dashboard) error {
	if d.Session.IsAuthenticated(ctx) {
		return nil
	}
	return &errors.AuthError{Op: "cli", Status: http.StatusUnauthorized, Message: "not logged in, run `tenderctl login` first"}
}

func (a *app) requireAdmin(ctx context.Context, d *dashboard.Dashboard) error {
	if err := a.requireLogin(ctx, d); err != nil {
		return err
	}
	role, err := d.Session.Verify(ctx)
	if err != nil {
		if errors.IsUnauthorized(err) {
			_ = d.Session.Logout(ctx)
		}
		return err
	}
	if role != user.RoleAdmin {
		return &errors.AuthError{Op: "cli", Status: http.StatusForbidden, Message: "admins only"}
	}
	return nil
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) printNotices(notices []collection.Notice) {
	for _, n := range notices {
		fmt.Fprintln(a.out, n.Message)
	}
}
