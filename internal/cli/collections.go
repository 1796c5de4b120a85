package cli

import (
	"fmt"
	"os"
	"strings"

	"tender_dashboard/internal/export"
	"tender_dashboard/internal/models/tender"

	"github.com/spf13/cobra"
)

func (a *app) wishlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wishlist",
		Aliases: []string{"w"},
		Short:   "Show or change the wishlist",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List wishlisted tenders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			if err := a.requireLogin(ctx, d); err != nil {
				return err
			}
			if err := d.Wishlist.Load(ctx); err != nil {
				return err
			}
			items := d.Wishlist.Items()
			if len(items) == 0 {
				fmt.Fprintln(a.out, "Your wishlist is empty")
				return nil
			}
			a.printSummaries(d.Format.SummarizeAll(items))
			return nil
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle ID...",
		Short: "Add a tender to the wishlist, or remove it if it is there",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			for _, id := range args {
				_, err := d.ToggleWishlist(ctx, id)
				a.printNotices(d.Inbox.Drain())
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(list, toggle)
	return cmd
}

func (a *app) compareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compare",
		Aliases: []string{"c"},
		Short:   "Compare tenders side by side",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the comparison table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			table, err := d.ComparisonTable(cmd.Context())
			if err != nil {
				return err
			}
			if table.Empty() {
				fmt.Fprintln(a.out, "Your comparison list is empty")
				return nil
			}

			tw := a.table()
			header := append([]string{"ASPECT"}, table.Headers...)
			if table.WithRemarks {
				header = append(header, "REMARKS")
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for _, row := range table.Rows {
				cells := append([]string{row.Label}, row.Cells...)
				if table.WithRemarks {
					cells = append(cells, row.Remark)
				}
				fmt.Fprintln(tw, strings.Join(cells, "\t"))
			}
			return tw.Flush()
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle ID...",
		Short: "Add a tender to the comparison list, or remove it if it is there",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			for _, id := range args {
				_, err := d.ToggleComparison(ctx, id)
				a.printNotices(d.Inbox.Drain())
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every tender from the comparison list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			if err := a.requireLogin(ctx, d); err != nil {
				return err
			}
			err = d.ClearComparison(ctx)
			a.printNotices(d.Inbox.Drain())
			return err
		},
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the comparison table as a PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			if _, err := d.ComparisonTable(ctx); err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := d.ExportPDF(ctx, f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s\n", output)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", export.FileName, "PDF file to write")

	cmd.AddCommand(list, toggle, clearCmd, exportCmd)
	return cmd
}
