package cli

import (
	"fmt"
	"strings"

	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/viewmodel"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// queryFlags are the list controls shared by list and search.
type queryFlags struct {
	page     string
	quantity string
	sortBy   string
	sorting  string
}

func (f *queryFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.page, "page", "1", "page number")
	fs.StringVar(&f.quantity, "quantity", "", "tenders per page")
	fs.StringVar(&f.sortBy, "sort-by", "", "sort field: "+sortFieldList())
	fs.StringVar(&f.sorting, "sorting", "", "asc or desc")
}

func sortFieldList() string {
	fields := tender.SortFields()
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// query builds the starting query. Page and quantity take the leading
// integer of what was typed and are never below 1.
func (f *queryFlags) query(a *app) (tender.Query, error) {
	q := a.cfg.DefaultQuery()
	q.Page = tender.ParsePositive(f.page)
	if f.quantity != "" {
		q.Quantity = tender.ParsePositive(f.quantity)
	}
	if f.sortBy != "" {
		field, err := tender.ParseSortField(f.sortBy)
		if err != nil {
			return tender.Query{}, err
		}
		q.SortBy = field
	}
	if f.sorting != "" {
		dir, err := tender.ParseSortDirection(f.sorting)
		if err != nil {
			return tender.Query{}, err
		}
		q.Sorting = dir
	}
	return q, nil
}

func (a *app) tendersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tenders",
		Aliases: []string{"t"},
		Short:   "Browse tenders",
	}
	cmd.AddCommand(a.tendersListCommand(), a.tendersSearchCommand(), a.highlightsCommand(), a.showCommand())
	return cmd
}

func (a *app) tendersListCommand() *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of tenders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.query(a)
			if err != nil {
				return err
			}
			d, err := a.dashboard(q)
			if err != nil {
				return err
			}
			if err := d.Tenders.Load(cmd.Context()); err != nil {
				return err
			}
			a.printPage(d.Format, d.Tenders.Query(), d.Tenders.Tenders())
			return nil
		},
	}
	qf.register(cmd.Flags())
	return cmd
}

func (a *app) tendersSearchCommand() *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "search TERM",
		Short: "Search tenders by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query(a)
			if err != nil {
				return err
			}
			d, err := a.dashboard(q)
			if err != nil {
				return err
			}
			d.Tenders.SetSearchTerm(strings.Join(args, " "))
			if err := d.Tenders.Search(cmd.Context()); err != nil {
				return err
			}
			a.printPage(d.Format, d.Tenders.Query(), d.Tenders.Tenders())
			return nil
		},
	}
	qf.register(cmd.Flags())
	return cmd
}

func (a *app) printPage(f viewmodel.Formatter, q tender.Query, tenders []tender.Tender) {
	if len(tenders) == 0 {
		fmt.Fprintln(a.out, "No tenders found")
		return
	}
	a.printSummaries(f.SummarizeAll(tenders))
	fmt.Fprintf(a.out, "\nPage %d, %d per page, sorted by %s %s\n", q.Page, q.Quantity, q.SortBy, q.Sorting)
}

func (a *app) printSummaries(summaries []viewmodel.Summary) {
	tw := a.table()
	fmt.Fprintln(tw, "ID\tTITLE\tREFERENCE\tVALUE\tENDS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Title, s.ReferenceNumber, s.Value, s.EndDate)
	}
	tw.Flush()
}

func (a *app) highlightsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "highlights",
		Short: "Show tenders reaching their deadline, the best valued ones, and tenders by works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			h, err := d.Highlights(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, "Reaching deadline")
			a.printSummaries(d.Format.SummarizeAll(h.ReachingDeadline))
			fmt.Fprintln(a.out, "\nBest valued")
			a.printSummaries(d.Format.SummarizeAll(h.BestValued))
			for _, g := range h.ByWorks {
				fmt.Fprintf(a.out, "\n%s (%d)\n", g.Name, g.Count)
				a.printSummaries(d.Format.SummarizeAll(g.Docs))
			}
			return nil
		},
	}
}

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show every attribute of a tender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.dashboard(tender.Query{})
			if err != nil {
				return err
			}
			if err := d.Tenders.Load(ctx); err != nil {
				return err
			}
			t, attrs, err := d.Detail(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, d.Format.Summarize(t).Title)
			tw := a.table()
			for _, attr := range attrs {
				fmt.Fprintf(tw, "%s\t%s\n", attr.Label, attr.Value)
			}
			tw.Flush()
			if url := t.URL(); url != "" {
				fmt.Fprintf(a.out, "\n%s\n", url)
			}
			return nil
		},
	}
}
