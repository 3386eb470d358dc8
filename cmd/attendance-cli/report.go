package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/export"
)

type reportOptions struct {
	last           int
	period         string
	date           string
	from           string
	to             string
	students       []string
	class          string
	name           string
	statuses       []string
	onlyLate       bool
	onlyEarly      bool
	excludeExcused bool
	sort           string
	order          string
	page           int
	limit          int
	asJSON         bool
	format         string
	output         string
}

// request maps flags onto the filter the HTTP API accepts.
func (o reportOptions) request() dto.ReportRequest {
	var req dto.ReportRequest
	f := &req.Filter
	f.StudentIDs = o.students
	f.ClassID = strings.TrimSpace(o.class)
	f.StudentName = o.name
	f.Date = strings.TrimSpace(o.date)
	if o.from != "" || o.to != "" {
		f.DateRange = &models.DateRange{From: strings.TrimSpace(o.from), To: strings.TrimSpace(o.to)}
	}
	f.Period = models.ReportPeriod(strings.TrimSpace(o.period))
	f.LastDays = o.last
	for _, s := range o.statuses {
		if s = strings.TrimSpace(s); s != "" {
			f.Statuses = append(f.Statuses, models.AttendanceStatus(strings.ToUpper(s)))
		}
	}
	f.OnlyLate = o.onlyLate
	f.OnlyEarlyDismissal = o.onlyEarly
	if o.excludeExcused {
		include := false
		f.IncludeExcused = &include
	}
	req.Pagination = models.ReportPage{Page: o.page, Limit: o.limit}
	req.Sort = models.ReportSort{Field: o.sort, Order: o.order}
	return req
}

func reportCmd(verbose *bool) *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print an attendance report",
		Long: `Generate an attendance report using the same filter as the web form.
With --format csv or pdf the full filtered report is written to --output instead.`,
		Example: `  attendance-cli report --last 7 --status absent,late
  attendance-cli report --date 2024-03-25 --class 10A --json
  attendance-cli report --period this_month --format pdf --output march.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			req := opts.request()
			if opts.format != "" {
				return writeExport(cmd, a, req, opts)
			}
			report, err := a.reports.Generate(cmd.Context(), req.Filter, req.Pagination, req.Sort)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.last, "last", 0, "Trailing calendar days including today")
	flags.StringVar(&opts.period, "period", "", "today, yesterday, this_week, last_week, this_month or last_month")
	flags.StringVar(&opts.date, "date", "", "Exact date (YYYY-MM-DD)")
	flags.StringVar(&opts.from, "from", "", "Range start (YYYY-MM-DD)")
	flags.StringVar(&opts.to, "to", "", "Range end (YYYY-MM-DD)")
	flags.StringSliceVar(&opts.students, "student", nil, "Student id (repeatable)")
	flags.StringVar(&opts.class, "class", "", "Class id")
	flags.StringVar(&opts.name, "name", "", "Student name substring")
	flags.StringSliceVar(&opts.statuses, "status", nil, "Statuses, comma separated")
	flags.BoolVar(&opts.onlyLate, "only-late", false, "Only late records")
	flags.BoolVar(&opts.onlyEarly, "only-early", false, "Only early dismissals")
	flags.BoolVar(&opts.excludeExcused, "exclude-excused", false, "Drop excused records")
	flags.StringVar(&opts.sort, "sort", "", "name, date, status or grade")
	flags.StringVar(&opts.order, "order", "", "asc or desc")
	flags.IntVar(&opts.page, "page", 0, "Page of student rows")
	flags.IntVar(&opts.limit, "limit", 0, "Student rows per page")
	flags.BoolVarP(&opts.asJSON, "json", "j", false, "Output as JSON")
	flags.StringVar(&opts.format, "format", "", "Render to csv or pdf")
	flags.StringVarP(&opts.output, "output", "o", "", "Output file for --format")
	return cmd
}

func writeExport(cmd *cobra.Command, a *app, req dto.ReportRequest, opts reportOptions) error {
	renderer, err := export.ForFormat(strings.ToLower(opts.format))
	if err != nil {
		return err
	}
	if opts.output == "" {
		return fmt.Errorf("--output is required with --format")
	}
	report, err := a.reports.GenerateAll(cmd.Context(), req.Filter, req.Sort, opts.limit)
	if err != nil {
		return err
	}
	payload, err := renderer.Render(service.ReportDataset(report))
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, payload, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d students to %s\n", len(report.Students), opts.output)
	return nil
}

func printReport(w io.Writer, report *models.ReportResult) error {
	sum := report.Summary
	if sum.DateSpan.Start != "" {
		fmt.Fprintf(w, "Period:     %s to %s (%d days)\n", sum.DateSpan.Start, sum.DateSpan.End, sum.DateSpan.Days)
	} else {
		fmt.Fprintln(w, "Period:     no records")
	}
	fmt.Fprintf(w, "Students:   %d (%d records)\n", sum.TotalStudents, sum.TotalRecords)
	fmt.Fprintf(w, "Attendance: %d%%  late %d%%  absent %d%%  excused %d%%\n\n",
		sum.AttendanceRate, sum.LateRate, sum.AbsenceRate, sum.ExcusedRate)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTUDENT\tDAYS\tPRESENT\tLATE\tABSENT\tEXCUSED\tRATE\tTREND")
	for _, s := range report.Students {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.StudentID, s.StudentName, s.TotalDays, s.PresentDays, s.LateDays, s.AbsentDays, s.ExcusedDays,
			strconv.Itoa(s.AttendanceRate)+"%", s.Trend)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := report.Metadata.Pagination
	fmt.Fprintf(w, "\npage %d of %d (%d students)\n", p.Page, p.TotalPages, p.Total)
	for _, finding := range report.Insights.Findings {
		fmt.Fprintln(w, "- "+finding)
	}
	return nil
}
