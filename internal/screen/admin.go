package screen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"civicconnect.org/internal/guard"
	"civicconnect.org/internal/report"
)

// DashboardFilters are the quick filters offered to administrators.
var DashboardFilters = []report.Filter{report.FilterAll, report.FilterUrgent, report.FilterUnassigned, report.FilterToday}

// ErrGuarded is returned when an admin action is attempted without access.
var ErrGuarded = errors.New("admin access required")

// StatusUpdater changes a report's status; *repository.Repository satisfies it.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status report.Status, assignee *string) (report.Report, error)
}

// DashboardView is what the admin dashboard shows.
type DashboardView struct {
	Filter  report.Filter
	Reports []report.Report
	Counts  map[report.Status]int
	Total   int
}

// AdminDashboard runs admin actions behind the admin guard.
type AdminDashboard struct {
	updater StatusUpdater
	loc     *time.Location
}

func NewAdminDashboard(u StatusUpdater, loc *time.Location) *AdminDashboard {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminDashboard{updater: u, loc: loc}
}

// View evaluates the guard and builds the dashboard over rows.
func (a *AdminDashboard) View(s guard.State, rows []report.Report, f report.Filter, now time.Time) (guard.Decision, DashboardView, error) {
	d := guard.Admin(s)
	if !d.Allowed() {
		return d, DashboardView{}, nil
	}
	if !isOneOf(f, DashboardFilters) {
		return d, DashboardView{}, fmt.Errorf("%w: dashboard does not offer filter %q", report.ErrInvalidInput, f)
	}
	return d, DashboardView{
		Filter:  f,
		Reports: f.Apply(rows, now, a.loc),
		Counts:  report.StatusCounts(rows),
		Total:   len(rows),
	}, nil
}

// UpdateStatus checks the guard before anything reaches the backend.
func (a *AdminDashboard) UpdateStatus(ctx context.Context, s guard.State, id string, status report.Status, assignee *string) (report.Report, error) {
	if d := guard.Admin(s); !d.Allowed() {
		return report.Report{}, fmt.Errorf("%w: %s", ErrGuarded, d.Kind)
	}
	if !status.Valid() {
		return report.Report{}, fmt.Errorf("%w: unknown status %q", report.ErrInvalidInput, status)
	}
	return a.updater.UpdateStatus(ctx, id, status, assignee)
}

func RenderDashboard(w io.Writer, v DashboardView, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Admin Dashboard: %d reports\n", v.Total)
	for _, s := range report.Statuses {
		fmt.Fprintf(&b, "  %-13s %d\n", StatusLabel(s), v.Counts[s])
	}
	fmt.Fprintf(&b, "\nFilter: %s (%d)\n", v.Filter, len(v.Reports))

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRIORITY\tSTATUS\tASSIGNEE\tDEPARTMENT\tAGE")
	for _, r := range v.Reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Title, r.Category, r.Priority, StatusLabel(r.Status),
			deref(r.AssigneeID, "unassigned"), deref(r.Department, "-"), TimeAgo(r.CreatedAt, now))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func deref(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
