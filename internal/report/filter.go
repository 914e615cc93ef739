package report

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Filter names a quick filter offered by the feed and the admin dashboard.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterToday      Filter = "today"
	FilterUrgent     Filter = "urgent"
	FilterResolved   Filter = "resolved"
	FilterUnassigned Filter = "unassigned"
)

// ParseFilter accepts an empty string as FilterAll.
func ParseFilter(raw string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterToday, FilterUrgent, FilterResolved, FilterUnassigned:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown filter %q", ErrInvalidInput, raw)
}

// Match reports whether r passes the filter. now anchors "today" in loc.
func (f Filter) Match(r Report, now time.Time, loc *time.Location) bool {
	switch f {
	case FilterToday:
		if loc == nil {
			loc = time.UTC
		}
		y1, m1, d1 := r.CreatedAt.In(loc).Date()
		y2, m2, d2 := now.In(loc).Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case FilterUrgent:
		return r.Priority.Urgent() && !r.Status.Terminal()
	case FilterResolved:
		return r.Status == StatusResolved
	case FilterUnassigned:
		return r.AssigneeID == nil && !r.Status.Terminal()
	default:
		return true
	}
}

// Apply returns the reports passing f, preserving order.
func (f Filter) Apply(reports []Report, now time.Time, loc *time.Location) []Report {
	if f == FilterAll || f == "" {
		return reports
	}
	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		if f.Match(r, now, loc) {
			out = append(out, r)
		}
	}
	return out
}

// SortNewestFirst orders reports by creation time descending, ties broken by id.
func SortNewestFirst(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
}
