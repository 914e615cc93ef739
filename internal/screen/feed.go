package screen

import (
	"fmt"
	"io"
	"strings"
	"time"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/report"
)

// FeedFilters are the quick filters offered by the community feed.
var FeedFilters = []report.Filter{report.FilterAll, report.FilterToday, report.FilterUrgent, report.FilterResolved}

// FeedItem is one card of the feed.
type FeedItem struct {
	Report report.Report
	Author string
	Age    string
}

// Initial is the avatar fallback letter.
func (i FeedItem) Initial() string {
	if i.Author == anonymousAuthor || i.Author == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(i.Author)[:1]))
}

// AuthorIDs lists the owners whose profiles a feed needs.
func AuthorIDs(rows []report.Report) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if r.IsAnonymous || r.UserID == nil || seen[*r.UserID] {
			continue
		}
		seen[*r.UserID] = true
		out = append(out, *r.UserID)
	}
	return out
}

// BuildFeed filters rows (already newest first) and resolves author names.
func BuildFeed(rows []report.Report, profiles map[string]auth.Profile, f report.Filter, now time.Time, loc *time.Location) ([]FeedItem, error) {
	if !isOneOf(f, FeedFilters) {
		return nil, fmt.Errorf("%w: feed does not offer filter %q", report.ErrInvalidInput, f)
	}
	rows = f.Apply(rows, now, loc)
	items := make([]FeedItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, FeedItem{Report: r, Author: authorName(r, profiles), Age: TimeAgo(r.CreatedAt, now)})
	}
	return items, nil
}

func authorName(r report.Report, profiles map[string]auth.Profile) string {
	if r.IsAnonymous || r.UserID == nil {
		return anonymousAuthor
	}
	if p, ok := profiles[*r.UserID]; ok && strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return "Citizen"
}

// RenderFeed prints the community feed.
func RenderFeed(w io.Writer, items []FeedItem, f report.Filter) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Community Feed (%s): %d reports\n", f, len(items))
	if len(items) == 0 {
		b.WriteString("No reports yet.\n")
	}
	for _, it := range items {
		r := it.Report
		b.WriteString("\n")
		fmt.Fprintf(&b, "[%s] %s · %s", it.Initial(), it.Author, it.Age)
		if r.Priority.Urgent() {
			b.WriteString(" · High Priority")
		}
		fmt.Fprintf(&b, " · %s\n", StatusLabel(r.Status))
		fmt.Fprintf(&b, "%s %s\n", CategoryEmoji(r.Category), r.Title)
		fmt.Fprintf(&b, "   %s\n", r.Description)
		if r.LocationAddress != "" {
			fmt.Fprintf(&b, "   📍 %s\n", r.LocationAddress)
		}
		if n := len(r.MediaURLs); n > 0 {
			fmt.Fprintf(&b, "   🖼  %s", r.MediaURLs[0])
			if n > 1 {
				fmt.Fprintf(&b, " (+%d more)", n-1)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "   id: %s\n", r.ID)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func isOneOf(f report.Filter, allowed []report.Filter) bool {
	for _, a := range allowed {
		if f == a {
			return true
		}
	}
	return false
}
