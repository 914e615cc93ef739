package screen

import (
	"fmt"
	"io"
	"strings"
	"time"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/guard"
	"civicconnect.org/internal/report"
)

// ProfileView is the signed-in user's page.
type ProfileView struct {
	Identity auth.Identity
	Role     auth.Role
	Stats    report.UserStats
	Reports  []report.Report
}

// Profile evaluates the user guard and, when it renders, builds the view.
func Profile(s guard.State, rows []report.Report) (guard.Decision, ProfileView) {
	d := guard.User(s)
	if !d.Allowed() {
		return d, ProfileView{}
	}
	stats, own := report.StatsFor(rows, s.Identity.ID)
	return d, ProfileView{Identity: *s.Identity, Role: s.Role, Stats: stats, Reports: own}
}

func RenderProfile(w io.Writer, v ProfileView, loc *time.Location) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <%s> [%s]\n", DisplayName(v.Identity), v.Identity.Email, RoleBadge(v.Role))
	fmt.Fprintf(&b, "Reports: %d   Resolved: %d   In progress: %d\n", v.Stats.Total, v.Stats.Resolved, v.Stats.InProgress)
	for _, r := range v.Reports {
		fmt.Fprintf(&b, "  %s %-40s %-12s %s\n", CategoryEmoji(r.Category), r.Title, StatusLabel(r.Status), formatDate(r.CreatedAt, loc))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderDecision prints what a guard decided when it did not render.
func RenderDecision(w io.Writer, d guard.Decision) error {
	var err error
	switch d.Kind {
	case guard.Resolving:
		_, err = fmt.Fprintln(w, "Loading...")
	case guard.Redirecting:
		_, err = fmt.Fprintf(w, "Sign in required (%s). Run `civic auth signin`.\n", d.Target)
	case guard.Denied:
		_, err = fmt.Fprintf(w, "%s\n%s\n", d.Title, d.Message)
	}
	return err
}
