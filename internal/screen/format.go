// Package screen renders the citizen and admin views as plain text and runs
// their actions through the guards.
package screen

import (
	"fmt"
	"strings"
	"time"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/report"
)

const anonymousAuthor = "Anonymous"

var statusLabels = map[report.Status]string{
	report.StatusSubmitted:    "Submitted",
	report.StatusAcknowledged: "Acknowledged",
	report.StatusInProgress:   "In Progress",
	report.StatusResolved:     "Resolved",
	report.StatusClosed:       "Closed",
}

var categoryEmojis = map[report.Category]string{
	report.CategoryPothole:     "🕳️",
	report.CategoryStreetlight: "💡",
	report.CategorySanitation:  "🗑️",
	report.CategoryWater:       "💧",
	report.CategoryTraffic:     "🚦",
	report.CategorySafety:      "⚠️",
	report.CategoryCorruption:  "🚨",
	report.CategoryOther:       "📌",
}

func StatusLabel(s report.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func CategoryEmoji(c report.Category) string {
	return categoryEmojis[c]
}

// RoleBadge is the label shown next to a user's name.
func RoleBadge(r auth.Role) string {
	switch r {
	case auth.RoleAdmin:
		return "Admin"
	case auth.RoleModerator:
		return "Moderator"
	case auth.RoleUser:
		return "Citizen"
	}
	return "Unknown"
}

// DisplayName prefers the profile name and falls back to the email.
func DisplayName(id auth.Identity) string {
	if name := strings.TrimSpace(id.DisplayName); name != "" {
		return name
	}
	return id.Email
}

// TimeAgo renders the coarse relative time used by the feed.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func formatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("January 2, 2006")
}
