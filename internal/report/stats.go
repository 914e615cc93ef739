package report

// UserStats are the per-user figures shown on the profile screen.
type UserStats struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	InProgress int `json:"in_progress"`
}

// StatsFor derives statistics for the reports userID submitted under their name.
func StatsFor(reports []Report, userID string) (UserStats, []Report) {
	var (
		stats UserStats
		own   []Report
	)
	for _, r := range reports {
		if !r.OwnedBy(userID) {
			continue
		}
		own = append(own, r)
		stats.Total++
		switch r.Status {
		case StatusResolved:
			stats.Resolved++
		case StatusInProgress:
			stats.InProgress++
		}
	}
	return stats, own
}

// StatusCounts tallies reports per status for the admin dashboard.
func StatusCounts(reports []Report) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, r := range reports {
		counts[r.Status]++
	}
	return counts
}
