package report

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies the municipal problem a report describes.
type Category string

const (
	CategoryPothole     Category = "pothole"
	CategoryStreetlight Category = "streetlight"
	CategorySanitation  Category = "sanitation"
	CategoryWater       Category = "water"
	CategoryTraffic     Category = "traffic"
	CategorySafety      Category = "safety"
	CategoryCorruption  Category = "corruption"
	CategoryOther       Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryPothole, CategoryStreetlight, CategorySanitation, CategoryWater,
	CategoryTraffic, CategorySafety, CategoryCorruption, CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Priority expresses urgency as chosen by the reporter.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Urgent reports whether the priority is high or critical.
func (p Priority) Urgent() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// Status is the lifecycle stage of a report.
type Status string

const (
	StatusSubmitted    Status = "submitted"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusResolved     Status = "resolved"
	StatusClosed       Status = "closed"
)

// Statuses is ordered by lifecycle stage.
var Statuses = []Status{StatusSubmitted, StatusAcknowledged, StatusInProgress, StatusResolved, StatusClosed}

func (s Status) Valid() bool {
	return s.stage() >= 0
}

// Terminal reports whether the status ends the active lifecycle.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

func (s Status) stage() int {
	for i, v := range Statuses {
		if s == v {
			return i
		}
	}
	return -1
}

// Before reports whether s comes earlier in the lifecycle than other.
func (s Status) Before(other Status) bool {
	return s.stage() < other.stage()
}

// ParseCategory normalises and validates a category string.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
	}
	return c, nil
}

// ParsePriority normalises and validates a priority string.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, raw)
	}
	return p, nil
}

// ParseStatus normalises and validates a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// MediaURLs is stored as a JSON array column.
type MediaURLs []string

func (m MediaURLs) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(m))
}

func (m *MediaURLs) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("media_urls: unsupported type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("media_urls: %w", err)
	}
	if len(out) == 0 {
		out = nil
	}
	*m = out
	return nil
}

// Report is a citizen-submitted record describing a municipal issue.
type Report struct {
	ID              string     `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Category        Category   `json:"category" db:"category"`
	Priority        Priority   `json:"priority" db:"priority"`
	Status          Status     `json:"status" db:"status"`
	LocationAddress string     `json:"location_address" db:"location_address"`
	Latitude        *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64   `json:"longitude,omitempty" db:"longitude"`
	IsAnonymous     bool       `json:"is_anonymous" db:"is_anonymous"`
	UserID          *string    `json:"user_id" db:"user_id"`
	AssigneeID      *string    `json:"assignee_id,omitempty" db:"assignee_id"`
	Department      *string    `json:"department,omitempty" db:"department"`
	InternalNotes   *string    `json:"internal_notes,omitempty" db:"internal_notes"`
	MediaURLs       MediaURLs  `json:"media_urls,omitempty" db:"media_urls"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// OwnedBy reports whether userID submitted r under their own name.
func (r Report) OwnedBy(userID string) bool {
	return userID != "" && r.UserID != nil && *r.UserID == userID
}

// Redacted returns the copy of r that may be shown to other viewers.
// Anonymous reports never expose the owner; internal notes are kept for staff.
func (r Report) Redacted(staff bool) Report {
	out := r
	if out.IsAnonymous {
		out.UserID = nil
	}
	if !staff {
		out.InternalNotes = nil
	}
	if len(r.MediaURLs) > 0 {
		out.MediaURLs = append(MediaURLs(nil), r.MediaURLs...)
	}
	return out
}

// Clone returns a deep copy of r.
func (r Report) Clone() Report {
	out := r
	out.Latitude = cloneFloat(r.Latitude)
	out.Longitude = cloneFloat(r.Longitude)
	out.UserID = cloneString(r.UserID)
	out.AssigneeID = cloneString(r.AssigneeID)
	out.Department = cloneString(r.Department)
	out.InternalNotes = cloneString(r.InternalNotes)
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	if r.MediaURLs != nil {
		out.MediaURLs = append(MediaURLs(nil), r.MediaURLs...)
	}
	return out
}

var (
	ErrNotFound     = errors.New("report: not found")
	ErrInvalidInput = errors.New("report: invalid input")
)

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// StringPtr is a small helper for optional text fields.
func StringPtr(s string) *string { return &s }
