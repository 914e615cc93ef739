package report

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultTitle       = "Untitled Report"
	DefaultDescription = "No description provided"

	maxTitleLen       = 200
	maxDescriptionLen = 5000
	maxMediaURLs      = 10
)

// Draft holds the fields a citizen may set when submitting a report.
type Draft struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        Category  `json:"category"`
	Priority        Priority  `json:"priority"`
	LocationAddress string    `json:"location_address"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	IsAnonymous     bool      `json:"is_anonymous"`
	MediaURLs       MediaURLs `json:"media_urls,omitempty"`

	// UserID is filled from the caller's session, never from input.
	UserID *string `json:"-"`
}

// Normalize applies submission defaults and validates enumerations and coordinates.
// Missing text is substituted rather than rejected.
func (d Draft) Normalize() (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = DefaultTitle
	}
	if len(d.Title) > maxTitleLen {
		return Draft{}, fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, maxTitleLen)
	}
	d.Description = strings.TrimSpace(d.Description)
	if d.Description == "" {
		d.Description = DefaultDescription
	}
	if len(d.Description) > maxDescriptionLen {
		return Draft{}, fmt.Errorf("%w: description longer than %d characters", ErrInvalidInput, maxDescriptionLen)
	}
	if d.Category == "" {
		d.Category = CategoryOther
	}
	if !d.Category.Valid() {
		return Draft{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, d.Category)
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if !d.Priority.Valid() {
		return Draft{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, d.Priority)
	}
	d.LocationAddress = strings.TrimSpace(d.LocationAddress)
	if d.Latitude != nil && (math.IsNaN(*d.Latitude) || *d.Latitude < -90 || *d.Latitude > 90) {
		return Draft{}, fmt.Errorf("%w: latitude out of range", ErrInvalidInput)
	}
	if d.Longitude != nil && (math.IsNaN(*d.Longitude) || *d.Longitude < -180 || *d.Longitude > 180) {
		return Draft{}, fmt.Errorf("%w: longitude out of range", ErrInvalidInput)
	}
	if len(d.MediaURLs) > maxMediaURLs {
		return Draft{}, fmt.Errorf("%w: at most %d media attachments", ErrInvalidInput, maxMediaURLs)
	}
	if d.IsAnonymous {
		d.UserID = nil
	}
	return d, nil
}
