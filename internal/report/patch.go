package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// StatusUpdate is the staff primitive: a new status plus an optional assignee.
type StatusUpdate struct {
	Status     Status  `json:"status"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// Patch enumerates exactly which report fields staff may change.
// A nil field is left untouched.
type Patch struct {
	Status        *Status   `json:"status,omitempty"`
	Priority      *Priority `json:"priority,omitempty"`
	AssigneeID    *string   `json:"assignee_id,omitempty"`
	Department    *string   `json:"department,omitempty"`
	InternalNotes *string   `json:"internal_notes,omitempty"`
}

// Patch converts the status update into the general patch form.
// An empty assignee means "leave as is".
func (u StatusUpdate) Patch() Patch {
	st := u.Status
	p := Patch{Status: &st}
	if u.AssigneeID != nil && strings.TrimSpace(*u.AssigneeID) != "" {
		a := strings.TrimSpace(*u.AssigneeID)
		p.AssigneeID = &a
	}
	return p
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.AssigneeID == nil &&
		p.Department == nil && p.InternalNotes == nil
}

// Validate rejects unknown enumeration values and empty patches.
func (p Patch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: patch has no fields", ErrInvalidInput)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *p.Priority)
	}
	return nil
}

// Apply returns r with the patch applied at time now.
// updated_at is always refreshed; resolved_at follows the terminal statuses.
func (p Patch) Apply(r Report, now time.Time) Report {
	out := r.Clone()
	if p.Status != nil {
		prev := out.Status
		out.Status = *p.Status
		switch {
		case out.Status.Terminal() && !prev.Terminal():
			t := now
			out.ResolvedAt = &t
		case !out.Status.Terminal():
			out.ResolvedAt = nil
		}
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.AssigneeID != nil {
		out.AssigneeID = emptyToNil(*p.AssigneeID)
	}
	if p.Department != nil {
		out.Department = emptyToNil(*p.Department)
	}
	if p.InternalNotes != nil {
		out.InternalNotes = emptyToNil(*p.InternalNotes)
	}
	out.UpdatedAt = now
	return out
}

// DecodePatch reads a JSON patch, rejecting unknown fields and trailing data.
func DecodePatch(r io.Reader) (Patch, error) {
	var p Patch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Patch{}, fmt.Errorf("%w: patch body is required", ErrInvalidInput)
		}
		return Patch{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if dec.More() {
		return Patch{}, fmt.Errorf("%w: unexpected data after patch", ErrInvalidInput)
	}
	if err := p.Validate(); err != nil {
		return Patch{}, err
	}
	return p, nil
}

// DecodePatchBytes is DecodePatch over a byte slice.
func DecodePatchBytes(b []byte) (Patch, error) {
	return DecodePatch(bytes.NewReader(b))
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
