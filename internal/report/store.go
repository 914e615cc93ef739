package report

import (
	"context"
	"strings"
	"sync"
	"time"

	"civicconnect.org/internal/ids"
)

// Store is the row contract for the reports collection.
type Store interface {
	// List returns every report, newest first.
	List(ctx context.Context) ([]Report, error)
	Get(ctx context.Context, id string) (Report, error)
	// Insert stores a normalised draft and returns the created row.
	Insert(ctx context.Context, d Draft) (Report, error)
	// Update applies p to the row with the given id and returns the new row.
	Update(ctx context.Context, id string, p Patch) (Report, error)
}

// ChangeOp is the kind of row change carried by a Change.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Change notifies that a row in the reports collection changed.
// Report is optional: some backends only know the id.
type Change struct {
	Op     ChangeOp  `json:"op"`
	ID     string    `json:"id,omitempty"`
	Report *Report   `json:"report,omitempty"`
	At     time.Time `json:"at"`
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu       sync.RWMutex
	rows     map[string]Report
	now      func() time.Time
	onChange func(Change)
}

// MemoryOption configures InMemory.
type MemoryOption func(*InMemory)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) MemoryOption {
	return func(s *InMemory) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithChangeHook registers fn to receive every committed change.
func WithChangeHook(fn func(Change)) MemoryOption {
	return func(s *InMemory) { s.onChange = fn }
}

// NewInMemory creates an empty store.
func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{
		rows: make(map[string]Report),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) List(ctx context.Context) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Report, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	SortNewestFirst(out)
	return out, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[strings.TrimSpace(id)]
	if !ok {
		return Report{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemory) Insert(ctx context.Context, d Draft) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	d, err := d.Normalize()
	if err != nil {
		return Report{}, err
	}
	now := s.now().UTC()
	r := Report{
		ID:              ids.New(),
		Title:           d.Title,
		Description:     d.Description,
		Category:        d.Category,
		Priority:        d.Priority,
		Status:          StatusSubmitted,
		LocationAddress: d.LocationAddress,
		Latitude:        cloneFloat(d.Latitude),
		Longitude:       cloneFloat(d.Longitude),
		IsAnonymous:     d.IsAnonymous,
		UserID:          cloneString(d.UserID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if len(d.MediaURLs) > 0 {
		r.MediaURLs = append(MediaURLs(nil), d.MediaURLs...)
	}

	s.mu.Lock()
	s.rows[r.ID] = r
	s.mu.Unlock()

	s.emit(OpInsert, r)
	return r.Clone(), nil
}

func (s *InMemory) Update(ctx context.Context, id string, p Patch) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	if err := p.Validate(); err != nil {
		return Report{}, err
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	cur, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return Report{}, ErrNotFound
	}
	now := s.now().UTC()
	if !now.After(cur.UpdatedAt) {
		now = cur.UpdatedAt.Add(time.Microsecond)
	}
	next := p.Apply(cur, now)
	s.rows[id] = next
	s.mu.Unlock()

	s.emit(OpUpdate, next)
	return next.Clone(), nil
}

func (s *InMemory) emit(op ChangeOp, r Report) {
	if s.onChange == nil {
		return
	}
	row := r.Clone()
	s.onChange(Change{Op: op, ID: r.ID, Report: &row, At: s.now().UTC()})
}
