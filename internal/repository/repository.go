// Package repository keeps a per-view copy of the reports collection in sync
// with the backend.
package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/report"
)

const (
	MsgLoadFailed    = "Failed to load reports"
	MsgSubmitted     = "Report submitted successfully"
	MsgSubmitFailed  = "Failed to submit report"
	MsgStatusUpdated = "Report status updated"
	MsgUpdateFailed  = "Failed to update report status"
)

// Backend is the row and change-stream surface the repository needs.
type Backend interface {
	ListReports(ctx context.Context) ([]report.Report, error)
	GetReport(ctx context.Context, id string) (report.Report, error)
	InsertReport(ctx context.Context, d report.Draft) (report.Report, error)
	UpdateStatus(ctx context.Context, id string, u report.StatusUpdate) (report.Report, error)
	Subscribe(ctx context.Context) (<-chan report.Change, error)
}

// Notifier shows transient user-facing messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// SyncPolicy decides how a change event updates the local list.
type SyncPolicy int

const (
	// SyncMergeDeltas merges rows carried by events by id.
	SyncMergeDeltas SyncPolicy = iota
	// SyncFullRefetch reloads the whole list on every event.
	SyncFullRefetch
)

func (p SyncPolicy) String() string {
	if p == SyncFullRefetch {
		return "full_refetch"
	}
	return "merge_deltas"
}

// ParseSyncPolicy accepts "merge_deltas" (or "") and "full_refetch".
func ParseSyncPolicy(raw string) (SyncPolicy, error) {
	switch raw {
	case "", "merge_deltas", "merge":
		return SyncMergeDeltas, nil
	case "full_refetch", "refetch":
		return SyncFullRefetch, nil
	}
	return SyncMergeDeltas, errors.New("unknown sync policy " + raw)
}

type Option func(*Repository)

func WithNotifier(n Notifier) Option {
	return func(r *Repository) {
		if n != nil {
			r.notify = n
		}
	}
}

func WithPolicy(p SyncPolicy) Option {
	return func(r *Repository) { r.policy = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// Repository owns one view's list of reports. Instances share nothing.
type Repository struct {
	backend Backend
	session *auth.Session
	notify  Notifier
	policy  SyncPolicy
	log     zerolog.Logger

	mu        sync.Mutex
	reports   []report.Report
	loading   bool
	listeners []func([]report.Report)

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a repository over backend. session supplies the identity used
// to attribute new reports; nil means always anonymous.
func New(backend Backend, session *auth.Session, opts ...Option) *Repository {
	r := &Repository{
		backend: backend,
		session: session,
		notify:  nopNotifier{},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reports returns a snapshot of the current list, newest first.
func (r *Repository) Reports() []report.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]report.Report, len(r.reports))
	for i, row := range r.reports {
		out[i] = row.Clone()
	}
	return out
}

func (r *Repository) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

func (r *Repository) Policy() SyncPolicy { return r.policy }

// OnUpdate registers fn to run with a snapshot after every list change.
func (r *Repository) OnUpdate(fn func([]report.Report)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Fetch replaces the list with the backend's. On failure the previous list is kept.
func (r *Repository) Fetch(ctx context.Context) error {
	r.mu.Lock()
	r.loading = true
	r.mu.Unlock()

	rows, err := r.backend.ListReports(ctx)

	r.mu.Lock()
	r.loading = false
	if err != nil {
		r.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			return err
		}
		r.log.Error().Err(err).Msg("fetch reports failed")
		r.notify.Error(MsgLoadFailed)
		return err
	}
	report.SortNewestFirst(rows)
	r.reports = rows
	r.mu.Unlock()

	r.changed()
	return nil
}

// Create submits a draft owned by the signed-in identity unless it is anonymous.
func (r *Repository) Create(ctx context.Context, d report.Draft) (report.Report, error) {
	d.UserID = nil
	if !d.IsAnonymous && r.session != nil {
		if id := r.session.Identity(); id != nil {
			d.UserID = report.StringPtr(id.ID)
		}
	}
	row, err := r.backend.InsertReport(ctx, d)
	if err != nil {
		r.log.Error().Err(err).Msg("create report failed")
		r.notify.Error(MsgSubmitFailed)
		return report.Report{}, err
	}
	r.notify.Success(MsgSubmitted)
	_ = r.Fetch(ctx)
	return row, nil
}

// UpdateStatus sets a report's status and, when assignee is non-empty, its assignee.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status report.Status, assignee *string) (report.Report, error) {
	row, err := r.backend.UpdateStatus(ctx, id, report.StatusUpdate{Status: status, AssigneeID: assignee})
	if err != nil {
		r.log.Error().Err(err).Str("report_id", id).Msg("update report status failed")
		r.notify.Error(MsgUpdateFailed)
		return report.Report{}, err
	}
	r.notify.Success(MsgStatusUpdated)
	_ = r.Fetch(ctx)
	return row, nil
}

func (r *Repository) changed() {
	r.mu.Lock()
	listeners := append([]func([]report.Report){}, r.listeners...)
	r.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	snap := r.Reports()
	for _, fn := range listeners {
		fn(snap)
	}
}
