package repository

import (
	"context"
	"errors"

	"civicconnect.org/internal/report"
)

// ErrStarted is returned by Start when a subscription is already open.
var ErrStarted = errors.New("repository: already started")

// Start opens the change subscription and performs the initial fetch.
// A failed fetch is reported but does not close the subscription.
func (r *Repository) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrStarted
	}
	subCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	changes, err := r.backend.Subscribe(subCtx)
	if err != nil {
		cancel()
		close(done)
		r.mu.Lock()
		r.cancel, r.done = nil, nil
		r.mu.Unlock()
		_ = r.Fetch(ctx)
		return err
	}

	go func() {
		defer close(done)
		for c := range changes {
			r.apply(subCtx, c)
		}
	}()

	_ = r.Fetch(ctx)
	return nil
}

// Close ends the subscription and waits for the event loop to exit.
func (r *Repository) Close() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Repository) apply(ctx context.Context, c report.Change) {
	if r.policy == SyncFullRefetch {
		_ = r.Fetch(ctx)
		return
	}
	switch {
	case c.Op == report.OpDelete && c.ID != "":
		r.remove(c.ID)
	case c.Report != nil:
		r.upsert(*c.Report)
	case c.ID != "":
		row, err := r.backend.GetReport(ctx, c.ID)
		switch {
		case err == nil:
			r.upsert(row)
		case errors.Is(err, report.ErrNotFound):
			r.remove(c.ID)
		default:
			if ctx.Err() != nil {
				return
			}
			r.log.Warn().Err(err).Str("report_id", c.ID).Msg("change lookup failed, refetching")
			_ = r.Fetch(ctx)
		}
	default:
		_ = r.Fetch(ctx)
	}
}

func (r *Repository) upsert(row report.Report) {
	r.mu.Lock()
	replaced := false
	for i := range r.reports {
		if r.reports[i].ID == row.ID {
			r.reports[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		r.reports = append(r.reports, row)
	}
	report.SortNewestFirst(r.reports)
	r.mu.Unlock()
	r.changed()
}

func (r *Repository) remove(id string) {
	r.mu.Lock()
	out := r.reports[:0]
	for _, row := range r.reports {
		if row.ID != id {
			out = append(out, row)
		}
	}
	r.reports = out
	r.mu.Unlock()
	r.changed()
}
