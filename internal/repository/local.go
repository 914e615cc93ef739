package repository

import (
	"context"

	"civicconnect.org/internal/report"
	"civicconnect.org/internal/stream"
)

// Local serves a repository straight from an in-process store and hub.
type Local struct {
	Store report.Store
	Hub   *stream.Hub
}

func (l Local) ListReports(ctx context.Context) ([]report.Report, error) {
	return l.Store.List(ctx)
}

func (l Local) GetReport(ctx context.Context, id string) (report.Report, error) {
	return l.Store.Get(ctx, id)
}

func (l Local) InsertReport(ctx context.Context, d report.Draft) (report.Report, error) {
	return l.Store.Insert(ctx, d)
}

func (l Local) UpdateStatus(ctx context.Context, id string, u report.StatusUpdate) (report.Report, error) {
	return l.Store.Update(ctx, id, u.Patch())
}

func (l Local) Subscribe(ctx context.Context) (<-chan report.Change, error) {
	return l.Hub.Subscribe(ctx), nil
}
