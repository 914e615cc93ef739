package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"civicconnect.org/internal/ids"
	"civicconnect.org/internal/report"
)

var _ report.Store = (*Store)(nil)

var reportColumns = []string{
	"id", "title", "description", "category", "priority", "status",
	"location_address", "latitude", "longitude", "is_anonymous", "user_id",
	"assignee_id", "department", "internal_notes", "media_urls",
	"created_at", "updated_at", "resolved_at",
}

func returning() string {
	return "returning " + strings.Join(reportColumns, ", ")
}

func (s *Store) List(ctx context.Context) ([]report.Report, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	query, args, err := psql.Select(reportColumns...).
		From("reports").
		OrderBy("created_at desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []report.Report
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) Get(ctx context.Context, id string) (report.Report, error) {
	if s.db == nil {
		return report.Report{}, errNoDB
	}
	return getReport(ctx, s.db, id, false)
}

func getReport(ctx context.Context, q sqlscan.Querier, id string, lock bool) (report.Report, error) {
	b := psql.Select(reportColumns...).From("reports").Where(sq.Eq{"id": strings.TrimSpace(id)})
	if lock {
		b = b.Suffix("for update")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return report.Report{}, err
	}
	var r report.Report
	err = sqlscan.Get(ctx, q, &r, query, args...)
	if sqlscan.NotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, report.ErrNotFound
	}
	if err != nil {
		return report.Report{}, err
	}
	return r, nil
}

func (s *Store) Insert(ctx context.Context, d report.Draft) (report.Report, error) {
	if s.db == nil {
		return report.Report{}, errNoDB
	}
	d, err := d.Normalize()
	if err != nil {
		return report.Report{}, err
	}
	now := s.now().UTC()
	media := d.MediaURLs
	if media == nil {
		media = report.MediaURLs{}
	}
	query, args, err := psql.Insert("reports").
		Columns("id", "title", "description", "category", "priority", "status",
			"location_address", "latitude", "longitude", "is_anonymous", "user_id",
			"media_urls", "created_at", "updated_at").
		Values(ids.New(), d.Title, d.Description, string(d.Category), string(d.Priority), string(report.StatusSubmitted),
			d.LocationAddress, d.Latitude, d.Longitude, d.IsAnonymous, d.UserID,
			media, now, now).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return report.Report{}, err
	}
	var r report.Report
	if err := sqlscan.Get(ctx, s.db, &r, query, args...); err != nil {
		return report.Report{}, classify(err)
	}
	return r, nil
}

// Update locks the row, applies p and writes back only the patched columns.
func (s *Store) Update(ctx context.Context, id string, p report.Patch) (report.Report, error) {
	if s.db == nil {
		return report.Report{}, errNoDB
	}
	if err := p.Validate(); err != nil {
		return report.Report{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report.Report{}, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := getReport(ctx, tx, id, true)
	if err != nil {
		return report.Report{}, err
	}
	now := s.now().UTC()
	if !now.After(cur.UpdatedAt) {
		now = cur.UpdatedAt.Add(time.Microsecond)
	}
	next := p.Apply(cur, now)

	set := map[string]any{"updated_at": next.UpdatedAt}
	if p.Status != nil {
		set["status"] = string(next.Status)
		set["resolved_at"] = next.ResolvedAt
	}
	if p.Priority != nil {
		set["priority"] = string(next.Priority)
	}
	if p.AssigneeID != nil {
		set["assignee_id"] = next.AssigneeID
	}
	if p.Department != nil {
		set["department"] = next.Department
	}
	if p.InternalNotes != nil {
		set["internal_notes"] = next.InternalNotes
	}
	query, args, err := psql.Update("reports").
		SetMap(set).
		Where(sq.Eq{"id": cur.ID}).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return report.Report{}, err
	}
	var out report.Report
	if err := sqlscan.Get(ctx, tx, &out, query, args...); err != nil {
		return report.Report{}, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return report.Report{}, err
	}
	return out, nil
}

func classify(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrCheckViolation, pgErrForeignKeyViolation:
			return fmt.Errorf("%w: %s", report.ErrInvalidInput, pgErr.Message)
		}
	}
	return err
}
