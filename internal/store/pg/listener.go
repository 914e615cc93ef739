package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"civicconnect.org/internal/report"
)

// ReportsChannel is the NOTIFY channel fed by the reports trigger.
const ReportsChannel = "reports_changes"

type notification struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

func decodeNotification(payload string, at time.Time) (report.Change, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return report.Change{}, fmt.Errorf("decode notification: %w", err)
	}
	op := report.ChangeOp(n.Op)
	switch op {
	case report.OpInsert, report.OpUpdate, report.OpDelete:
	default:
		return report.Change{}, fmt.Errorf("decode notification: unknown op %q", n.Op)
	}
	return report.Change{Op: op, ID: n.ID, At: at}, nil
}

// Listener relays reports_changes notifications to a publisher.
type Listener struct {
	dsn     string
	publish func(report.Change)
	lookup  func(ctx context.Context, id string) (report.Report, error)
	log     zerolog.Logger
	minWait time.Duration
	maxWait time.Duration
}

// NewListener builds a listener on its own connection to dsn. When lookup is
// non-nil, insert and update changes carry the current row.
func NewListener(dsn string, publish func(report.Change), lookup func(context.Context, string) (report.Report, error), log zerolog.Logger) *Listener {
	return &Listener{
		dsn:     dsn,
		publish: publish,
		lookup:  lookup,
		log:     log,
		minWait: time.Second,
		maxWait: 30 * time.Second,
	}
}

// Run listens until ctx ends, reconnecting with backoff after failures.
func (l *Listener) Run(ctx context.Context) error {
	wait := l.minWait
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn().Err(err).Dur("retry_in", wait).Msg("reports listener stopped")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait *= 2
		if wait > l.maxWait {
			wait = l.maxWait
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "listen "+ReportsChannel); err != nil {
		return err
	}
	l.log.Info().Str("channel", ReportsChannel).Msg("listening for report changes")
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		change, err := decodeNotification(n.Payload, time.Now().UTC())
		if err != nil {
			l.log.Warn().Err(err).Msg("skipping notification")
			continue
		}
		l.publish(l.enrich(ctx, change))
	}
}

func (l *Listener) enrich(ctx context.Context, c report.Change) report.Change {
	if l.lookup == nil || c.Op == report.OpDelete || c.ID == "" {
		return c
	}
	r, err := l.lookup(ctx, c.ID)
	if err != nil {
		if !errors.Is(err, report.ErrNotFound) {
			l.log.Warn().Err(err).Str("report_id", c.ID).Msg("change lookup failed")
		}
		return c
	}
	c.Report = &r
	return c
}
