// Package migrate applies the civic schema and seed scripts to Postgres.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Manager runs the scripts found under two directories of an fs.FS, usually
// the embedded migrations package.
type Manager struct {
	db              *sql.DB
	fsys            fs.FS
	migrationsDir   string
	seedsDir        string
	migrationsTable string
	seedsTable      string
}

type Option func(*Manager)

// WithMigrationsTable overrides the bookkeeping table for schema scripts.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedsTable = name
		}
	}
}

func NewManager(db *sql.DB, fsys fs.FS, migrationsDir, seedsDir string, opts ...Option) *Manager {
	m := &Manager{
		db:              db,
		fsys:            fsys,
		migrationsDir:   migrationsDir,
		seedsDir:        seedsDir,
		migrationsTable: defaultMigrationsTable,
		seedsTable:      defaultSeedsTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// script is one file in a directory. Down is set only for a schema step
// with a matching rollback file.
type script struct {
	Name string
	Path string
	Down string
}

// scripts lists dir's files ending in suffix, ordered by name. A missing
// directory yields no scripts.
func (m *Manager) scripts(dir, suffix string) ([]script, error) {
	if m.fsys == nil || dir == "" {
		return nil, nil
	}
	paths, err := fs.Glob(m.fsys, path.Join(dir, "*"+suffix))
	if err != nil {
		return nil, err
	}
	out := make([]script, 0, len(paths))
	for _, p := range paths {
		s := script{Name: path.Base(p), Path: p}
		if suffix == upSuffix {
			down := strings.TrimSuffix(p, upSuffix) + downSuffix
			if _, err := fs.Stat(m.fsys, down); err == nil {
				s.Down = down
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Up applies every schema step not yet recorded and returns their names.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	return m.apply(ctx, m.migrationsTable, m.migrationsDir, upSuffix)
}

// Seed applies seed scripts once each.
func (m *Manager) Seed(ctx context.Context) error {
	_, err := m.apply(ctx, m.seedsTable, m.seedsDir, ".sql")
	return err
}

func (m *Manager) apply(ctx context.Context, table, dir, suffix string) ([]string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	todo, err := m.pending(ctx, table, dir, suffix)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, s := range todo {
		err := m.run(ctx, s.Path, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, table),
				s.Name, time.Now().UTC())
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", s.Name, err)
		}
		applied = append(applied, s.Name)
	}
	return applied, nil
}

// Down rolls back the most recently applied schema step.
func (m *Manager) Down(ctx context.Context) (string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return "", err
	}
	done, err := m.applied(ctx, m.migrationsTable)
	if err != nil {
		return "", err
	}
	if len(done) == 0 {
		return "", errors.New("no migrations applied")
	}
	last := done[len(done)-1]
	all, err := m.scripts(m.migrationsDir, upSuffix)
	if err != nil {
		return "", err
	}
	var down string
	for _, s := range all {
		if s.Name == last {
			down = s.Down
		}
	}
	if down == "" {
		return "", fmt.Errorf("missing down migration for %s", last)
	}
	err = m.run(ctx, down, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`delete from %s where name = $1`, m.migrationsTable), last)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("rollback %s: %w", last, err)
	}
	return last, nil
}

// Status returns applied schema steps in the order they ran.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	return m.applied(ctx, m.migrationsTable)
}

// Pending lists schema steps not yet applied.
func (m *Manager) Pending(ctx context.Context) ([]string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	todo, err := m.pending(ctx, m.migrationsTable, m.migrationsDir, upSuffix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(todo))
	for _, s := range todo {
		names = append(names, s.Name)
	}
	return names, nil
}

func (m *Manager) pending(ctx context.Context, table, dir, suffix string) ([]script, error) {
	done, err := m.applied(ctx, table)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(done))
	for _, name := range done {
		seen[name] = true
	}
	all, err := m.scripts(dir, suffix)
	if err != nil {
		return nil, err
	}
	var todo []script
	for _, s := range all {
		if !seen[s.Name] {
			todo = append(todo, s)
		}
	}
	return todo, nil
}

func (m *Manager) ensureTables(ctx context.Context) error {
	for _, table := range []string{m.migrationsTable, m.seedsTable} {
		ddl := fmt.Sprintf(`create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		)`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// run executes the script at name and then record in one transaction. The
// script is sent whole: without arguments pgx uses the simple protocol, which
// accepts several statements and dollar-quoted trigger bodies.
func (m *Manager) run(ctx context.Context, name string, record func(*sql.Tx) error) error {
	body, err := fs.ReadFile(m.fsys, name)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if strings.TrimSpace(string(body)) != "" {
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return err
		}
	}
	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) applied(ctx context.Context, table string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s order by applied_at asc, name asc`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
