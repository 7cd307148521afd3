// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     journal
// Description: SQLite journal of routed commands
// License:     MIT
// ============================================================================

// Package journal records every routed command in a SQLite database. The
// Journal is a router.EventHandler: chain it after other event handlers.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/msto63/mdwterm/pkg/core/logging"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
)

var journalLogger = logging.New("route-journal")

// Status of a journaled route
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Entry is one journaled route
type Entry struct {
	RouteID   string        `json:"route_id"`
	Raw       string        `json:"raw"`
	CommandID string        `json:"command_id,omitempty"`
	Status    Status        `json:"status"`
	ErrorCode string        `json:"error_code,omitempty"`
	Duration  time.Duration `json:"duration"`
	RoutedAt  time.Time     `json:"routed_at"`
}

// Journal writes route_journal rows after each route. Write failures are
// logged and never fail the route.
type Journal struct {
	router.NopEvents

	db      *sql.DB
	started sync.Map // *router.Context -> time.Time
	now     func() time.Time
}

// Open opens or creates the journal database at path
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the journal path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to create the journal directory. dir=%s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to open the journal. path=%s", path)
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, now: time.Now}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to initialize the journal schema")
	}
	journalLogger.Info("Route journal opened", "path", path)
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS route_journal (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id TEXT NOT NULL,
		raw TEXT NOT NULL,
		command_id TEXT,
		status TEXT NOT NULL,
		error_code TEXT,
		duration_ns INTEGER NOT NULL,
		routed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_route_journal_routed_at ON route_journal(routed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_route_journal_command_id ON route_journal(command_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// BeforeRoute remembers when the route started
func (j *Journal) BeforeRoute(ctx context.Context, rc *router.Context) error {
	j.started.Store(rc, j.now())
	return nil
}

// AfterRoute writes one row for the route
func (j *Journal) AfterRoute(ctx context.Context, rc *router.Context, result *router.Result, routeErr error) error {
	if rc == nil || rc.Route == nil {
		return nil
	}
	now := j.now()
	entry := Entry{
		RouteID:  rc.Route.ID(),
		Raw:      rc.Route.Raw(),
		Status:   StatusSucceeded,
		RoutedAt: now,
	}
	if v, ok := j.started.LoadAndDelete(rc); ok {
		entry.Duration = now.Sub(v.(time.Time))
	}
	if result != nil && result.Handler != nil && result.Handler.Parsed != nil && result.Handler.Parsed.Command != nil {
		entry.CommandID = result.Handler.Parsed.Command.ID()
	}
	if routeErr != nil {
		entry.Status = StatusFailed
		entry.ErrorCode = string(terrors.CodeOf(routeErr))
	}

	// the route context may already be done, the row is written regardless
	if err := j.Record(context.WithoutCancel(ctx), entry); err != nil {
		journalLogger.Warn("Failed to journal route", "route_id", entry.RouteID, "error", err)
	}
	return nil
}

// Record inserts entry
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO route_journal (route_id, raw, command_id, status, error_code, duration_ns, routed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RouteID, e.Raw, nullable(e.CommandID), string(e.Status), nullable(e.ErrorCode),
		e.Duration.Nanoseconds(), e.RoutedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// Entries returns the latest entries, newest first. A limit <= 0 returns
// every entry.
func (j *Journal) Entries(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT route_id, raw, command_id, status, error_code, duration_ns, routed_at
		FROM route_journal ORDER BY seq DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                    Entry
			commandID, errorCode sql.NullString
			status               string
			durationNs           int64
		)
		if err := rows.Scan(&e.RouteID, &e.Raw, &commandID, &status, &errorCode, &durationNs, &e.RoutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.CommandID = commandID.String
		e.ErrorCode = errorCode.String
		e.Status = Status(status)
		e.Duration = time.Duration(durationNs)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries routed before now minus olderThan
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM route_journal WHERE routed_at < ?", j.now().Add(-olderThan).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
