// Package store keeps raised alerts in DuckDB so the HTTP API can answer
// queries without re-reading the alert file.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/vigilproject/vigil/internal/model"
)

const defaultQueryTimeout = 30 * time.Second

// Store manages the DuckDB connection and the alerts table.
type Store struct {
	db           *sql.DB
	dbPath       string
	queryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database at dbPath. An empty path
// means an in-memory database, which is the monitor's default: the alert
// file stays the durable record, the store is the query surface.
func NewStore(dbPath string) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		queryTimeout: defaultQueryTimeout,
	}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id           VARCHAR PRIMARY KEY,
	ts           TIMESTAMP NOT NULL,
	kind         VARCHAR NOT NULL,
	ip_key       VARCHAR,
	username     VARCHAR,
	cmd          VARCHAR,
	fail_count   INTEGER,
	time_window  VARCHAR,
	last_fail_ts TIMESTAMP,
	evidence     VARCHAR
)`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// opCtx bounds one database operation to the store's query timeout.
func (s *Store) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.queryTimeout)
}

// InsertAlert persists one alert.
func (s *Store) InsertAlert(a *model.Alert) error {
	var evidence any
	if a.Evidence != nil {
		data, err := json.Marshal(a.Evidence)
		if err != nil {
			return fmt.Errorf("store: marshal evidence: %w", err)
		}
		evidence = string(data)
	}
	var lastFail any
	if a.LastFailTS != nil {
		lastFail = a.LastFailTS.UTC()
	}

	ctx, cancel := s.opCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, kind, ip_key, username, cmd, fail_count, time_window, last_fail_ts, evidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TS.UTC(), string(a.Kind), a.Key, a.User, a.Cmd, a.Count, a.Window, lastFail, evidence,
	)
	if err != nil {
		return fmt.Errorf("store: insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := s.opCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, kind, ip_key, username, cmd, fail_count, time_window, last_fail_ts, evidence
		 FROM alerts ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var (
			a        model.Alert
			kind     string
			lastFail sql.NullTime
			evidence sql.NullString
			key      sql.NullString
			user     sql.NullString
			cmd      sql.NullString
			count    sql.NullInt64
			window   sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.TS, &kind, &key, &user, &cmd, &count, &window, &lastFail, &evidence); err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		a.Kind = model.AlertKind(kind)
		a.Key = key.String
		a.User = user.String
		a.Cmd = cmd.String
		a.Count = int(count.Int64)
		a.Window = window.String
		if lastFail.Valid {
			t := lastFail.Time
			a.LastFailTS = &t
		}
		if evidence.Valid && evidence.String != "" {
			var ev model.Event
			if err := json.Unmarshal([]byte(evidence.String), &ev); err == nil {
				a.Evidence = &ev
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CountsByKind returns the total number of alerts per kind.
func (s *Store) CountsByKind() (map[string]int64, error) {
	ctx, cancel := s.opCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM alerts GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("store: count alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("store: scan count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// TotalAlertCount returns the number of stored alerts.
func (s *Store) TotalAlertCount() (int64, error) {
	ctx, cancel := s.opCtx()
	defer cancel()
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: total count: %w", err)
	}
	return n, nil
}
