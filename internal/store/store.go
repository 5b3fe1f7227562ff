package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)

	"github.com/August26/proxytest-go/internal/checker"
	"github.com/August26/proxytest-go/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	backend TEXT NOT NULL,
	started_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES runs(id),
	pass INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	target TEXT NOT NULL,
	outcome TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	error_kind TEXT NOT NULL,
	error TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	latency_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS verdicts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES runs(id),
	pass INTEGER NOT NULL,
	total INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	overall BOOLEAN NOT NULL,
	complete BOOLEAN NOT NULL,
	started_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL
);`

// InitDB opens (creating if needed) the sqlite archive at dbPath.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Archive records every finished attempt and every pass verdict of one run.
// Each pass is written in a single transaction.
type Archive struct {
	checker.NopObserver

	db    *sql.DB
	runID int64
	log   *slog.Logger

	tx  *sql.Tx
	err error
}

// Open creates the archive and registers a new run in it.
func Open(dbPath, url, backend string, log *slog.Logger) (*Archive, error) {
	db, err := InitDB(dbPath)
	if err != nil {
		return nil, err
	}
	res, err := db.Exec(`INSERT INTO runs (url, backend, started_at) VALUES (?, ?, ?)`,
		url, backend, time.Now().UTC())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read run id: %w", err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Archive{db: db, runID: id, log: log}, nil
}

func (a *Archive) RunID() int64 { return a.runID }

func (a *Archive) PassStarted(pass, attempts int) {
	tx, err := a.db.Begin()
	if err != nil {
		a.fail("begin pass", err)
		return
	}
	a.tx = tx
}

func (a *Archive) AttemptFinished(at model.Attempt) {
	if a.tx == nil {
		return
	}
	_, err := a.tx.Exec(`INSERT INTO attempts
		(run_id, pass, seq, target, outcome, status_code, error_kind, error, started_at, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.runID, at.Pass, at.Seq, at.Target.Name(), at.Outcome.String(), at.StatusCode,
		string(at.ErrorKind), at.Error, at.Started.UTC(), at.Duration().Milliseconds(),
	)
	if err != nil {
		a.fail("insert attempt", err)
	}
}

func (a *Archive) PassFinished(v model.Verdict) {
	if a.tx == nil {
		return
	}
	tx := a.tx
	a.tx = nil

	_, err := tx.Exec(`INSERT INTO verdicts
		(run_id, pass, total, succeeded, failed, overall, complete, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.runID, v.Pass, v.Total, v.Succeeded, v.Failed, v.Overall, v.Complete,
		v.Started.UTC(), v.Duration.Milliseconds(),
	)
	if err != nil {
		a.fail("insert verdict", err)
		tx.Rollback()
		return
	}
	if err := tx.Commit(); err != nil {
		a.fail("commit pass", err)
	}
}

// fail keeps the first error; archiving problems never affect the run itself.
func (a *Archive) fail(op string, err error) {
	err = fmt.Errorf("archive: %s: %w", op, err)
	a.log.Warn(err.Error())
	if a.err == nil {
		a.err = err
	}
}

// Err returns the first write error, if any.
func (a *Archive) Err() error { return a.err }

// VerdictRow is one archived pass.
type VerdictRow struct {
	RunID      int64     `json:"run_id"`
	Pass       int       `json:"pass"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Overall    bool      `json:"overall"`
	Complete   bool      `json:"complete"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// History returns the newest archived verdicts of every run, newest first.
func (a *Archive) History(limit int) ([]VerdictRow, error) {
	rows, err := a.db.Query(`SELECT run_id, pass, total, succeeded, failed, overall, complete, started_at, duration_ms
		FROM verdicts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []VerdictRow
	for rows.Next() {
		var r VerdictRow
		if err := rows.Scan(&r.RunID, &r.Pass, &r.Total, &r.Succeeded, &r.Failed,
			&r.Overall, &r.Complete, &r.StartedAt, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountAttempts returns how many attempts of this run were archived.
func (a *Archive) CountAttempts() (int, error) {
	var n int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM attempts WHERE run_id = ?`, a.runID).Scan(&n)
	return n, err
}

// Close rolls back an unfinished pass and closes the database.
func (a *Archive) Close() error {
	var errs []error
	if a.tx != nil {
		errs = append(errs, a.tx.Rollback())
		a.tx = nil
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
