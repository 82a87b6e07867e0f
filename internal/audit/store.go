// Package audit is a supplemental, additive-only deployment audit
// log: every start/stop/upload/remove against the function registry
// is recorded as a row, queryable per function key. It does not
// replace or shadow the filesystem-JSON catalog persistence — that
// remains the sole source of truth for functions and users.
package audit

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Action names recorded in the audit log.
const (
	ActionUpload = "upload"
	ActionDeploy = "deploy"
	ActionKill   = "kill"
	ActionRemove = "remove"
)

// Outcome names recorded alongside an action.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is a single recorded deployment action.
type Event struct {
	ID          string
	FunctionKey string
	Action      string
	Actor       string
	Outcome     string
	Detail      string
	OccurredAt  time.Time
}

// Store wraps a SQLite-backed append-only log of deployment events.
type Store struct {
	db *sql.DB
}

// Open migrates the database at path to the latest schema and returns
// a ready Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc's sqlite driver is not safe for concurrent writers

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateSchema(db *sql.DB) error {
	srcDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("initializing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("initializing migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Record appends an event to the log.
func (s *Store) Record(e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO deployment_events (id, function_key, action, actor, outcome, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FunctionKey, e.Action, e.Actor, e.Outcome, e.Detail, e.OccurredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// RecordUpload logs a successful upload.
func (s *Store) RecordUpload(key, actor string) error {
	return s.Record(Event{FunctionKey: key, Action: ActionUpload, Actor: actor, Outcome: OutcomeSuccess})
}

// RecordRemove logs a successful removal.
func (s *Store) RecordRemove(key, actor string) error {
	return s.Record(Event{FunctionKey: key, Action: ActionRemove, Actor: actor, Outcome: OutcomeSuccess})
}

// RecordKill logs a successful kill.
func (s *Store) RecordKill(key, actor string) error {
	return s.Record(Event{FunctionKey: key, Action: ActionKill, Actor: actor, Outcome: OutcomeSuccess})
}

// RecordDeploy logs a deploy attempt; a non-nil outcome records its
// message as the failure detail.
func (s *Store) RecordDeploy(key, actor string, outcome error) error {
	e := Event{FunctionKey: key, Action: ActionDeploy, Actor: actor, Outcome: OutcomeSuccess}
	if outcome != nil {
		e.Outcome = OutcomeFailure
		e.Detail = outcome.Error()
	}
	return s.Record(e)
}

// ForFunction returns every recorded event for key, newest first.
func (s *Store) ForFunction(key string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, function_key, action, actor, outcome, detail, occurred_at
		 FROM deployment_events WHERE function_key = ? ORDER BY occurred_at DESC`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var occurred int64
		if err := rows.Scan(&e.ID, &e.FunctionKey, &e.Action, &e.Actor, &e.Outcome, &e.Detail, &occurred); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.OccurredAt = time.Unix(occurred, 0).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }
