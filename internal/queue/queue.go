// Package queue is the durable holding area for records captured while
// the device is offline. Records stay until an explicit remove after a
// successful sync; there is no eviction, and unbounded growth during a
// long offline stretch is accepted.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/record"
)

// Queued is a serialized draft plus its queue bookkeeping.
type Queued struct {
	LocalID      string
	Record       *record.Animal
	EnqueuedAt   time.Time
	SyncAttempts int
}

// WriteError reports a local storage failure during enqueue. It is
// fatal to that save attempt and must be surfaced; losing a capture
// silently is unacceptable.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "queue: write failed: " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// Queue persists pending records in SQLite so they survive process
// restart.
type Queue struct {
	db *sql.DB
}

// Open opens (or creates) the queue database at path and configures WAL
// mode.
func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "queue: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "queue: exec %s", pragma)
		}
	}
	return &Queue{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS queued_records (
	local_id      TEXT PRIMARY KEY,
	record        TEXT NOT NULL,
	enqueued_at   DATETIME NOT NULL,
	sync_attempts INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS queued_images (
	local_id TEXT NOT NULL REFERENCES queued_records(local_id) ON DELETE CASCADE,
	idx      INTEGER NOT NULL,
	name     TEXT NOT NULL,
	data     BLOB NOT NULL,
	PRIMARY KEY (local_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_queued_records_enqueued_at ON queued_records(enqueued_at);
`

// Migrate creates the schema.
func (q *Queue) Migrate(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "queue: migrate")
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue persists a full draft, image bytes included, under a fresh
// local ID. The record and its images land in one transaction, so a
// partially written entry is never visible to ListPending.
func (q *Queue) Enqueue(ctx context.Context, rec *record.Animal) (*Queued, error) {
	localID := uuid.New().String()
	now := time.Now().UTC()

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, &WriteError{Err: eris.Wrap(err, "marshal record")}
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &WriteError{Err: eris.Wrap(err, "begin tx")}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO queued_records (local_id, record, enqueued_at, sync_attempts) VALUES (?, ?, ?, 0)`,
		localID, string(recJSON), now,
	); err != nil {
		return nil, &WriteError{Err: eris.Wrap(err, "insert record")}
	}

	for i, img := range rec.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO queued_images (local_id, idx, name, data) VALUES (?, ?, ?, ?)`,
			localID, i, img.Name, img.Data,
		); err != nil {
			return nil, &WriteError{Err: eris.Wrapf(err, "insert image %d", i)}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &WriteError{Err: eris.Wrap(err, "commit")}
	}

	return &Queued{
		LocalID:    localID,
		Record:     rec,
		EnqueuedAt: now,
	}, nil
}

// ListPending returns every queued record in insertion order, oldest
// first, with image bytes rehydrated. Sync consumers process
// oldest-first so early captures are not starved.
func (q *Queue) ListPending(ctx context.Context) ([]Queued, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT local_id, record, enqueued_at, sync_attempts
		 FROM queued_records ORDER BY enqueued_at ASC, rowid ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "queue: list pending")
	}
	defer rows.Close()

	var pending []Queued
	for rows.Next() {
		var item Queued
		var recJSON string
		if err := rows.Scan(&item.LocalID, &recJSON, &item.EnqueuedAt, &item.SyncAttempts); err != nil {
			return nil, eris.Wrap(err, "queue: scan record")
		}
		item.Record = &record.Animal{}
		if err := json.Unmarshal([]byte(recJSON), item.Record); err != nil {
			return nil, eris.Wrapf(err, "queue: unmarshal record %s", item.LocalID)
		}
		pending = append(pending, item)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "queue: iterate records")
	}

	for i := range pending {
		if err := q.loadImages(ctx, &pending[i]); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

func (q *Queue) loadImages(ctx context.Context, item *Queued) error {
	rows, err := q.db.QueryContext(ctx,
		`SELECT idx, data FROM queued_images WHERE local_id = ? ORDER BY idx ASC`,
		item.LocalID,
	)
	if err != nil {
		return eris.Wrapf(err, "queue: load images %s", item.LocalID)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var data []byte
		if err := rows.Scan(&idx, &data); err != nil {
			return eris.Wrap(err, "queue: scan image")
		}
		if idx >= 0 && idx < len(item.Record.Images) {
			item.Record.Images[idx].Data = data
		}
	}
	return eris.Wrap(rows.Err(), "queue: iterate images")
}

// Remove deletes a queued record after a successful sync. Removing an
// unknown ID is an error.
func (q *Queue) Remove(ctx context.Context, localID string) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM queued_records WHERE local_id = ?`, localID,
	)
	if err != nil {
		return eris.Wrapf(err, "queue: remove %s", localID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "queue: rows affected")
	}
	if n == 0 {
		return eris.Errorf("queue: record not found: %s", localID)
	}
	return nil
}

// BumpSyncAttempts increments the attempt counter after a failed sync.
func (q *Queue) BumpSyncAttempts(ctx context.Context, localID string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE queued_records SET sync_attempts = sync_attempts + 1 WHERE local_id = ?`,
		localID,
	)
	return eris.Wrapf(err, "queue: bump sync attempts %s", localID)
}

// Len returns the number of pending records.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queued_records`).Scan(&n)
	return n, eris.Wrap(err, "queue: count")
}
