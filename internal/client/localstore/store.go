// Package localstore is the durable device-local cache of tracking
// records. It holds optimistic projections written at send time, the
// merged view written back by each sync cycle, the pending-delete retry
// queue and the identity hints the sync engine infers from.
package localstore

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Meta keys used by the identity workflow and the sync engine.
const (
	MetaLastLoggedInEmail = "last_logged_in_email"
	MetaCurrentUser       = "current_user"
)

// LocalRecord is the cached projection of one tracked item.
type LocalRecord struct {
	ID             string
	SenderIdentity string
	OwnerEmailHint string
	Subject        string
	Recipient      string
	CreatedAt      time.Time
	OpenCount      int
	LastOpenedAt   *time.Time
	Synced         bool
}

// PendingDelete is one queued remote deletion awaiting acknowledgment.
type PendingDelete struct {
	ID             int64
	IDs            []string
	SenderIdentity string
	Attempts       int
	LastError      string
	QueuedAt       time.Time
}

// Store wraps a SQLite database. WAL mode keeps reads concurrent with
// the sync cycle's write-back.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to local store: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetAll returns every cached record, newest first.
func (s *Store) GetAll() ([]LocalRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, sender_identity, owner_email_hint, subject, recipient,
		       created_at, open_count, last_opened_at, synced
		FROM local_records
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []LocalRecord
	for rows.Next() {
		var rec LocalRecord
		var createdAt int64
		var lastOpened sql.NullInt64
		var synced int
		if err := rows.Scan(&rec.ID, &rec.SenderIdentity, &rec.OwnerEmailHint, &rec.Subject,
			&rec.Recipient, &createdAt, &rec.OpenCount, &lastOpened, &synced); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		if lastOpened.Valid {
			t := time.Unix(lastOpened.Int64, 0).UTC()
			rec.LastOpenedAt = &t
		}
		rec.Synced = synced != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Put upserts one record.
func (s *Store) Put(rec LocalRecord) error {
	var lastOpened sql.NullInt64
	if rec.LastOpenedAt != nil {
		lastOpened = sql.NullInt64{Int64: rec.LastOpenedAt.Unix(), Valid: true}
	}
	synced := 0
	if rec.Synced {
		synced = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO local_records (id, sender_identity, owner_email_hint, subject, recipient,
		                           created_at, open_count, last_opened_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender_identity  = excluded.sender_identity,
			owner_email_hint = excluded.owner_email_hint,
			subject          = excluded.subject,
			recipient        = excluded.recipient,
			open_count       = excluded.open_count,
			last_opened_at   = excluded.last_opened_at,
			synced           = excluded.synced`,
		rec.ID, rec.SenderIdentity, rec.OwnerEmailHint, rec.Subject, rec.Recipient,
		rec.CreatedAt.Unix(), rec.OpenCount, lastOpened, synced)
	return err
}

// PutAll upserts the merged view in one transaction (write-through).
func (s *Store) PutAll(records []LocalRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, rec := range records {
		var lastOpened sql.NullInt64
		if rec.LastOpenedAt != nil {
			lastOpened = sql.NullInt64{Int64: rec.LastOpenedAt.Unix(), Valid: true}
		}
		synced := 0
		if rec.Synced {
			synced = 1
		}
		_, err := tx.Exec(`
			INSERT INTO local_records (id, sender_identity, owner_email_hint, subject, recipient,
			                           created_at, open_count, last_opened_at, synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				sender_identity  = excluded.sender_identity,
				owner_email_hint = excluded.owner_email_hint,
				subject          = excluded.subject,
				recipient        = excluded.recipient,
				open_count       = excluded.open_count,
				last_opened_at   = excluded.last_opened_at,
				synced           = excluded.synced`,
			rec.ID, rec.SenderIdentity, rec.OwnerEmailHint, rec.Subject, rec.Recipient,
			rec.CreatedAt.Unix(), rec.OpenCount, lastOpened, synced)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Remove deletes the given records.
func (s *Store) Remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.Exec("DELETE FROM local_records WHERE id IN ("+placeholders+")", args...)
	return err
}

// RemoveSynced deletes only records already acknowledged by the server.
// The keep-and-reassign conflict resolution uses it to discard
// cloud-linked rows while retaining unsynced ones.
func (s *Store) RemoveSynced() error {
	_, err := s.db.Exec("DELETE FROM local_records WHERE synced = 1")
	return err
}

// Clear wipes every cached record.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM local_records")
	return err
}

// RetagOwnerHints rewrites the owner hint on unsynced records; used
// when kept local data migrates to a new identity.
func (s *Store) RetagOwnerHints(email string) error {
	_, err := s.db.Exec("UPDATE local_records SET owner_email_hint = ?, sender_identity = ? WHERE synced = 0", email, email)
	return err
}

// EnqueueDelete queues a remote deletion for retry.
func (s *Store) EnqueueDelete(ids []string, senderIdentity string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO pending_deletes (ids, sender_identity, queued_at)
		VALUES (?, ?, ?)`,
		strings.Join(ids, ","), senderIdentity, time.Now().Unix())
	return err
}

// PendingDeletes returns the queue, oldest first.
func (s *Store) PendingDeletes() ([]PendingDelete, error) {
	rows, err := s.db.Query(`
		SELECT id, ids, sender_identity, attempts, last_error, queued_at
		FROM pending_deletes
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queue []PendingDelete
	for rows.Next() {
		var pd PendingDelete
		var joined string
		var queuedAt int64
		if err := rows.Scan(&pd.ID, &joined, &pd.SenderIdentity, &pd.Attempts, &pd.LastError, &queuedAt); err != nil {
			return nil, err
		}
		pd.IDs = strings.Split(joined, ",")
		pd.QueuedAt = time.Unix(queuedAt, 0).UTC()
		queue = append(queue, pd)
	}
	return queue, rows.Err()
}

// ResolvePending drops an acknowledged entry from the queue.
func (s *Store) ResolvePending(id int64) error {
	_, err := s.db.Exec("DELETE FROM pending_deletes WHERE id = ?", id)
	return err
}

// FailPending records another failed attempt, keeping the entry queued.
func (s *Store) FailPending(id int64, lastError string) error {
	_, err := s.db.Exec(
		"UPDATE pending_deletes SET attempts = attempts + 1, last_error = ? WHERE id = ?",
		lastError, id)
	return err
}

// GetMeta returns the stored value, or "" when the key is absent.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) DeleteMeta(key string) error {
	_, err := s.db.Exec("DELETE FROM meta WHERE key = ?", key)
	return err
}
