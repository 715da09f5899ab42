// Package store implements ZeroLink's durable message log: a
// SQLite-backed key/value log keyed by message_uid, plus one vector
// clock per chat_id. A single mutex serialises every operation, in
// keeping with spec's "db_mutex spans a whole logical operation"
// discipline — the sqlite driver already serialises writes
// internally, but the explicit mutex here also spans each query's
// full row scan and keeps the store's concurrency story legible
// independent of driver internals.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zerolink/zerolink/pkg/vclock"
)

// historyLimit caps LoadHistory to the most recent rows, per spec §4.3.
const historyLimit = 50

// Clock is injected so tests can control the timestamp assigned at
// insertion; production callers pass time.Now().Unix.
type Clock func() int64

// Store is a durable message log fronted by one mutex.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	clock Clock
}

// HistoryEntry is one row of chat history as returned by LoadHistory.
type HistoryEntry struct {
	SenderPKHex string
	Content     string
}

// SyncRow is one row as returned by IterateMessagesFor, used by the
// anti-entropy syncer to decide what the remote side is missing.
type SyncRow struct {
	SenderPK    string
	VectorClock vclock.Clock
	Content     string
	UID         string
	Timestamp   int64
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string, clock Clock) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	// A single writer at a time avoids SQLITE_BUSY under the explicit
	// mutex discipline below.
	db.SetMaxOpenConns(1)

	return &Store{db: db, clock: clock}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveMessage idempotently inserts a message keyed by uid. Duplicate
// inserts for the same uid are silently accepted (invariant 1).
// timestamp is assigned at call time from the injected clock.
func (s *Store) SaveMessage(uid, chatID, senderPKHex, content string, vc vclock.Clock) error {
	vcJSON, err := vc.Marshal()
	if err != nil {
		return fmt.Errorf("store: marshal vector clock: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO messages (message_uid, chat_id, sender_pk, content, timestamp, vector_clock)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uid, chatID, senderPKHex, content, s.clock(), string(vcJSON),
	)
	if err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	return nil
}

// LoadHistory returns the most recent messages for chatID in
// chronological order, limited to the 50 most recent rows.
func (s *Store) LoadHistory(chatID string) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT sender_pk, content FROM (
			SELECT sender_pk, content, timestamp, id FROM messages
			WHERE chat_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		 ) ORDER BY timestamp ASC, id ASC`,
		chatID, historyLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.SenderPKHex, &e.Content); err != nil {
			return nil, fmt.Errorf("store: scan history row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetVectorClock returns the stored clock for chatID, or an empty
// clock if none is stored.
func (s *Store) GetVectorClock(chatID string) (vclock.Clock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clockJSON string
	err := s.db.QueryRow(`SELECT clock FROM vector_clocks WHERE chat_id = ?`, chatID).Scan(&clockJSON)
	if err == sql.ErrNoRows {
		return vclock.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get vector clock: %w", err)
	}
	return vclock.Parse([]byte(clockJSON))
}

// SaveVectorClock upserts the stored clock for chatID.
func (s *Store) SaveVectorClock(chatID string, clock vclock.Clock) error {
	data, err := clock.Marshal()
	if err != nil {
		return fmt.Errorf("store: marshal vector clock: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO vector_clocks (chat_id, clock) VALUES (?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET clock = excluded.clock`,
		chatID, string(data),
	)
	if err != nil {
		return fmt.Errorf("store: save vector clock: %w", err)
	}
	return nil
}

// IterateMessagesFor returns every stored message for chatID, used by
// the anti-entropy syncer to scan for rows missing at a remote peer.
func (s *Store) IterateMessagesFor(chatID string) ([]SyncRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT sender_pk, vector_clock, content, message_uid, timestamp
		 FROM messages WHERE chat_id = ? ORDER BY timestamp ASC, id ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	defer rows.Close()

	var out []SyncRow
	for rows.Next() {
		var r SyncRow
		var vcJSON string
		if err := rows.Scan(&r.SenderPK, &vcJSON, &r.Content, &r.UID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan sync row: %w", err)
		}
		clock, err := vclock.Parse([]byte(vcJSON))
		if err != nil {
			return nil, fmt.Errorf("store: parse vector clock for %s: %w", r.UID, err)
		}
		r.VectorClock = clock
		out = append(out, r)
	}
	return out, rows.Err()
}
