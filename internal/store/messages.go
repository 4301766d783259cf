package store

import (
	"database/sql"
	"fmt"
)

// Message is one archived SMS/MMS record. Records are immutable once written:
// the importer creates them and search only reads them.
type Message struct {
	ID          int64
	Address     string
	ContactName sql.NullString
	Body        string
	Timestamp   int64 // Epoch milliseconds
	MessageType int
	Fingerprint string
}

// InsertResult reports the outcome of an InsertIfAbsent call.
type InsertResult int

const (
	// Inserted means a new record was written.
	Inserted InsertResult = iota
	// Duplicate means a record with the same fingerprint already existed
	// and the insert was a no-op.
	Duplicate
)

// insertTx writes one message and its FTS row inside the given transaction.
// Returns Duplicate when the fingerprint already exists; the FTS row is only
// written when the record insert took effect, keeping index and table in
// lockstep.
func (s *Store) insertTx(tx *sql.Tx, m *Message) (InsertResult, int64, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO messages
			(address, contact_name, body, timestamp, message_type, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Address, m.ContactName, m.Body, m.Timestamp, m.MessageType, m.Fingerprint,
	)
	if err != nil {
		return Duplicate, 0, fmt.Errorf("insert message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Duplicate, 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return Duplicate, 0, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Duplicate, 0, fmt.Errorf("last insert id: %w", err)
	}

	if s.fts5Available {
		if _, err := tx.Exec(
			`INSERT INTO messages_fts(rowid, body) VALUES (?, ?)`,
			id, m.Body,
		); err != nil {
			return Duplicate, 0, fmt.Errorf("index body: %w", err)
		}
	}

	return Inserted, id, nil
}

// InsertIfAbsent writes a single message, treating a fingerprint collision as
// a no-op rather than an error. The record and its index entry commit in the
// same transaction.
func (s *Store) InsertIfAbsent(m *Message) (InsertResult, error) {
	var result InsertResult
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		result, _, err = s.insertTx(tx, m)
		return err
	})
	return result, err
}

// InsertBatch writes a batch of messages in one transaction. Each record
// individually succeeds or is counted as a duplicate; an unexpected error
// rolls the whole batch back.
func (s *Store) InsertBatch(batch []*Message) (inserted, duplicates int, err error) {
	err = s.withTx(func(tx *sql.Tx) error {
		for _, m := range batch {
			result, _, err := s.insertTx(tx, m)
			if err != nil {
				return err
			}
			if result == Inserted {
				inserted++
			} else {
				duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, duplicates, nil
}

// DeleteMessage removes a message and its index entry in one transaction.
// Used by administrative tooling; the importer never deletes.
func (s *Store) DeleteMessage(id int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		var body string
		err := tx.QueryRow(`SELECT body FROM messages WHERE id = ?`, id).Scan(&body)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load message %d: %w", id, err)
		}

		if s.fts5Available {
			// External-content FTS5 removal requires the original body.
			if _, err := tx.Exec(
				`INSERT INTO messages_fts(messages_fts, rowid, body) VALUES ('delete', ?, ?)`,
				id, body,
			); err != nil {
				return fmt.Errorf("deindex body: %w", err)
			}
		}

		if _, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete message %d: %w", id, err)
		}
		return nil
	})
}

// UpdateMessageBody replaces a message body, removing the old index entry and
// adding the new one in that order, all in one transaction. Not used by
// ingestion; exists so the index invariant holds under every write path.
func (s *Store) UpdateMessageBody(id int64, body string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var oldBody string
		err := tx.QueryRow(`SELECT body FROM messages WHERE id = ?`, id).Scan(&oldBody)
		if err == sql.ErrNoRows {
			return fmt.Errorf("message %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("load message %d: %w", id, err)
		}

		if s.fts5Available {
			if _, err := tx.Exec(
				`INSERT INTO messages_fts(messages_fts, rowid, body) VALUES ('delete', ?, ?)`,
				id, oldBody,
			); err != nil {
				return fmt.Errorf("deindex old body: %w", err)
			}
		}

		if _, err := tx.Exec(`UPDATE messages SET body = ? WHERE id = ?`, body, id); err != nil {
			return fmt.Errorf("update message %d: %w", id, err)
		}

		if s.fts5Available {
			if _, err := tx.Exec(
				`INSERT INTO messages_fts(rowid, body) VALUES (?, ?)`,
				id, body,
			); err != nil {
				return fmt.Errorf("index new body: %w", err)
			}
		}
		return nil
	})
}

// GetMessage returns a single message by ID, or nil if it does not exist.
func (s *Store) GetMessage(id int64) (*Message, error) {
	var m Message
	err := s.db.QueryRow(`
		SELECT id, address, contact_name, body, timestamp, message_type, fingerprint
		FROM messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.Address, &m.ContactName, &m.Body, &m.Timestamp, &m.MessageType, &m.Fingerprint)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return &m, nil
}

// Search runs an FTS5 MATCH query against the index, joined back to the full
// records. matchExpr must already be sanitized by the caller (the search
// package wraps user input as a quoted phrase). Results are ordered newest
// first, ties broken by insertion order for determinism.
func (s *Store) Search(matchExpr string, limit, offset int) ([]Message, int64, error) {
	if !s.fts5Available {
		return nil, 0, fmt.Errorf("full-text search unavailable: sqlite built without fts5")
	}

	var total int64
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM messages m
		JOIN messages_fts fts ON m.id = fts.rowid
		WHERE messages_fts MATCH ?`, matchExpr,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT m.id, m.address, m.contact_name, m.body, m.timestamp, m.message_type, m.fingerprint
		FROM messages m
		JOIN messages_fts fts ON m.id = fts.rowid
		WHERE messages_fts MATCH ?
		ORDER BY m.timestamp DESC, m.id ASC
		LIMIT ? OFFSET ?`, matchExpr, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Address, &m.ContactName, &m.Body, &m.Timestamp, &m.MessageType, &m.Fingerprint); err != nil {
			return nil, 0, fmt.Errorf("scan result: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, total, rows.Err()
}
