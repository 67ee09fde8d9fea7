// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides idempotent message persistence with WAL journaling and auto-vacuum

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 in UTC. Stored timestamps sort lexicographically,
// which the retention delete and the selection window update rely on.
const timeLayout = time.RFC3339

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite store at the given path.
// The schema is created if it doesn't exist, WAL journaling is enabled
// for concurrent readers, and full auto-vacuum is enabled so deleted
// rows give disk space back. Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Wait out short lock contention between the ingest and processor paths
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.enableAutoVacuum(); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling auto vacuum: %w", err)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the messages table if it doesn't exist.
// The composite primary key is what makes InsertMessage idempotent;
// the timestamp index serves retention deletes and ordered selection reads.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id           INTEGER NOT NULL,
			channel_name TEXT NOT NULL,
			channel_id   INTEGER,
			timestamp    TEXT NOT NULL,
			raw_text     TEXT NOT NULL DEFAULT '',
			author       TEXT,
			status       TEXT NOT NULL DEFAULT 'new',
			PRIMARY KEY (id, channel_name, timestamp),

			CHECK (status IN ('new', 'completed'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_timestamp
			ON messages(timestamp);

		CREATE INDEX IF NOT EXISTS idx_messages_status_timestamp
			ON messages(status, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// enableAutoVacuum switches the database to full auto-vacuum mode.
// The pragma only takes effect after a VACUUM rebuild, so databases
// created before the mode was introduced get rebuilt once here.
func (s *SQLiteStore) enableAutoVacuum() error {
	var mode int
	if err := s.db.QueryRow("PRAGMA auto_vacuum").Scan(&mode); err != nil {
		return fmt.Errorf("querying auto_vacuum mode: %w", err)
	}

	// 1 == FULL
	if mode == 1 {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA auto_vacuum=FULL"); err != nil {
		return fmt.Errorf("setting auto_vacuum: %w", err)
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("rebuilding for auto_vacuum: %w", err)
	}

	s.logger.Info("rebuilt database with auto_vacuum=FULL")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// InsertMessage persists a message. A duplicate (id, channel_name, timestamp)
// triple succeeds as a no-op, keeping the fields of the first insert; this is
// the idempotency contract for source-side redelivery.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *Message) error {
	status := msg.Status
	if status == "" {
		status = StatusNew
	}

	query := `
		INSERT OR IGNORE INTO messages (id, channel_name, channel_id, timestamp, raw_text, author, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ChannelName,
		nullInt64(msg.ChannelID),
		msg.Timestamp.UTC().Format(timeLayout),
		msg.Text,
		nullString(msg.Author),
		status,
	)
	if err != nil {
		return &StorageError{Op: "insert message", Err: err}
	}

	s.logger.Debug("saved message", "id", msg.ID, "channel", msg.ChannelName)
	return nil
}

// DeleteOlderThan removes every message older than the cutoff, regardless
// of status, and returns the number of rows deleted.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-cutoff).Format(timeLayout)

	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, &StorageError{Op: "delete old messages", Err: err}
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "delete old messages", Err: err}
	}

	if deleted > 0 {
		s.logger.Debug("deleted old messages", "count", deleted, "cutoff", threshold)
	}
	return deleted, nil
}

// ReclaimSpace truncates the write-ahead log so the on-disk footprint
// stays bounded. Best-effort; safe to call alongside readers and writers.
func (s *SQLiteStore) ReclaimSpace(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return &StorageError{Op: "wal checkpoint", Err: err}
	}
	return nil
}

// SelectNew returns messages with status "new" ordered by timestamp
// ascending. Equal timestamps keep insertion order via rowid.
// A limit <= 0 returns all matching rows.
func (s *SQLiteStore) SelectNew(ctx context.Context, limit int) ([]*Message, error) {
	query := `
		SELECT id, channel_name, channel_id, timestamp, raw_text, author, status
		FROM messages
		WHERE status = ?
		ORDER BY timestamp ASC, rowid ASC
	`
	args := []any{StatusNew}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "select new messages", Err: err}
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var timestampStr string
		var channelID sql.NullInt64
		var author sql.NullString

		if err := rows.Scan(&msg.ID, &msg.ChannelName, &channelID, &timestampStr, &msg.Text, &author, &msg.Status); err != nil {
			return nil, &StorageError{Op: "scan message row", Err: err}
		}

		msg.Timestamp, err = time.Parse(timeLayout, timestampStr)
		if err != nil {
			return nil, &StorageError{Op: "parse message timestamp", Err: err}
		}

		if channelID.Valid {
			msg.ChannelID = channelID.Int64
		}
		if author.Valid {
			msg.Author = author.String
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate message rows", Err: err}
	}

	return messages, nil
}

// MarkCompletedSince transitions every "new" message with a timestamp at
// or after since to "completed" and returns the number of rows updated.
// Sweeping by timestamp rather than an id list also completes messages
// ingested concurrently while the selection batch was being processed.
func (s *SQLiteStore) MarkCompletedSince(ctx context.Context, since time.Time) (int64, error) {
	query := `
		UPDATE messages
		SET status = ?
		WHERE status = ? AND timestamp >= ?
	`

	result, err := s.db.ExecContext(ctx, query,
		StatusCompleted,
		StatusNew,
		since.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, &StorageError{Op: "mark completed", Err: err}
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "mark completed", Err: err}
	}

	s.logger.Debug("marked messages completed", "count", updated, "since", since.UTC().Format(timeLayout))
	return updated, nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 returns nil for zero, otherwise the value itself
func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
