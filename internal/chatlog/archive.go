package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"coldchat/internal/domain"
)

// SQLiteArchive implements domain.Archive: a write-only transcript of
// every message the session emits, for later inspection. It is never read
// back into a live session; conversation state stays in memory.
type SQLiteArchive struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteArchive(dbPath string, logger *slog.Logger) (*SQLiteArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create archive directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open archive: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a := &SQLiteArchive{db: db, logger: logger}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive migration failed: %w", err)
	}
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcript (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id  TEXT NOT NULL,
		sender      TEXT NOT NULL,
		content     TEXT,
		status      TEXT,
		interest    INTEGER DEFAULT 0,
		thoughts    TEXT,
		has_image   INTEGER DEFAULT 0,
		sent_at     DATETIME NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_transcript_time ON transcript(sent_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Record appends one message to the transcript. Image payloads are not
// stored, only whether one was attached.
func (a *SQLiteArchive) Record(ctx context.Context, msg domain.Message) error {
	hasImage := 0
	if msg.Image != "" {
		hasImage = 1
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO transcript (message_id, sender, content, status, interest, thoughts, has_image, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Sender), msg.Text, string(msg.Status),
		msg.InterestLevel, msg.Thoughts, hasImage, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record transcript row: %w", err)
	}
	return nil
}

// Count returns the number of transcript rows (used by doctor).
func (a *SQLiteArchive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript`).Scan(&n)
	return n, err
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
