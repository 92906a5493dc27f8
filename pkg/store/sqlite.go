package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements both Ledger and InteractionStore on a single SQLite
// database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies any
// pending schema migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; keep the pool at one connection so
	// writes serialize in-process instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations applies the embedded migrations.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists reports whether a dedup entry exists for the pair.
func (s *SQLiteStore) Exists(ctx context.Context, channelID, messageTS string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM message_dedup WHERE channel_id = ? AND message_ts = ?`,
		channelID, messageTS,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query dedup entry: %w", err)
	}

	return true, nil
}

// Record inserts a dedup entry. The primary key on (channel_id, message_ts)
// makes concurrent racers resolve to exactly one winner; losers get
// ErrAlreadyRecorded.
func (s *SQLiteStore) Record(ctx context.Context, channelID, messageTS string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_dedup (channel_id, message_ts) VALUES (?, ?)`,
		channelID, messageTS,
	)
	if err != nil {
		return fmt.Errorf("failed to record dedup entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyRecorded
	}

	return nil
}

// Create stores a new interaction.
func (s *SQLiteStore) Create(ctx context.Context, in Interaction) error {
	comments := in.Comments
	if comments == nil {
		comments = []Comment{}
	}
	commentsJSON, err := json.Marshal(comments)
	if err != nil {
		return fmt.Errorf("failed to marshal comments: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interactions
		 (thread_id, question_text, answer_text, channel_id, assistant_thread_id, question_ts, answer_ts, comments)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ThreadID, in.QuestionText, in.AnswerText, in.ChannelID,
		in.AssistantThreadID, in.QuestionTS, in.AnswerTS, string(commentsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create interaction %s: %w", in.ThreadID, err)
	}

	return nil
}

// GetByThreadID returns the interaction keyed by threadID.
func (s *SQLiteStore) GetByThreadID(ctx context.Context, threadID string) (*Interaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, question_text, answer_text, channel_id, assistant_thread_id, question_ts, answer_ts, comments
		 FROM interactions WHERE thread_id = ?`,
		threadID,
	)

	in, err := scanInteraction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction %s: %w", threadID, err)
	}

	return in, nil
}

// AppendComment appends a comment to an interaction's comment sequence. The
// read-modify-write runs inside a transaction so concurrent appends to the
// same thread cannot drop each other's comments.
func (s *SQLiteStore) AppendComment(ctx context.Context, threadID string, c Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var commentsJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT comments FROM interactions WHERE thread_id = ?`, threadID,
	).Scan(&commentsJSON)
	if err == sql.ErrNoRows {
		log.Printf("AppendComment: no interaction for thread %s, dropping comment", threadID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load comments for thread %s: %w", threadID, err)
	}

	var comments []Comment
	if err := json.Unmarshal([]byte(commentsJSON), &comments); err != nil {
		return fmt.Errorf("failed to unmarshal comments for thread %s: %w", threadID, err)
	}

	comments = append(comments, c)
	updated, err := json.Marshal(comments)
	if err != nil {
		return fmt.Errorf("failed to marshal comments: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE interactions SET comments = ? WHERE thread_id = ?`,
		string(updated), threadID,
	); err != nil {
		return fmt.Errorf("failed to update comments for thread %s: %w", threadID, err)
	}

	return tx.Commit()
}

// List returns all interactions, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, question_text, answer_text, channel_id, assistant_thread_id, question_ts, answer_ts, comments
		 FROM interactions ORDER BY question_ts DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, *in)
	}

	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInteraction(s scanner) (*Interaction, error) {
	var in Interaction
	var commentsJSON string

	err := s.Scan(
		&in.ThreadID, &in.QuestionText, &in.AnswerText, &in.ChannelID,
		&in.AssistantThreadID, &in.QuestionTS, &in.AnswerTS, &commentsJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(commentsJSON), &in.Comments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal comments: %w", err)
	}

	return &in, nil
}
