package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bassamadnan/rfimail/body"
	"github.com/bassamadnan/rfimail/parser"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the database at path, enables WAL mode and
// foreign keys, and runs any pending migrations. ":memory:" gives a
// throwaway database.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

type messageRow struct {
	ThreadID        string        `db:"thread_id"`
	MessageID       string        `db:"message_id"`
	MimeType        string        `db:"mime_type"`
	Subject         string        `db:"subject"`
	RawSubject      string        `db:"raw_subject"`
	Sender          string        `db:"sender"`
	Recipients      string        `db:"recipients"`
	Cc              string        `db:"cc"`
	SentAt          sql.NullInt64 `db:"sent_at"`
	XMailer         string        `db:"x_mailer"`
	Body            string        `db:"body"`
	RawBody         string        `db:"raw_body"`
	ThreadType      string        `db:"thread_type"`
	JobName         string        `db:"job_name"`
	ThreadTypeScore int           `db:"thread_type_score"`
	JobNameScore    int           `db:"job_name_score"`
	RunID           string        `db:"run_id"`
	StoredAt        int64         `db:"stored_at"`
}

type attachmentRow struct {
	PartID       string `db:"part_id"`
	Filename     string `db:"filename"`
	AttachmentID string `db:"attachment_id"`
	MimeType     string `db:"mime_type"`
	Size         int64  `db:"size"`
}

func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

// UpsertMessage stores rec, creating or updating its thread, and replaces
// the message's attachments. Storing the same record again leaves the same
// rows behind. A thread keeps the first known classification it was given.
func (s *SQLiteStore) UpsertMessage(ctx context.Context, rec parser.Record, runID string) error {
	if rec.ThreadID == "" || rec.MessageID == "" {
		return fmt.Errorf("record needs both a thread id and a message id")
	}
	to, err := json.Marshal(nonNil(rec.To))
	if err != nil {
		return fmt.Errorf("marshaling recipients for %s: %w", rec.MessageID, err)
	}
	cc, err := json.Marshal(nonNil(rec.Cc))
	if err != nil {
		return fmt.Errorf("marshaling cc for %s: %w", rec.MessageID, err)
	}
	now := s.now().UnixMilli()
	sentAt := toMillis(rec.Date)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (id, subject, thread_type, job_name, first_seen_at, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = CASE WHEN threads.subject = '' THEN excluded.subject ELSE threads.subject END,
			thread_type = CASE WHEN threads.thread_type = 'Unknown' THEN excluded.thread_type ELSE threads.thread_type END,
			job_name = CASE WHEN threads.job_name = 'Unknown' THEN excluded.job_name ELSE threads.job_name END,
			last_message_at = CASE
				WHEN excluded.last_message_at IS NULL THEN threads.last_message_at
				WHEN threads.last_message_at IS NULL OR excluded.last_message_at > threads.last_message_at THEN excluded.last_message_at
				ELSE threads.last_message_at
			END`,
		rec.ThreadID, rec.Subject, rec.ThreadType, rec.JobName, now, sentAt,
	)
	if err != nil {
		return fmt.Errorf("upserting thread %s: %w", rec.ThreadID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (
			thread_id, message_id, mime_type, subject, raw_subject,
			sender, recipients, cc, sent_at, x_mailer,
			body, raw_body, thread_type, job_name,
			thread_type_score, job_name_score, run_id, stored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, message_id) DO UPDATE SET
			mime_type = excluded.mime_type,
			subject = excluded.subject,
			raw_subject = excluded.raw_subject,
			sender = excluded.sender,
			recipients = excluded.recipients,
			cc = excluded.cc,
			sent_at = excluded.sent_at,
			x_mailer = excluded.x_mailer,
			body = excluded.body,
			raw_body = excluded.raw_body,
			thread_type = excluded.thread_type,
			job_name = excluded.job_name,
			thread_type_score = excluded.thread_type_score,
			job_name_score = excluded.job_name_score,
			run_id = excluded.run_id`,
		rec.ThreadID, rec.MessageID, rec.MimeType, rec.Subject, rec.RawSubject,
		rec.From, string(to), string(cc), sentAt, rec.XMailer,
		rec.Body, rec.DebugUnparsedBody, rec.ThreadType, rec.JobName,
		rec.ThreadTypeScore, rec.JobNameScore, runID, now,
	)
	if err != nil {
		return fmt.Errorf("upserting message %s: %w", rec.MessageID, err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attachments WHERE thread_id = ? AND message_id = ?",
		rec.ThreadID, rec.MessageID); err != nil {
		return fmt.Errorf("clearing attachments of %s: %w", rec.MessageID, err)
	}
	for i, a := range rec.Attachments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (thread_id, message_id, part_id, filename, attachment_id, mime_type, size, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ThreadID, rec.MessageID, a.PartID, a.Filename, a.AttachmentID, a.MimeType, a.Size, i,
		)
		if err != nil {
			return fmt.Errorf("inserting attachment %q of %s: %w", a.Filename, rec.MessageID, err)
		}
	}

	return tx.Commit()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// MessageExists reports whether the message is already stored.
func (s *SQLiteStore) MessageExists(ctx context.Context, threadID, messageID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM messages WHERE thread_id = ? AND message_id = ?", threadID, messageID)
	if err != nil {
		return false, fmt.Errorf("checking message %s: %w", messageID, err)
	}
	return n > 0, nil
}

// GetMessage returns one stored record or ErrNotFound.
func (s *SQLiteStore) GetMessage(ctx context.Context, threadID, messageID string) (*parser.Record, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM messages WHERE thread_id = ? AND message_id = ?", threadID, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s/%s: %w", threadID, messageID, ErrNotFound)
		}
		return nil, fmt.Errorf("getting message %s: %w", messageID, err)
	}
	rec, err := s.toRecord(ctx, row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListMessages returns records matching f, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, f MessageFilter) ([]parser.Record, error) {
	var conditions []string
	var args []interface{}

	if f.ThreadType != "" {
		conditions = append(conditions, "thread_type = ?")
		args = append(args, f.ThreadType)
	}
	if f.JobName != "" {
		conditions = append(conditions, "job_name = ?")
		args = append(args, f.JobName)
	}
	if f.ThreadID != "" {
		conditions = append(conditions, "thread_id = ?")
		args = append(args, f.ThreadID)
	}

	query := "SELECT * FROM messages"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY COALESCE(sent_at, 0) DESC, message_id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
		if f.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", f.Offset)
		}
	} else if f.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Offset)
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	records := make([]parser.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.toRecord(ctx, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *SQLiteStore) toRecord(ctx context.Context, row messageRow) (parser.Record, error) {
	rec := parser.Record{
		MessageID:         row.MessageID,
		ThreadID:          row.ThreadID,
		MimeType:          row.MimeType,
		Subject:           row.Subject,
		RawSubject:        row.RawSubject,
		From:              row.Sender,
		Date:              fromMillis(row.SentAt),
		XMailer:           row.XMailer,
		Body:              row.Body,
		DebugUnparsedBody: row.RawBody,
		ThreadType:        row.ThreadType,
		JobName:           row.JobName,
		ThreadTypeScore:   row.ThreadTypeScore,
		JobNameScore:      row.JobNameScore,
		Attachments:       []body.Attachment{},
	}
	if err := json.Unmarshal([]byte(row.Recipients), &rec.To); err != nil {
		return rec, fmt.Errorf("decoding recipients of %s: %w", row.MessageID, err)
	}
	if err := json.Unmarshal([]byte(row.Cc), &rec.Cc); err != nil {
		return rec, fmt.Errorf("decoding cc of %s: %w", row.MessageID, err)
	}

	var atts []attachmentRow
	err := s.db.SelectContext(ctx, &atts, `
		SELECT part_id, filename, attachment_id, mime_type, size FROM attachments
		WHERE thread_id = ? AND message_id = ? ORDER BY position`,
		row.ThreadID, row.MessageID)
	if err != nil {
		return rec, fmt.Errorf("querying attachments of %s: %w", row.MessageID, err)
	}
	for _, a := range atts {
		rec.Attachments = append(rec.Attachments, body.Attachment{
			Filename:     a.Filename,
			AttachmentID: a.AttachmentID,
			MimeType:     a.MimeType,
			PartID:       a.PartID,
			Size:         a.Size,
		})
	}
	return rec, nil
}

// ListThreads returns every thread with its message count, most recently
// active first.
func (s *SQLiteStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT t.id, t.subject, t.thread_type, t.job_name, t.first_seen_at, t.last_message_at,
			(SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id) AS message_count
		FROM threads t
		ORDER BY COALESCE(t.last_message_at, t.first_seen_at) DESC, t.id`)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var (
			t         Thread
			firstSeen int64
			last      sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Subject, &t.ThreadType, &t.JobName, &firstSeen, &last, &t.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		t.FirstSeenAt = time.UnixMilli(firstSeen).UTC()
		t.LastMessageAt = fromMillis(last)
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// StartRun records the beginning of an ingest run from source.
func (s *SQLiteStore) StartRun(ctx context.Context, source string) (Run, error) {
	run := Run{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: time.UnixMilli(s.now().UnixMilli()).UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ingest_runs (id, source, started_at) VALUES (?, ?, ?)",
		run.ID, run.Source, run.StartedAt.UnixMilli())
	if err != nil {
		return Run{}, fmt.Errorf("starting run: %w", err)
	}
	return run, nil
}

// FinishRun stores the counters of run and stamps its finish time.
func (s *SQLiteStore) FinishRun(ctx context.Context, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs SET
			finished_at = ?, found = ?, stored = ?, skipped = ?, failed = ?, error = ?
		WHERE id = ?`,
		run.FinishedAt.UnixMilli(), run.Found, run.Stored, run.Skipped, run.Failed, run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

type runRow struct {
	ID         string        `db:"id"`
	Source     string        `db:"source"`
	StartedAt  int64         `db:"started_at"`
	FinishedAt sql.NullInt64 `db:"finished_at"`
	Found      int           `db:"found"`
	Stored     int           `db:"stored"`
	Skipped    int           `db:"skipped"`
	Failed     int           `db:"failed"`
	Error      string        `db:"error"`
}

// Runs returns the most recent runs first. limit <= 0 returns all.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT * FROM ingest_runs ORDER BY started_at DESC, id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, Run{
			ID:         r.ID,
			Source:     r.Source,
			StartedAt:  time.UnixMilli(r.StartedAt).UTC(),
			FinishedAt: fromMillis(r.FinishedAt),
			Found:      r.Found,
			Stored:     r.Stored,
			Skipped:    r.Skipped,
			Failed:     r.Failed,
			Error:      r.Error,
		})
	}
	return runs, nil
}
