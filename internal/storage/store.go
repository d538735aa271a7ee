package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence layer for unsubscribed email
// records and durable log events.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			source_app TEXT NOT NULL,
			log_level TEXT NOT NULL,
			message TEXT NOT NULL,
			details_json TEXT,
			inserted_by TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS unsubscribed_emails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_name TEXT NOT NULL,
			sender_email TEXT NOT NULL,
			unsub_method TEXT NOT NULL CHECK (unsub_method IN ('direct_link', 'isp_level')),
			inserted_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_source_app ON logs(source_app)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_sender ON unsubscribed_emails(sender_email)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_inserted_at ON unsubscribed_emails(inserted_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogRecord is a durable log event row.
type LogRecord struct {
	ID          int64           `db:"id" json:"id"`
	Timestamp   time.Time       `db:"timestamp" json:"timestamp"`
	SourceApp   string          `db:"source_app" json:"source_app"`
	LogLevel    string          `db:"log_level" json:"log_level"`
	Message     string          `db:"message" json:"message"`
	DetailsJSON *string         `db:"details_json" json:"-"`
	InsertedBy  *string         `db:"inserted_by" json:"inserted_by"`
	Details     json.RawMessage `db:"-" json:"details_json"`
}

// InsertLog persists a log event and returns its assigned identifier.
func (s *Store) InsertLog(ctx context.Context, sourceApp, logLevel, message string, details map[string]any, insertedBy string) (int64, error) {
	var detailsJSON *string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return 0, fmt.Errorf("marshal details: %w", err)
		}
		str := string(b)
		detailsJSON = &str
	}
	var by *string
	if insertedBy != "" {
		by = &insertedBy
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (timestamp, source_app, log_level, message, details_json, inserted_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), sourceApp, logLevel, message, detailsJSON, by)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("log id: %w", err)
	}
	return id, nil
}

// ListLogs returns a page of log records, newest first, plus the total count
// matching the filters. Empty sourceApp/logLevel mean "any".
func (s *Store) ListLogs(ctx context.Context, limit, offset int, sourceApp, logLevel string) ([]LogRecord, int, error) {
	where := []string{}
	args := []any{}
	if sourceApp != "" {
		where = append(where, "source_app = ?")
		args = append(args, sourceApp)
	}
	if logLevel != "" {
		where = append(where, "log_level = ?")
		args = append(args, logLevel)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM logs"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	query := "SELECT * FROM logs" + clause + " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	var records []LogRecord
	if err := s.db.SelectContext(ctx, &records, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list logs: %w", err)
	}
	for i := range records {
		if records[i].DetailsJSON != nil {
			records[i].Details = json.RawMessage(*records[i].DetailsJSON)
		}
	}
	return records, total, nil
}

// Email is an unsubscribed email record.
type Email struct {
	ID          int64     `db:"id" json:"id"`
	SenderName  string    `db:"sender_name" json:"sender_name"`
	SenderEmail string    `db:"sender_email" json:"sender_email"`
	UnsubMethod string    `db:"unsub_method" json:"unsub_method"`
	InsertedAt  time.Time `db:"inserted_at" json:"inserted_at"`
}

// Filter narrows email queries. Zero values mean "no restriction".
type Filter struct {
	Method   string
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
}

func (f Filter) clauses() (string, []any) {
	where := []string{}
	args := []any{}
	if f.Method != "" {
		where = append(where, "unsub_method = ?")
		args = append(args, f.Method)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		where = append(where, "(LOWER(sender_name) LIKE ? OR LOWER(sender_email) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if f.DateFrom != nil {
		where = append(where, "inserted_at >= ?")
		args = append(args, f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		where = append(where, "inserted_at <= ?")
		args = append(args, f.DateTo.UTC())
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// InsertEmail persists a new unsubscribed email record.
func (s *Store) InsertEmail(ctx context.Context, senderName, senderEmail, unsubMethod string) (Email, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO unsubscribed_emails (sender_name, sender_email, unsub_method, inserted_at)
		 VALUES (?, ?, ?, ?)`,
		senderName, senderEmail, unsubMethod, now)
	if err != nil {
		return Email{}, fmt.Errorf("insert email: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Email{}, fmt.Errorf("email id: %w", err)
	}
	return Email{ID: id, SenderName: senderName, SenderEmail: senderEmail, UnsubMethod: unsubMethod, InsertedAt: now}, nil
}

// ListEmails returns a filtered page ordered newest-first by insertion time,
// id descending as the tiebreak.
func (s *Store) ListEmails(ctx context.Context, limit, offset int, f Filter) ([]Email, error) {
	clause, args := f.clauses()
	query := "SELECT * FROM unsubscribed_emails" + clause +
		" ORDER BY inserted_at DESC, id DESC LIMIT ? OFFSET ?"
	var emails []Email
	if err := s.db.SelectContext(ctx, &emails, query, append(args, limit, offset)...); err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return emails, nil
}

// CountEmails returns the number of records matching the filter.
func (s *Store) CountEmails(ctx context.Context, f Filter) (int, error) {
	clause, args := f.clauses()
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM unsubscribed_emails"+clause, args...); err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return total, nil
}

// IterEmails streams every record matching the filter in ascending insertion
// order, invoking fn once per row. Iteration stops on the first fn error.
func (s *Store) IterEmails(ctx context.Context, f Filter, fn func(Email) error) error {
	clause, args := f.clauses()
	query := "SELECT * FROM unsubscribed_emails" + clause + " ORDER BY inserted_at ASC, id ASC"
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("iterate emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Email
		if err := rows.StructScan(&e); err != nil {
			return fmt.Errorf("scan email: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}
