package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/model/sms"
)

// SQLite implements ResponseStore and PreferenceStore on a single database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sms_responses (
			sid TEXT PRIMARY KEY,
			recipient TEXT NOT NULL,
			language TEXT NOT NULL,
			status TEXT NOT NULL,
			response TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS language_preferences (
			user_id TEXT PRIMARY KEY,
			language TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetResponse(ctx context.Context, sid string) (sms.ResponseRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sid, recipient, language, status, response, error, created_at
		 FROM sms_responses WHERE sid = ?`, sid)

	rec, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sms.ResponseRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLite) PutResponse(ctx context.Context, rec sms.ResponseRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sms_responses (sid, recipient, language, status, response, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sid) DO UPDATE SET
			recipient = excluded.recipient,
			language = excluded.language,
			status = excluded.status,
			response = excluded.response,
			error = excluded.error,
			created_at = excluded.created_at`,
		rec.SID, rec.To, string(rec.Language), string(rec.Status), rec.Response, rec.Error, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store response %s: %w", rec.SID, err)
	}
	return nil
}

func (s *SQLite) ListResponses(ctx context.Context) ([]sms.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sid, recipient, language, status, response, error, created_at
		 FROM sms_responses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []sms.ResponseRecord
	for rows.Next() {
		rec, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResponse(row scanner) (sms.ResponseRecord, error) {
	var (
		rec          sms.ResponseRecord
		lang, status string
	)
	if err := row.Scan(&rec.SID, &rec.To, &lang, &status, &rec.Response, &rec.Error, &rec.CreatedAt); err != nil {
		return sms.ResponseRecord{}, err
	}
	rec.Language = language.Code(lang)
	rec.Status = sms.Status(status)
	return rec, nil
}

func (s *SQLite) GetLanguage(ctx context.Context, userID string) (language.Code, error) {
	var lang string
	err := s.db.QueryRowContext(ctx,
		`SELECT language FROM language_preferences WHERE user_id = ?`, userID).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load language preference: %w", err)
	}
	return language.Code(lang), nil
}

func (s *SQLite) SetLanguage(ctx context.Context, userID string, code language.Code) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO language_preferences (user_id, language, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET language = excluded.language, updated_at = excluded.updated_at`,
		userID, string(code), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save language preference: %w", err)
	}
	return nil
}
