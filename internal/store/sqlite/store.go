// Package sqlite implements the rule and audit stores on an embedded SQLite
// database. Lists and category flags are kept as JSON text; timestamps as
// RFC 3339 strings.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nikhilbhutani/pagegate/internal/models"
	"github.com/nikhilbhutani/pagegate/internal/rules"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_rules (
	api_key            TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	prompt             TEXT,
	blocked_categories TEXT,
	allow_list         TEXT,
	block_list         TEXT,
	last_seen          TEXT
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	url        TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	decision   TEXT NOT NULL,
	reason     TEXT NOT NULL,
	page_title TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_user_created ON audit_logs (user_id, created_at);
`

type Store struct {
	db *sql.DB
}

// Open opens dsn (a file path or ":memory:") and creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serialises writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create sqlite schema: %w", err)
	}
	return nil
}

// PutRule inserts or replaces the rule set stored under apiKey.
func (s *Store) PutRule(ctx context.Context, apiKey string, r models.RuleData) error {
	cats, err := json.Marshal(r.BlockedCategories)
	if err != nil {
		return fmt.Errorf("encode blocked categories: %w", err)
	}
	allow, err := json.Marshal(r.AllowList)
	if err != nil {
		return fmt.Errorf("encode allow list: %w", err)
	}
	block, err := json.Marshal(r.BlockList)
	if err != nil {
		return fmt.Errorf("encode block list: %w", err)
	}

	var lastSeen sql.NullString
	if r.LastSeen != nil {
		lastSeen = sql.NullString{String: r.LastSeen.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_rules (api_key, user_id, prompt, blocked_categories, allow_list, block_list, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		apiKey, r.UserID, r.Prompt, string(cats), string(allow), string(block), lastSeen,
	)
	if err != nil {
		return fmt.Errorf("put user rules: %w", err)
	}
	return nil
}

func (s *Store) FindByAPIKey(ctx context.Context, apiKey string) (*models.RuleData, error) {
	var (
		r                   models.RuleData
		prompt, cats        sql.NullString
		allow, block, since sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, prompt, blocked_categories, allow_list, block_list, last_seen
		 FROM user_rules WHERE api_key = ?`, apiKey,
	).Scan(&r.UserID, &prompt, &cats, &allow, &block, &since)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rules.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user rules: %w", err)
	}

	r.Prompt = prompt.String
	if err := decodeJSON(cats, &r.BlockedCategories); err != nil {
		return nil, fmt.Errorf("decode blocked categories: %w", err)
	}
	if err := decodeJSON(allow, &r.AllowList); err != nil {
		return nil, fmt.Errorf("decode allow list: %w", err)
	}
	if err := decodeJSON(block, &r.BlockList); err != nil {
		return nil, fmt.Errorf("decode block list: %w", err)
	}
	if since.Valid && since.String != "" {
		t, err := time.Parse(time.RFC3339Nano, since.String)
		if err != nil {
			return nil, fmt.Errorf("decode last seen: %w", err)
		}
		r.LastSeen = &t
	}
	return &r, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, apiKey string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE user_rules SET last_seen = ? WHERE api_key = ?",
		at.UTC().Format(time.RFC3339Nano), apiKey)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

func (s *Store) InsertAudit(ctx context.Context, e models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, url, domain, decision, reason, page_title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID, e.URL, e.Domain, string(e.Decision), string(e.Reason), e.PageTitle,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// RecentAudits returns up to limit entries for userID, newest first.
func (s *Store) RecentAudits(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, url, domain, decision, reason, page_title, created_at
		 FROM audit_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var (
			e                models.AuditEntry
			id, created      string
			decision, reason string
		)
		if err := rows.Scan(&id, &e.UserID, &e.URL, &e.Domain, &decision, &reason, &e.PageTitle, &created); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("decode audit id: %w", err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("decode audit time: %w", err)
		}
		e.Decision = models.Decision(decision)
		e.Reason = models.Reason(reason)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func decodeJSON(v sql.NullString, dst any) error {
	if !v.Valid || v.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(v.String), dst)
}
