// Package postgres implements the rule and audit stores on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/pagegate/internal/models"
	"github.com/nikhilbhutani/pagegate/internal/rules"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) FindByAPIKey(ctx context.Context, apiKey string) (*models.RuleData, error) {
	var (
		r    models.RuleData
		cats []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT user_id, COALESCE(prompt, ''), blocked_categories, allow_list, block_list, last_seen
		 FROM user_rules WHERE api_key = $1`, apiKey,
	).Scan(&r.UserID, &r.Prompt, &cats, &r.AllowList, &r.BlockList, &r.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user rules: %w", err)
	}

	if len(cats) > 0 {
		if err := json.Unmarshal(cats, &r.BlockedCategories); err != nil {
			return nil, fmt.Errorf("decode blocked categories: %w", err)
		}
	}
	return &r, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, apiKey string, at time.Time) error {
	_, err := s.db.Exec(ctx, "UPDATE user_rules SET last_seen = $1 WHERE api_key = $2", at, apiKey)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

func (s *Store) InsertAudit(ctx context.Context, e models.AuditEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, url, domain, decision, reason, page_title, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.URL, e.Domain, string(e.Decision), string(e.Reason), e.PageTitle, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
