package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pagegate/internal/models"
	"github.com/nikhilbhutani/pagegate/internal/rules"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_FindByAPIKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRule(ctx, "key-1", models.RuleData{
		UserID:            "u1",
		Prompt:            "No social media during work hours.",
		AllowList:         []string{"docs.python.org"},
		BlockList:         []string{"reddit.com"},
		BlockedCategories: map[models.CategoryKey]bool{models.CategorySocial: true, models.CategoryNews: false},
	}))

	r, err := s.FindByAPIKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, "No social media during work hours.", r.Prompt)
	assert.Equal(t, []string{"docs.python.org"}, r.AllowList)
	assert.Equal(t, []string{"reddit.com"}, r.BlockList)
	assert.True(t, r.BlockedCategories[models.CategorySocial])
	assert.False(t, r.BlockedCategories[models.CategoryNews])
	assert.Nil(t, r.LastSeen)
}

func TestStore_NullColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, "INSERT INTO user_rules (api_key, user_id) VALUES (?, ?)", "bare", "u2")
	require.NoError(t, err)

	r, err := s.FindByAPIKey(ctx, "bare")
	require.NoError(t, err)
	assert.Equal(t, "u2", r.UserID)
	assert.Empty(t, r.Prompt)
	assert.Nil(t, r.AllowList)
	assert.Nil(t, r.BlockedCategories)
}

func TestStore_UnknownKey(t *testing.T) {
	s := openTestStore(t)

	_, err := s.FindByAPIKey(context.Background(), "missing")
	assert.ErrorIs(t, err, rules.ErrNotFound)
}

func TestStore_TouchLastSeen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutRule(ctx, "key-1", models.RuleData{UserID: "u1"}))

	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.TouchLastSeen(ctx, "key-1", at))

	r, err := s.FindByAPIKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, r.LastSeen)
	assert.True(t, at.Equal(*r.LastSeen))
}

func TestStore_TouchUnknownKeyIsNoop(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.TouchLastSeen(context.Background(), "missing", time.Now()))
}

func TestStore_InsertAudit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := models.AuditEntry{
		ID:        uuid.New(),
		UserID:    "u1",
		URL:       "https://reddit.com/r/golang",
		Domain:    "reddit.com",
		Decision:  models.DecisionBlock,
		Reason:    models.ReasonBlockList,
		PageTitle: "r/golang",
		Timestamp: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
	newer := models.AuditEntry{
		ID:        uuid.New(),
		UserID:    "u1",
		URL:       "https://docs.python.org/3/",
		Domain:    "python.org",
		Decision:  models.DecisionAllow,
		Reason:    models.ReasonAllowList,
		Timestamp: time.Date(2026, 10, 15, 9, 5, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertAudit(ctx, older))
	require.NoError(t, s.InsertAudit(ctx, newer))
	require.NoError(t, s.InsertAudit(ctx, models.AuditEntry{
		ID: uuid.New(), UserID: "u2", URL: "https://x.com", Decision: models.DecisionBlock,
		Reason: models.ReasonAIDecision, Timestamp: time.Now(),
	}))

	got, err := s.RecentAudits(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
	assert.Equal(t, models.ReasonBlockList, got[1].Reason)
	assert.Equal(t, "r/golang", got[1].PageTitle)
	assert.True(t, older.Timestamp.Equal(got[1].Timestamp))
}

func TestStore_DuplicateAuditID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := models.AuditEntry{ID: uuid.New(), UserID: "u1", URL: "https://a.com", Decision: models.DecisionAllow,
		Reason: models.ReasonNavigation, Timestamp: time.Now()}

	require.NoError(t, s.InsertAudit(ctx, e))
	assert.Error(t, s.InsertAudit(ctx, e))
}

func TestStore_WithRulesGateway(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutRule(ctx, "key-1", models.RuleData{
		UserID:    "u1",
		AllowList: []string{" Docs.Python.org ", ""},
	}))

	g := rules.NewGateway(s, time.Second, nil)
	r := g.Fetch(ctx, "key-1")
	require.NotNil(t, r)
	assert.Equal(t, models.DefaultPolicyPrompt, r.Prompt)
	assert.Equal(t, []string{"docs.python.org"}, r.AllowList)
	assert.NotNil(t, r.BlockList)

	require.NoError(t, g.Touch(ctx, "key-1"))
	r = g.Fetch(ctx, "key-1")
	require.NotNil(t, r)
	assert.NotNil(t, r.LastSeen)
}

func TestStore_Ping(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
