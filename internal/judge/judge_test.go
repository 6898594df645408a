package judge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/llm"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/models"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*llm.ChatResponse)
	return resp, args.Error(1)
}

func (m *MockGateway) Provider(name string) (llm.Provider, error) {
	return nil, errors.New("not used")
}

func testConfig() config.JudgeConfig {
	return config.JudgeConfig{
		Model:               "gpt-4o-mini",
		Timeout:             time.Second,
		MaxTokens:           5,
		BodySnippetChars:    50,
		SearchTitleShortcut: true,
	}
}

func reply(content string) *llm.ChatResponse {
	return &llm.ChatResponse{Provider: "openai", Model: "gpt-4o-mini", Content: content}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in   string
		want models.Decision
	}{
		{"ALLOW", models.DecisionAllow},
		{"  allow.\n", models.DecisionAllow},
		{"BLOCK", models.DecisionBlock},
		{"I would block this page.", models.DecisionBlock},
		{"ALLOW? No. BLOCK.", models.DecisionBlock},
		{"", models.DecisionBlock},
		{"Maybe", models.DecisionBlock},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVerdict(tt.in), "ParseVerdict(%q)", tt.in)
	}
}

func TestSearchMatchesTitle(t *testing.T) {
	assert.True(t, SearchMatchesTitle("Go Tutorial", "  go tutorial for beginners "))
	assert.True(t, SearchMatchesTitle("learn go concurrency patterns", "Concurrency Patterns"))
	assert.False(t, SearchMatchesTitle("", "anything"))
	assert.False(t, SearchMatchesTitle("cats", ""))
	assert.False(t, SearchMatchesTitle("cats", "dogs"))
}

func TestJudge_ShortcutSkipsBackend(t *testing.T) {
	gw := new(MockGateway)
	j := New(gw, testConfig(), logging.NewNoopLogger())

	d, err := j.Judge(context.Background(), models.PageDescriptor{
		URL:         "https://example.com/a",
		Title:       "Rust Ownership Explained",
		SearchQuery: "rust ownership",
	}, &models.RuleData{})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllow, d)
	gw.AssertNumberOfCalls(t, "Chat", 0)
}

func TestJudge_ShortcutDisabled(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Chat", mock.Anything, mock.Anything).Return(reply("BLOCK"), nil).Once()
	cfg := testConfig()
	cfg.SearchTitleShortcut = false
	j := New(gw, cfg, logging.NewNoopLogger())

	d, err := j.Judge(context.Background(), models.PageDescriptor{
		URL: "https://example.com", Title: "cats", SearchQuery: "cats",
	}, &models.RuleData{})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionBlock, d)
	gw.AssertExpectations(t)
}

func TestJudge_UsesBackendVerdict(t *testing.T) {
	gw := new(MockGateway)
	var sent llm.ChatRequest
	gw.On("Chat", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(llm.ChatRequest)
	}).Return(reply("Allow"), nil).Once()
	j := New(gw, testConfig(), logging.NewNoopLogger())

	d, err := j.Judge(context.Background(), models.PageDescriptor{URL: "https://docs.python.org", Title: "Docs"},
		&models.RuleData{Prompt: "Only allow programming docs."})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllow, d)

	assert.Equal(t, "gpt-4o-mini", sent.Model)
	require.NotNil(t, sent.Temperature)
	assert.Zero(t, *sent.Temperature)
	assert.Equal(t, 5, sent.MaxTokens)
	require.Len(t, sent.Messages, 1)
	assert.Contains(t, sent.Messages[0].Content, "Only allow programming docs.")
}

func TestJudge_BackendErrorBlocks(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("503 service unavailable"))
	j := New(gw, testConfig(), logging.NewNoopLogger())

	d, err := j.Judge(context.Background(), models.PageDescriptor{URL: "https://example.com"}, &models.RuleData{})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionBlock, d)
}

func TestJudge_UnparseableReplyBlocks(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Chat", mock.Anything, mock.Anything).Return(reply("I am not sure."), nil)
	j := New(gw, testConfig(), logging.NewNoopLogger())

	d, err := j.Judge(context.Background(), models.PageDescriptor{URL: "https://example.com"}, &models.RuleData{})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionBlock, d)
}

func TestJudge_AppliesTimeout(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Chat", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	}).Return(reply("ALLOW"), nil)
	j := New(gw, testConfig(), logging.NewNoopLogger())

	_, err := j.Judge(context.Background(), models.PageDescriptor{URL: "https://example.com"}, &models.RuleData{})
	require.NoError(t, err)
}

func TestBuildPrompt(t *testing.T) {
	rule := &models.RuleData{
		Prompt: "No gaming, but chess is fine.",
		BlockedCategories: map[models.CategoryKey]bool{
			models.CategoryGames:    true,
			models.CategoryShopping: false,
			"unknown":               true,
		},
	}
	page := models.PageDescriptor{
		URL:      "https://lichess.org",
		Title:    "Lichess",
		BodyText: strings.Repeat("x", 80),
	}

	text, err := BuildPrompt(page, rule, 50)
	require.NoError(t, err)
	assert.Contains(t, text, "No gaming, but chess is fine.")
	assert.Contains(t, text, "- Games: interactive gameplay only")
	assert.NotContains(t, text, "- Shopping: transactional")
	assert.Contains(t, text, "URL: https://lichess.org")
	assert.Contains(t, text, "H1: N/A")
	assert.Contains(t, text, "Search query: N/A")
	assert.Contains(t, text, "Body snippet: "+strings.Repeat("x", 50)+"\n")
	assert.Contains(t, text, "exactly one word")
	assert.Contains(t, text, "Videos, streams or articles about games are NOT games")
	assert.Contains(t, text, "Reviews and unboxings are NOT shopping")
}

func TestBuildPrompt_Defaults(t *testing.T) {
	text, err := BuildPrompt(models.PageDescriptor{URL: "https://x.test"}, &models.RuleData{}, 0)
	require.NoError(t, err)
	assert.Contains(t, text, models.DefaultPolicyPrompt)
	assert.Contains(t, text, "BLOCKED CATEGORIES:\nNone")
}
