package models

import "time"

// DefaultPolicyPrompt applies when a rule record carries no free-text policy.
const DefaultPolicyPrompt = "Block social media and news."

// CategoryKey is one of the fixed content categories a user can block.
type CategoryKey string

const (
	CategorySocial        CategoryKey = "social"
	CategoryNews          CategoryKey = "news"
	CategoryEntertainment CategoryKey = "entertainment"
	CategoryGames         CategoryKey = "games"
	CategoryShopping      CategoryKey = "shopping"
	CategoryMature        CategoryKey = "mature"
)

// Category pairs a key with the label and scope rendered into judge prompts.
type Category struct {
	Key         CategoryKey
	Label       string
	Description string
}

var categories = []Category{
	{CategorySocial, "Social Media", "feeds, profiles and messaging on social networks"},
	{CategoryNews, "News", "news outlets, current events and political commentary"},
	{CategoryEntertainment, "Entertainment", "passive watching: videos, streams, movies and TV, including videos or streams of other people playing games"},
	{CategoryGames, "Games", "interactive gameplay only; videos about games are not games"},
	{CategoryShopping, "Shopping", "transactional pages only: product listings, carts and checkout; reviews and unboxings are not shopping"},
	{CategoryMature, "Mature Content", "adult, gambling, violent or otherwise age-restricted material"},
}

var categoryIndex = func() map[CategoryKey]Category {
	m := make(map[CategoryKey]Category, len(categories))
	for _, c := range categories {
		m[c.Key] = c
	}
	return m
}()

// Categories returns the fixed category table in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// LookupCategory returns the category for key, if it is one of the known keys.
func LookupCategory(key CategoryKey) (Category, bool) {
	c, ok := categoryIndex[key]
	return c, ok
}

// RuleData is a user's policy snapshot, fetched per decision and never mutated.
type RuleData struct {
	UserID            string               `json:"user_id" db:"user_id"`
	Prompt            string               `json:"prompt" db:"prompt"`
	AllowList         []string             `json:"allow_list" db:"allow_list"`
	BlockList         []string             `json:"block_list" db:"block_list"`
	BlockedCategories map[CategoryKey]bool `json:"blocked_categories" db:"blocked_categories"`
	LastSeen          *time.Time           `json:"last_seen,omitempty" db:"last_seen"`
}

// Normalize coerces absent collections to empty ones and applies the
// default policy prompt.
func (r *RuleData) Normalize() {
	if r.AllowList == nil {
		r.AllowList = []string{}
	}
	if r.BlockList == nil {
		r.BlockList = []string{}
	}
	if r.BlockedCategories == nil {
		r.BlockedCategories = map[CategoryKey]bool{}
	}
	if r.Prompt == "" {
		r.Prompt = DefaultPolicyPrompt
	}
}

// BlockedCategoryList returns the categories flagged true, in table order.
// Unknown keys are ignored.
func (r *RuleData) BlockedCategoryList() []Category {
	var out []Category
	for _, c := range categories {
		if r.BlockedCategories[c.Key] {
			out = append(out, c)
		}
	}
	return out
}
