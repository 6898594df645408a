package judge

import (
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/pagegate/internal/models"
	"github.com/nikhilbhutani/pagegate/internal/prompt"
)

const notAvailable = "N/A"

var decisionPrompt = prompt.MustParse(`You are the content filter of a browser extension. Decide whether the user may view the page below.

USER POLICY:
{{policy}}

BLOCKED CATEGORIES:
{{categories}}

CATEGORY DEFINITIONS (apply strictly):
- Games: interactive gameplay only. Videos, streams or articles about games are NOT games.
- Entertainment: passive watching such as videos, streams, movies and TV. Gameplay videos and streams are entertainment.
- Shopping: transactional pages only, such as product listings, carts and checkout. Reviews and unboxings are NOT shopping.

PAGE:
URL: {{url}}
Title: {{title}}
H1: {{h1}}
Description: {{description}}
Keywords: {{keywords}}
Body snippet: {{body}}
Search query: {{search_query}}

RULES, in priority order:
1. The user policy overrides category blocks. If the policy explicitly allows this kind of page, answer ALLOW even if it falls in a blocked category.
2. If the page falls in a blocked category and the policy does not explicitly exempt it, answer BLOCK.
3. Otherwise follow the user policy.

Respond with exactly one word: ALLOW or BLOCK.`)

// BuildPrompt renders the decision prompt for page under rule. Body text is
// cut to bodyChars runes; absent fields render as N/A.
func BuildPrompt(page models.PageDescriptor, rule *models.RuleData, bodyChars int) (string, error) {
	policy := models.DefaultPolicyPrompt
	var blocked []models.Category
	if rule != nil {
		if p := strings.TrimSpace(rule.Prompt); p != "" {
			policy = p
		}
		blocked = rule.BlockedCategoryList()
	}

	categories := "None"
	if len(blocked) > 0 {
		lines := make([]string, len(blocked))
		for i, c := range blocked {
			lines[i] = "- " + c.Label + ": " + c.Description
		}
		categories = strings.Join(lines, "\n")
	}

	return decisionPrompt.Render(map[string]string{
		"policy":       policy,
		"categories":   categories,
		"url":          field(page.URL),
		"title":        field(page.Title),
		"h1":           field(page.H1),
		"description":  field(page.Description),
		"keywords":     field(page.Keywords),
		"body":         field(truncate(page.BodyText, bodyChars)),
		"search_query": field(page.SearchQuery),
	})
}

func field(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	if v == "" {
		return notAvailable
	}
	return v
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
