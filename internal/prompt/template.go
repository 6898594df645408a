package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a prompt with {{variable}} placeholders. Substituted values are
// never re-expanded, so untrusted text cannot inject placeholders.
type Template struct {
	text string
	vars []string
}

// MustParse compiles text and panics if it declares no placeholders.
func MustParse(text string) *Template {
	t := &Template{text: text, vars: ExtractVariables(text)}
	if len(t.vars) == 0 {
		panic("prompt: template has no variables")
	}
	return t
}

// Variables returns the placeholder names in first-use order.
func (t *Template) Variables() []string {
	out := make([]string, len(t.vars))
	copy(out, t.vars)
	return out
}

// Render replaces every placeholder with its value from vars. Missing
// variables are an error.
func (t *Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, v := range t.vars {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(t.text, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// ExtractVariables returns the unique placeholder names found in text.
func ExtractVariables(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}
