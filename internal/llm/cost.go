package llm

import "strings"

type price struct {
	input, output float64 // USD per 1K tokens
}

// pricing is matched by longest model-name prefix so dated snapshots
// (gpt-4o-mini-2024-07-18) price like their family.
var pricing = map[string]price{
	"gpt-4o":           {0.0025, 0.01},
	"gpt-4o-mini":      {0.00015, 0.0006},
	"gpt-4.1":          {0.002, 0.008},
	"gpt-4.1-mini":     {0.0004, 0.0016},
	"gpt-4.1-nano":     {0.0001, 0.0004},
	"claude-3-5-haiku": {0.0008, 0.004},
	"claude-3-haiku":   {0.00025, 0.00125},
	"claude-sonnet-4":  {0.003, 0.015},
}

// CalculateCost returns the USD cost of a call, zero for unpriced models.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	var (
		best  string
		found price
	)
	for prefix, p := range pricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, found = prefix, p
		}
	}
	if best == "" {
		return 0
	}
	return float64(inputTokens)/1000*found.input + float64(outputTokens)/1000*found.output
}
