package domain

import (
	"encoding/json"
	"strings"
)

// RiskLevel is the discrete safety classification of an ingredient or product
type RiskLevel string

const (
	RiskSafe         RiskLevel = "seguro"
	RiskLow          RiskLevel = "riesgo bajo"
	RiskMedium       RiskLevel = "riesgo medio"
	RiskHigh         RiskLevel = "riesgo alto"
	RiskCarcinogenic RiskLevel = "cancerígeno"
	RiskUnknown      RiskLevel = "desconocido"
)

// riskPriority orders risk levels: higher value wins when aggregating
var riskPriority = map[RiskLevel]int{
	RiskUnknown:      0,
	RiskSafe:         1,
	RiskLow:          2,
	RiskMedium:       3,
	RiskHigh:         4,
	RiskCarcinogenic: 5,
}

// riskAliases maps spellings seen across sources onto known levels
var riskAliases = map[string]RiskLevel{
	"cancerigeno":  RiskCarcinogenic,
	"carcinogenic": RiskCarcinogenic,
	"high risk":    RiskHigh,
	"medium risk":  RiskMedium,
	"low risk":     RiskLow,
	"safe":         RiskSafe,
	"unknown":      RiskUnknown,
}

// ParseRiskLevel maps free text from sources onto a known RiskLevel.
// Empty input stays empty; unrecognized text becomes RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if level, ok := riskAliases[s]; ok {
		return level
	}
	level := RiskLevel(s)
	if _, ok := riskPriority[level]; ok {
		return level
	}
	return RiskUnknown
}

// Priority returns the rank of the level in the total order
// cancerígeno > riesgo alto > riesgo medio > riesgo bajo > seguro > desconocido.
func (r RiskLevel) Priority() int {
	return riskPriority[ParseRiskLevel(string(r))]
}

// IsAcceptable reports whether a product with this level may be recommended.
// Only "", "seguro" and "riesgo bajo" qualify.
func (r RiskLevel) IsAcceptable() bool {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(string(r)))) {
	case "", RiskSafe, RiskLow:
		return true
	}
	return false
}

// HighestRisk returns the level with the highest priority, or "" when none given
func HighestRisk(levels ...RiskLevel) RiskLevel {
	var best RiskLevel
	bestPriority := -1
	for _, l := range levels {
		if l == "" {
			continue
		}
		if p := l.Priority(); p > bestPriority {
			best = ParseRiskLevel(string(l))
			bestPriority = p
		}
	}
	return best
}

// IngredientData is the canonical record every ingredient source is mapped to
type IngredientData struct {
	Name          string    `json:"name"`
	EcoScore      *float64  `json:"eco_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Benefits      string    `json:"benefits"`
	RisksDetailed string    `json:"risks_detailed"`
	Sources       string    `json:"sources"`
}

// ParseIngredientList decodes a stored ingredient representation.
// Accepted forms, in preference order: a native list, a JSON-encoded list,
// a delimiter-separated string (comma, semicolon, pipe or newline).
func ParseIngredientList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return trimAll(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return trimAll(out)
	case []byte:
		return ParseIngredientList(string(val))
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var list []string
			if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
				return trimAll(list)
			}
		}
		return trimAll(strings.FieldsFunc(trimmed, func(r rune) bool {
			return r == ',' || r == ';' || r == '|' || r == '\n'
		}))
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
