package usecase

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mommyshops/backend/internal/pkg/logger"
)

// ingredientPunctuationPattern matches anything that is not a letter, digit,
// whitespace, hyphen or slash
var ingredientPunctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s\-/]+`)

// defaultIngredientAliases maps common synonyms and spelling variants onto a
// canonical INCI-style name. Keys and values are already normalized.
var defaultIngredientAliases = map[string]string{
	"fragrance":               "parfum",
	"perfume":                 "parfum",
	"aroma":                   "parfum",
	"aqua":                    "water",
	"eau":                     "water",
	"agua":                    "water",
	"aqua/water":              "water",
	"water/aqua":              "water",
	"glycerine":               "glycerin",
	"glycerol":                "glycerin",
	"vitamin e":               "tocopherol",
	"sls":                     "sodium lauryl sulfate",
	"sodium lauryl sulphate":  "sodium lauryl sulfate",
	"sles":                    "sodium laureth sulfate",
	"sodium laureth sulphate": "sodium laureth sulfate",
	"paraben":                 "parabens",
	"shea butter":             "butyrospermum parkii butter",
	"aloe vera":               "aloe barbadensis leaf juice",
	"vitamin c":               "ascorbic acid",
	"vitamin b3":              "niacinamide",
}

// aliasFile is the on-disk layout of an alias overlay
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// Normalizer canonicalizes free-text ingredient names into comparable keys
type Normalizer struct {
	mu      sync.RWMutex
	aliases map[string]string
	logger  *zap.Logger
}

// NewNormalizer creates a normalizer seeded with the built-in alias table
func NewNormalizer(log *zap.Logger) *Normalizer {
	aliases := make(map[string]string, len(defaultIngredientAliases))
	for from, to := range defaultIngredientAliases {
		aliases[cleanIngredient(from)] = cleanIngredient(to)
	}
	flat, err := flattenAliases(aliases)
	if err != nil {
		panic(err)
	}
	return &Normalizer{
		aliases: flat,
		logger:  logger.OrNop(log),
	}
}

// Normalize lowercases, strips punctuation (keeping internal hyphens and
// slashes), collapses whitespace and resolves aliases.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func (n *Normalizer) Normalize(raw string) string {
	cleaned := cleanIngredient(raw)
	if cleaned == "" {
		return ""
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.resolve(cleaned)
}

// CanonicalizeList normalizes every entry, drops empties and removes
// duplicates while preserving first-seen order.
func (n *Normalizer) CanonicalizeList(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		norm := n.Normalize(item)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// NormalizedSet returns the normalized ingredients as a set
func (n *Normalizer) NormalizedSet(raw []string) map[string]struct{} {
	set := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		if norm := n.Normalize(item); norm != "" {
			set[norm] = struct{}{}
		}
	}
	return set
}

// LoadAliases overlays aliases from a YAML file of the form
//
//	aliases:
//	  fragrance: parfum
//
// Chains are flattened; a file that would create a cycle is rejected and
// leaves the current aliases untouched.
func (n *Normalizer) LoadAliases(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read alias file: %w", err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse alias file: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	merged := make(map[string]string, len(n.aliases)+len(file.Aliases))
	for from, to := range n.aliases {
		merged[from] = to
	}
	loaded := 0
	for from, to := range file.Aliases {
		from, to = cleanIngredient(from), cleanIngredient(to)
		if from == "" || to == "" || from == to {
			continue
		}
		merged[from] = to
		loaded++
	}

	flat, err := flattenAliases(merged)
	if err != nil {
		return err
	}
	n.aliases = flat

	n.logger.Info("Loaded ingredient aliases",
		zap.String("path", path),
		zap.Int("count", loaded),
	)
	return nil
}

// resolve maps s onto its terminal alias. Caller holds the read lock.
func (n *Normalizer) resolve(s string) string {
	if to, ok := n.aliases[s]; ok {
		return to
	}
	return s
}

// flattenAliases points every key directly at the end of its chain, so no
// value in the result is itself a key. Cycles are an error.
func flattenAliases(aliases map[string]string) (map[string]string, error) {
	flat := make(map[string]string, len(aliases))
	for from, to := range aliases {
		seen := map[string]bool{from: true}
		for {
			next, ok := aliases[to]
			if !ok {
				break
			}
			if seen[to] {
				return nil, fmt.Errorf("alias %q -> %q creates a cycle", from, aliases[from])
			}
			seen[to] = true
			to = next
		}
		flat[from] = to
	}
	return flat, nil
}

// cleanIngredient applies the textual part of normalization without alias lookup
func cleanIngredient(raw string) string {
	s := strings.ToLower(raw)
	s = ingredientPunctuationPattern.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		// Hyphens and slashes only survive between other characters
		w = strings.Trim(w, "-/")
		if w != "" {
			kept = append(kept, w)
		}
	}

	return strings.Join(kept, " ")
}
