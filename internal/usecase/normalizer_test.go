package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Glycerin", "glycerin"},
		{"collapses whitespace", "  Sodium   Benzoate ", "sodium benzoate"},
		{"keeps internal hyphen", "Coco-Glucoside", "coco-glucoside"},
		{"strips edge hyphens", "-water-", "water"},
		{"strips punctuation", "Tocopherol (Vitamin E).", "tocopherol vitamin e"},
		{"alias fragrance", "Fragrance", "parfum"},
		{"alias aqua", "AQUA", "water"},
		{"alias with slash", "Aqua/Water", "water"},
		{"alias after cleanup", "Sodium Lauryl Sulphate;", "sodium lauryl sulfate"},
		{"unmapped passes through", "Caprylic/Capric Triglyceride", "caprylic/capric triglyceride"},
		{"keeps accents", "Extracto de Romero", "extracto de romero"},
		{"empty", "   ", ""},
		{"only punctuation", "--.,", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := NewNormalizer(nil)

	inputs := []string{
		"Fragrance", "AQUA", "Coco-Glucoside", " -/ weird / input-/ ",
		"Vitamin E", "vitamin   e", "SLS", "PEG-40 Hydrogenated Castor Oil",
		"CI 77491", "Parfum (Fragrance)", "Extracto de Romero", "a--b", "",
		"Butyrospermum Parkii (Shea) Butter", "1,2-hexanediol",
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
	}
}

func TestNormalizer_CanonicalizeList(t *testing.T) {
	n := NewNormalizer(nil)

	t.Run("deduplicates case-insensitively", func(t *testing.T) {
		got := n.CanonicalizeList([]string{"Water", "water", "WATER "})
		assert.Equal(t, []string{"water"}, got)
	})

	t.Run("preserves first-seen order and resolves aliases", func(t *testing.T) {
		got := n.CanonicalizeList([]string{"Glycerin", "Aqua", "Fragrance", "water", "parfum", "Glycerine"})
		assert.Equal(t, []string{"glycerin", "water", "parfum"}, got)
	})

	t.Run("drops empty entries", func(t *testing.T) {
		got := n.CanonicalizeList([]string{"", "  ", "...", "niacinamide"})
		assert.Equal(t, []string{"niacinamide"}, got)
	})

	t.Run("nil input", func(t *testing.T) {
		assert.Empty(t, n.CanonicalizeList(nil))
	})
}

func TestNormalizer_NormalizedSet(t *testing.T) {
	n := NewNormalizer(nil)

	set := n.NormalizedSet([]string{"Aqua", "Water", "Parfum", ""})
	assert.Len(t, set, 2)
	assert.Contains(t, set, "water")
	assert.Contains(t, set, "parfum")
}

func TestNormalizer_LoadAliases(t *testing.T) {
	writeAliases := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "aliases.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("overlays file aliases", func(t *testing.T) {
		n := NewNormalizer(nil)
		path := writeAliases(t, "aliases:\n  \"Methyl Paraben\": Methylparaben\n  Rosemary Extract: Extracto de Romero\n")

		require.NoError(t, n.LoadAliases(path))
		assert.Equal(t, "methylparaben", n.Normalize("methyl paraben"))
		assert.Equal(t, "extracto de romero", n.Normalize("ROSEMARY EXTRACT"))
		// built-ins still apply
		assert.Equal(t, "parfum", n.Normalize("fragrance"))
	})

	t.Run("chained aliases stay idempotent", func(t *testing.T) {
		n := NewNormalizer(nil)
		path := writeAliases(t, "aliases:\n  parfum: fragrance blend\n")

		require.NoError(t, n.LoadAliases(path))
		got := n.Normalize("Fragrance")
		assert.Equal(t, "fragrance blend", got)
		assert.Equal(t, got, n.Normalize(got))
	})

	t.Run("rejects cycles", func(t *testing.T) {
		n := NewNormalizer(nil)
		path := writeAliases(t, "aliases:\n  water: aqua\n")

		err := n.LoadAliases(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
		assert.Equal(t, "water", n.Normalize("aqua"))
	})

	t.Run("long chains resolve to their end", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("aliases:\n")
		for i := 1; i <= 10; i++ {
			fmt.Fprintf(&b, "  x%d: x%d\n", i, i+1)
		}
		path := writeAliases(t, b.String())

		for run := 0; run < 50; run++ {
			n := NewNormalizer(nil)
			require.NoError(t, n.LoadAliases(path))
			for i := 1; i <= 11; i++ {
				got := n.Normalize(fmt.Sprintf("x%d", i))
				assert.Equal(t, "x11", got)
				assert.Equal(t, got, n.Normalize(got))
			}
		}
	})

	t.Run("missing file", func(t *testing.T) {
		n := NewNormalizer(nil)
		assert.Error(t, n.LoadAliases(filepath.Join(t.TempDir(), "nope.yaml")))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		n := NewNormalizer(nil)
		path := writeAliases(t, "aliases: [unclosed\n")
		assert.Error(t, n.LoadAliases(path))
	})
}
