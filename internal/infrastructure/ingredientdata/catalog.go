package ingredientdata

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mommyshops/backend/internal/domain"
)

// IngredientNormalizer maps an ingredient name onto its lookup key
type IngredientNormalizer interface {
	Normalize(raw string) string
}

// Catalog is the local, read-only ingredient table
type Catalog struct {
	entries    map[string]domain.IngredientData
	normalizer IngredientNormalizer
}

// catalogRecord is one row of a JSON catalog file
type catalogRecord struct {
	Name          string   `json:"name"`
	EcoScore      *float64 `json:"eco_score"`
	RiskLevel     string   `json:"risk_level"`
	Benefits      string   `json:"benefits"`
	RisksDetailed string   `json:"risks_detailed"`
	Sources       string   `json:"sources"`
}

// NewCatalog builds a catalog from records already in memory
func NewCatalog(records []domain.IngredientData, normalizer IngredientNormalizer) *Catalog {
	c := &Catalog{
		entries:    make(map[string]domain.IngredientData, len(records)),
		normalizer: normalizer,
	}
	for _, r := range records {
		c.add(r)
	}
	return c
}

// LoadCatalog reads a .csv or .json ingredient file
func LoadCatalog(path string, normalizer IngredientNormalizer) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ingredient catalog: %w", err)
	}
	defer f.Close()

	var records []domain.IngredientData
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(f)
	case ".json":
		records, err = readJSON(f)
	default:
		return nil, fmt.Errorf("unsupported ingredient catalog format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ingredient catalog %s: %w", path, err)
	}

	return NewCatalog(records, normalizer), nil
}

// Get returns the entry for name, or nil
func (c *Catalog) Get(name string) *domain.IngredientData {
	if c == nil {
		return nil
	}
	entry, ok := c.entries[c.normalizer.Normalize(name)]
	if !ok {
		return nil
	}
	return &entry
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func (c *Catalog) add(r domain.IngredientData) {
	key := c.normalizer.Normalize(r.Name)
	if key == "" {
		return
	}
	r.RiskLevel = domain.ParseRiskLevel(string(r.RiskLevel))
	if existing, ok := c.entries[key]; ok {
		r = reduce(existing, r)
	}
	c.entries[key] = r
}

func readJSON(r io.Reader) ([]domain.IngredientData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []catalogRecord
	if err := json.Unmarshal(data, &list); err != nil {
		// Also accept an object keyed by ingredient name
		var byName map[string]catalogRecord
		if errObj := json.Unmarshal(data, &byName); errObj != nil {
			return nil, err
		}
		for name, rec := range byName {
			if rec.Name == "" {
				rec.Name = name
			}
			list = append(list, rec)
		}
	}

	out := make([]domain.IngredientData, 0, len(list))
	for _, rec := range list {
		out = append(out, domain.IngredientData{
			Name:          rec.Name,
			EcoScore:      rec.EcoScore,
			RiskLevel:     domain.RiskLevel(rec.RiskLevel),
			Benefits:      rec.Benefits,
			RisksDetailed: rec.RisksDetailed,
			Sources:       rec.Sources,
		})
	}
	return out, nil
}

// readCSV expects a header row naming at least the "name" column
func readCSV(r io.Reader) ([]domain.IngredientData, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, errors.New(`header has no "name" column`)
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []domain.IngredientData
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		data := domain.IngredientData{
			Name:          field(row, "name"),
			RiskLevel:     domain.RiskLevel(field(row, "risk_level")),
			Benefits:      field(row, "benefits"),
			RisksDetailed: field(row, "risks_detailed"),
			Sources:       field(row, "sources"),
		}
		if raw := field(row, "eco_score"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid eco_score %q", line, raw)
			}
			data.EcoScore = &v
		}
		out = append(out, data)
	}
	return out, nil
}
