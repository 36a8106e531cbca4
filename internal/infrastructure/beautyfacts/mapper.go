package beautyfacts

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mommyshops/backend/internal/domain"
)

// SearchResponse is the subset of the search.pl JSON payload we read
type SearchResponse struct {
	Count    int       `json:"count"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Products []Product `json:"products"`
}

// Product is a single Open Beauty Facts record
type Product struct {
	Code              string      `json:"code"`
	ProductName       string      `json:"product_name"`
	ProductNameEn     string      `json:"product_name_en"`
	GenericName       string      `json:"generic_name"`
	Brands            string      `json:"brands"`
	IngredientsText   string      `json:"ingredients_text"`
	IngredientsTextEn string      `json:"ingredients_text_en"`
	Categories        string      `json:"categories"`
	EcoscoreGrade     string      `json:"ecoscore_grade"`
	EcoscoreScore     json.Number `json:"ecoscore_score"`
	URL               string      `json:"url"`
}

// Name returns the best available product name:
// product_name, then product_name_en, then generic_name.
func (p *Product) Name() string {
	for _, name := range []string{p.ProductName, p.ProductNameEn, p.GenericName} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}

// MapToRawProducts converts Open Beauty Facts records into search hits
func MapToRawProducts(products []Product, baseURL string) []domain.RawProduct {
	out := make([]domain.RawProduct, 0, len(products))
	for i := range products {
		out = append(out, MapToRawProduct(&products[i], baseURL))
	}
	return out
}

// MapToRawProduct converts one record. Only the first brand and the most
// specific (last) category are kept.
func MapToRawProduct(p *Product, baseURL string) domain.RawProduct {
	ingredients := strings.TrimSpace(p.IngredientsText)
	if ingredients == "" {
		ingredients = strings.TrimSpace(p.IngredientsTextEn)
	}

	return domain.RawProduct{
		Name:           p.Name(),
		Brand:          firstListItem(p.Brands),
		IngredientsRaw: ingredients,
		Category:       lastListItem(p.Categories),
		EcoScoreRaw:    ecoScoreRaw(p),
		SourceURL:      sourceURL(p, baseURL),
	}
}

// ecoScoreRaw prefers the numeric score and falls back to the letter grade
func ecoScoreRaw(p *Product) string {
	if s := p.EcoscoreScore.String(); s != "" {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return s
		}
	}
	grade := strings.ToLower(strings.TrimSpace(p.EcoscoreGrade))
	switch grade {
	case "", "unknown", "not-applicable":
		return ""
	}
	return grade
}

func sourceURL(p *Product, baseURL string) string {
	if p.URL != "" {
		return p.URL
	}
	if p.Code == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/product/" + p.Code
}

func firstListItem(s string) string {
	items := splitList(s)
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

func lastListItem(s string) string {
	items := splitList(s)
	if len(items) == 0 {
		return ""
	}
	return items[len(items)-1]
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
