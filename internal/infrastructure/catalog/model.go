package catalog

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/mommyshops/backend/internal/domain"
)

// productModel is the persisted row of a catalog product
type productModel struct {
	ID            uint           `gorm:"primaryKey"`
	Name          string         `gorm:"not null"`
	Brand         string         `gorm:"not null;default:''"`
	LookupKey     string         `gorm:"column:lookup_key;not null;uniqueIndex:idx_products_lookup_key"`
	Ingredients   string         `gorm:"type:text;not null"`
	Category      *string        `gorm:"column:category"`
	EcoScore      *float64       `gorm:"column:eco_score"`
	RiskLevel     *string        `gorm:"column:risk_level"`
	RatingAverage float64        `gorm:"column:rating_average;not null;default:0"`
	RatingCount   int            `gorm:"column:rating_count;not null;default:0"`
	ExtraMetadata datatypes.JSON `gorm:"column:extra_metadata"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name
func (productModel) TableName() string {
	return "products"
}

// toDomain converts the row into a domain product
func (m *productModel) toDomain() domain.Product {
	p := domain.Product{
		ID:            m.ID,
		Name:          m.Name,
		Brand:         m.Brand,
		Ingredients:   domain.ParseIngredientList(m.Ingredients),
		EcoScore:      m.EcoScore,
		RatingAverage: m.RatingAverage,
		RatingCount:   m.RatingCount,
		CreatedAt:     m.CreatedAt,
	}
	if m.Category != nil {
		p.Category = *m.Category
	}
	if m.RiskLevel != nil {
		p.RiskLevel = domain.RiskLevel(*m.RiskLevel)
	}
	if len(m.ExtraMetadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(m.ExtraMetadata, &meta); err == nil {
			p.ExtraMetadata = meta
		}
	}
	return p
}

func encodeIngredients(ingredients []string) (string, error) {
	if ingredients == nil {
		ingredients = []string{}
	}
	data, err := json.Marshal(ingredients)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func encodeMetadata(meta map[string]any) (datatypes.JSON, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
