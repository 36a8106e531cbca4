package domain

// SubstituteQuery describes a nearest-neighbor substitute search
type SubstituteQuery struct {
	Ingredients         []string
	ExcludedIngredients []string
	TargetProductName   string
	UserConditions      []string
	TopK                int
}

// RecommendationResult is a single recommended substitute product
type RecommendationResult struct {
	ProductID     uint      `json:"product_id"`
	Name          string    `json:"name"`
	Brand         string    `json:"brand"`
	EcoScore      *float64  `json:"eco_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Similarity    float64   `json:"similarity"`
	Reason        string    `json:"reason"`
	Category      string    `json:"category,omitempty"`
	RatingAverage float64   `json:"rating_average"`
	RatingCount   int       `json:"rating_count"`
}

// RecommendationRequest is the input of the recommendation pipeline
type RecommendationRequest struct {
	Ingredients    []string `json:"ingredients" binding:"required"`
	UserConditions []string `json:"user_conditions,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
}

// IngredientAssessment is the safety classification of one input ingredient
type IngredientAssessment struct {
	Ingredient    string    `json:"ingredient"`
	EcoScore      *float64  `json:"eco_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Safe          bool      `json:"safe"`
	Benefits      string    `json:"benefits,omitempty"`
	RisksDetailed string    `json:"risks_detailed,omitempty"`
	Sources       string    `json:"sources,omitempty"`
}

// DirectSubstitute suggests a replacement ingredient for a risky one
type DirectSubstitute struct {
	Original   string `json:"original"`
	Substitute string `json:"substitute"`
}

// RecommendationResponse is the output of the recommendation pipeline
type RecommendationResponse struct {
	Analysis        []IngredientAssessment `json:"analysis"`
	Substitutes     []DirectSubstitute     `json:"substitutes"`
	Recommendations []RecommendationResult `json:"recommendations"`
}
