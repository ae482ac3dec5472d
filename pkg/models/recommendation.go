package models

// RecommendationSource identifies which path produced a recommendation.
type RecommendationSource string

const (
	SourceLLM      RecommendationSource = "llm"
	SourceCache    RecommendationSource = "cache"
	SourceFallback RecommendationSource = "fallback"
)

// MaxRecommendations caps the number of recommended listings on every path.
const MaxRecommendations = 3

// Recommendation is the annotated re-ranking of a candidate set for a query.
type Recommendation struct {
	Recommendations []Listing            `json:"recommendations"`
	Explanation     string               `json:"explanation"`
	Query           string               `json:"query"`
	Source          RecommendationSource `json:"source,omitempty"`
}
