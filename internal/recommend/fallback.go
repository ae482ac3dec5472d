package recommend

import (
	"fmt"
	"strings"

	"github.com/Really-Cool/mcpapi/pkg/models"
)

// Fallback produces a keyword-matched recommendation without calling a
// model: the first MaxRecommendations candidates whose title or description
// contains the query, or the first MaxRecommendations candidates when none
// match. An empty candidate list yields no recommendations.
func Fallback(query string, candidates []models.Listing) models.Recommendation {
	if len(candidates) == 0 {
		return models.Recommendation{
			Recommendations: []models.Listing{},
			Explanation:     fmt.Sprintf("No MCP servers were found for %q.", query),
			Query:           query,
			Source:          models.SourceFallback,
		}
	}

	q := strings.ToLower(query)
	matched := make([]models.Listing, 0, models.MaxRecommendations)
	for _, c := range candidates {
		if len(matched) == models.MaxRecommendations {
			break
		}
		if strings.Contains(strings.ToLower(c.Title), q) ||
			strings.Contains(strings.ToLower(c.Description), q) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		n := min(len(candidates), models.MaxRecommendations)
		matched = append(matched, candidates[:n]...)
	}

	return models.Recommendation{
		Recommendations: matched,
		Explanation: fmt.Sprintf("Based on your query %q, these MCP servers fit your needs best. "+
			"The picks weigh feature match and popularity.", query),
		Query:  query,
		Source: models.SourceFallback,
	}
}
