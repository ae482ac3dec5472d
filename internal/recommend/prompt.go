package recommend

import (
	"encoding/json"
	"fmt"

	"github.com/Really-Cool/mcpapi/pkg/llm"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

const systemPrompt = `You are an expert on MCP (Model Context Protocol) servers. Help the user find the MCP servers that best fit their needs.

Based on the user's query and the list of available MCP servers, recommend the 1-3 most relevant servers and give a short explanation of why they fit.

Reply with a single JSON object containing a "recommendations" array and an "explanation" string.
Every recommended entry must contain "id", "title" and "description" fields, copied from the list.
If nothing in the list is relevant, return an empty "recommendations" array.`

const userPromptTemplate = `Query: %q

Available MCP servers:
%s`

// promptCandidate is the subset of a listing the model needs to rank it.
type promptCandidate struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PackageName string `json:"packageName"`
	Description string `json:"description"`
	Downloads   string `json:"downloads,omitempty"`
}

// buildMessages returns the system and user messages for a recommendation call.
func buildMessages(query string, candidates []models.Listing) ([]llm.Message, error) {
	pc := make([]promptCandidate, len(candidates))
	for i, c := range candidates {
		pc[i] = promptCandidate{
			ID:          c.ID,
			Title:       c.Title,
			PackageName: c.PackageName,
			Description: c.Description,
			Downloads:   c.Downloads,
		}
	}
	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(userPromptTemplate, query, string(data))},
	}, nil
}
