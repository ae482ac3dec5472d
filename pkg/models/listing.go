package models

// Listing is one catalog entry describing an MCP server.
type Listing struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	PackageName string `json:"packageName" yaml:"package_name"`
	Description string `json:"description" yaml:"description"`
	Downloads   string `json:"downloads,omitempty" yaml:"downloads,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty" yaml:"is_active,omitempty"`
	Link        string `json:"githubLink,omitempty" yaml:"github_link,omitempty"`
}

// Active reports whether the listing is flagged active. Listings without
// the flag are treated as inactive.
func (l Listing) Active() bool {
	return l.IsActive != nil && *l.IsActive
}

// Section groups listings under a named category.
type Section struct {
	ID    string    `json:"id" yaml:"id"`
	Title string    `json:"title" yaml:"title"`
	Count int       `json:"count" yaml:"count"` // advertised size upstream, may exceed len(Items)
	Items []Listing `json:"items" yaml:"items"`
}

// SearchPage is one page of a filtered listing set.
type SearchPage struct {
	Items    []Listing `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	Query    string    `json:"query,omitempty"`
	Matched  bool      `json:"matched"`
}
