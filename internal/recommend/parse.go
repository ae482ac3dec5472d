package recommend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError reports an LLM reply that decoded as JSON but does not
// have the expected shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid llm reply: %s %s", e.Field, e.Reason)
}

// llmReply is the JSON object the system prompt asks the model for.
type llmReply struct {
	Recommendations json.RawMessage `json:"recommendations"`
	Explanation     string          `json:"explanation"`
}

// replyItem is one recommended entry as returned by the model.
type replyItem struct {
	ID          looseString `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	PackageName string      `json:"packageName"`
}

func (i replyItem) valid() bool {
	return strings.TrimSpace(string(i.ID)) != "" &&
		strings.TrimSpace(i.Title) != "" &&
		strings.TrimSpace(i.Description) != ""
}

// looseString accepts a JSON string or number. Models occasionally echo
// numeric-looking ids without quotes.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*s = looseString(n.String())
	return nil
}

// parseReply decodes and validates a model reply. Entries missing an id,
// title or description are dropped; at least one must remain.
func parseReply(content string) ([]replyItem, string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, "", &ValidationError{Field: "content", Reason: "is empty"}
	}

	var reply llmReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, "", fmt.Errorf("decode llm reply: %w", err)
	}

	raw := bytes.TrimSpace(reply.Recommendations)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, "", &ValidationError{Field: "recommendations", Reason: "is missing"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, "", &ValidationError{Field: "recommendations", Reason: "must be an array"}
	}

	items := make([]replyItem, 0, len(entries))
	for _, entry := range entries {
		var item replyItem
		if err := json.Unmarshal(entry, &item); err != nil {
			continue
		}
		if item.valid() {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, "", &ValidationError{Field: "recommendations", Reason: "has no valid entries"}
	}

	return items, strings.TrimSpace(reply.Explanation), nil
}
