package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	openFence    = "```json"
	genericFence = "```"
)

// ExtractJSON strips the markdown code fences a model sometimes wraps its
// JSON output in. Leading "```json" (or a bare "```") and a trailing "```"
// are removed along with surrounding whitespace; anything else is returned
// trimmed but otherwise untouched.
func ExtractJSON(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, openFence) {
		cleaned = cleaned[len(openFence):]
	} else if strings.HasPrefix(cleaned, genericFence) {
		cleaned = cleaned[len(genericFence):]
	}
	if strings.HasSuffix(cleaned, genericFence) {
		cleaned = cleaned[:len(cleaned)-len(genericFence)]
	}

	return strings.TrimSpace(cleaned)
}

// Parse strips fences and decodes the remaining text as a JSON value tree.
// Objects decode to map[string]any, arrays to []any, scalars to their Go
// equivalents. The input is not validated against any schema here.
func Parse(response string) (any, error) {
	content := ExtractJSON(response)
	if content == "" {
		return nil, errors.New("empty response")
	}

	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return doc, nil
}
