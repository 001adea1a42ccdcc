package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripMarkdownFences removes surrounding ```/```json fences the model may
// wrap its reply in.
func stripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseExtractionJSON parses the JSON extraction reply from the model.
// The reply may contain prose around the object, so we scan for the outermost
// braces before unmarshaling.
func parseExtractionJSON(text string) (*ExtractionOutput, error) {
	text = stripMarkdownFences(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var out ExtractionOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	return &out, nil
}
