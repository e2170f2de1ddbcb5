package categorize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

// parseResponse maps the model's raw text back onto the input line items.
// The payload is untrusted: it is decoded into a dynamic structure and
// validated field by field. transactionNumber is 1-indexed against the input
// order; out-of-range entries are ignored, unknown category IDs are coerced
// to no-suggestion, confidence is clamped to [0,1] and defaults to 0.5.
// Items the model omitted keep the fallback result.
func parseResponse(text string, items []parsing.ParsedLineItem, categories []Category) ([]Result, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	entries, _ := payload["categorizations"].([]any)

	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	results := fallbackResults(items)
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		number, ok := fields["transactionNumber"].(float64)
		if !ok {
			continue
		}
		idx := int(number) - 1
		if idx < 0 || idx >= len(items) {
			continue
		}

		categoryID, _ := fields["categoryId"].(string)
		if categoryID != "" && !known[categoryID] {
			slog.Warn("Model suggested unknown category", "category_id", categoryID)
			categoryID = ""
		}

		confidence := 0.5
		if c, ok := fields["confidence"].(float64); ok {
			confidence = c
		}
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		reasoning, _ := fields["reasoning"].(string)

		results[idx] = Result{
			Description:         items[idx].Description,
			SuggestedCategoryID: categoryID,
			Confidence:          confidence,
			Reasoning:           reasoning,
		}
	}

	return results, nil
}

// extractJSONObject pulls the first balanced {...} object out of the raw
// model text, tolerating markdown fences and surrounding prose.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}

	return text[start : end+1], nil
}
