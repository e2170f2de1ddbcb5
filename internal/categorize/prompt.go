package categorize

import (
	"fmt"
	"strings"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

// buildPrompt assembles the categorization prompt shared by all LLM
// backends: the candidate categories as ID/name pairs and the line items as
// a 1-indexed numbered list. The model must answer with a single JSON object
// and nothing else.
func buildPrompt(items []parsing.ParsedLineItem, categories []Category) string {
	var cats strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&cats, "- ID %s: %s\n", c.ID, c.Name)
	}

	var txns strings.Builder
	for i, item := range items {
		fmt.Fprintf(&txns, "%d. %q - %s\n", i+1, item.Description, item.Amount)
	}

	return fmt.Sprintf(`You are a financial assistant that categorizes credit card transactions.

AVAILABLE CATEGORIES:
%s
TRANSACTIONS TO CATEGORIZE:
%s
INSTRUCTIONS:
- Analyze each transaction and suggest the most appropriate category
- Return ONLY valid JSON in the format specified below
- If you are not sure about a category, return null for categoryId
- Use the transaction number (1, 2, 3...) as the reference

RESPONSE FORMAT (JSON):
{
  "categorizations": [
    {
      "transactionNumber": 1,
      "categoryId": "<category ID or null>",
      "confidence": <number between 0 and 1>,
      "reasoning": "<optional brief explanation>"
    }
  ]
}

Return ONLY the JSON, with no text before or after it.`, cats.String(), txns.String())
}
