package categorize

import (
	"context"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

// Category is one of the user's spending categories offered to the model.
type Category struct {
	ID   string
	Name string
	Type string // "expense", "income" or "both"
}

// Result is the categorization outcome for one line item. An empty
// SuggestedCategoryID with zero confidence is the terminal "no suggestion"
// outcome and is always valid.
type Result struct {
	Description         string  `json:"description"`
	SuggestedCategoryID string  `json:"suggested_category_id,omitempty"`
	Confidence          float64 `json:"confidence"`
	Reasoning           string  `json:"reasoning,omitempty"`
}

// Categorizer suggests spending categories for parsed line items. The
// returned slice is aligned 1:1 with the input; implementations are
// best-effort and never fail, degrading to fallback results instead.
type Categorizer interface {
	// CategorizeBatch suggests a category for each line item.
	CategorizeBatch(ctx context.Context, items []parsing.ParsedLineItem, categories []Category) []Result

	// CategorizeSingle is CategorizeBatch over one item.
	CategorizeSingle(ctx context.Context, item parsing.ParsedLineItem, categories []Category) Result

	// Close releases backend resources.
	Close() error
}

// Disabled is the categorizer used when no AI backend is configured: every
// item gets the fallback result.
type Disabled struct{}

// NewDisabled creates a Categorizer with the AI capability switched off.
func NewDisabled() *Disabled {
	return &Disabled{}
}

func (d *Disabled) CategorizeBatch(_ context.Context, items []parsing.ParsedLineItem, _ []Category) []Result {
	return fallbackResults(items)
}

func (d *Disabled) CategorizeSingle(ctx context.Context, item parsing.ParsedLineItem, categories []Category) Result {
	return d.CategorizeBatch(ctx, []parsing.ParsedLineItem{item}, categories)[0]
}

func (d *Disabled) Close() error {
	return nil
}

// fallbackResults maps every item to the no-suggestion outcome.
func fallbackResults(items []parsing.ParsedLineItem) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{Description: item.Description}
	}
	return results
}

// expenseCategories filters to the types a credit card line item can take.
func expenseCategories(categories []Category) []Category {
	var out []Category
	for _, c := range categories {
		if c.Type == "expense" || c.Type == "both" {
			out = append(out, c)
		}
	}
	return out
}
