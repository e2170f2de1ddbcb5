package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

const geminiTimeout = 30 * time.Second

// Gemini implements Categorizer using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini-backed categorizer. Generation is pinned to
// temperature 0 so repeated runs over the same statement agree.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.SetTopP(0.95)
	model.SetTopK(40)
	model.SetMaxOutputTokens(500)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// CategorizeBatch asks Gemini to categorize the batch. Any failure along the
// way degrades the whole batch to fallback results.
func (g *Gemini) CategorizeBatch(ctx context.Context, items []parsing.ParsedLineItem, categories []Category) []Result {
	if len(items) == 0 {
		return nil
	}

	expense := expenseCategories(categories)
	if len(expense) == 0 {
		slog.Warn("No expense categories available for categorization")
		return fallbackResults(items)
	}

	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(items, expense)))
	if err != nil {
		slog.Error("Gemini categorization failed", "error", err)
		return fallbackResults(items)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		slog.Error("No response from gemini")
		return fallbackResults(items)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	results, err := parseResponse(text.String(), items, expense)
	if err != nil {
		slog.Error("Parsing gemini categorization response failed", "error", err)
		return fallbackResults(items)
	}

	return results
}

func (g *Gemini) CategorizeSingle(ctx context.Context, item parsing.ParsedLineItem, categories []Category) Result {
	return g.CategorizeBatch(ctx, []parsing.ParsedLineItem{item}, categories)[0]
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
