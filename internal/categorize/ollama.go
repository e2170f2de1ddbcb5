package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

const ollamaTimeout = 120 * time.Second

// Ollama implements Categorizer against a local Ollama server. Text models
// such as llama3 or qwen2.5 work well for classification.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates an Ollama-backed categorizer.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llama3"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: ollamaTimeout,
		},
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// CategorizeBatch asks the Ollama model to categorize the batch. Any failure
// degrades the whole batch to fallback results.
func (o *Ollama) CategorizeBatch(ctx context.Context, items []parsing.ParsedLineItem, categories []Category) []Result {
	if len(items) == 0 {
		return nil
	}

	expense := expenseCategories(categories)
	if len(expense) == 0 {
		slog.Warn("No expense categories available for categorization")
		return fallbackResults(items)
	}

	text, err := o.chat(ctx, buildPrompt(items, expense))
	if err != nil {
		slog.Error("Ollama categorization failed", "error", err)
		return fallbackResults(items)
	}

	results, err := parseResponse(text, items, expense)
	if err != nil {
		slog.Error("Parsing ollama categorization response failed", "error", err)
		return fallbackResults(items)
	}

	return results
}

func (o *Ollama) CategorizeSingle(ctx context.Context, item parsing.ParsedLineItem, categories []Category) Result {
	return o.CategorizeBatch(ctx, []parsing.ParsedLineItem{item}, categories)[0]
}

func (o *Ollama) chat(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ollamaTimeout)
	defer cancel()

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at categorizing financial transactions. You always answer with strict JSON.",
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return chatResp.Message.Content, nil
}

// Close is a no-op; the HTTP client holds no resources worth releasing.
func (o *Ollama) Close() error {
	return nil
}
