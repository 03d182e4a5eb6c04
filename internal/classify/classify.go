// Package classify suggests a category for a transaction note using Gemini,
// constrained to the tracker's live category set.
package classify

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MansurAzad/cashbook/internal/domain"
)

// DefaultModelName is the Gemini model used for suggestions.
const DefaultModelName = "gemini-2.0-flash"

// Suggester asks the model for a single category name. It holds a shared
// genai client.
type Suggester struct {
	client *genai.Client
	model  string
}

// NewSuggester creates a suggester. Credentials come from the environment
// (GEMINI_API_KEY or Application Default Credentials).
func NewSuggester(ctx context.Context) (*Suggester, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: create genai client: %w", err)
	}
	return &Suggester{client: client, model: DefaultModelName}, nil
}

// SuggestCategory returns the name of the category from categories that best
// matches the transaction note, falling back to an error when the model
// answers outside the allowed set.
func (s *Suggester) SuggestCategory(ctx context.Context, note string, txType domain.TransactionType, categories []domain.Category) (string, error) {
	allowed := allowedNames(categories, txType)
	if len(allowed) == 0 {
		return "", fmt.Errorf("classify: no %s categories to choose from", txType)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(note, txType, allowed)},
			},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("classify: generate content: %w", err)
	}

	answer := cleanModelAnswer(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("classify: empty response from model")
	}

	for _, name := range allowed {
		if strings.EqualFold(name, answer) {
			return name, nil
		}
	}
	return "", fmt.Errorf("classify: model answered %q, not an allowed category", answer)
}

// allowedNames filters the category set down to the given transaction type.
func allowedNames(categories []domain.Category, txType domain.TransactionType) []string {
	var names []string
	for _, c := range categories {
		if c.Type == txType {
			names = append(names, c.Name)
		}
	}
	return names
}

// buildPrompt constrains the model to exactly one of the allowed names.
func buildPrompt(note string, txType domain.TransactionType, allowed []string) string {
	var b strings.Builder
	b.WriteString("You are a personal finance transaction classifier.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Pick the single best category for the transaction below.\n")
	b.WriteString("- Answer with the category name ONLY: no punctuation, no explanation, no Markdown.\n\n")
	b.WriteString("Allowed categories (" + string(txType) + "):\n")
	for _, name := range allowed {
		b.WriteString("  - " + name + "\n")
	}
	b.WriteString("\nTransaction note: " + note + "\n")
	return b.String()
}

// cleanModelAnswer strips code fences, quotes and surrounding noise the model
// sometimes adds despite instructions.
func cleanModelAnswer(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	s = strings.Trim(s, `"'`)

	// Keep only the first line if the model rambled.
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}
