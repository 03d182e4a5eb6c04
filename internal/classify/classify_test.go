package classify

import (
	"strings"
	"testing"

	"github.com/MansurAzad/cashbook/internal/domain"
)

func TestCleanModelAnswer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "Food", "Food"},
		{"whitespace", "  Food \n", "Food"},
		{"quoted", `"Food"`, "Food"},
		{"fenced", "```\nFood\n```", "Food"},
		{"fenced with language", "```text\nFood\n```", "Food"},
		{"rambling", "Food\nBecause it looks like groceries.", "Food"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelAnswer(tt.raw); got != tt.want {
				t.Errorf("cleanModelAnswer(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAllowedNamesFiltersByType(t *testing.T) {
	cats := domain.DefaultCategories()

	income := allowedNames(cats, domain.TypeIncome)
	if len(income) != 2 {
		t.Errorf("income names = %v, want 2 entries", income)
	}
	expense := allowedNames(cats, domain.TypeExpense)
	if len(expense) != 6 {
		t.Errorf("expense names = %v, want 6 entries", expense)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("uber to airport", domain.TypeExpense, []string{"Food", "Transport"})

	if !strings.Contains(prompt, "uber to airport") {
		t.Error("prompt missing the note")
	}
	if !strings.Contains(prompt, "- Transport") {
		t.Error("prompt missing allowed category")
	}
	if !strings.Contains(prompt, "category name ONLY") {
		t.Error("prompt missing answer constraint")
	}
}
