package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	prompts := LoadPromptSet()
	for name, text := range map[string]string{
		"triage":    prompts.Triage,
		"credit":    prompts.Credit,
		"interview": prompts.Interview,
		"exchange":  prompts.Exchange,
	} {
		if strings.TrimSpace(text) == "" {
			t.Fatalf("prompt %s is empty", name)
		}
	}
}

func TestPromptsForbidRevealingHandoffs(t *testing.T) {
	t.Parallel()

	prompts := LoadPromptSet()
	for name, text := range map[string]string{
		"triage":   prompts.Triage,
		"credit":   prompts.Credit,
		"exchange": prompts.Exchange,
	} {
		if !strings.Contains(strings.ToLower(text), "mention") {
			t.Fatalf("prompt %s must instruct the model to keep handoffs silent", name)
		}
	}
}
