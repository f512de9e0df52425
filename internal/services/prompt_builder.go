package services

import (
	"fmt"
	"strings"

	"utopai/internal/models"
)

// DefaultGreeting is returned by BuildPrompt when every slot is empty.
const DefaultGreeting = "Hej! Kan du fortælle mig noget spændende?"

// BuildPrompt concatenates the filled slots into a natural-language
// instruction for the mentor. Slots are visited in a fixed order (role,
// task, context, tone); empty slots are omitted entirely. The result is
// deterministic for identical inputs.
func BuildPrompt(slots models.PromptSlots, theme models.ThemeProfile) string {
	var clauses []string

	if role := strings.TrimSpace(slots.Role); role != "" {
		clauses = append(clauses, fmt.Sprintf("Du er %s.", role))
	}
	if task := strings.TrimSpace(slots.Task); task != "" {
		clauses = append(clauses, fmt.Sprintf("Jeg vil gerne have dig til at %s.", task))
	}
	if context := strings.TrimSpace(slots.Context); context != "" {
		clauses = append(clauses, fmt.Sprintf("Konteksten er: %s.", context))
	}
	if tone := strings.TrimSpace(slots.Tone); tone != "" {
		clauses = append(clauses, fmt.Sprintf("Svar i en %s tone.", tone))
	}

	if len(clauses) == 0 {
		return DefaultGreeting
	}

	return strings.Join(clauses, " ")
}

// SlotTemplates returns themed example values for each prompt slot, used by
// the prompt builder activity to show the learner what good slots look like.
func SlotTemplates(theme models.ThemeProfile) map[string][]string {
	templates := map[string][]string{
		"role": {
			"en venlig lærer",
			"en sjov historiefortæller",
			theme.MentorName,
		},
		"task": {
			"fortælle en kort historie",
			"forklare noget på en nem måde",
			"finde på tre sjove idéer",
		},
		"context": {
			"jeg er " + theme.DisplayName + "-fan",
			"det skal være for børn",
		},
		"tone": {"sjov", "venlig"},
	}
	if len(theme.ToneWords) > 0 {
		templates["tone"] = append(templates["tone"], theme.ToneWords[0])
	}
	return templates
}
