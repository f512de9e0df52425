package services

import (
	"testing"

	"utopai/internal/models"

	"github.com/stretchr/testify/assert"
)

func testTheme() models.ThemeProfile {
	return NewThemeCatalog().Lookup(DefaultThemeID)
}

func TestBuildPrompt_AllSlots(t *testing.T) {
	slots := models.PromptSlots{
		Role:    "en venlig lærer",
		Task:    "forklare regnbuer",
		Context: "det er for børn",
		Tone:    "sjov",
	}

	result := BuildPrompt(slots, testTheme())
	assert.Equal(t,
		"Du er en venlig lærer. Jeg vil gerne have dig til at forklare regnbuer. Konteksten er: det er for børn. Svar i en sjov tone.",
		result)
}

func TestBuildPrompt_EmptySlotsReturnGreeting(t *testing.T) {
	result := BuildPrompt(models.PromptSlots{}, testTheme())
	assert.Equal(t, DefaultGreeting, result)

	whitespace := models.PromptSlots{Role: "  ", Task: "\t"}
	assert.Equal(t, DefaultGreeting, BuildPrompt(whitespace, testTheme()))
}

func TestBuildPrompt_OmitsEmptySlots(t *testing.T) {
	slots := models.PromptSlots{Task: "fortælle en historie", Tone: "venlig"}

	result := BuildPrompt(slots, testTheme())
	assert.Equal(t, "Jeg vil gerne have dig til at fortælle en historie. Svar i en venlig tone.", result)
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	slots := models.PromptSlots{Role: "en historiefortæller", Task: "finde på tre idéer"}

	first := BuildPrompt(slots, testTheme())
	second := BuildPrompt(slots, testTheme())
	assert.Equal(t, first, second)
}

func TestSlotTemplates_ContainsThemeVocabulary(t *testing.T) {
	theme := testTheme()
	templates := SlotTemplates(theme)

	assert.Contains(t, templates["role"], theme.MentorName)
	assert.NotEmpty(t, templates["task"])
	assert.NotEmpty(t, templates["context"])
	assert.Contains(t, templates["tone"], theme.ToneWords[0])
}
