// Package services provides business logic services for the UTOPAI backend.
package services

import (
	"sort"

	"utopai/internal/models"
)

// DefaultThemeID is the profile used when a theme id is not in the catalog.
const DefaultThemeID = "superhelte"

// ThemeCatalog maps theme ids to their display profiles. The catalog is
// built once at process start and never mutated.
type ThemeCatalog struct {
	profiles map[string]models.ThemeProfile
}

// NewThemeCatalog returns the built-in theme catalog
func NewThemeCatalog() *ThemeCatalog {
	return &ThemeCatalog{
		profiles: map[string]models.ThemeProfile{
			"superhelte": {
				ID:           "superhelte",
				DisplayName:  "Superhelte",
				MentorName:   "Kaptajn Prompt",
				MentorAvatar: "🦸‍♂️",
				ToneWords:    []string{"modig", "stærk", "heltemodig"},
				ExampleTopics: []string{
					"superkræfter",
					"redningsmissioner",
					"hemmelige hovedkvarterer",
					"superhelte-gadgets",
				},
				NarrativeMetaphors: []string{
					"ChatGPT er din trofaste AI-sidekick",
					"et godt prompt er som en klar mission",
					"dit hovedkvarter er fuld af viden",
				},
				CreativeChallenges: []string{
					"Find på en ny superhelt og beskriv heltens kræfter",
					"Skriv en redningsmission for din AI-sidekick",
					"Design en superhelte-gadget og forklar, hvordan den virker",
				},
				Encouragements: []string{
					"Godt gået, superhelt!",
					"Du bliver stærkere for hvert prompt!",
					"Kaptajn Prompt er stolt af dig!",
				},
			},
			"prinsesse": {
				ID:           "prinsesse",
				DisplayName:  "Prinsesser",
				MentorName:   "Fe Promptina",
				MentorAvatar: "🧚‍♀️",
				ToneWords:    []string{"magisk", "venlig", "fortryllende"},
				ExampleTopics: []string{
					"fortryllede slotte",
					"magiske væsner",
					"kongelige baller",
					"eventyrlige skove",
				},
				NarrativeMetaphors: []string{
					"ChatGPT er din magiske hjælper",
					"et godt prompt er som en velformuleret trylleformular",
					"det magiske rige gemmer på svar",
				},
				CreativeChallenges: []string{
					"Find på et magisk væsen og beskriv dets kræfter",
					"Skriv en invitation til et kongeligt bal",
					"Design en trylleformular og forklar, hvad den gør",
				},
				Encouragements: []string{
					"Fortryllende arbejde!",
					"Din magi bliver stærkere for hvert prompt!",
					"Fe Promptina er stolt af dig!",
				},
			},
		},
	}
}

// Lookup returns the profile for a theme id, falling back to the default
// profile when the id is unrecognized. Never fails.
func (tc *ThemeCatalog) Lookup(themeID string) models.ThemeProfile {
	if profile, ok := tc.profiles[themeID]; ok {
		return profile
	}
	return tc.profiles[DefaultThemeID]
}

// IsKnown reports whether the theme id exists in the catalog
func (tc *ThemeCatalog) IsKnown(themeID string) bool {
	_, ok := tc.profiles[themeID]
	return ok
}

// KnownThemeIDs returns the catalog's theme ids in sorted order
func (tc *ThemeCatalog) KnownThemeIDs() []string {
	ids := make([]string, 0, len(tc.profiles))
	for id := range tc.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
