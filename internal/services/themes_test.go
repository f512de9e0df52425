package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeCatalog_Lookup_KnownThemes(t *testing.T) {
	catalog := NewThemeCatalog()

	superhelte := catalog.Lookup("superhelte")
	assert.Equal(t, "superhelte", superhelte.ID)
	assert.Equal(t, "Kaptajn Prompt", superhelte.MentorName)

	prinsesse := catalog.Lookup("prinsesse")
	assert.Equal(t, "prinsesse", prinsesse.ID)
	assert.Equal(t, "Fe Promptina", prinsesse.MentorName)
}

func TestThemeCatalog_Lookup_UnknownFallsBackToDefault(t *testing.T) {
	catalog := NewThemeCatalog()

	profile := catalog.Lookup("pirater")
	assert.Equal(t, DefaultThemeID, profile.ID)

	empty := catalog.Lookup("")
	assert.Equal(t, DefaultThemeID, empty.ID)
}

func TestThemeCatalog_IsKnown(t *testing.T) {
	catalog := NewThemeCatalog()

	assert.True(t, catalog.IsKnown("superhelte"))
	assert.True(t, catalog.IsKnown("prinsesse"))
	assert.False(t, catalog.IsKnown("pirater"))
	assert.False(t, catalog.IsKnown(""))
}

func TestThemeCatalog_KnownThemeIDs_Sorted(t *testing.T) {
	catalog := NewThemeCatalog()

	ids := catalog.KnownThemeIDs()
	assert.Equal(t, []string{"prinsesse", "superhelte"}, ids)
}

func TestThemeCatalog_ProfilesComplete(t *testing.T) {
	catalog := NewThemeCatalog()

	for _, id := range catalog.KnownThemeIDs() {
		profile := catalog.Lookup(id)
		require.NotEmpty(t, profile.MentorName, "theme %s", id)
		require.NotEmpty(t, profile.MentorAvatar, "theme %s", id)
		require.NotEmpty(t, profile.ExampleTopics, "theme %s", id)
		require.NotEmpty(t, profile.Encouragements, "theme %s", id)
		require.NotEmpty(t, profile.CreativeChallenges, "theme %s", id)
	}
}
