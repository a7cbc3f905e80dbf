package members

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRAUsername(t *testing.T) {
	name, err := NormalizeRAUsername("  Scott_92 ")
	require.NoError(t, err)
	assert.Equal(t, "Scott_92", name)

	for _, bad := range []string{"", "a", "has space", "way_too_long_username_x", "emoji🙂"} {
		_, err := NormalizeRAUsername(bad)
		assert.ErrorIs(t, err, ErrInvalidRAUsername, bad)
	}
}

func TestDisplayNamePrefersRA(t *testing.T) {
	m := &Member{DiscordID: "1", Username: "discord_name", RAUsername: "RAName"}
	assert.Equal(t, "RAName", m.DisplayName())
	assert.Equal(t, "<@1>", m.Mention())

	m.RAUsername = ""
	assert.Equal(t, "discord_name", m.DisplayName())
}
