package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRooms(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"kitchen", "living-room", "master-bathroom", "guest-bathroom", "bedroom"}, c.Names())
	assert.Equal(t, []string{"painting", "lighting", "curtains"}, c.AllowedTypes("bedroom"))
	assert.Nil(t, c.AllowedTypes("garage"))
}

func TestAllowsMultiple(t *testing.T) {
	c := Default()

	assert.True(t, c.AllowsMultiple("kitchen", "sink"))
	assert.True(t, c.AllowsMultiple("kitchen", "refrigerator"))
	assert.False(t, c.AllowsMultiple("bedroom", "lighting"))
	assert.False(t, c.AllowsMultiple("garage", "sink"))
}

func TestIsAllowed(t *testing.T) {
	c := Default()

	assert.True(t, c.IsAllowed("living-room", "ceiling-fan"))
	assert.False(t, c.IsAllowed("bedroom", "sink"))
}

func TestParseRejectsInconsistentTable(t *testing.T) {
	_, err := Parse([]byte("rooms:\n  - name: kitchen\n    types: [sink]\n    multiple: [oven]\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("rooms: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("rooms:\n  - name: a\n    types: [x]\n  - name: a\n    types: [y]\n"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  - name: kitchen\n    types: [sink, oven]\n    multiple: [oven]\n"), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.False(t, c.AllowsMultiple("kitchen", "sink"))
	assert.True(t, c.AllowsMultiple("kitchen", "oven"))
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Rooms(), 5)
}
