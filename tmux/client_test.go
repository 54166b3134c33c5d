package tmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindowList(t *testing.T) {
	output := `@1:0:1:par-app-ab12-feat-a
@3:1:0:par-app-ab12-feat-b
@7:2:0:scratch
`

	windows := parseWindowList(output)

	require.Len(t, windows, 3)

	assert.Equal(t, "@1", windows[0].ID)
	assert.Equal(t, 0, windows[0].Index)
	assert.True(t, windows[0].IsActive)
	assert.Equal(t, "par-app-ab12-feat-a", windows[0].Name)

	assert.Equal(t, "@3", windows[1].ID)
	assert.Equal(t, 1, windows[1].Index)
	assert.False(t, windows[1].IsActive)
}

func TestParseWindowList_NameWithColon(t *testing.T) {
	windows := parseWindowList("@2:0:0:name:with:colons\n")

	require.Len(t, windows, 1)
	assert.Equal(t, "name:with:colons", windows[0].Name)
}

func TestParseWindowList_Empty(t *testing.T) {
	assert.Empty(t, parseWindowList(""))
	assert.Empty(t, parseWindowList("\n\n"))
}

func TestParseWindowList_SkipsMalformed(t *testing.T) {
	output := `@1:0:1:good
garbage
@2:notanumber:0:bad-index
`

	windows := parseWindowList(output)

	require.Len(t, windows, 1)
	assert.Equal(t, "good", windows[0].Name)
}
