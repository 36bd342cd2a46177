package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("settings", "DEBUG = {{.debug}}\nHOST = {{.host}}\n", map[string]any{
		"debug": "False",
		"host":  "example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "DEBUG = False\nHOST = example.com\n", out)
}

func TestRenderDeterministic(t *testing.T) {
	vars := map[string]any{"a": 1, "b": 2, "c": 3}
	first, err := Render("t", "{{.a}}{{.b}}{{.c}}", vars)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		out, err := Render("t", "{{.a}}{{.b}}{{.c}}", vars)
		require.NoError(t, err)
		assert.Equal(t, first, out)
	}
}

func TestRenderMissingKey(t *testing.T) {
	_, err := Render("settings", "{{.missing}}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings")
}

func TestRenderParseError(t *testing.T) {
	_, err := Render("broken", "{{.unclosed", nil)
	require.Error(t, err)
}
