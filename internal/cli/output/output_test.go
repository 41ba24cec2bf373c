package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{name: "auto on tty", mode: ModeAuto, isTTY: true, want: ModeText},
		{name: "auto piped", mode: ModeAuto, isTTY: false, want: ModeMarkdown},
		{name: "empty is auto", mode: "", isTTY: false, want: ModeMarkdown},
		{name: "explicit json", mode: ModeJSON, isTTY: true, want: ModeJSON},
		{name: "explicit text piped", mode: ModeText, isTTY: false, want: ModeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_MarkdownHasNoANSI(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeMarkdown)

	r.Header(1, "Build")
	r.StatusLine("index.js", "success", "12 B")
	r.Success("done")
	r.Warning("careful")

	assert.Contains(t, out.String(), "# Build")
	assert.Contains(t, out.String(), "- ✓ index.js (12 B)")
	assert.NotContains(t, out.String()+errOut.String(), "\x1b[")
	assert.Contains(t, errOut.String(), "! careful")
}

func TestRenderer_Structured(t *testing.T) {
	payload := map[string]any{"name": "leapbuild", "plugins": []string{"solid"}}

	out := &bytes.Buffer{}
	ok, err := NewRendererWithTTY(out, out, false, ModeJSON).Structured(payload)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"name":"leapbuild","plugins":["solid"]}`, out.String())

	out.Reset()
	ok, err = NewRendererWithTTY(out, out, false, ModeYAML).Structured(payload)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "name: leapbuild")
	assert.Contains(t, out.String(), "- solid")

	out.Reset()
	ok, err = NewRendererWithTTY(out, out, false, ModeMarkdown).Structured(payload)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Plugins", FormatHeader(2, "Plugins"))
	assert.Equal(t, "# X", FormatHeader(0, "X"))
	assert.Equal(t, "- **Mode**: production", FormatKeyValue("Mode", "production"))
	assert.True(t, strings.HasPrefix(FormatKeyValue("k", "v"), "- "))
}
