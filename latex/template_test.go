package latex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		query   string
		want    string
		wantErr error
	}{
		{name: "bare slot", src: "a $text b", query: "x", want: "a x b"},
		{name: "braced slot", src: "a${text}b", query: "x", want: "axb"},
		{name: "repeated slot", src: "$text/$text", query: "q", want: "q/q"},
		{name: "escaped dollar", src: "$$ $text $$", query: "x", want: "$ x $"},
		{name: "math mode around slot", src: "$$$text$$", query: "x^2", want: "$x^2$"},
		{name: "no slot", src: "plain", wantErr: ErrNoSlot},
		{name: "only escapes", src: "$$", wantErr: ErrNoSlot},
		{name: "unknown slot", src: "$text $other", wantErr: ErrUnknownSlot},
		{name: "longer identifier", src: "$textual", wantErr: ErrUnknownSlot},
		{name: "lone dollar", src: "$text costs $5", wantErr: ErrBadPlaceholder},
		{name: "trailing dollar", src: "$text $", wantErr: ErrBadPlaceholder},
		{name: "unclosed brace", src: "${text", wantErr: ErrBadPlaceholder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := ParseTemplate(tt.src)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tpl.Execute(tt.query))
		})
	}
}

func TestParseTemplate_BadPlaceholderReportsLine(t *testing.T) {
	_, err := ParseTemplate("line one $text\nline two\ncosts $3\n")
	require.ErrorIs(t, err, ErrBadPlaceholder)
	assert.Contains(t, err.Error(), "line 3")
}

func TestTemplate_ExecuteIsVerbatim(t *testing.T) {
	tpl, err := ParseTemplate("[$text]")
	require.NoError(t, err)

	// Dollar signs and braces in the query are not placeholders.
	assert.Equal(t, "[$x$ ${text} $$]", tpl.Execute("$x$ ${text} $$"))
}

func TestDefaultTemplate(t *testing.T) {
	tpl := DefaultTemplate()
	doc := tpl.Execute(`\frac{1}{2}`)

	assert.True(t, strings.HasPrefix(doc, `\documentclass`))
	assert.Contains(t, doc, `\usepackage{amsmath}`)
	assert.Contains(t, doc, "\\begin{document}\n\\frac{1}{2}\n\\end{document}")
	assert.NotContains(t, doc, "$text")
}

func TestLoadTemplate(t *testing.T) {
	t.Run("empty path selects default", func(t *testing.T) {
		tpl, err := LoadTemplate("  ")
		require.NoError(t, err)
		assert.Equal(t, DefaultTemplate().Execute("x"), tpl.Execute("x"))
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.tex")
		require.NoError(t, os.WriteFile(path, []byte("<<${text}>>"), 0o600))

		tpl, err := LoadTemplate(path)
		require.NoError(t, err)
		assert.Equal(t, "<<y>>", tpl.Execute("y"))
	})

	t.Run("invalid file names the path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.tex")
		require.NoError(t, os.WriteFile(path, []byte("no slot"), 0o600))

		_, err := LoadTemplate(path)
		require.ErrorIs(t, err, ErrNoSlot)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTemplate(filepath.Join(t.TempDir(), "nope.tex"))
		require.Error(t, err)
	})
}
