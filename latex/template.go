package latex

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Slot is the only placeholder a template may use.
const Slot = "text"

//go:embed template.txt
var defaultTemplateSource string

// Template errors.
var (
	ErrNoSlot         = errors.New("latex: template has no $" + Slot + " placeholder")
	ErrBadPlaceholder = errors.New("latex: invalid placeholder in template")
	ErrUnknownSlot    = errors.New("latex: unknown placeholder in template")
)

// placeholder follows $-substitution rules: "$$" escapes, "$name" and
// "${name}" substitute, and a lone "$" is invalid.
var placeholder = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\}|())`)

// Template wraps a query into a complete LaTeX document.
// It is parsed once and is safe for concurrent use.
type Template struct {
	parts []string // literal text; the query goes between consecutive parts
}

// ParseTemplate parses src. Every placeholder must be $text or ${text}.
func ParseTemplate(src string) (*Template, error) {
	var (
		parts []string
		buf   strings.Builder
		last  int
		slots int
	)
	for _, m := range placeholder.FindAllStringSubmatchIndex(src, -1) {
		buf.WriteString(src[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			buf.WriteByte('$')
		case m[4] >= 0 || m[6] >= 0:
			name := group(src, m, 2)
			if name == "" {
				name = group(src, m, 3)
			}
			if name != Slot {
				return nil, fmt.Errorf("%w: $%s", ErrUnknownSlot, name)
			}
			parts = append(parts, buf.String())
			buf.Reset()
			slots++
		default:
			line := strings.Count(src[:m[0]], "\n") + 1
			return nil, fmt.Errorf("%w: line %d", ErrBadPlaceholder, line)
		}
	}
	buf.WriteString(src[last:])
	parts = append(parts, buf.String())

	if slots == 0 {
		return nil, ErrNoSlot
	}
	return &Template{parts: parts}, nil
}

func group(s string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

// LoadTemplate reads and parses the template at path. An empty path selects
// the built-in template.
func LoadTemplate(path string) (*Template, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("latex: reading template: %w", err)
	}
	t, err := ParseTemplate(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// DefaultTemplate returns the built-in article template.
func DefaultTemplate() *Template {
	t, err := ParseTemplate(defaultTemplateSource)
	if err != nil {
		panic(err)
	}
	return t
}

// Execute substitutes query verbatim into every slot. Dollar signs inside
// query are not expanded again.
func (t *Template) Execute(query string) string {
	var b strings.Builder
	for i, p := range t.parts {
		if i > 0 {
			b.WriteString(query)
		}
		b.WriteString(p)
	}
	return b.String()
}
