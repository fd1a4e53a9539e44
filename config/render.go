package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenderDefaultTOML renders a commented TOML config holding every default.
func RenderDefaultTOML() string {
	var b strings.Builder
	b.WriteString("# latexbot configuration (TOML)\n")
	b.WriteString("# Every key can be overridden with LATEXBOT_<SECTION>_<KEY>.\n")

	section := ""
	for _, o := range Options() {
		sec, key := splitKey(o.Key)
		if sec != section {
			section = sec
			b.WriteString("\n[" + sec + "]\n")
		}
		fmt.Fprintf(&b, "# %s\n%s = %s\n", o.Comment, key, tomlValue(o.Default))
	}
	return b.String()
}

// splitKey splits "render.retry.max_attempts" into "render.retry" and
// "max_attempts".
func splitKey(k string) (section, key string) {
	i := strings.LastIndexByte(k, '.')
	if i < 0 {
		return "", k
	}
	return k[:i], k[i+1:]
}

func tomlValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case time.Duration:
		return strconv.Quote(x.String())
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case []string:
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return strconv.Quote(fmt.Sprint(x))
	}
}
