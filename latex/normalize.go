package latex

import "regexp"

// space matches one character of Unicode white space.
const space = `[\t\n\v\f\r\x1c-\x1f\x{85}\p{Z}]`

// fencePatterns are tried in order; the first that matches wins. Only the
// triple fence accepts a language tag.
var fencePatterns = []*regexp.Regexp{
	fence("```", `(?:[a-z]+\n)?`),
	fence("``", ""),
	fence("`", ""),
}

func fence(delim, lang string) *regexp.Regexp {
	d := regexp.QuoteMeta(delim)
	return regexp.MustCompile(`(?is)^` + d + lang + `(?:[ \t]*\n)*(.*?)` + space + `*` + d)
}

// Normalize strips a code fence wrapping the start of text and returns the
// fenced body. Text that does not start with a complete fence is returned
// unchanged. Anything after the closing fence is dropped.
//
//	"`x^2`"                  -> "x^2"
//	"```tex\n\\frac12\n```" -> "\\frac12"
//	"`tex\nx`"              -> "tex\nx"
func Normalize(text string) string {
	for _, re := range fencePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return text
}
