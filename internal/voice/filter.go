package voice

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultFilterPattern matches every rune that must be dropped: anything
// outside CJK ideographs, ASCII letters and digits, common punctuation and
// whitespace (including full-width spaces).
const DefaultFilterPattern = `[^\x{4e00}-\x{9fa5}a-zA-Z0-9，。！？、,.!?:;\s\p{Zs}]`

type TextFilter struct {
	re *regexp.Regexp
}

func NewTextFilter(pattern string) (*TextFilter, error) {
	if pattern == "" {
		pattern = DefaultFilterPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile text filter: %w", err)
	}
	return &TextFilter{re: re}, nil
}

// Clean removes every match of the filter and trims the result.
func (f *TextFilter) Clean(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(f.re.ReplaceAllString(text, ""))
}
