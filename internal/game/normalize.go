package game

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize folds a name for identity comparison:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
// 3. Collapse internal whitespace to single spaces
//
// Item names and world themes compare equal when their normalized forms match.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// SameTheme reports whether two world labels name the same world.
func SameTheme(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
