package common

import (
	"strconv"
	"strings"
)

// IntOr parses s as a non-negative base-10 integer. Blank, malformed and
// negative values yield def.
func IntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
