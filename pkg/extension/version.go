package extension

import "strings"

// ExtractMajor returns the major-version identifier of a version specifier.
//
// A single leading non-digit character ("^", "~", "v", ...) is dropped and
// the run of digits that follows is returned. ok is false when no digit run
// remains.
func ExtractMajor(raw string) (major string, ok bool) {
	s := strings.TrimSpace(raw)
	if s != "" && !isDigit(s[0]) {
		s = s[1:]
	}
	end := 0
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end == 0 {
		return "", false
	}
	return s[:end], true
}

// compareMajor orders two digit strings numerically without overflow.
func compareMajor(a, b string) int {
	a, b = trimZeros(a), trimZeros(b)
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" && s != "" {
		return "0"
	}
	return t
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
