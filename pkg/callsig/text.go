package callsig

import (
	"regexp"
	"strings"
)

var (
	callNamePattern  = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*\(`)
	identPattern     = regexp.MustCompile(`[A-Za-z_]\w*`)
	wordIdentPattern = regexp.MustCompile(`\b([A-Za-z_]\w*)\b`)
	whitespace       = regexp.MustCompile(`\s+`)
)

var callNameBlocklist = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"return": true, "sizeof": true, "NULL": true,
}

// ExtractCalledNames returns every name that is textually applied to an
// argument list in code, keywords excluded, in order of appearance.
func ExtractCalledNames(code string) []string {
	var names []string
	for _, m := range callNamePattern.FindAllStringSubmatch(code, -1) {
		if !callNameBlocklist[m[1]] {
			names = append(names, m[1])
		}
	}
	return names
}

// FirstCalledName returns the first called name in code, or "".
func FirstCalledName(code string) string {
	if names := ExtractCalledNames(code); len(names) > 0 {
		return names[0]
	}
	return ""
}

// CategoryFromCode picks the strongest category among all called names in
// code, following Priority.
func CategoryFromCode(code string) Category {
	seen := make(map[Category]bool)
	for _, name := range ExtractCalledNames(code) {
		seen[CategoryOf(name)] = true
	}
	for _, c := range Priority {
		if seen[c] {
			return c
		}
	}
	return CategoryNone
}

// StripSizeof removes every balanced sizeof(...) group from s.
func StripSizeof(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "sizeof") {
			j := i + len("sizeof")
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && s[j] == '(' {
				if end := matchingParen(s, j); end >= 0 {
					i = end + 1
					continue
				}
				// Unbalanced: drop the rest, as nothing after it can close.
				return sb.String()
			}
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// HasIdentifier reports whether s contains an identifier token.
func HasIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

// HasRuntimeIdentifier reports whether s keeps an identifier once sizeof
// groups are removed.
func HasRuntimeIdentifier(s string) bool {
	return HasIdentifier(StripSizeof(s))
}

// FirstIdent returns the first identifier token in s.
func FirstIdent(s string) string {
	if m := wordIdentPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// NormalizeExpr strips all whitespace and any balanced outer parentheses so
// that textually equivalent expressions compare equal.
func NormalizeExpr(s string) string {
	s = whitespace.ReplaceAllString(s, "")
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && matchingParen(s, 0) == len(s)-1 {
		s = s[1 : len(s)-1]
	}
	return s
}

// SplitArgs parses the argument list of the first textual call to name in
// code, splitting on top-level commas. It is best-effort: an unbalanced
// call yields nil.
func SplitArgs(code, name string) []string {
	if name == "" {
		return nil
	}
	loc := pattern(`\b` + regexp.QuoteMeta(name) + `\s*\(`).FindStringIndex(code)
	if loc == nil {
		return nil
	}
	open := loc[1] - 1
	end := matchingParen(code, open)
	if end < 0 {
		return nil
	}

	inner := code[open+1 : end]
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(inner[start:]); tail != "" || len(args) > 0 {
		args = append(args, tail)
	}
	return args
}

// matchingParen returns the index of the ')' closing the '(' at open, or -1.
func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
