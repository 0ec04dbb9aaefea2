package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForbidden matches every *ForbiddenError
var ErrForbidden = errors.New("statement is not read-only")

// ForbiddenError is returned when a statement contains a forbidden keyword
type ForbiddenError struct {
	Keyword string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden SQL keyword %q: only read-only queries are allowed", e.Keyword)
}

// Is makes errors.Is(err, ErrForbidden) succeed
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// GuardMode selects how statements are matched against forbidden keywords
type GuardMode string

const (
	// GuardSubstring rejects a statement when a keyword appears anywhere in
	// the lower-cased text, including inside identifiers and literals
	GuardSubstring GuardMode = "substring"
	// GuardKeyword only rejects whole keywords outside literals, quoted
	// identifiers and comments
	GuardKeyword GuardMode = "keyword"
)

// ForbiddenKeywords are the statement kinds that can modify a database
var ForbiddenKeywords = []string{
	"insert",
	"update",
	"delete",
	"drop",
	"alter",
	"truncate",
	"create",
	"replace",
}

// Guard checks statements before execution
type Guard struct {
	mode GuardMode
}

// NewGuard creates a guard. An empty mode means GuardSubstring.
func NewGuard(mode GuardMode) (*Guard, error) {
	switch mode {
	case "":
		mode = GuardSubstring
	case GuardSubstring, GuardKeyword:
	default:
		return nil, fmt.Errorf("unknown guard mode %q (must be substring or keyword)", mode)
	}
	return &Guard{mode: mode}, nil
}

// Mode returns the matching mode
func (g *Guard) Mode() GuardMode {
	return g.mode
}

// Check returns a *ForbiddenError when stmt is not read-only
func (g *Guard) Check(stmt string) error {
	if g.mode == GuardKeyword {
		return checkKeywords(stmt)
	}
	return checkSubstring(stmt)
}

func checkSubstring(stmt string) error {
	lower := strings.ToLower(stmt)
	for _, kw := range ForbiddenKeywords {
		if strings.Contains(lower, kw) {
			return &ForbiddenError{Keyword: kw}
		}
	}
	return nil
}

func checkKeywords(stmt string) error {
	forbidden := make(map[string]struct{}, len(ForbiddenKeywords))
	for _, kw := range ForbiddenKeywords {
		forbidden[kw] = struct{}{}
	}

	for _, word := range words(stmt) {
		if _, ok := forbidden[word]; ok {
			return &ForbiddenError{Keyword: word}
		}
	}
	return nil
}

// words returns the lower-cased bare words of stmt, skipping string
// literals, quoted identifiers and comments
func words(stmt string) []string {
	var out []string
	s := stmt

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i, c)
		case c == '[':
			if end := strings.IndexByte(s[i:], ']'); end >= 0 {
				i += end + 1
			} else {
				i = len(s)
			}
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			if end := strings.IndexByte(s[i:], '\n'); end >= 0 {
				i += end + 1
			} else {
				i = len(s)
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			if end := strings.Index(s[i+2:], "*/"); end >= 0 {
				i += end + 4
			} else {
				i = len(s)
			}
		case isWordByte(c):
			start := i
			for i < len(s) && isWordByte(s[i]) {
				i++
			}
			out = append(out, strings.ToLower(s[start:i]))
		default:
			i++
		}
	}
	return out
}

// skipQuoted returns the index after the quoted run starting at i.
// A doubled quote character is an escaped quote.
func skipQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		if j+1 < len(s) && s[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
