package text

import (
	"strings"

	"golang.org/x/text/cases"
)

// TextComparer decides how command, option and argument identifiers compare
type TextComparer interface {
	// Key normalizes s for use as a map key
	Key(s string) string

	// Equal reports whether a and b identify the same thing
	Equal(a, b string) bool

	// HasPrefix reports whether s starts with prefix
	HasPrefix(s, prefix string) bool
}

var (
	// CaseSensitive compares identifiers byte by byte
	CaseSensitive TextComparer = caseSensitive{}

	// CaseInsensitive compares identifiers using Unicode case folding
	CaseInsensitive TextComparer = caseInsensitive{}
)

type caseSensitive struct{}

func (caseSensitive) Key(s string) string             { return s }
func (caseSensitive) Equal(a, b string) bool          { return a == b }
func (caseSensitive) HasPrefix(s, prefix string) bool { return strings.HasPrefix(s, prefix) }

type caseInsensitive struct{}

// A cases.Caser keeps state, so a fresh one is created per call.
func (caseInsensitive) Key(s string) string {
	return cases.Fold().String(s)
}

func (c caseInsensitive) Equal(a, b string) bool {
	return c.Key(a) == c.Key(b)
}

func (c caseInsensitive) HasPrefix(s, prefix string) bool {
	return strings.HasPrefix(c.Key(s), c.Key(prefix))
}

// Comparer returns the comparer for the given sensitivity
func Comparer(caseInsensitive bool) TextComparer {
	if caseInsensitive {
		return CaseInsensitive
	}
	return CaseSensitive
}
