// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     text
// Description: Option tokenizer, argument splitting and identifier comparison
// License:     MIT
// ============================================================================

// Package text turns raw terminal command text into option and argument
// tokens.
package text

import (
	"strings"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// MaxOptionStrings bounds the number of option tokens extracted from a single
// command line.
const MaxOptionStrings = 50

// OptionString is a single option token extracted from raw command text
type OptionString struct {
	// Position is the offset where the token's separator run starts
	Position int

	// Raw is the token text including its leading separator run and any
	// delimited value, untouched
	Raw string

	// AliasPrefix is true when the token was introduced by the alias prefix
	AliasPrefix bool
}

// ExtractOptionStrings splits raw into option tokens. A token starts at the
// separator run in front of an option prefix and ends where the next token
// starts. Prefixes inside a value delimiter pair are part of the value.
//
// Text without any prefix yields a single token covering the whole input
// with AliasPrefix set.
func ExtractOptionStrings(raw string, opts Options, cmp TextComparer) ([]OptionString, error) {
	normalized := normalize(raw, opts)
	tokens, err := scan(normalized, opts, cmp)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []OptionString{{Position: 0, Raw: raw, AliasPrefix: true}}, nil
	}
	return tokens, nil
}

// SplitRegion separates the positional argument text at the front of s from
// the option tokens that follow it.
func SplitRegion(s string, opts Options, cmp TextComparer) (string, []OptionString, error) {
	normalized := normalize(s, opts)
	tokens, err := scan(normalized, opts, cmp)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		return normalized, nil, nil
	}
	return normalized[:tokens[0].Position], tokens, nil
}

// normalize prepends one separator so a leading prefix is recognized like
// any other.
func normalize(s string, opts Options) string {
	if strings.HasPrefix(s, opts.Separator) {
		return s
	}
	return opts.Separator + s
}

func scan(s string, opts Options, cmp TextComparer) ([]OptionString, error) {
	if cmp == nil {
		cmp = CaseSensitive
	}

	// Test the longer prefix first, "-" is a prefix of "--".
	long, short := opts.OptionPrefix, opts.OptionAliasPrefix
	longIsAlias := false
	if len(short) > len(long) {
		long, short = short, long
		longIsAlias = true
	}

	var starts []OptionString
	inValue := false
	for i := 0; i < len(s); {
		if opts.ValueDelimiter != "" && strings.HasPrefix(s[i:], opts.ValueDelimiter) {
			inValue = !inValue
			i += len(opts.ValueDelimiter)
			continue
		}
		if inValue || !strings.HasPrefix(s[i:], opts.Separator) {
			i++
			continue
		}

		runStart := i
		for strings.HasPrefix(s[i:], opts.Separator) {
			i += len(opts.Separator)
		}

		rest := s[i:]
		var alias bool
		switch {
		case cmp.HasPrefix(rest, long):
			alias = longIsAlias
		case cmp.HasPrefix(rest, short):
			alias = !longIsAlias
		default:
			continue
		}

		if len(starts) >= MaxOptionStrings {
			return nil, terrors.New(terrors.CodeInvalidRequest,
				"too many iterations while extracting options. max=%d current=%d",
				MaxOptionStrings, len(starts)+1)
		}
		starts = append(starts, OptionString{Position: runStart, AliasPrefix: alias})
	}

	for k := range starts {
		end := len(s)
		if k+1 < len(starts) {
			end = starts[k+1].Position
		}
		starts[k].Raw = s[starts[k].Position:end]
	}
	return starts, nil
}

// SplitOptionString splits a token into its option id and value. hasValue is
// false when the token carries no value at all. A value wrapped in the value
// delimiter is returned without the delimiters.
func SplitOptionString(token OptionString, opts Options, cmp TextComparer) (id string, value string, hasValue bool) {
	if cmp == nil {
		cmp = CaseSensitive
	}
	body := trimSeparators(token.Raw, opts.Separator)

	prefix := opts.OptionPrefix
	if token.AliasPrefix {
		prefix = opts.OptionAliasPrefix
	}
	body = cutPrefix(body, prefix, cmp)

	idx, width := indexValueSeparator(body, opts)
	if idx < 0 {
		return body, "", false
	}

	id = body[:idx]
	value = trimSeparators(body[idx+width:], opts.Separator)
	if value == "" {
		return id, "", false
	}
	return id, Unquote(value, opts.ValueDelimiter), true
}

// cutPrefix removes prefix from s. Under case folding the matched part of s
// may differ in length from prefix, so the cut is made where the folded
// forms match.
func cutPrefix(s, prefix string, cmp TextComparer) string {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):]
	}
	if !cmp.HasPrefix(s, prefix) {
		return s
	}
	for i := range s {
		if i > 0 && cmp.Equal(s[:i], prefix) {
			return s[i:]
		}
	}
	return ""
}

// indexValueSeparator finds the first value separator or separator outside a
// delimited value.
func indexValueSeparator(s string, opts Options) (int, int) {
	inValue := false
	for i := 0; i < len(s); {
		switch {
		case opts.ValueDelimiter != "" && strings.HasPrefix(s[i:], opts.ValueDelimiter):
			inValue = !inValue
			i += len(opts.ValueDelimiter)
			continue
		case inValue:
		case strings.HasPrefix(s[i:], opts.OptionValueSeparator):
			return i, len(opts.OptionValueSeparator)
		case strings.HasPrefix(s[i:], opts.Separator):
			return i, len(opts.Separator)
		}
		i++
	}
	return -1, 0
}

// SplitArguments splits positional argument text at separators outside
// delimited values. Empty segments are dropped and delimiters removed.
func SplitArguments(s string, opts Options) []string {
	var args []string
	var current strings.Builder
	inValue := false

	flush := func() {
		if current.Len() > 0 {
			args = append(args, Unquote(current.String(), opts.ValueDelimiter))
			current.Reset()
		}
	}

	for i := 0; i < len(s); {
		switch {
		case opts.ValueDelimiter != "" && strings.HasPrefix(s[i:], opts.ValueDelimiter):
			inValue = !inValue
			current.WriteString(opts.ValueDelimiter)
			i += len(opts.ValueDelimiter)
		case !inValue && strings.HasPrefix(s[i:], opts.Separator):
			flush()
			i += len(opts.Separator)
		default:
			current.WriteByte(s[i])
			i++
		}
	}
	flush()
	return args
}

// Unquote removes one surrounding pair of value delimiters
func Unquote(s, delimiter string) string {
	if delimiter == "" || len(s) < 2*len(delimiter) {
		return s
	}
	if strings.HasPrefix(s, delimiter) && strings.HasSuffix(s, delimiter) {
		return s[len(delimiter) : len(s)-len(delimiter)]
	}
	return s
}

func trimSeparators(s, sep string) string {
	for sep != "" && strings.HasPrefix(s, sep) {
		s = s[len(sep):]
	}
	for sep != "" && strings.HasSuffix(s, sep) {
		s = s[:len(s)-len(sep)]
	}
	return s
}

// NextSegment returns the first separator-delimited segment of s and the
// untouched remainder after it. Leading separators are skipped.
func NextSegment(s, sep string) (segment string, rest string) {
	trimmed := s
	for sep != "" && strings.HasPrefix(trimmed, sep) {
		trimmed = trimmed[len(sep):]
	}
	idx := strings.Index(trimmed, sep)
	if idx < 0 {
		return trimmed, ""
	}
	return trimmed[:idx], trimmed[idx:]
}
