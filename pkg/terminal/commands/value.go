package commands

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayouts are the accepted layouts for date values, tried in order
var DateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ConvertValue converts raw into the Go value of the data type:
// string, int64, float64, bool, time.Time or uuid.UUID.
func ConvertValue(dataType DataType, raw string) (interface{}, error) {
	switch dataType.Normalized() {
	case DataTypeText:
		return raw, nil
	case DataTypeInteger:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case DataTypeNumber:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case DataTypeBoolean:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case DataTypeDate:
		for _, layout := range DateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", raw)
	case DataTypeUUID:
		return uuid.Parse(strings.TrimSpace(raw))
	default:
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}
}

// ValueChecker validates a single option or argument value. raw is the text
// as received, value the converted value (or raw when conversion was skipped).
type ValueChecker interface {
	CheckValue(raw string, value interface{}) error
}

// ValueCheckerFunc adapts a function to ValueChecker
type ValueCheckerFunc func(raw string, value interface{}) error

// CheckValue calls f
func (f ValueCheckerFunc) CheckValue(raw string, value interface{}) error {
	return f(raw, value)
}

// AllowedValues accepts only the listed values
type AllowedValues struct {
	Values          []string
	CaseInsensitive bool
}

// CheckValue implements ValueChecker
func (a AllowedValues) CheckValue(raw string, _ interface{}) error {
	for _, v := range a.Values {
		if v == raw || (a.CaseInsensitive && strings.EqualFold(v, raw)) {
			return nil
		}
	}
	return fmt.Errorf("value %q is not allowed, expected one of [%s]", raw, strings.Join(a.Values, ", "))
}

// Pattern accepts values matching a regular expression
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern compiles expr into a Pattern checker
func NewPattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return &Pattern{re: re}, nil
}

// MustPattern is like NewPattern but panics on an invalid expression
func MustPattern(expr string) *Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// CheckValue implements ValueChecker
func (p *Pattern) CheckValue(raw string, _ interface{}) error {
	if !p.re.MatchString(raw) {
		return fmt.Errorf("value %q does not match pattern %s", raw, p.re.String())
	}
	return nil
}

// Range accepts numeric values within [Min, Max]
type Range struct {
	Min float64
	Max float64
}

// CheckValue implements ValueChecker
func (r Range) CheckValue(raw string, value interface{}) error {
	var n float64
	switch v := value.(type) {
	case int64:
		n = float64(v)
	case float64:
		n = v
	default:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("value %q is not numeric", raw)
		}
		n = parsed
	}
	if n < r.Min || n > r.Max {
		return fmt.Errorf("value %v is out of range [%v, %v]", n, r.Min, r.Max)
	}
	return nil
}
