package transport

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// Encoding converts between Go strings and wire bytes
type Encoding struct {
	name string
	enc  encoding.Encoding
	unit int
}

// ParseEncoding returns the encoding for a configuration name: utf-8 (the
// default), utf-16le, utf-16be or latin1.
func ParseEncoding(name string) (*Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return &Encoding{name: "utf-8", enc: unicode.UTF8, unit: 1}, nil
	case "utf-16le", "utf16le", "utf-16", "unicode":
		return &Encoding{name: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), unit: 2}, nil
	case "utf-16be", "utf16be":
		return &Encoding{name: "utf-16be", enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), unit: 2}, nil
	case "latin1", "iso-8859-1":
		return &Encoding{name: "latin1", enc: charmap.ISO8859_1, unit: 1}, nil
	default:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "unsupported encoding. encoding=%s", name)
	}
}

// Name returns the canonical encoding name
func (e *Encoding) Name() string { return e.name }

// Unit returns the size in bytes of one code unit
func (e *Encoding) Unit() int { return e.unit }

// Encode converts s to wire bytes
func (e *Encoding) Encode(s string) ([]byte, error) {
	b, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeInvalidRequest, "failed to encode text. encoding=%s", e.name)
	}
	return b, nil
}

// Decode converts wire bytes to a string
func (e *Encoding) Decode(b []byte) (string, error) {
	out, err := e.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", terrors.Wrap(err, terrors.CodeInvalidRequest, "failed to decode text. encoding=%s", e.name)
	}
	return string(out), nil
}
