package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
)

// Framer converts between wire messages and envelopes. Delimiters are
// matched in the configured encoding at code unit boundaries.
//
// A message starting with "{" is a JSON TerminalInput. Any other message is
// delimited text: an optional "id<ID>raw" per command, commands separated by
// the command delimiter, and a trailing batch delimiter marking a batch.
type Framer struct {
	opts    router.RouterOptions
	enc     *Encoding
	stream  []byte
	maxSize int
}

// NewFramer creates a framer for the router options
func NewFramer(opts router.RouterOptions) (*Framer, error) {
	enc, err := ParseEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	stream, err := enc.Encode(string(rune(opts.StreamDelimiter)))
	if err != nil {
		return nil, err
	}
	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = router.DefaultMaxMessageSize
	}
	return &Framer{opts: opts, enc: enc, stream: stream, maxSize: maxSize}, nil
}

// Encoding returns the wire encoding
func (f *Framer) Encoding() *Encoding { return f.enc }

// MaxMessageSize returns the largest accepted message in bytes
func (f *Framer) MaxMessageSize() int { return f.maxSize }

// SplitFunc splits a byte stream at the stream delimiter. Bytes after the
// last delimiter at EOF are an incomplete message and are dropped.
func (f *Framer) SplitFunc() bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := indexAligned(data, f.stream, f.enc.Unit()); i >= 0 {
			if i > f.maxSize {
				return 0, nil, f.tooLarge(i)
			}
			return i + len(f.stream), data[:i], nil
		}
		if len(data) > f.maxSize {
			return 0, nil, f.tooLarge(len(data))
		}
		if atEOF && len(data) > 0 {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
}

func (f *Framer) tooLarge(n int) error {
	return terrors.New(terrors.CodeInvalidRequest, "the message exceeds the maximum size. max=%d current=%d", f.maxSize, n)
}

// NewScanner returns a scanner splitting r into messages
func (f *Framer) NewScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), f.maxSize+len(f.stream)+1)
	scanner.Split(f.SplitFunc())
	return scanner
}

// indexAligned finds sep in data at an offset that is a multiple of unit
func indexAligned(data, sep []byte, unit int) int {
	offset := 0
	for offset < len(data) {
		i := bytes.Index(data[offset:], sep)
		if i < 0 {
			return -1
		}
		pos := offset + i
		if pos%unit == 0 {
			return pos
		}
		offset = pos + 1
	}
	return -1
}

// Frame appends the stream delimiter to payload
func (f *Framer) Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+len(f.stream))
	out = append(out, payload...)
	return append(out, f.stream...)
}

// Decode turns one message into a TerminalInput. Requests without an id get
// a generated one.
func (f *Framer) Decode(msg []byte) (TerminalInput, error) {
	text, err := f.enc.Decode(msg)
	if err != nil {
		return TerminalInput{}, err
	}
	if strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), "{") {
		return DecodeJSONInput([]byte(text))
	}
	return f.DecodeText(text)
}

// DecodeJSONInput parses a JSON TerminalInput
func DecodeJSONInput(data []byte) (TerminalInput, error) {
	var in TerminalInput
	if err := json.Unmarshal(data, &in); err != nil {
		return TerminalInput{}, terrors.Wrap(err, terrors.CodeInvalidRequest, "malformed terminal input")
	}
	if err := in.Validate(); err != nil {
		return TerminalInput{}, err
	}
	for i := range in.Requests {
		if in.Requests[i].ID == "" {
			in.Requests[i].ID = uuid.New().String()
		}
		in.Requests[i].IsError = false
		in.Requests[i].Result = nil
	}
	return in, nil
}

// DecodeText parses the delimited text form
func (f *Framer) DecodeText(text string) (TerminalInput, error) {
	batchDelim := string(rune(f.opts.BatchDelimiter))
	cmdDelim := string(rune(f.opts.CommandDelimiter))

	if strings.HasSuffix(text, batchDelim) {
		var requests []TerminalRequest
		for _, part := range strings.Split(strings.TrimSuffix(text, batchDelim), cmdDelim) {
			if strings.TrimSpace(part) == "" {
				continue
			}
			requests = append(requests, f.textRequest(part))
		}
		in := Batch("", requests...)
		return in, in.Validate()
	}

	text = strings.TrimSuffix(text, cmdDelim)
	if strings.TrimSpace(text) == "" {
		return TerminalInput{}, terrors.New(terrors.CodeInvalidRequest, "the message is empty")
	}
	return TerminalInput{Requests: []TerminalRequest{f.textRequest(text)}}, nil
}

func (f *Framer) textRequest(part string) TerminalRequest {
	part = strings.TrimRight(part, "\r\n")
	if i := strings.IndexRune(part, rune(f.opts.IDDelimiter)); i >= 0 {
		id, raw := part[:i], part[i+1:]
		if id == "" {
			id = uuid.New().String()
		}
		return TerminalRequest{ID: id, Raw: raw}
	}
	return TerminalRequest{ID: uuid.New().String(), Raw: part}
}

// EncodeText renders an input in the delimited text form
func (f *Framer) EncodeText(in TerminalInput) ([]byte, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	idDelim := string(rune(f.opts.IDDelimiter))

	var b strings.Builder
	for i, req := range in.Requests {
		if i > 0 {
			b.WriteRune(rune(f.opts.CommandDelimiter))
		}
		if req.ID != "" {
			b.WriteString(req.ID)
			b.WriteString(idDelim)
		}
		b.WriteString(req.Raw)
	}
	if in.IsBatch() {
		b.WriteRune(rune(f.opts.BatchDelimiter))
	}
	return f.enc.Encode(b.String())
}

// EncodeInput renders an input as JSON in the wire encoding
func (f *Framer) EncodeInput(in TerminalInput) ([]byte, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return f.encodeJSON(in)
}

// EncodeOutput renders an output as JSON in the wire encoding
func (f *Framer) EncodeOutput(out TerminalOutput) ([]byte, error) {
	return f.encodeJSON(out)
}

// DecodeOutput parses an output in the wire encoding
func (f *Framer) DecodeOutput(data []byte) (TerminalOutput, error) {
	text, err := f.enc.Decode(data)
	if err != nil {
		return TerminalOutput{}, err
	}
	var out TerminalOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return TerminalOutput{}, terrors.Wrap(err, terrors.CodeInvalidRequest, "malformed terminal output")
	}
	return out, nil
}

func (f *Framer) encodeJSON(v interface{}) ([]byte, error) {
	data, err := MarshalJSON(v)
	if err != nil {
		return nil, err
	}
	return f.enc.Encode(string(data))
}

// MarshalJSON encodes v without HTML escaping and without a trailing newline
func MarshalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, terrors.Wrap(err, terrors.CodeServerError, "failed to encode response")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
