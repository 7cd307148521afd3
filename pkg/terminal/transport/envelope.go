// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     transport
// Description: Wire envelopes, framing, encodings and the request dispatcher
//              shared by all transports
// License:     MIT
// ============================================================================

// Package transport holds what every transport shares: the JSON envelopes,
// message framing, wire encodings and the Dispatcher that routes requests
// under a timeout and reports failures.
package transport

import (
	"encoding/json"

	"github.com/google/uuid"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// TerminalRequest is one command on the wire. Result is set in responses.
type TerminalRequest struct {
	ID      string      `json:"id"`
	Raw     string      `json:"raw"`
	IsError bool        `json:"is_error"`
	Result  interface{} `json:"result,omitempty"`
}

// TerminalInput carries one or more requests
type TerminalInput struct {
	BatchID  string            `json:"batch_id,omitempty"`
	Requests []TerminalRequest `json:"requests"`
}

// TerminalOutput carries the responses, in request order
type TerminalOutput struct {
	BatchID  string            `json:"batch_id,omitempty"`
	Requests []TerminalRequest `json:"requests"`
}

// ErrorResult is the result of a failed request
type ErrorResult struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// IsBatch reports whether more than one request is carried
func (in TerminalInput) IsBatch() bool { return len(in.Requests) > 1 }

// IsBatch reports whether more than one response is carried
func (out TerminalOutput) IsBatch() bool { return len(out.Requests) > 1 }

// Single creates an input with one request. An empty id gets a generated one.
func Single(id, raw string) TerminalInput {
	if id == "" {
		id = uuid.New().String()
	}
	return TerminalInput{Requests: []TerminalRequest{{ID: id, Raw: raw}}}
}

// Batch creates an input from requests. An empty batch id gets a generated
// one.
func Batch(batchID string, requests ...TerminalRequest) TerminalInput {
	if batchID == "" {
		batchID = uuid.New().String()
	}
	for i := range requests {
		if requests[i].ID == "" {
			requests[i].ID = uuid.New().String()
		}
	}
	return TerminalInput{BatchID: batchID, Requests: requests}
}

// ErrorOf returns the error of a failed response. It handles results built
// in process and results decoded from JSON.
func ErrorOf(req TerminalRequest) (*ErrorResult, bool) {
	if !req.IsError {
		return nil, false
	}
	switch r := req.Result.(type) {
	case *ErrorResult:
		return r, true
	case ErrorResult:
		return &r, true
	default:
		data, err := json.Marshal(r)
		if err != nil {
			return &ErrorResult{Error: string(terrors.CodeUnknown)}, true
		}
		var e ErrorResult
		if err := json.Unmarshal(data, &e); err != nil || e.Error == "" {
			return &ErrorResult{Error: string(terrors.CodeUnknown)}, true
		}
		return &e, true
	}
}

// NewErrorResult converts err into an error result
func NewErrorResult(err error) *ErrorResult {
	e := terrors.Normalize(err)
	return &ErrorResult{Error: string(e.Code()), Description: e.Error()}
}

// Validate checks that the input carries at least one request
func (in TerminalInput) Validate() error {
	if len(in.Requests) == 0 {
		return terrors.New(terrors.CodeInvalidRequest, "the terminal input has no requests")
	}
	return nil
}
