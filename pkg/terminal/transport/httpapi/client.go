package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

// Client posts terminal inputs to an HTTP router
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL, e.g. http://127.0.0.1:8080. A
// nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SendRaw routes one command text
func (c *Client) SendRaw(ctx context.Context, raw string) (transport.TerminalOutput, error) {
	return c.Send(ctx, transport.Single("", raw))
}

// Send posts in and returns the output. Request level failures are part
// of the output; an envelope the router rejected is returned with the
// error of its single response.
func (c *Client) Send(ctx context.Context, in transport.TerminalInput) (transport.TerminalOutput, error) {
	data, err := transport.MarshalJSON(in)
	if err != nil {
		return transport.TerminalOutput{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+RoutePath, bytes.NewReader(data))
	if err != nil {
		return transport.TerminalOutput{}, terrors.Wrap(err, terrors.CodeInvalidRequest, "failed to create the request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return transport.TerminalOutput{}, terrors.FromContext(ctx.Err())
		}
		return transport.TerminalOutput{}, terrors.Wrap(err, terrors.CodeConnectionClosed, "the request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return transport.TerminalOutput{}, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transport.TerminalOutput{}, terrors.Wrap(err, terrors.CodeConnectionClosed, "failed to read the response")
	}

	var out transport.TerminalOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return transport.TerminalOutput{}, terrors.New(terrors.CodeServerError,
			"unexpected response. status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK && len(out.Requests) == 1 {
		if e, ok := transport.ErrorOf(out.Requests[0]); ok {
			return out, terrors.New(terrors.Code(e.Error), "%s", e.Description)
		}
	}
	return out, nil
}
