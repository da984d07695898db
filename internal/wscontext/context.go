// Package wscontext implements the web context described by the websocket
// server specification: a parser/producer for HTTP/1.1 request and response
// start-lines and headers over a raw byte slice, with no dependency on
// net/http, matching the "bypassing any HTTP server framework" scope of
// the embedding server.
package wscontext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pepnova9/wsnova/internal/wserr"
)

// Kind distinguishes a request context from a response context.
type Kind int

const (
	Request Kind = iota
	Response
)

const userIDHeader = "x-user-id"

// HeaderField is one header line, preserving the casing it was set with.
type HeaderField struct {
	Name  string
	Value string
}

// Context represents one HTTP/1.1 message (request or response): an
// immutable start-line, an ordered multi-map of headers (case-insensitive
// on lookup, original case preserved on emit), and a body.
type Context struct {
	kind Kind

	method      string
	path        string
	httpVersion string

	statusCode int
	statusText string
	statusSet  bool

	headers []HeaderField
	body    []byte
	bodySet bool
}

// NewRequest builds an empty request context for the given method and path.
func NewRequest(method, path string) *Context {
	return &Context{kind: Request, method: method, path: path, httpVersion: "HTTP/1.1"}
}

// NewResponse builds an empty response context.
func NewResponse() *Context {
	return &Context{kind: Response, httpVersion: "HTTP/1.1"}
}

// Kind reports whether this is a request or response context.
func (c *Context) Kind() Kind { return c.kind }

// AddHeader appends a header line. Multiple calls with the same name
// produce multiple header lines, consistent with HTTP semantics.
func (c *Context) AddHeader(name, value string) {
	c.headers = append(c.headers, HeaderField{Name: name, Value: value})
}

// SetHeader replaces every existing header with this name (if any) with a
// single header line carrying value.
func (c *Context) SetHeader(name, value string) {
	kept := c.headers[:0]
	for _, h := range c.headers {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	c.headers = append(kept, HeaderField{Name: name, Value: value})
}

// GetAllValues returns the concatenation of every header line under name,
// each further split on "," and trimmed, per the specification's
// comma-expansion rule.
func (c *Context) GetAllValues(name string) []string {
	var out []string
	for _, h := range c.headers {
		if !strings.EqualFold(h.Name, name) {
			continue
		}
		for _, part := range strings.Split(h.Value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Headers returns every header line in insertion order.
func (c *Context) Headers() []HeaderField {
	out := make([]HeaderField, len(c.headers))
	copy(out, c.headers)
	return out
}

// ContainsHeader reports whether name exists and, if values are given,
// whether any header value contains one of them (case-insensitive).
func (c *Context) ContainsHeader(name string, values ...string) bool {
	present := false
	for _, h := range c.headers {
		if strings.EqualFold(h.Name, name) {
			present = true
			break
		}
	}
	if !present {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, v := range c.GetAllValues(name) {
		lv := strings.ToLower(v)
		for _, want := range values {
			if strings.Contains(lv, strings.ToLower(want)) {
				return true
			}
		}
	}
	return false
}

// Host returns the Host header's host portion. It fails if no Host header
// is present.
func (c *Context) Host() (string, error) {
	host, _, err := c.hostPort()
	return host, err
}

// Port returns the Host header's port, defaulting to 80 when unspecified.
func (c *Context) Port() (int, error) {
	_, port, err := c.hostPort()
	return port, err
}

func (c *Context) hostPort() (string, int, error) {
	values := c.GetAllValues("Host")
	if len(values) == 0 {
		return "", 0, wserr.Context("host", fmt.Errorf("missing Host header"))
	}
	raw := values[0]
	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		host := raw[:idx]
		portStr := raw[idx+1:]
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, wserr.Context("host", fmt.Errorf("invalid port in Host header %q: %w", raw, err))
		}
		return host, port, nil
	}
	return raw, 80, nil
}

// RequestPath returns the request path token of the start-line.
func (c *Context) RequestPath() (string, error) {
	if c.kind != Request {
		return "", wserr.Context("request_path", fmt.Errorf("not a request context"))
	}
	if c.path == "" {
		return "", wserr.Context("request_path", fmt.Errorf("missing request path"))
	}
	return c.path, nil
}

// StatusCode returns the response status code.
func (c *Context) StatusCode() (int, error) {
	if c.kind != Response {
		return 0, wserr.Context("status_code", fmt.Errorf("not a response context"))
	}
	if !c.statusSet {
		return 0, wserr.Context("status_code", fmt.Errorf("status code not set"))
	}
	return c.statusCode, nil
}

// SetStatusCode sets the response status code exactly once.
func (c *Context) SetStatusCode(code int, text string) error {
	if c.kind != Response {
		return wserr.Context("set_status_code", fmt.Errorf("not a response context"))
	}
	if c.statusSet {
		return wserr.Context("set_status_code", fmt.Errorf("status code already set"))
	}
	if text == "" {
		var err error
		text, err = reasonPhrase(code)
		if err != nil {
			return wserr.Context("set_status_code", err)
		}
	}
	c.statusCode = code
	c.statusText = text
	c.statusSet = true
	return nil
}

// SetBody sets the body exactly once.
func (c *Context) SetBody(body string) error {
	if c.bodySet {
		return wserr.Context("set_body", fmt.Errorf("body already set"))
	}
	c.body = []byte(body)
	c.bodySet = true
	return nil
}

// Body returns the body as a string.
func (c *Context) Body() string { return string(c.body) }

// IsWebSocketRequest reports whether Connection contains "Upgrade" and
// Upgrade contains "websocket" (both case-insensitive, comma-expanded).
func (c *Context) IsWebSocketRequest() bool {
	hasUpgradeConn := false
	for _, v := range c.GetAllValues("Connection") {
		if strings.EqualFold(v, "Upgrade") {
			hasUpgradeConn = true
			break
		}
	}
	if !hasUpgradeConn {
		return false
	}
	for _, v := range c.GetAllValues("Upgrade") {
		if strings.EqualFold(v, "websocket") {
			return true
		}
	}
	return false
}

// UserID returns the x-user-id header value, if present.
func (c *Context) UserID() (string, bool) {
	values := c.GetAllValues(userIDHeader)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// ContainsUserID reports whether the x-user-id header is present.
func (c *Context) ContainsUserID() bool {
	_, ok := c.UserID()
	return ok
}

// reasonPhrase derives a canonical reason phrase from an HTTP status code
// by splitting the registered name at upper-case boundaries (NotFound ->
// "Not Found"). Only the handful of codes this server ever emits are
// known; callers of SetStatusCode that want a custom phrase may pass one
// directly instead of relying on this lookup.
func reasonPhrase(code int) (string, error) {
	names := map[int]string{
		101: "SwitchingProtocols",
		200: "OK",
		400: "BadRequest",
		403: "Forbidden",
		404: "NotFound",
		409: "Conflict",
		426: "UpgradeRequired",
		500: "InternalServerError",
		503: "ServiceUnavailable",
	}
	name, ok := names[code]
	if !ok {
		return "", fmt.Errorf("unknown status code %d: no reason phrase registered", code)
	}
	if name == "OK" {
		return name, nil
	}
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
