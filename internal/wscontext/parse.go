package wscontext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pepnova9/wsnova/internal/wserr"
)

// Parse splits raw into a start-line, header block, and body, per the
// specification: split on "\r\n" (also bare "\r" or "\n"), discard empty
// lines, the first non-empty line is the start-line, lines up to the next
// blank line are headers "Name: value" split on the first ":", and
// everything after the first "\r\n\r\n" is the body.
func Parse(kind Kind, raw []byte) (*Context, error) {
	text := string(raw)
	headerBlock := text
	body := ""
	if idx := strings.Index(text, "\r\n\r\n"); idx >= 0 {
		headerBlock = text[:idx]
		body = text[idx+4:]
	}

	lines := splitLines(headerBlock)
	if len(lines) == 0 {
		return nil, wserr.Context("parse", fmt.Errorf("missing start line"))
	}

	c := &Context{kind: kind, httpVersion: "HTTP/1.1"}

	startLine := lines[0]
	tokens := strings.Fields(startLine)
	switch kind {
	case Request:
		if len(tokens) < 2 {
			return nil, wserr.Context("parse", fmt.Errorf("malformed request start line %q", startLine))
		}
		c.method = tokens[0]
		c.path = tokens[1]
		if len(tokens) >= 3 {
			c.httpVersion = tokens[2]
		}
	case Response:
		if len(tokens) < 2 {
			return nil, wserr.Context("parse", fmt.Errorf("malformed status line %q", startLine))
		}
		c.httpVersion = tokens[0]
		code, err := strconv.Atoi(tokens[1])
		if err != nil {
			return nil, wserr.Context("parse", fmt.Errorf("non-numeric status code %q: %w", tokens[1], err))
		}
		c.statusCode = code
		c.statusSet = true
		if len(tokens) >= 3 {
			c.statusText = strings.Join(tokens[2:], " ")
		}
	}

	for _, line := range lines[1:] {
		sep := strings.Index(line, ":")
		if sep < 0 {
			continue
		}
		name := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])
		if name == "" {
			continue
		}
		c.headers = append(c.headers, HeaderField{Name: name, Value: value})
	}

	if body != "" {
		c.body = []byte(body)
		c.bodySet = true
	}

	return c, nil
}

// splitLines implements the specification's line-splitting rule: split on
// "\r\n", "\r", or "\n", discarding lines left empty by the split.
func splitLines(s string) []string {
	replaced := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)
	raw := strings.Split(replaced, "\n")
	var out []string
	for _, l := range raw {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Bytes serializes the context back to wire format: start-line, headers,
// blank line, body.
func (c *Context) Bytes() []byte {
	var b strings.Builder
	switch c.kind {
	case Request:
		fmt.Fprintf(&b, "%s %s %s\r\n", c.method, c.path, c.httpVersion)
	case Response:
		fmt.Fprintf(&b, "%s %d %s\r\n", c.httpVersion, c.statusCode, c.statusText)
	}
	for _, h := range c.headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	b.WriteString("\r\n")
	b.Write(c.body)
	return []byte(b.String())
}
