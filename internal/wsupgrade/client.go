package wsupgrade

import (
	"fmt"
	"strings"

	"github.com/pepnova9/wsnova/internal/wscontext"
	"github.com/pepnova9/wsnova/internal/wserr"
)

// SentRequest records what SendUpgradeRequest actually put on the wire,
// so the caller can later validate the server's response against it.
type SentRequest struct {
	Key  string
	Path string
}

// SendUpgradeRequest validates the request path, generates a fresh
// handshake key, sets the mandatory headers, and writes the GET request
// to the stream.
func (h *Handler) SendUpgradeRequest(host string, port int, path string, userID string, extraHeaders map[string]string) (SentRequest, error) {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !requestPathPattern.MatchString(path) {
		return SentRequest{}, wserr.Upgrade("send_upgrade_request", fmt.Errorf("invalid request path %q", path))
	}

	key, err := generateClientKey()
	if err != nil {
		return SentRequest{}, wserr.Upgrade("send_upgrade_request", fmt.Errorf("generating Sec-WebSocket-Key: %w", err))
	}

	req := wscontext.NewRequest("GET", path)
	req.AddHeader("Host", fmt.Sprintf("%s:%d", host, port))
	req.AddHeader("Upgrade", "websocket")
	req.AddHeader("Connection", "Upgrade")
	req.AddHeader("Sec-WebSocket-Key", key)
	req.AddHeader("Sec-WebSocket-Version", protocolVersion)
	if userID != "" {
		req.AddHeader("x-user-id", userID)
	}
	for name, value := range extraHeaders {
		req.AddHeader(name, value)
	}

	if _, err := h.stream.Write(req.Bytes()); err != nil {
		return SentRequest{}, wserr.Upgrade("send_upgrade_request", fmt.Errorf("writing upgrade request: %w", err))
	}
	return SentRequest{Key: key, Path: path}, nil
}

// ValidateUpgradeResponse checks that response represents a successful
// RFC 6455 handshake matching the key sent in sent.
func ValidateUpgradeResponse(response *wscontext.Context, sent SentRequest) error {
	code, err := response.StatusCode()
	if err != nil || code != 101 {
		return wserr.Upgrade("validate_upgrade_response", fmt.Errorf("expected 101 Switching Protocols, got %d", code))
	}
	if !response.ContainsHeader("Upgrade", "websocket") {
		return wserr.Upgrade("validate_upgrade_response", fmt.Errorf("missing or invalid Upgrade header"))
	}
	if !response.ContainsHeader("Connection", "Upgrade") {
		return wserr.Upgrade("validate_upgrade_response", fmt.Errorf("missing or invalid Connection header"))
	}
	accepts := response.GetAllValues("Sec-WebSocket-Accept")
	if len(accepts) == 0 {
		return wserr.Upgrade("validate_upgrade_response", fmt.Errorf("missing Sec-WebSocket-Accept header"))
	}
	want := computeAcceptToken(sent.Key)
	if accepts[0] != want {
		return wserr.Upgrade("validate_upgrade_response", fmt.Errorf("Sec-WebSocket-Accept mismatch: got %q want %q", accepts[0], want))
	}
	return nil
}
