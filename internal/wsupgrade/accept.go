package wsupgrade

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pepnova9/wsnova/internal/wscontext"
	"github.com/pepnova9/wsnova/internal/wserr"
)

// AcceptParams carries everything Accept needs beyond the request itself.
type AcceptParams struct {
	// ResponseTemplate supplies extra headers to copy into the 101
	// response (e.g. cookies an upgrade callback wants to set).
	ResponseTemplate *wscontext.Context
	// ConfirmedID is the session id to echo back via x-user-id when
	// SendUserID is true.
	ConfirmedID string
	SendUserID  bool
	// Subprotocol is the server's preferred subprotocol, or "" if the
	// server doesn't support subprotocols.
	Subprotocol string
}

// Accept validates request, negotiates a subprotocol, computes the accept
// token, writes the 101 Switching Protocols response to the stream, and
// returns the response context that was sent.
func (h *Handler) Accept(request *wscontext.Context, params AcceptParams) (*wscontext.Context, error) {
	if !request.IsWebSocketRequest() {
		return nil, wserr.Upgrade("accept", fmt.Errorf("not a websocket upgrade request"))
	}

	versions := request.GetAllValues("Sec-WebSocket-Version")
	if len(versions) == 0 || versions[0] != protocolVersion {
		return nil, wserr.Upgrade("accept", fmt.Errorf("unsupported Sec-WebSocket-Version %v, want %s", versions, protocolVersion))
	}

	keys := request.GetAllValues("Sec-WebSocket-Key")
	var key string
	if len(keys) > 0 {
		key = keys[0]
		if err := validateKeyDecodesTo16Bytes(key); err != nil {
			return nil, wserr.Upgrade("accept", err)
		}
	}

	negotiated, err := negotiateServerSubprotocol(request, params.Subprotocol)
	if err != nil {
		return nil, wserr.Upgrade("accept", err)
	}

	accept := computeAcceptToken(key)

	response := wscontext.NewResponse()
	if params.ResponseTemplate != nil {
		for _, h := range params.ResponseTemplate.Headers() {
			if isReservedUpgradeHeader(h.Name) {
				continue
			}
			response.AddHeader(h.Name, h.Value)
		}
	}
	if err := response.SetStatusCode(101, "Switching Protocols"); err != nil {
		return nil, wserr.Upgrade("accept", err)
	}
	response.AddHeader("Connection", "Upgrade")
	response.AddHeader("Upgrade", "websocket")
	response.AddHeader("Sec-WebSocket-Accept", accept)
	if negotiated != "" {
		response.AddHeader("Sec-WebSocket-Protocol", negotiated)
	}
	if params.SendUserID && params.ConfirmedID != "" {
		response.AddHeader("x-user-id", params.ConfirmedID)
	}

	if _, err := h.stream.Write(response.Bytes()); err != nil {
		return nil, wserr.Upgrade("accept", fmt.Errorf("writing 101 response: %w", err))
	}
	return response, nil
}

// isReservedUpgradeHeader reports whether name is one Accept sets itself,
// so a template header of the same name (left over from a rejected-then-
// reused response, or just an overzealous upgrade callback) doesn't
// duplicate or fight with the handshake headers.
func isReservedUpgradeHeader(name string) bool {
	switch {
	case strings.EqualFold(name, "Connection"),
		strings.EqualFold(name, "Upgrade"),
		strings.EqualFold(name, "Sec-WebSocket-Accept"),
		strings.EqualFold(name, "Sec-WebSocket-Protocol"),
		strings.EqualFold(name, "x-user-id"):
		return true
	default:
		return false
	}
}

// negotiateServerSubprotocol implements the four-case rule from the
// specification: client-absent+server-absent -> omit; client-absent+
// server-present -> fail; client-present+server-absent -> echo the whole
// client list; client-present+server-present -> accept iff it matches one
// of the client's comma-separated tokens.
func negotiateServerSubprotocol(request *wscontext.Context, serverProtocol string) (string, error) {
	clientProtocols := request.GetAllValues("Sec-WebSocket-Protocol")

	switch {
	case len(clientProtocols) == 0 && serverProtocol == "":
		return "", nil
	case len(clientProtocols) == 0 && serverProtocol != "":
		return "", fmt.Errorf("server requires subprotocol %q but client sent none", serverProtocol)
	case len(clientProtocols) > 0 && serverProtocol == "":
		return strings.Join(clientProtocols, ", "), nil
	default:
		for _, p := range clientProtocols {
			if strings.EqualFold(p, serverProtocol) {
				return serverProtocol, nil
			}
		}
		return "", fmt.Errorf("server subprotocol %q not offered by client (%v)", serverProtocol, clientProtocols)
	}
}

// Reject writes response (status, headers, body) to the stream. The
// caller is responsible for closing the stream afterwards. When the body
// is non-empty, Content-Length is set explicitly to be robust against
// strict HTTP parsers, per the specification's open question on body
// emission; an empty body gets no Content-Length header.
func (h *Handler) Reject(response *wscontext.Context) error {
	body := response.Body()
	if body != "" {
		response.SetHeader("Content-Length", strconv.Itoa(len(body)))
	}
	if _, err := h.stream.Write(response.Bytes()); err != nil {
		return wserr.Upgrade("reject", fmt.Errorf("writing rejection response: %w", err))
	}
	return nil
}

// ConflictResponse builds the canned 409 Conflict response the
// specification requires when an active-id collision is detected during
// identification.
func ConflictResponse() *wscontext.Context {
	resp := wscontext.NewResponse()
	_ = resp.SetStatusCode(409, "Conflict")
	_ = resp.SetBody("User id already in use")
	return resp
}
