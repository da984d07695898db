package wsnova

import "github.com/pepnova9/wsnova/internal/wserr"

// Kind classifies an Error along the hierarchy the specification
// describes: a base websocket_error with four concrete sub-kinds.
type Kind = wserr.Kind

const (
	KindUpgrade = wserr.KindUpgrade
	KindServer  = wserr.KindServer
	KindClient  = wserr.KindClient
	KindContext = wserr.KindContext
)

// Error is returned by every public operation that fails. It quotes the
// underlying cause and supports errors.Is/errors.As via Unwrap.
type Error = wserr.Error

// IsUpgradeError reports whether err is a handshake/upgrade failure.
func IsUpgradeError(err error) bool { return wserr.Is(err, wserr.KindUpgrade) }

// IsServerError reports whether err originated from server-side bookkeeping.
func IsServerError(err error) bool { return wserr.Is(err, wserr.KindServer) }

// IsClientError reports whether err originated from client-side bookkeeping.
func IsClientError(err error) bool { return wserr.Is(err, wserr.KindClient) }

// IsContextError reports whether err is a web-context parsing/access failure.
func IsContextError(err error) bool { return wserr.Is(err, wserr.KindContext) }
