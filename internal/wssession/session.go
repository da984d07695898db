// Package wssession implements the server-side per-client Session and the
// ACTIVE/PASSIVE Registry described by the specification.
package wssession

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pepnova9/wsnova/internal/wscodec"
	"github.com/pepnova9/wsnova/internal/wserr"
	"github.com/pepnova9/wsnova/internal/wsio"
)

// Session is a server-side client's stable identity plus its current
// stream/codec handles.
type Session struct {
	mu sync.Mutex

	id     string
	stream wsio.Stream
	codec  wscodec.Codec

	firstSeen time.Time
	lastSeen  time.Time

	remoteEndpoint string
	properties     map[string]any
}

// New constructs a Session bound to stream, with a freshly generated UUID
// identity and first_seen == last_seen == now.
func New(stream wsio.Stream) *Session {
	now := time.Now().UTC()
	return &Session{
		id:             uuid.NewString(),
		stream:         stream,
		firstSeen:      now,
		lastSeen:       now,
		remoteEndpoint: stream.RemoteAddr(),
		properties:     make(map[string]any),
	}
}

// ID returns the session's current identity.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// UpdateID replaces the current id. It accepts only a non-empty,
// well-formed UUID string, used exactly once during identification before
// the session enters ACTIVE.
func (s *Session) UpdateID(newID string) error {
	if newID == "" {
		return wserr.Server("update_id", fmt.Errorf("id must not be empty"))
	}
	if _, err := uuid.Parse(newID); err != nil {
		return wserr.Server("update_id", fmt.Errorf("id %q is not a valid uuid: %w", newID, err))
	}
	s.mu.Lock()
	s.id = newID
	s.mu.Unlock()
	return nil
}

// Stream returns the session's current stream handle.
func (s *Session) Stream() wsio.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// UpdateStream replaces the session's stream handle and refreshes
// last_seen, used when a PASSIVE session is re-identified on a new
// connection.
func (s *Session) UpdateStream(stream wsio.Stream) {
	s.mu.Lock()
	s.stream = stream
	s.lastSeen = time.Now().UTC()
	s.remoteEndpoint = stream.RemoteAddr()
	s.mu.Unlock()
}

// Codec returns the session's codec handle, or nil if the upgrade hasn't
// completed yet.
func (s *Session) Codec() wscodec.Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec
}

// UseCodec stores the codec handle. Calling it twice on the same session
// is an error.
func (s *Session) UseCodec(codec wscodec.Codec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codec != nil {
		return wserr.Server("use_codec", fmt.Errorf("session %s already has a codec", s.id))
	}
	s.codec = codec
	return nil
}

// FirstSeen returns the UTC timestamp the session was created at.
func (s *Session) FirstSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstSeen
}

// LastSeen returns the UTC timestamp the stream was last replaced at.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// RemoteEndpoint returns the remote address of the session's current
// stream.
func (s *Session) RemoteEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteEndpoint
}

// SetProperty sets a user-supplied property, typically from an upgrade
// callback.
func (s *Session) SetProperty(key string, value any) {
	s.mu.Lock()
	s.properties[key] = value
	s.mu.Unlock()
}

// Property returns a user-supplied property.
func (s *Session) Property(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.properties[key]
	return v, ok
}

// Properties returns a snapshot copy of every property.
func (s *Session) Properties() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.properties))
	for k, v := range s.properties {
		out[k] = v
	}
	return out
}

// Dispose releases the stream and codec. It is idempotent.
func (s *Session) Dispose() error {
	s.mu.Lock()
	codec := s.codec
	stream := s.stream
	s.codec = nil
	s.stream = nil
	s.mu.Unlock()

	var err error
	if codec != nil {
		err = codec.Close(wscodec.CloseNormalClosure, "")
	}
	if stream != nil {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
