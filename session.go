package kdbipc

import (
	"context"
	"net"
	"sync"
)

// State is a Session's position in the §4.G state machine.
type State int

const (
	StateOpened State = iota
	StateEstablished
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ServerCallback handles a message the peer sent that this side did
// not itself request: a sync it must answer, or an async it must just
// observe. The default callback replies to a sync with the generic
// null and ignores async messages (§4.G).
type ServerCallback func(mode MessageMode, v *K) *K

func defaultCallback(MessageMode, *K) *K { return NewNull() }

// Session is the single-threaded-cooperative-per-session state
// machine of §4.G/§5: one goroutine drives it at a time via its
// exported methods, all suspension points are I/O on conn, and the
// send path serializes at writeMu while at most one send_sync may be
// outstanding at once (enforced by syncMu).
type Session struct {
	conn                net.Conn
	endian              Endianness
	version             byte
	compressionEligible bool
	callback            ServerCallback

	writeMu sync.Mutex
	syncMu  sync.Mutex

	mu    sync.Mutex
	state State
}

// newSession wraps an already-handshaken conn. endian is the
// endianness this side will emit in (the host's native order, per
// §6.1: "the host may always emit in its native endianness").
func newSession(conn net.Conn, endian Endianness, version byte, cb ServerCallback) *Session {
	if cb == nil {
		cb = defaultCallback
	}
	return &Session{
		conn:                conn,
		endian:              endian,
		version:             version,
		compressionEligible: CompressionEligible(conn) && version >= 3,
		callback:            cb,
		state:               StateEstablished,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Close tears the session down unconditionally (§5: sockets are
// scoped, closed on every terminal path).
func (s *Session) Close() error {
	s.setState(StateClosed)
	return s.conn.Close()
}

func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	s.conn.Close()
	return err
}

// writeFrame encodes v and writes it, holding writeMu so that writes
// from this session are serialized in send-call order regardless of
// which method (SendAsync, SendSync, or a serve reply) issued them
// (§5).
func (s *Session) writeFrame(v *K, mode MessageMode) error {
	frame, err := Encode(v, EncodeOptions{
		Endian:              s.endian,
		Mode:                mode,
		CompressionEligible: s.compressionEligible,
	})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return WriteAll(s.conn, frame)
}

// readFrame reads one complete frame: the 8-byte header, then exactly
// TotalLen-8 more bytes, then decodes it.
func (s *Session) readFrame() (*K, Header, error) {
	var hbuf [headerLen]byte
	if err := ReadExact(s.conn, hbuf[:]); err != nil {
		return nil, Header{}, err
	}
	hd, err := ParseHeader(hbuf)
	if err != nil {
		return nil, hd, err
	}
	if hd.TotalLen < headerLen {
		return nil, hd, &MalformedMessageError{Reason: "declared total length shorter than the header"}
	}
	body := make([]byte, hd.TotalLen-headerLen)
	if err := ReadExact(s.conn, body); err != nil {
		return nil, hd, err
	}
	v, err := DecodeBody(body, hd)
	return v, hd, err
}

// SendAsync fires v off without waiting for a reply (§4.G).
func (s *Session) SendAsync(v *K) error {
	return s.writeFrame(v, ModeAsync)
}

// Serve loops reading messages from the peer and dispatching them to
// the session's callback, replying to each sync as it arrives (§4.G
// "serve"). It returns when the connection fails or the peer closes
// it; a PeerClosed return is the ordinary way Serve ends.
func (s *Session) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		v, hd, err := s.readFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return s.fail(err)
		}
		switch hd.Mode {
		case ModeSync:
			resp := s.callback(ModeSync, v)
			if resp == nil {
				resp = NewNull()
			}
			if err := s.writeFrame(resp, ModeResponse); err != nil {
				return s.fail(err)
			}
		case ModeAsync:
			s.callback(ModeAsync, v)
		case ModeResponse:
			// A response with no outstanding SendSync to receive it;
			// hand it to the callback too rather than drop it
			// silently.
			s.callback(ModeResponse, v)
		}
	}
}

// SendSync writes v as a sync message and blocks until the matching
// response arrives, handling any interleaved sync/async messages from
// the peer via the session's callback in the meantime (§4.G).
//
// At most one SendSync may be outstanding on a session at a time; a
// concurrent second call returns ErrSyncInFlight rather than racing
// (§5, §8 property 7). Cancelling ctx tears the connection down,
// since a cancelled sync leaves the protocol state undefined (§4.G
// "Cancellation").
func (s *Session) SendSync(ctx context.Context, v *K) (*K, error) {
	if !s.syncMu.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer s.syncMu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	if err := s.writeFrame(v, ModeSync); err != nil {
		return nil, s.fail(err)
	}

	for {
		reply, hd, err := s.readFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, s.fail(err)
		}
		switch hd.Mode {
		case ModeResponse:
			if reply.Type() == TypeError {
				return nil, &QError{Symbol: reply.ErrorSymbol()}
			}
			return reply, nil
		case ModeSync:
			resp := s.callback(ModeSync, reply)
			if resp == nil {
				resp = NewNull()
			}
			if err := s.writeFrame(resp, ModeResponse); err != nil {
				return nil, s.fail(err)
			}
		case ModeAsync:
			s.callback(ModeAsync, reply)
		}
	}
}
