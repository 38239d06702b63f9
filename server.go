package kdbipc

import (
	"context"
	"net"
)

// Listener accepts kdb+ IPC connections, authenticates each one
// against a shared AccountTable, and hands each resulting Session to
// Serve (§2 component G, §4.G, §5 "the listener" owning TLS material
// and the credentials table for its lifetime).
type Listener struct {
	opts     *ListenOptions
	listener net.Listener
	accounts *AccountTable
}

// NewListener opens method's listener and loads (or adopts, via
// WithAccountTable) the credentials table every accepted connection
// will be checked against.
func NewListener(method ConnMethod, address string, opts ...ListenOption) (*Listener, error) {
	o := newListenOptions(method, address)
	for _, opt := range opts {
		opt(o)
	}

	var accounts *AccountTable
	if o.accounts != nil {
		accounts = o.accounts
	} else {
		var err error
		accounts, err = LoadAccountTable()
		if err != nil {
			return nil, err
		}
	}

	l, err := Listen(ListenConfig{
		Method:    o.method,
		Address:   o.address,
		Port:      o.port,
		TLSConfig: o.tlsConfig,
	})
	if err != nil {
		return nil, err
	}

	_lg.Debugf("kdbipc: listening on %s (tls=%v)", l.Addr(), o.method.tls())
	return &Listener{opts: o, listener: l, accounts: accounts}, nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// Accept blocks for one incoming connection, performs the server side
// of the handshake (§4.G, §6.2), and returns the resulting Established
// Session. A credentials failure closes the socket and returns
// AuthRejected; the caller should simply Accept again.
func (l *Listener) Accept() (*Session, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		if uid, gid, pid, err := PeerCredentials(uc); err == nil {
			_lg.Debugf("kdbipc: UDS accept from uid=%d gid=%d pid=%d", uid, gid, pid)
		}
	}

	version, err := serverHandshake(conn, l.accounts)
	if err != nil {
		_lg.Debugf("kdbipc: handshake rejected from %s", conn.RemoteAddr())
		return nil, err
	}
	_lg.Debugf("kdbipc: accepted %s, negotiated protocol version %d", conn.RemoteAddr(), version)
	return newSession(conn, NativeEndian, version, l.opts.callback), nil
}

// Serve accepts connections in a loop until ctx is cancelled or
// Accept fails terminally, dispatching each Established session to
// its own Serve loop (mirroring the teacher's one-goroutine-per-
// connection Server.serve).
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		s, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == ErrAuthRejected {
				continue
			}
			return err
		}
		go func() {
			if err := s.Serve(ctx); err != nil {
				_lg.Debugf("kdbipc: session ended: %v", err)
			}
		}()
	}
}
