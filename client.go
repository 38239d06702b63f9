package kdbipc

import (
	"context"
	"time"
)

// Client is a kdb+ IPC client: one TCP or UDS connection, optionally
// TLS-wrapped, authenticated at construction, exposing the Session
// API for the lifetime of the connection (§2 component G, §4.G).
//
// Client in kdb+ terms is the process initiating the connection; the
// kdb+ process on the other end is conventionally called the server.
type Client struct {
	opts    *DialOptions
	Session *Session
}

// NewClient dials method, performs the handshake with user/password,
// and returns a Client wrapping an Established Session. On any
// failure the underlying socket is closed before returning.
func NewClient(ctx context.Context, method ConnMethod, address, user, password string, opts ...DialOption) (*Client, error) {
	o := newDialOptions(method, address, user, password)
	for _, opt := range opts {
		opt(o)
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if o.connectTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, o.connectTimeout)
		defer cancel()
	}

	conn, err := Dial(dialCtx, DialConfig{
		Method:    o.method,
		Address:   o.address,
		Port:      o.port,
		TLSConfig: o.tlsConfig,
	})
	if err != nil {
		return nil, err
	}

	version, err := clientHandshake(conn, o.user, o.password)
	if err != nil {
		conn.Close()
		_lg.WithError(err).Debug("kdbipc: client handshake failed")
		return nil, err
	}
	_lg.Debugf("kdbipc: connected to %s, negotiated protocol version %d", conn.RemoteAddr(), version)

	s := newSession(conn, NativeEndian, version, o.callback)
	return &Client{opts: o, Session: s}, nil
}

// Close closes the client's session.
func (c *Client) Close() error {
	return c.Session.Close()
}

// DialWithRetry retries NewClient according to opts' ReconnectRule,
// generalizing the teacher's auto-reconnect policy from IEC104's
// link layer to kdb+ dial/handshake (§12 supplemented feature).
func DialWithRetry(ctx context.Context, method ConnMethod, address, user, password string, opts ...DialOption) (*Client, error) {
	o := newDialOptions(method, address, user, password)
	for _, opt := range opts {
		opt(o)
	}

	var lastErr error
	for attempt := 0; attempt <= o.reconnect.Retries; attempt++ {
		c, err := NewClient(ctx, method, address, user, password, opts...)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if attempt == o.reconnect.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.reconnect.Interval):
		}
	}
	return nil, lastErr
}
