package kdbipc

import (
	"crypto/tls"
	"time"
)

// NativeEndian is the byte order this implementation emits by default
// when acting as either client or server; q IPC permits the host to
// always emit in its own native endianness (§6.1), and every common
// deployment target for this module is little-endian.
const NativeEndian = EndianLittle

const (
	DefaultConnectTimeout    = 30 * time.Second
	DefaultReconnectRetries  = 0
	DefaultReconnectInterval = 1 * time.Minute
)

// ReconnectRule generalizes the teacher's AutoReconnectRule from
// IEC104's link-level auto-reconnect to kdb+ dial/handshake retry
// (§12 supplemented feature): ambient resilience, not a new protocol
// feature.
type ReconnectRule struct {
	Retries  int
	Interval time.Duration
}

// DialOptions collects the parameters NewClient's functional options
// build up, in the shape of the teacher's ClientOption.
type DialOptions struct {
	method         ConnMethod
	address        string
	port           int
	connectTimeout time.Duration
	reconnect      ReconnectRule
	tlsConfig      *tls.Config
	user, password string
	callback       ServerCallback
}

// DialOption mutates a DialOptions being built by NewClient.
type DialOption func(*DialOptions)

func newDialOptions(method ConnMethod, address string, user, password string) *DialOptions {
	return &DialOptions{
		method:         method,
		address:        address,
		connectTimeout: DefaultConnectTimeout,
		reconnect:      ReconnectRule{Retries: DefaultReconnectRetries, Interval: DefaultReconnectInterval},
		user:           user,
		password:       password,
	}
}

// WithUDSPort selects MethodUDS/MethodUDSTLS's port, used to compute
// the ${QUDSPATH}/kx.<port> path (§6.5).
func WithUDSPort(port int) DialOption {
	return func(o *DialOptions) { o.port = port }
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) DialOption {
	return func(o *DialOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithReconnectRule overrides the default no-retry dial policy.
func WithReconnectRule(r ReconnectRule) DialOption {
	return func(o *DialOptions) {
		if r.Retries < 0 {
			r.Retries = DefaultReconnectRetries
		}
		if r.Interval <= 0 {
			r.Interval = DefaultReconnectInterval
		}
		o.reconnect = r
	}
}

// WithTLSConfig supplies an explicit *tls.Config instead of one built
// from KDBPLUS_TLS_KEY_FILE/_SECRET.
func WithTLSConfig(tc *tls.Config) DialOption {
	return func(o *DialOptions) { o.tlsConfig = tc }
}

// WithServerCallback installs the callback used to answer syncs and
// observe asyncs the peer sends outside of an outstanding SendSync
// (§4.G).
func WithServerCallback(cb ServerCallback) DialOption {
	return func(o *DialOptions) { o.callback = cb }
}

// ListenOptions collects NewListener's functional options.
type ListenOptions struct {
	method    ConnMethod
	address   string
	port      int
	tlsConfig *tls.Config
	accounts  *AccountTable
	callback  ServerCallback
}

// ListenOption mutates a ListenOptions being built by NewListener.
type ListenOption func(*ListenOptions)

func newListenOptions(method ConnMethod, address string) *ListenOptions {
	return &ListenOptions{method: method, address: address}
}

// WithListenUDSPort selects the UDS port a MethodUDS/MethodUDSTLS
// listener binds (§6.5).
func WithListenUDSPort(port int) ListenOption {
	return func(o *ListenOptions) { o.port = port }
}

// WithListenTLSConfig supplies an explicit *tls.Config.
func WithListenTLSConfig(tc *tls.Config) ListenOption {
	return func(o *ListenOptions) { o.tlsConfig = tc }
}

// WithAccountTable supplies an already-loaded credentials table
// instead of one built from KDBPLUS_ACCOUNT_FILE.
func WithAccountTable(t *AccountTable) ListenOption {
	return func(o *ListenOptions) { o.accounts = t }
}

// WithListenCallback installs the callback each accepted session uses
// to answer syncs and observe asyncs.
func WithListenCallback(cb ServerCallback) ListenOption {
	return func(o *ListenOptions) { o.callback = cb }
}
