//go:build windows

package kdbipc

import (
	"net"

	winio "github.com/Microsoft/go-winio"
)

// dialUDS and listenUDS fall back to Windows named pipes, since
// AF_UNIX support on Windows is newer and less uniformly available
// than on the Unix platforms this module primarily targets (§4.F).
func dialUDS(path string) (net.Conn, error) {
	return winio.DialPipe(`\\.\pipe\`+path, nil)
}

func listenUDS(path string) (net.Listener, error) {
	return winio.ListenPipe(`\\.\pipe\`+path, nil)
}

// PeerCredentials has no named-pipe equivalent exposed here; Windows
// named pipes support impersonation instead of a SO_PEERCRED-style
// read, which is out of scope for this diagnostic-only feature.
func PeerCredentials(conn net.Conn) (uid, gid uint32, pid int32, err error) {
	return 0, 0, 0, errUnsupportedPlatform
}
