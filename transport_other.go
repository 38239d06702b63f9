//go:build !linux && !windows

package kdbipc

import "net"

// PeerCredentials is only implemented for Linux's SO_PEERCRED and
// Windows' stub; other Unix variants (BSD/darwin use a differently
// shaped LOCAL_PEERCRED) are left unimplemented here rather than
// guessed at.
func PeerCredentials(conn net.Conn) (uid, gid uint32, pid int32, err error) {
	return 0, 0, 0, errUnsupportedPlatform
}
