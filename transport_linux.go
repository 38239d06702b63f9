//go:build linux

package kdbipc

import (
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials reads SO_PEERCRED on a UDS connection for
// diagnostic logging on accept (§12 supplemented feature). It is
// never used to make an authorization decision — the credentials
// file (§6.3) remains the sole authorization path.
func PeerCredentials(conn net.Conn) (uid, gid uint32, pid int32, err error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, 0, 0, errUnsupportedPlatform
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, 0, 0, err
	}
	var cred *unix.Ucred
	var sockErr error
	if ctrlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); ctrlErr != nil {
		return 0, 0, 0, ctrlErr
	}
	if sockErr != nil {
		return 0, 0, 0, sockErr
	}
	return cred.Uid, cred.Gid, cred.Pid, nil
}
