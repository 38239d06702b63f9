package kdbipc

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// protocolCapability is the capability byte this implementation
// offers: protocol version 3, which is the version kdb+ requires for
// compression support (§4.G, §6.2).
const protocolCapability = 3

// clientHandshake performs the client side of §4.G/§6.2: send
// "user[:password]" + capability byte + 0x00, then read the server's
// chosen protocol version. A read that yields zero bytes, or a
// version byte below 1, is AuthRejected.
func clientHandshake(conn net.Conn, user, password string) (byte, error) {
	var req strings.Builder
	req.WriteString(user)
	if password != "" {
		req.WriteByte(':')
		req.WriteString(password)
	}
	req.WriteByte(protocolCapability)
	req.WriteByte(0)

	if err := WriteAll(conn, []byte(req.String())); err != nil {
		return 0, err
	}

	resp := make([]byte, 1)
	if err := ReadExact(conn, resp); err != nil {
		if errors.Is(err, ErrPeerClosed) {
			return 0, ErrAuthRejected
		}
		return 0, err
	}
	if resp[0] < 1 {
		return 0, ErrAuthRejected
	}
	return resp[0], nil
}

// readCredentialRequest reads up to 128 bytes of "user[:password]" +
// capability byte, terminated by a zero byte (§4.G, §6.2): the wire
// form client-side writes is "user[:password]" + capability + 0x00,
// so the byte immediately preceding the terminating zero is always
// the capability byte.
func readCredentialRequest(conn net.Conn) (user, password string, capability byte, err error) {
	buf := make([]byte, 0, 128)
	one := make([]byte, 1)
	for len(buf) < 128 {
		if err := ReadExact(conn, one); err != nil {
			return "", "", 0, ErrAuthRejected
		}
		if one[0] == 0 {
			break
		}
		buf = append(buf, one[0])
	}
	if len(buf) == 0 {
		return "", "", 0, ErrAuthRejected
	}
	capability = buf[len(buf)-1]
	cred := string(buf[:len(buf)-1])
	if idx := strings.IndexByte(cred, ':'); idx >= 0 {
		return cred[:idx], cred[idx+1:], capability, nil
	}
	return cred, "", capability, nil
}

// Account is one line of the credentials file (§6.3): a username and
// the lowercase-hex SHA-1 of the expected password.
type Account struct {
	User       string
	PasswordSHA1 string
}

// AccountTable is the read-only, process-scoped credentials table
// loaded once at listener construction (§5, §6.3).
type AccountTable struct {
	byUser map[string]string
}

// LoadAccountTable reads the credentials file named by
// KDBPLUS_ACCOUNT_FILE: one "user:<40-hex-SHA1>" per line, '#'
// comments and blank lines ignored.
func LoadAccountTable() (*AccountTable, error) {
	path := os.Getenv("KDBPLUS_ACCOUNT_FILE")
	if path == "" {
		return nil, fmt.Errorf("kdbipc: KDBPLUS_ACCOUNT_FILE is not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kdbipc: reading %s: %w", path, err)
	}
	t := &AccountTable{byUser: make(map[string]string)}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, fmt.Errorf("kdbipc: malformed credentials line %q", line)
		}
		t.byUser[line[:idx]] = strings.ToLower(line[idx+1:])
	}
	return t, nil
}

// Verify reports whether password hashes (SHA-1, lowercase hex) to
// the stored digest for user (§6.3, §8 property 6).
func (t *AccountTable) Verify(user, password string) bool {
	want, ok := t.byUser[user]
	if !ok {
		return false
	}
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:]) == want
}

// serverHandshake performs the server side of §4.G/§6.2: read
// credentials, verify against accounts, and either negotiate a
// protocol version and return, or close the socket without replying.
func serverHandshake(conn net.Conn, accounts *AccountTable) (version byte, err error) {
	user, password, capability, err := readCredentialRequest(conn)
	if err != nil {
		conn.Close()
		return 0, ErrAuthRejected
	}
	if !accounts.Verify(user, password) {
		conn.Close()
		return 0, ErrAuthRejected
	}
	negotiated := capability
	if negotiated > protocolCapability {
		negotiated = protocolCapability
	}
	if err := WriteAll(conn, []byte{negotiated}); err != nil {
		conn.Close()
		return 0, err
	}
	return negotiated, nil
}
