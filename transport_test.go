package kdbipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadExactWriteAll(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		require.NoError(t, WriteAll(client, []byte("hello!")))
	}()

	buf := make([]byte, 6)
	require.NoError(t, ReadExact(server, buf))
	require.Equal(t, "hello!", string(buf))
}

func TestReadExactReportsPeerClosed(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	client.Close()

	buf := make([]byte, 4)
	err := ReadExact(server, buf)
	require.ErrorIs(t, err, ErrPeerClosed)
}

func TestUDSDialListenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUDSPATH", dir)

	l, err := Listen(ListenConfig{Method: MethodUDS, Port: 5000})
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Dial(ctx, DialConfig{Method: MethodUDS, Port: 5000})
	require.NoError(t, err)
	defer conn.Close()

	server := <-accepted
	defer server.Close()

	require.NoError(t, WriteAll(conn, []byte("ping")))
	buf := make([]byte, 4)
	require.NoError(t, ReadExact(server, buf))
	require.Equal(t, "ping", string(buf))
}

func TestUDSPathHonorsQUDSPATH(t *testing.T) {
	t.Setenv("QUDSPATH", "/var/tmp/kdb")
	require.Equal(t, "/var/tmp/kdb/kx.5001", udsPath(5001))
}

func TestUDSPathDefaultsToTmp(t *testing.T) {
	t.Setenv("QUDSPATH", "")
	require.Equal(t, "/tmp/kx.5002", udsPath(5002))
}

func TestCompressionEligibleUDSIsFalse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer l.Close()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	require.False(t, CompressionEligible(conn))
}

func TestCompressionEligibleLoopbackTCPIsFalse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.False(t, CompressionEligible(conn))
}
