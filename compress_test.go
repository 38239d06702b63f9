package kdbipc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressIdempotent(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("abcdefgh"),
		bytes.Repeat([]byte("x"), 10000),
		bytes.Repeat([]byte("ab"), 5000),
		[]byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 200)),
	}
	for _, in := range inputs {
		c := Compress(in)
		out, err := Decompress(c)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestCompressionScenarioS6(t *testing.T) {
	syms := make([]string, 10000)
	for i := range syms {
		syms[i] = "x"
	}
	v := NewSymbolVector(syms)
	frame, err := Encode(v, EncodeOptions{Endian: EndianLittle, Mode: ModeAsync, CompressionEligible: true})
	require.NoError(t, err)

	require.Equal(t, byte(1), frame[2], "compressed flag should be set for a highly repetitive payload")

	hd, err := ParseHeader([headerLen]byte(frame[:headerLen]))
	require.NoError(t, err)
	require.True(t, hd.Compressed)

	decoded, _, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, 10000, decoded.Len())
	require.Equal(t, syms, decoded.Symbols())
}

func TestDecompressRejectsTruncatedBackref(t *testing.T) {
	_, err := Decompress([]byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x05})
	require.ErrorIs(t, err, ErrCompression)
}

func TestDecompressRejectsOffsetUnderflow(t *testing.T) {
	// flag bit 0 set (back-reference), offset byte 0x09 (offset 10)
	// with no output produced yet.
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x09, 0x00}
	_, err := Decompress(data)
	require.ErrorIs(t, err, ErrCompression)
}

func TestDecompressRejectsLengthMismatch(t *testing.T) {
	c := Compress([]byte("hello world"))
	// Corrupt the declared length prefix.
	c[0]++
	_, err := Decompress(c)
	require.ErrorIs(t, err, ErrCompression)
}

func TestCompressSucceedsOnIncompressibleData(t *testing.T) {
	// Compress always succeeds; the caller (the serializer) is
	// responsible for discarding the result when it isn't shorter.
	in := []byte{0x01, 0x02, 0x03}
	out := Compress(in)
	require.NotEmpty(t, out)
}
