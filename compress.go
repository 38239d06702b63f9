package kdbipc

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// maxBackrefOffset and maxMatchLen bound what the 2-byte back-reference
// token (§4.E) can express: one byte of offset-1, one byte of
// length-2.
const (
	maxBackrefOffset = 256
	maxMatchLen      = 257
	minMatchLen      = 2
)

// Compress applies this package's back-reference compression scheme
// (§4.E) to src. Its output is read back by Decompress; it is not
// byte-compatible with compressed frames written by a kdb+ process.
// The output begins with a 4-byte little-endian uncompressed
// length, followed by a sequence of 8-token groups: one flag byte
// whose bits (LSB first) say whether each of the next up to 8 tokens
// is a literal byte or a 2-byte (offset, length-2) back-reference
// into the already-produced output (§4.E).
//
// Compress never fails: a pathological input simply compresses to a
// larger output than it started from, and it is the caller's job (the
// serializer, per §4.C) to discard the result when that happens.
func Compress(src []byte) []byte {
	out := make([]byte, 4, len(src)+4)
	binary.LittleEndian.PutUint32(out, uint32(len(src)))

	// hashTable maps an xxhash of a 2-byte prefix to the most recent
	// position it was seen at, the same role a fast non-cryptographic
	// hash plays in a real LZ-family encoder's match finder.
	hashTable := make(map[uint64]int, len(src)/2+1)
	prefixHash := func(pos int) uint64 {
		var key [2]byte
		key[0], key[1] = src[pos], src[pos+1]
		return xxhash.Sum64(key[:])
	}

	i := 0
	for i < len(src) {
		flagPos := len(out)
		out = append(out, 0)
		var flag byte

		for bit := 0; bit < 8 && i < len(src); bit++ {
			matchLen, matchOff := 0, 0
			if i+1 < len(src) {
				h := prefixHash(i)
				if p, ok := hashTable[h]; ok {
					off := i - p
					if off >= 1 && off <= maxBackrefOffset {
						maxLen := len(src) - i
						if maxLen > maxMatchLen {
							maxLen = maxMatchLen
						}
						l := 0
						for l < maxLen && src[p+l] == src[i+l] {
							l++
						}
						if l >= minMatchLen {
							matchLen, matchOff = l, off
						}
					}
				}
				hashTable[h] = i
			}

			if matchLen >= minMatchLen {
				out = append(out, byte(matchOff-1), byte(matchLen-minMatchLen))
				flag |= 1 << uint(bit)
				i += matchLen
			} else {
				out = append(out, src[i])
				i++
			}
		}
		out[flagPos] = flag
	}
	return out
}

// Decompress inverts Compress. It rejects a back-reference whose
// offset underflows the output produced so far, and rejects a result
// whose length does not match the declared uncompressed length
// (§4.E); both are CompressionError.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: compressed payload shorter than the length prefix", ErrCompression)
	}
	declared := binary.LittleEndian.Uint32(data[:4])
	body := data[4:]
	out := make([]byte, 0, declared)

	i := 0
	for i < len(body) {
		flag := body[i]
		i++
		for bit := 0; bit < 8 && i < len(body); bit++ {
			if flag&(1<<uint(bit)) == 0 {
				out = append(out, body[i])
				i++
				continue
			}
			if i+1 >= len(body) {
				return nil, fmt.Errorf("%w: truncated back-reference token", ErrCompression)
			}
			off := int(body[i]) + 1
			length := int(body[i+1]) + minMatchLen
			i += 2
			if off > len(out) {
				return nil, fmt.Errorf("%w: back-reference offset %d underflows %d bytes of output", ErrCompression, off, len(out))
			}
			start := len(out) - off
			for j := 0; j < length; j++ {
				out = append(out, out[start+j])
			}
		}
	}
	if uint32(len(out)) != declared {
		return nil, fmt.Errorf("%w: decompressed length %d does not match declared length %d", ErrCompression, len(out), declared)
	}
	return out, nil
}
