package kdbipc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Endianness selects the byte order a frame is written in (§4.C
// header byte 0).
type Endianness byte

const (
	EndianBig    Endianness = 0
	EndianLittle Endianness = 1
)

func (e Endianness) order() binary.ByteOrder {
	if e == EndianLittle {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// MessageMode is the handshake/session message kind carried in header
// byte 1 (§4.C, §4.G).
type MessageMode byte

const (
	ModeAsync    MessageMode = 0
	ModeSync     MessageMode = 1
	ModeResponse MessageMode = 2
)

const headerLen = 8

// compressionThreshold and compression eligibility are fixed per
// §4.C/§9: compression is only attempted above this many payload
// bytes, and only when the connection policy allows it (never over
// loopback or UDS, per the host's default policy).
const compressionThreshold = 2000

// EncodeOptions controls one Encode call.
type EncodeOptions struct {
	Endian Endianness
	Mode   MessageMode
	// CompressionEligible reflects the transport's compression
	// policy (true only for a non-loopback TCP peer, per §4.C); it is
	// the session layer's job to set this correctly, not the
	// serializer's.
	CompressionEligible bool
	// AllowDatetimeEmit opts in to emitting the deprecated datetime
	// type on the wire (§9 open question); without it, encoding a
	// datetime atom or vector fails.
	AllowDatetimeEmit bool
}

// Encode serializes v into a complete q-IPC frame: an 8-byte header
// followed by the pre-order linearization of v, with compression
// applied when EncodeOptions makes it eligible and profitable
// (§4.C, §8 properties 1-4).
func Encode(v *K, opts EncodeOptions) ([]byte, error) {
	var body bytes.Buffer
	if err := emitValue(&body, v, opts); err != nil {
		return nil, err
	}
	payload := body.Bytes()

	compressed := false
	if opts.CompressionEligible && len(payload) > compressionThreshold {
		if c := Compress(payload); len(c) < len(payload) {
			payload = c
			compressed = true
		}
	}

	order := opts.Endian.order()
	total := headerLen + len(payload)
	frame := make([]byte, headerLen, total)
	frame[0] = byte(opts.Endian)
	frame[1] = byte(opts.Mode)
	if compressed {
		frame[2] = 1
	}
	frame[3] = 0
	lenField := make([]byte, 4)
	order.PutUint32(lenField, uint32(total))
	copy(frame[4:8], lenField)
	frame = append(frame, payload...)
	return frame, nil
}

func emitValue(buf *bytes.Buffer, k *K, opts EncodeOptions) error {
	order := opts.Endian.order()
	switch {
	case k.typ == TypeNull:
		buf.WriteByte(byte(TypeNull))
		buf.WriteByte(0)
		return nil
	case k.typ == TypeError:
		buf.WriteByte(byte(TypeError))
		writeCString(buf, k.atomSym)
		return nil
	case IsAtom(k.typ):
		buf.WriteByte(byte(k.typ))
		return emitAtomPrimitive(buf, k, order, opts)
	case k.typ == TypeCompoundList:
		buf.WriteByte(byte(TypeCompoundList))
		buf.WriteByte(byte(k.attr))
		var lenBuf [4]byte
		order.PutUint32(lenBuf[:], uint32(len(k.list)))
		buf.Write(lenBuf[:])
		for _, c := range k.list {
			if err := emitValue(buf, c, opts); err != nil {
				return err
			}
		}
		return nil
	case IsVector(k.typ):
		return emitVector(buf, k, order, opts)
	case k.typ == TypeDict:
		buf.WriteByte(byte(TypeDict))
		if err := emitValue(buf, k.keys, opts); err != nil {
			return err
		}
		return emitValue(buf, k.values, opts)
	case k.typ == TypeTable:
		buf.WriteByte(byte(TypeTable))
		buf.WriteByte(0) // reserved attribute byte
		dict := &K{typ: TypeDict, keys: k.keys, values: k.values}
		return emitValue(buf, dict, opts)
	default:
		return fmt.Errorf("%w: cannot encode type %d", ErrType, k.typ)
	}
}

func emitAtomPrimitive(buf *bytes.Buffer, k *K, order binary.ByteOrder, opts EncodeOptions) error {
	switch k.typ {
	case TypeBoolean:
		if k.atomBool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case TypeGUID:
		g := k.atomGUID
		buf.Write(g.Bytes())
	case TypeByte:
		buf.WriteByte(byte(k.atomNum))
	case TypeChar:
		buf.WriteByte(k.atomChar)
	case TypeShort, TypeMinute, TypeSecond, TypeTime:
		if k.typ == TypeShort {
			var b [2]byte
			order.PutUint16(b[:], uint16(k.atomNum))
			buf.Write(b[:])
		} else {
			var b [4]byte
			order.PutUint32(b[:], uint32(k.atomNum))
			buf.Write(b[:])
		}
	case TypeInt, TypeMonth, TypeDate:
		var b [4]byte
		order.PutUint32(b[:], uint32(k.atomNum))
		buf.Write(b[:])
	case TypeLong, TypeTimestamp, TypeTimespan:
		var b [8]byte
		order.PutUint64(b[:], k.atomNum)
		buf.Write(b[:])
	case TypeReal:
		var b [4]byte
		order.PutUint32(b[:], math.Float32bits(k.atomReal))
		buf.Write(b[:])
	case TypeFloat:
		var b [8]byte
		order.PutUint64(b[:], math.Float64bits(k.atomF64))
		buf.Write(b[:])
	case TypeDatetime:
		if !opts.AllowDatetimeEmit {
			return fmt.Errorf("%w: emitting datetime requires AllowDatetimeEmit", ErrType)
		}
		var b [8]byte
		order.PutUint64(b[:], math.Float64bits(k.atomF64))
		buf.Write(b[:])
	case TypeSymbol:
		writeCString(buf, k.atomSym)
	default:
		return fmt.Errorf("%w: cannot encode atom of type %d", ErrType, k.typ)
	}
	return nil
}

func emitVector(buf *bytes.Buffer, k *K, order binary.ByteOrder, opts EncodeOptions) error {
	atom := AtomType(k.typ)
	if atom == TypeDatetime && !opts.AllowDatetimeEmit {
		return fmt.Errorf("%w: emitting a datetime vector requires AllowDatetimeEmit", ErrType)
	}
	buf.WriteByte(byte(k.typ))
	buf.WriteByte(byte(k.attr))
	var lenBuf [4]byte
	order.PutUint32(lenBuf[:], uint32(k.vecLen))
	buf.Write(lenBuf[:])

	if atom == TypeSymbol {
		for _, s := range k.symbols {
			writeCString(buf, s)
		}
		return nil
	}

	// Fixed-width elements are stored internally little-endian;
	// translate to wire endianness per element when it differs. A
	// GUID is a 16-byte array, not an endian-scalar (§3.1/§9), so it
	// is never swapped regardless of wire endianness, the same as the
	// width-1 byte/char/boolean case.
	w := elementWidthOf(atom)
	if order == binary.LittleEndian || w == 1 || atom == TypeGUID {
		buf.Write(k.bytes)
		return nil
	}
	tmp := make([]byte, w)
	for i := 0; i < k.vecLen; i++ {
		elem := k.bytes[i*w : (i+1)*w]
		for j := 0; j < w; j++ {
			tmp[j] = elem[w-1-j]
		}
		buf.Write(tmp)
	}
	return nil
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
