package kdbipc

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	uuid "github.com/satori/go.uuid"
)

// Header is the parsed form of a frame's fixed 8-byte header (§4.C).
type Header struct {
	Endian     Endianness
	Mode       MessageMode
	Compressed bool
	TotalLen   uint32
}

// ParseHeader validates and decodes the 8-byte frame header. It fails
// with MalformedMessageError if the endianness byte or message-mode
// byte carry an out-of-range value (§4.D).
func ParseHeader(h [headerLen]byte) (Header, error) {
	var hd Header
	switch h[0] {
	case 0:
		hd.Endian = EndianBig
	case 1:
		hd.Endian = EndianLittle
	default:
		return hd, &MalformedMessageError{Offset: 0, Reason: fmt.Sprintf("unknown endianness byte %d", h[0])}
	}
	switch h[1] {
	case 0, 1, 2:
		hd.Mode = MessageMode(h[1])
	default:
		return hd, &MalformedMessageError{Offset: 1, Reason: fmt.Sprintf("unknown message mode byte %d", h[1])}
	}
	hd.Compressed = h[2] == 1
	hd.TotalLen = hd.Endian.order().Uint32(h[4:8])
	return hd, nil
}

// Decode parses a complete, self-contained q-IPC frame (header plus
// body) into a K value. It is a convenience wrapper over ParseHeader
// and DecodeBody for callers that already have the whole frame in
// memory (tests, unit fixtures); the session layer instead reads the
// header and body as two separate socket reads and calls DecodeBody
// directly.
func Decode(frame []byte) (*K, Header, error) {
	if len(frame) < headerLen {
		return nil, Header{}, &MalformedMessageError{Offset: 0, Reason: "frame shorter than the 8-byte header"}
	}
	var hbuf [headerLen]byte
	copy(hbuf[:], frame[:headerLen])
	hd, err := ParseHeader(hbuf)
	if err != nil {
		return nil, hd, err
	}
	if int(hd.TotalLen) != len(frame) {
		return nil, hd, &MalformedMessageError{Offset: 4, Reason: fmt.Sprintf("declared length %d does not match frame length %d", hd.TotalLen, len(frame))}
	}
	v, err := DecodeBody(frame[headerLen:], hd)
	return v, hd, err
}

// DecodeBody parses the bytes following the header into a K value,
// decompressing first if hd.Compressed is set (§4.D, §4.E). It fails
// if any payload bytes remain unconsumed after one value is parsed.
func DecodeBody(payload []byte, hd Header) (*K, error) {
	if hd.Compressed {
		var err error
		payload, err = Decompress(payload)
		if err != nil {
			return nil, err
		}
	}
	r := &decoder{buf: payload, order: hd.Endian.order()}
	v, err := r.readValue()
	if err != nil {
		return nil, err
	}
	if r.pos != len(r.buf) {
		return nil, &MalformedMessageError{Offset: r.pos, Reason: "trailing bytes after a complete value"}
	}
	return v, nil
}

type decoder struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return &MalformedMessageError{Offset: d.pos, Reason: fmt.Sprintf("need %d more bytes, only %d remain", n, len(d.buf)-d.pos)}
	}
	return nil
}

func (d *decoder) readByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// checkCount rejects a declared element count that could not possibly
// fit in the bytes remaining (every element consumes at least one
// byte), so a corrupt or hostile length field fails fast with
// MalformedMessage instead of driving a multi-gigabyte allocation.
func (d *decoder) checkCount(n uint32) error {
	if int(n) < 0 || uint64(n) > uint64(len(d.buf)-d.pos) {
		return &MalformedMessageError{Offset: d.pos, Reason: fmt.Sprintf("declared length %d exceeds remaining buffer", n)}
	}
	return nil
}

func (d *decoder) readUint32() (uint32, error) {
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

// readCString reads a zero-terminated symbol: §3.3 requires the wire
// form to be UTF-8-clean with no embedded zero. A symbol that is not
// terminated before the buffer ends, or whose bytes are not valid
// UTF-8, is MalformedMessage — the policy this package picks for §9's
// open question on non-UTF-8 symbols.
func (d *decoder) readCString() (string, error) {
	start := d.pos
	for d.pos < len(d.buf) && d.buf[d.pos] != 0 {
		d.pos++
	}
	if d.pos >= len(d.buf) {
		return "", &MalformedMessageError{Offset: start, Reason: "symbol not zero-terminated within the buffer"}
	}
	s := d.buf[start:d.pos]
	d.pos++ // consume the terminating zero
	if !utf8.Valid(s) {
		return "", &MalformedMessageError{Offset: start, Reason: "symbol bytes are not valid UTF-8"}
	}
	return string(s), nil
}

func (d *decoder) readValue() (*K, error) {
	tagByte, err := d.readByte()
	if err != nil {
		return nil, err
	}
	tag := Type(int8(tagByte))

	switch {
	case tag == TypeNull:
		if _, err := d.readByte(); err != nil {
			return nil, err
		}
		return NewNull(), nil
	case tag == TypeError:
		sym, err := d.readCString()
		if err != nil {
			return nil, err
		}
		return NewError(sym), nil
	case IsAtom(tag):
		return d.readAtom(tag)
	case tag == TypeCompoundList:
		return d.readCompoundList()
	case tag == TypeDict:
		return d.readDict()
	case tag == TypeTable:
		return d.readTable()
	case IsVector(tag):
		return d.readVector(tag)
	default:
		return nil, &MalformedMessageError{Offset: d.pos - 1, Reason: fmt.Sprintf("unknown type tag %d", tagByte)}
	}
}

func (d *decoder) readAtom(tag Type) (*K, error) {
	switch tag {
	case TypeBoolean:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return NewBoolean(b != 0), nil
	case TypeGUID:
		b, err := d.readBytes(16)
		if err != nil {
			return nil, err
		}
		var u uuid.UUID
		copy(u[:], b)
		return NewGUID(u), nil
	case TypeByte:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return NewByte(b), nil
	case TypeChar:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return NewChar(b), nil
	case TypeShort:
		b, err := d.readBytes(2)
		if err != nil {
			return nil, err
		}
		return NewShort(int16(d.order.Uint16(b))), nil
	case TypeInt, TypeMonth, TypeDate:
		b, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		v := int32(d.order.Uint32(b))
		return &K{typ: tag, refCount: 1, atomNum: uint64(uint32(v))}, nil
	case TypeLong, TypeTimestamp, TypeTimespan:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		return &K{typ: tag, refCount: 1, atomNum: d.order.Uint64(b)}, nil
	case TypeReal:
		b, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		return NewReal(math.Float32frombits(d.order.Uint32(b))), nil
	case TypeFloat:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		return NewFloat(math.Float64frombits(d.order.Uint64(b))), nil
	case TypeDatetime:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		return &K{typ: TypeDatetime, refCount: 1, atomF64: math.Float64frombits(d.order.Uint64(b))}, nil
	case TypeMinute, TypeSecond, TypeTime:
		b, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		return &K{typ: tag, refCount: 1, atomNum: uint64(d.order.Uint32(b))}, nil
	case TypeSymbol:
		sym, err := d.readCString()
		if err != nil {
			return nil, err
		}
		return NewSymbol(sym), nil
	default:
		return nil, &MalformedMessageError{Offset: d.pos, Reason: fmt.Sprintf("unhandled atom tag %d", tag)}
	}
}

func (d *decoder) readCompoundList() (*K, error) {
	attr, err := d.readByte()
	if err != nil {
		return nil, err
	}
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if err := d.checkCount(n); err != nil {
		return nil, err
	}
	list := make([]*K, n)
	for i := range list {
		v, err := d.readValue()
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return &K{typ: TypeCompoundList, refCount: 1, attr: Attribute(attr), list: list}, nil
}

func (d *decoder) readVector(tag Type) (*K, error) {
	attr, err := d.readByte()
	if err != nil {
		return nil, err
	}
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	atom := AtomType(tag)
	if atom == TypeSymbol {
		if err := d.checkCount(n); err != nil {
			return nil, err
		}
		syms := make([]string, n)
		for i := range syms {
			s, err := d.readCString()
			if err != nil {
				return nil, err
			}
			syms[i] = s
		}
		v := NewSymbolVector(syms)
		v.attr = Attribute(attr)
		return v, nil
	}

	if err := d.checkCount(n); err != nil {
		return nil, err
	}
	w := elementWidthOf(atom)
	total := int(n) * w
	raw, err := d.readBytes(total)
	if err != nil {
		return nil, err
	}
	bs := make([]byte, total)
	if d.order == binary.LittleEndian || w == 1 || atom == TypeGUID {
		copy(bs, raw)
	} else {
		for i := 0; i < int(n); i++ {
			src := raw[i*w : (i+1)*w]
			dst := bs[i*w : (i+1)*w]
			for j := 0; j < w; j++ {
				dst[j] = src[w-1-j]
			}
		}
	}
	return &K{typ: tag, refCount: 1, attr: Attribute(attr), bytes: bs, vecLen: int(n)}, nil
}

func (d *decoder) readDict() (*K, error) {
	keys, err := d.readValue()
	if err != nil {
		return nil, err
	}
	values, err := d.readValue()
	if err != nil {
		return nil, err
	}
	// The generic null and errors have no length, so neither can be
	// one side of a dictionary.
	for _, c := range []*K{keys, values} {
		if c.typ == TypeNull || c.typ == TypeError {
			return nil, &MalformedMessageError{Offset: d.pos, Reason: fmt.Sprintf("dictionary child of type %d has no length", c.typ)}
		}
	}
	// A keyed table is a dict of table to table (§3.3); its two
	// children are compared by row count, not by the column count
	// NewDict/K.Len use for every other dict, so it must go through
	// NewKeyedTable instead.
	if keys.typ == TypeTable && values.typ == TypeTable {
		kt, err := NewKeyedTable(keys, values)
		if err != nil {
			return nil, &MalformedMessageError{Offset: d.pos, Reason: err.Error()}
		}
		return kt, nil
	}
	dict, err := NewDict(keys, values)
	if err != nil {
		return nil, &MalformedMessageError{Offset: d.pos, Reason: err.Error()}
	}
	return dict, nil
}

func (d *decoder) readTable() (*K, error) {
	if _, err := d.readByte(); err != nil { // reserved attribute byte
		return nil, err
	}
	dict, err := d.readValue()
	if err != nil {
		return nil, err
	}
	if dict.typ != TypeDict {
		return nil, &MalformedMessageError{Offset: d.pos, Reason: fmt.Sprintf("table body has type %d, not a dictionary", dict.typ)}
	}
	table, err := Flip(dict)
	if err != nil {
		return nil, &MalformedMessageError{Offset: d.pos, Reason: err.Error()}
	}
	return table, nil
}
