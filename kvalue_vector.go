package kdbipc

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Typed vectors store their packed elements internally in
// little-endian order regardless of wire endianness; the serializer
// and deserializer translate to/from the requested wire endianness at
// the frame boundary (§4.C/§4.D), so the in-memory representation
// never has to care which peer it is talking to.

func elementWidthOf(atom Type) int {
	if atom == TypeSymbol {
		panic("kdbipc: ElementWidth of symbol")
	}
	return ElementWidth(atom)
}

// NewVector constructs a zero-filled typed vector of atom's element
// type with the given length. Use NewSymbolVector for symbol vectors.
func NewVector(atom Type, length int) *K {
	if atom == TypeSymbol {
		return NewSymbolVector(make([]string, length))
	}
	w := elementWidthOf(atom)
	return &K{
		typ:      -atom,
		refCount: 1,
		bytes:    make([]byte, length*w),
		vecLen:   length,
	}
}

// NewSymbolVector constructs a symbol vector from syms. Each element
// is interned independently.
func NewSymbolVector(syms []string) *K {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = defaultInterner.intern(s)
	}
	return &K{typ: -TypeSymbol, refCount: 1, symbols: out, vecLen: len(out)}
}

func newFixedVector(atom Type, n int, put func(buf []byte, i int)) *K {
	w := elementWidthOf(atom)
	buf := make([]byte, n*w)
	for i := 0; i < n; i++ {
		put(buf, i)
	}
	return &K{typ: -atom, refCount: 1, bytes: buf, vecLen: n}
}

// NewBooleanVector constructs a boolean vector (tag +1).
func NewBooleanVector(vals []bool) *K {
	return newFixedVector(TypeBoolean, len(vals), func(buf []byte, i int) {
		if vals[i] {
			buf[i] = 1
		}
	})
}

// NewGUIDVector constructs a GUID vector (tag +2).
func NewGUIDVector(vals []uuid.UUID) *K {
	return newFixedVector(TypeGUID, len(vals), func(buf []byte, i int) {
		copy(buf[i*16:(i+1)*16], vals[i].Bytes())
	})
}

// NewByteVector constructs a byte vector (tag +4).
func NewByteVector(vals []byte) *K {
	k := &K{typ: -TypeByte, refCount: 1, vecLen: len(vals)}
	k.bytes = append([]byte(nil), vals...)
	return k
}

// NewShortVector constructs a 16-bit integer vector (tag +5).
func NewShortVector(vals []int16) *K {
	return newFixedVector(TypeShort, len(vals), func(buf []byte, i int) {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(vals[i]))
	})
}

// NewIntVector constructs a 32-bit integer vector (tag +6).
func NewIntVector(vals []int32) *K {
	return newFixedVector(TypeInt, len(vals), func(buf []byte, i int) {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(vals[i]))
	})
}

// NewLongVector constructs a 64-bit integer vector (tag +7).
func NewLongVector(vals []int64) *K {
	return newFixedVector(TypeLong, len(vals), func(buf []byte, i int) {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(vals[i]))
	})
}

// NewRealVector constructs a 32-bit float vector (tag +8).
func NewRealVector(vals []float32) *K {
	return newFixedVector(TypeReal, len(vals), func(buf []byte, i int) {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(vals[i]))
	})
}

// NewFloatVector constructs a 64-bit float vector (tag +9).
func NewFloatVector(vals []float64) *K {
	return newFixedVector(TypeFloat, len(vals), func(buf []byte, i int) {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(vals[i]))
	})
}

// NewCharVector constructs a char vector (tag +10) from a string; q
// treats a char vector as its "string" type.
func NewCharVector(s string) *K {
	return &K{typ: -TypeChar, refCount: 1, bytes: []byte(s), vecLen: len(s)}
}

// NewTimestampVector constructs a timestamp vector (tag +12).
func NewTimestampVector(vals []time.Time) *K {
	return newFixedVector(TypeTimestamp, len(vals), func(buf []byte, i int) {
		ns := vals[i].UTC().Sub(epoch).Nanoseconds()
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(ns))
	})
}

// NewDateVector constructs a date vector (tag +14).
func NewDateVector(vals []time.Time) *K {
	return newFixedVector(TypeDate, len(vals), func(buf []byte, i int) {
		days := int32(vals[i].UTC().Sub(epoch).Hours() / 24)
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(days))
	})
}

// NewTimespanVector constructs a timespan vector (tag +16).
func NewTimespanVector(vals []time.Duration) *K {
	return newFixedVector(TypeTimespan, len(vals), func(buf []byte, i int) {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(vals[i].Nanoseconds()))
	})
}

// Index returns the i'th element of a fixed-width typed vector boxed
// as an atom *K of the vector's atom type. It panics on a
// non-vector receiver or an out-of-range index.
func (k *K) Index(i int) *K {
	if !IsVector(k.typ) {
		panic("kdbipc: Index of non-vector")
	}
	if i < 0 || i >= k.vecLen {
		panic(fmt.Sprintf("kdbipc: index %d out of range [0,%d)", i, k.vecLen))
	}
	atom := AtomType(k.typ)
	if atom == TypeSymbol {
		return NewSymbol(k.symbols[i])
	}
	w := elementWidthOf(atom)
	buf := k.bytes[i*w : (i+1)*w]
	switch atom {
	case TypeBoolean:
		return NewBoolean(buf[0] != 0)
	case TypeGUID:
		var u uuid.UUID
		copy(u[:], buf)
		return NewGUID(u)
	case TypeByte:
		return NewByte(buf[0])
	case TypeShort:
		return NewShort(int16(binary.LittleEndian.Uint16(buf)))
	case TypeInt:
		return NewInt(int32(binary.LittleEndian.Uint32(buf)))
	case TypeLong:
		return NewLong(int64(binary.LittleEndian.Uint64(buf)))
	case TypeReal:
		return NewReal(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case TypeFloat:
		return NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	case TypeChar:
		return NewChar(buf[0])
	case TypeTimestamp:
		return &K{typ: TypeTimestamp, refCount: 1, atomNum: binary.LittleEndian.Uint64(buf)}
	case TypeMonth, TypeDate, TypeMinute, TypeSecond, TypeTime:
		return &K{typ: atom, refCount: 1, atomNum: uint64(binary.LittleEndian.Uint32(buf))}
	case TypeTimespan:
		return &K{typ: TypeTimespan, refCount: 1, atomNum: binary.LittleEndian.Uint64(buf)}
	case TypeDatetime:
		return &K{typ: TypeDatetime, refCount: 1, atomF64: math.Float64frombits(binary.LittleEndian.Uint64(buf))}
	default:
		panic(fmt.Sprintf("kdbipc: Index: unhandled atom type %d", atom))
	}
}

// Bytes borrows the raw internal element buffer of a fixed-width
// typed vector for read or write. Mutating it in place is valid until
// the value is handed to the serializer (§3.4); it is invalid for
// symbol vectors and any non-vector type.
func (k *K) Bytes() []byte {
	if !IsVector(k.typ) || AtomType(k.typ) == TypeSymbol {
		panic("kdbipc: Bytes of non-fixed-width vector")
	}
	return k.bytes
}

// Symbols borrows the element slice of a symbol vector.
func (k *K) Symbols() []string {
	k.requireType(-TypeSymbol)
	return k.symbols
}

// AppendByte appends one element to a byte vector, growing it.
// Appending to a vector of any other atom type is a TypeError.
func (k *K) AppendByte(b byte) error {
	if AtomType(k.typ) != TypeByte {
		return fmt.Errorf("%w: AppendByte on vector of atom type %d", ErrType, AtomType(k.typ))
	}
	k.bytes = append(k.bytes, b)
	k.vecLen++
	return nil
}

// AppendLong appends one element to a long vector, growing it.
func (k *K) AppendLong(v int64) error {
	if AtomType(k.typ) != TypeLong {
		return fmt.Errorf("%w: AppendLong on vector of atom type %d", ErrType, AtomType(k.typ))
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	k.bytes = append(k.bytes, buf[:]...)
	k.vecLen++
	return nil
}

// AppendSymbol appends one symbol to a symbol vector, growing it.
func (k *K) AppendSymbol(s string) error {
	if k.typ != -TypeSymbol {
		return fmt.Errorf("%w: AppendSymbol on vector of atom type %d", ErrType, AtomType(k.typ))
	}
	k.symbols = append(k.symbols, defaultInterner.intern(s))
	k.vecLen++
	return nil
}

// NewCompoundList constructs a heterogeneous ordered list (tag 0)
// from items. items is copied; items itself may be reused by the
// caller afterwards.
func NewCompoundList(items ...*K) *K {
	list := make([]*K, len(items))
	copy(list, items)
	return &K{typ: TypeCompoundList, refCount: 1, list: list}
}

// List borrows the child slice of a compound list.
func (k *K) List() []*K {
	k.requireType(TypeCompoundList)
	return k.list
}

