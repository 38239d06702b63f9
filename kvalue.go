package kdbipc

import (
	"fmt"
	"time"

	uuid "github.com/satori/go.uuid"
)

// K is a tagged value tree node for the full q type system (§3.2): an
// atom, a typed vector, a compound list, a dictionary, a table, a
// keyed table, an error, or the generic null. Which fields are
// meaningful is determined entirely by typ, the way a single backing
// buffer plus a type tag determines element interpretation on the
// wire (§9).
//
// A *K returned by the deserializer is owned by the caller. A *K
// passed to the serializer must not be mutated for the duration of
// the send (§3.4).
type K struct {
	typ  Type
	attr Attribute

	// refCount is advisory (§3.2); the codec sets it to 1 on every
	// value it constructs and never inspects it otherwise. It exists
	// so host code that also talks to an embedded kdb+ runtime has
	// somewhere to keep the native refcount; pure IPC never reads it.
	refCount int32

	// atom storage: exactly one of these is meaningful, chosen by typ.
	atomBool bool
	atomGUID uuid.UUID
	atomNum  uint64 // byte/short/int/long/timestamp/month/date/timespan/minute/second/time, raw bits
	atomReal float32
	atomF64  float64
	atomChar byte
	atomSym  string // also holds the error symbol when typ == TypeError

	// vector storage, for IsVector(typ): bytes holds packed
	// fixed-width elements; symbols is used instead when the element
	// atom type is TypeSymbol.
	bytes   []byte
	symbols []string
	vecLen  int

	// compound list (typ == TypeCompoundList)
	list []*K

	// dictionary / table / keyed table (typ in {TypeDict, TypeTable})
	keys   *K
	values *K
}

// Type returns the value's type tag.
func (k *K) Type() Type { return k.typ }

// Attr returns the value's attribute hint.
func (k *K) Attr() Attribute { return k.attr }

// SetAttr sets the attribute hint carried alongside a vector.
func (k *K) SetAttr(a Attribute) { k.attr = a }

// Len reports element count for a vector, column/key count for a
// dictionary or table, and 1 for every atom. It panics for the
// generic null and for errors, which have no length.
func (k *K) Len() int {
	switch {
	case IsAtom(k.typ):
		return 1
	case IsVector(k.typ):
		return k.vecLen
	case k.typ == TypeCompoundList:
		return len(k.list)
	case k.typ == TypeDict, k.typ == TypeTable:
		return k.keys.Len()
	default:
		panic(fmt.Sprintf("kdbipc: Len of type %d", k.typ))
	}
}

func newAtom(t Type) *K { return &K{typ: t, refCount: 1} }

// NewBoolean constructs a boolean atom (tag -1).
func NewBoolean(b bool) *K {
	k := newAtom(TypeBoolean)
	k.atomBool = b
	return k
}

// NewGUID constructs a GUID atom (tag -2).
func NewGUID(id uuid.UUID) *K {
	k := newAtom(TypeGUID)
	k.atomGUID = id
	return k
}

// NewByte constructs a byte atom (tag -4).
func NewByte(b byte) *K {
	k := newAtom(TypeByte)
	k.atomNum = uint64(b)
	return k
}

// NewShort constructs a 16-bit integer atom (tag -5).
func NewShort(v int16) *K {
	k := newAtom(TypeShort)
	k.atomNum = uint64(uint16(v))
	return k
}

// NewInt constructs a 32-bit integer atom (tag -6).
func NewInt(v int32) *K {
	k := newAtom(TypeInt)
	k.atomNum = uint64(uint32(v))
	return k
}

// NewLong constructs a 64-bit integer atom (tag -7).
func NewLong(v int64) *K {
	k := newAtom(TypeLong)
	k.atomNum = uint64(v)
	return k
}

// NewReal constructs a 32-bit float atom (tag -8).
func NewReal(v float32) *K {
	k := newAtom(TypeReal)
	k.atomReal = v
	return k
}

// NewFloat constructs a 64-bit float atom (tag -9).
func NewFloat(v float64) *K {
	k := newAtom(TypeFloat)
	k.atomF64 = v
	return k
}

// NewChar constructs a char atom (tag -10).
func NewChar(c byte) *K {
	k := newAtom(TypeChar)
	k.atomChar = c
	return k
}

// NewSymbol constructs a symbol atom (tag -11). s must be UTF-8-clean
// and must not contain an embedded zero byte (§3.3); the interner
// shares storage with equal previously-seen symbols.
func NewSymbol(s string) *K {
	k := newAtom(TypeSymbol)
	k.atomSym = defaultInterner.intern(s)
	return k
}

// NewError constructs an error value (tag -128) carrying sym as the
// error text, the way a q server reports a signalled error.
func NewError(sym string) *K {
	k := newAtom(TypeError)
	k.atomSym = sym
	return k
}

// NewNull constructs the generic null (tag 101).
func NewNull() *K {
	return newAtom(TypeNull)
}

// Temporal constructors. All store elapsed units since the q epoch,
// 2000-01-01T00:00:00 UTC (§3.3).

// NewTimestamp constructs a nanosecond-precision timestamp atom
// (tag -12) from an absolute instant.
func NewTimestamp(t time.Time) *K {
	k := newAtom(TypeTimestamp)
	k.atomNum = uint64(t.UTC().Sub(epoch).Nanoseconds())
	return k
}

// NewMonth constructs a month atom (tag -13): elapsed months since
// 2000-01.
func NewMonth(year int, month time.Month) *K {
	k := newAtom(TypeMonth)
	months := (year-2000)*12 + int(month-1)
	k.atomNum = uint64(uint32(int32(months)))
	return k
}

// NewDate constructs a date atom (tag -14): elapsed days since
// 2000-01-01.
func NewDate(t time.Time) *K {
	k := newAtom(TypeDate)
	days := int32(t.UTC().Sub(epoch).Hours() / 24)
	k.atomNum = uint64(uint32(days))
	return k
}

// NewDatetime constructs a datetime atom (tag -15, deprecated in q):
// fractional days since 2000-01-01 as a float64. Read support is
// unconditional; emitting datetime on the wire requires the caller to
// opt in at the Serializer (§9 open question), since kdb+ itself
// discourages producing new datetime values.
func NewDatetime(t time.Time) *K {
	k := newAtom(TypeDatetime)
	k.atomF64 = t.UTC().Sub(epoch).Hours() / 24
	return k
}

// NewTimespan constructs a nanosecond-precision duration atom
// (tag -16).
func NewTimespan(d time.Duration) *K {
	k := newAtom(TypeTimespan)
	k.atomNum = uint64(d.Nanoseconds())
	return k
}

// NewMinute constructs a minute-of-day atom (tag -17).
func NewMinute(d time.Duration) *K {
	k := newAtom(TypeMinute)
	k.atomNum = uint64(uint32(int32(d.Minutes())))
	return k
}

// NewSecond constructs a second-of-day atom (tag -18).
func NewSecond(d time.Duration) *K {
	k := newAtom(TypeSecond)
	k.atomNum = uint64(uint32(int32(d.Seconds())))
	return k
}

// NewTime constructs a millisecond-of-day atom (tag -19).
func NewTime(d time.Duration) *K {
	k := newAtom(TypeTime)
	k.atomNum = uint64(uint32(int32(d.Milliseconds())))
	return k
}

// Accessors. Each panics if called against the wrong type, the way a
// programmer-error path is expected to panic rather than thread an
// error through every call site (mirrors the teacher's AtomType).

func (k *K) requireType(t Type) {
	if k.typ != t {
		panic(fmt.Sprintf("kdbipc: value has type %d, not %d", k.typ, t))
	}
}

func (k *K) Bool() bool          { k.requireType(TypeBoolean); return k.atomBool }
func (k *K) GUID() uuid.UUID     { k.requireType(TypeGUID); return k.atomGUID }
func (k *K) Byte() byte          { k.requireType(TypeByte); return byte(k.atomNum) }
func (k *K) Short() int16        { k.requireType(TypeShort); return int16(uint16(k.atomNum)) }
func (k *K) Int() int32          { k.requireType(TypeInt); return int32(uint32(k.atomNum)) }
func (k *K) Long() int64         { k.requireType(TypeLong); return int64(k.atomNum) }
func (k *K) Real() float32       { k.requireType(TypeReal); return k.atomReal }
func (k *K) Float() float64      { k.requireType(TypeFloat); return k.atomF64 }
func (k *K) Char() byte          { k.requireType(TypeChar); return k.atomChar }
func (k *K) Symbol() string      { k.requireType(TypeSymbol); return k.atomSym }
func (k *K) ErrorSymbol() string { k.requireType(TypeError); return k.atomSym }

// Timestamp returns the absolute instant a timestamp atom encodes.
func (k *K) Timestamp() time.Time {
	k.requireType(TypeTimestamp)
	return epoch.Add(time.Duration(int64(k.atomNum)))
}

// Date returns the absolute midnight a date atom encodes.
func (k *K) Date() time.Time {
	k.requireType(TypeDate)
	return epoch.AddDate(0, 0, int(int32(uint32(k.atomNum))))
}

// Month returns the calendar year/month a month atom encodes.
func (k *K) Month() (int, time.Month) {
	k.requireType(TypeMonth)
	m := int(int32(uint32(k.atomNum)))
	y := 2000 + m/12
	mo := time.Month(m%12 + 1)
	if m%12 < 0 {
		y--
		mo += 12
	}
	return y, mo
}

// Timespan returns the duration a timespan atom encodes.
func (k *K) Timespan() time.Duration {
	k.requireType(TypeTimespan)
	return time.Duration(int64(k.atomNum))
}

// Minute returns the minute-of-day a minute atom encodes.
func (k *K) Minute() time.Duration {
	k.requireType(TypeMinute)
	return time.Duration(int32(uint32(k.atomNum))) * time.Minute
}

// Second returns the second-of-day a second atom encodes.
func (k *K) Second() time.Duration {
	k.requireType(TypeSecond)
	return time.Duration(int32(uint32(k.atomNum))) * time.Second
}

// TimeOfDay returns the millisecond-of-day a time atom encodes.
func (k *K) TimeOfDay() time.Duration {
	k.requireType(TypeTime)
	return time.Duration(int32(uint32(k.atomNum))) * time.Millisecond
}

// Datetime returns the absolute instant a deprecated datetime atom
// encodes (read support is unconditional; see NewDatetime for the
// emit-side opt-in).
func (k *K) Datetime() time.Time {
	k.requireType(TypeDatetime)
	return epoch.Add(time.Duration(k.atomF64 * 24 * float64(time.Hour)))
}
