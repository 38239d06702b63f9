package kdbipc

import (
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v *K, endian Endianness) *K {
	t.Helper()
	frame, err := Encode(v, EncodeOptions{Endian: endian, Mode: ModeAsync, AllowDatetimeEmit: true})
	require.NoError(t, err)
	decoded, hd, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, endian, hd.Endian)
	require.Equal(t, uint32(len(frame)), hd.TotalLen)
	return decoded
}

func TestRoundTripAtoms(t *testing.T) {
	for _, endian := range []Endianness{EndianLittle, EndianBig} {
		require.Equal(t, true, roundTrip(t, NewBoolean(true), endian).Bool())
		require.Equal(t, byte(7), roundTrip(t, NewByte(7), endian).Byte())
		require.Equal(t, int16(-99), roundTrip(t, NewShort(-99), endian).Short())
		require.Equal(t, int32(-99999), roundTrip(t, NewInt(-99999), endian).Int())
		require.Equal(t, int64(-1), roundTrip(t, NewLong(-1), endian).Long())
		require.Equal(t, float32(3.25), roundTrip(t, NewReal(3.25), endian).Real())
		require.Equal(t, 6.125, roundTrip(t, NewFloat(6.125), endian).Float())
		require.Equal(t, byte('z'), roundTrip(t, NewChar('z'), endian).Char())
		require.Equal(t, "trade", roundTrip(t, NewSymbol("trade"), endian).Symbol())

		id, err := uuid.NewV4()
		require.NoError(t, err)
		require.Equal(t, id, roundTrip(t, NewGUID(id), endian).GUID())
	}
}

func TestRoundTripNullAndError(t *testing.T) {
	n := roundTrip(t, NewNull(), EndianLittle)
	require.Equal(t, TypeNull, n.Type())

	e := roundTrip(t, NewError("type"), EndianLittle)
	require.Equal(t, TypeError, e.Type())
	require.Equal(t, "type", e.ErrorSymbol())
}

func TestRoundTripVectors(t *testing.T) {
	for _, endian := range []Endianness{EndianLittle, EndianBig} {
		v := NewLongVector([]int64{1, -2, 3, 9223372036854775807})
		got := roundTrip(t, v, endian)
		require.Equal(t, 4, got.Len())
		for i := 0; i < 4; i++ {
			require.Equal(t, v.Index(i).Long(), got.Index(i).Long())
		}

		fv := NewRealVector([]float32{1.5, -2.5, 0})
		gotF := roundTrip(t, fv, endian)
		for i := 0; i < 3; i++ {
			require.Equal(t, fv.Index(i).Real(), gotF.Index(i).Real())
		}

		sv := NewSymbolVector([]string{"abc", "d", "ef"})
		gotS := roundTrip(t, sv, endian)
		require.Equal(t, []string{"abc", "d", "ef"}, gotS.Symbols())
	}
}

func TestRoundTripTableScenarioS4(t *testing.T) {
	nanos := []int64{119067859167018272, 201766609419710368, 271897944018691392}
	temps := []float64{22.1, 24.7, 30.5}

	timeVec := &K{typ: -TypeTimestamp, refCount: 1, vecLen: 3, bytes: make([]byte, 24)}
	for i, n := range nanos {
		timeVec.bytes[i*8] = byte(n)
		timeVec.bytes[i*8+1] = byte(n >> 8)
		timeVec.bytes[i*8+2] = byte(n >> 16)
		timeVec.bytes[i*8+3] = byte(n >> 24)
		timeVec.bytes[i*8+4] = byte(n >> 32)
		timeVec.bytes[i*8+5] = byte(n >> 40)
		timeVec.bytes[i*8+6] = byte(n >> 48)
		timeVec.bytes[i*8+7] = byte(n >> 56)
	}
	tempVec := NewFloatVector(temps)

	tbl, err := NewTable([]string{"time", "temperature"}, []*K{timeVec, tempVec})
	require.NoError(t, err)

	for _, endian := range []Endianness{EndianLittle, EndianBig} {
		got := roundTrip(t, tbl, endian)
		require.Equal(t, TypeTable, got.Type())
		require.Equal(t, 3, got.RowCount())

		gotTime := got.Column("time")
		gotTemp := got.Column("temperature")
		for i := 0; i < 3; i++ {
			require.Equal(t, nanos[i], int64(gotTime.Index(i).Timestamp().Sub(epoch).Nanoseconds()))
			require.Equal(t, temps[i], gotTemp.Index(i).Float())
		}
	}
}

func TestParseHeaderRejectsUnknownEndian(t *testing.T) {
	var h [headerLen]byte
	h[0] = 7
	_, err := ParseHeader(h)
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}

func TestParseHeaderRejectsUnknownMode(t *testing.T) {
	var h [headerLen]byte
	h[0] = 1
	h[1] = 5
	_, err := ParseHeader(h)
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	frame, err := Encode(NewLong(1), EncodeOptions{Endian: EndianLittle, Mode: ModeAsync})
	require.NoError(t, err)
	frame = append(frame, 0xff)
	_, _, err = Decode(frame)
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	frame, err := Encode(NewLong(1), EncodeOptions{Endian: EndianLittle, Mode: ModeAsync})
	require.NoError(t, err)
	body := frame[headerLen:]
	body = append(body, 0x00) // one stray byte past the complete value
	_, err = DecodeBody(body, Header{Endian: EndianLittle})
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}

func TestDecodeRejectsHostileVectorLength(t *testing.T) {
	// A long-vector header claiming 0xffffffff elements with only a
	// few bytes of buffer left must fail fast, not allocate.
	body := []byte{byte(-TypeLong), 0x00, 0xff, 0xff, 0xff, 0xff, 0x01, 0x02}
	_, err := DecodeBody(body, Header{Endian: EndianLittle})
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}

func TestDecodeRejectsNonUTF8Symbol(t *testing.T) {
	body := []byte{byte(TypeSymbol), 0xff, 0xfe, 0x00}
	_, err := DecodeBody(body, Header{Endian: EndianLittle})
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}

func TestDecodeRejectsUnterminatedSymbol(t *testing.T) {
	body := []byte{byte(TypeSymbol), 'a', 'b'}
	_, err := DecodeBody(body, Header{Endian: EndianLittle})
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}

func TestFlipLengthMismatchSurfacesAsMalformedAtDecode(t *testing.T) {
	keys := NewSymbolVector([]string{"a", "b"})
	values := NewCompoundList(NewIntVector([]int32{1, 2}), NewIntVector([]int32{1}))
	dict := &K{typ: TypeDict, refCount: 1, keys: keys, values: values}

	dictFrame, err := Encode(dict, EncodeOptions{Endian: EndianLittle, Mode: ModeAsync})
	require.NoError(t, err)
	dictBody := dictFrame[headerLen:]

	// Build a table body by hand: table tag, reserved attribute byte,
	// then the (invalid) dict body, so the decoder's Flip-failure path
	// is what is under test, not the encoder (which never builds a
	// non-conforming table in the first place).
	body := append([]byte{byte(TypeTable), 0x00}, dictBody...)

	_, err = DecodeBody(body, Header{Endian: EndianLittle})
	var merr *MalformedMessageError
	require.ErrorAs(t, err, &merr)
}
