package kdbipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAtomConstructorsAndAccessors(t *testing.T) {
	require.True(t, NewBoolean(true).Bool())
	require.False(t, NewBoolean(false).Bool())
	require.Equal(t, byte(0x2a), NewByte(0x2a).Byte())
	require.Equal(t, int16(-1234), NewShort(-1234).Short())
	require.Equal(t, int32(-123456), NewInt(-123456).Int())
	require.Equal(t, int64(42), NewLong(42).Long())
	require.Equal(t, float32(1.5), NewReal(1.5).Real())
	require.Equal(t, 2.5, NewFloat(2.5).Float())
	require.Equal(t, byte('Q'), NewChar('Q').Char())
	require.Equal(t, "trade", NewSymbol("trade").Symbol())
	require.Equal(t, "type", NewError("type").ErrorSymbol())
}

func TestSymbolInterning(t *testing.T) {
	a := NewSymbol("AAPL")
	b := NewSymbol("AAPL")
	require.Equal(t, a.Symbol(), b.Symbol())
}

func TestAccessorPanicsOnWrongType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Long() on a symbol atom should panic")
		}
	}()
	NewSymbol("x").Long()
}

func TestTemporalRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 30, 0, 123456789, time.UTC)
	k := NewTimestamp(ts)
	require.True(t, ts.Equal(k.Timestamp()))

	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	kd := NewDate(d)
	require.True(t, d.Equal(kd.Date()))

	km := NewMonth(2023, time.November)
	y, m := km.Month()
	require.Equal(t, 2023, y)
	require.Equal(t, time.November, m)

	span := 90 * time.Minute
	require.Equal(t, span, NewTimespan(span).Timespan())
}

func TestMonthBeforeEpochRoundTrips(t *testing.T) {
	km := NewMonth(1998, time.June)
	y, m := km.Month()
	require.Equal(t, 1998, y)
	require.Equal(t, time.June, m)
}

func TestNewDict(t *testing.T) {
	keys := NewSymbolVector([]string{"a", "b"})
	values := NewIntVector([]int32{1, 2})
	d, err := NewDict(keys, values)
	require.NoError(t, err)
	require.Equal(t, TypeDict, d.Type())
	require.Equal(t, 2, d.Len())

	_, err = NewDict(keys, NewIntVector([]int32{1}))
	require.ErrorIs(t, err, ErrType)
}

func TestFlipAndTable(t *testing.T) {
	tbl, err := NewTable(
		[]string{"sym", "price"},
		[]*K{NewSymbolVector([]string{"AAPL", "IBM"}), NewFloatVector([]float64{1.1, 2.2})},
	)
	require.NoError(t, err)
	require.Equal(t, TypeTable, tbl.Type())
	require.Equal(t, 2, tbl.RowCount())
	require.Equal(t, []string{"AAPL", "IBM"}, tbl.Column("sym").Symbols())
	require.Nil(t, tbl.Column("nope"))
}

func TestFlipRejectsUnequalColumnLengths(t *testing.T) {
	_, err := NewTable(
		[]string{"a", "b"},
		[]*K{NewIntVector([]int32{1, 2}), NewIntVector([]int32{1})},
	)
	require.ErrorIs(t, err, ErrType)
}

func TestKeyedTable(t *testing.T) {
	keyTbl, err := NewTable([]string{"id"}, []*K{NewIntVector([]int32{1, 2})})
	require.NoError(t, err)
	valTbl, err := NewTable([]string{"name"}, []*K{NewSymbolVector([]string{"a", "b"})})
	require.NoError(t, err)

	kt, err := NewKeyedTable(keyTbl, valTbl)
	require.NoError(t, err)
	require.True(t, kt.IsKeyedTable())
}

// TestKeyedTableRoundTripAsymmetricColumns covers ([id]! name;price): a
// single key column against two value columns. NewDict's column-count
// check (keys.Len() != values.Len()) would reject this shape even though
// it is the normal one; readDict must route keyed tables through
// NewKeyedTable's row-count check instead.
func TestKeyedTableRoundTripAsymmetricColumns(t *testing.T) {
	keyTbl, err := NewTable([]string{"id"}, []*K{NewIntVector([]int32{1, 2, 3})})
	require.NoError(t, err)
	valTbl, err := NewTable([]string{"name", "price"}, []*K{
		NewSymbolVector([]string{"a", "b", "c"}),
		NewFloatVector([]float64{1.5, 2.5, 3.5}),
	})
	require.NoError(t, err)

	kt, err := NewKeyedTable(keyTbl, valTbl)
	require.NoError(t, err)
	require.True(t, kt.IsKeyedTable())

	frame, err := Encode(kt, EncodeOptions{Endian: EndianLittle, Mode: ModeAsync})
	require.NoError(t, err)

	got, _, err := Decode(frame)
	require.NoError(t, err)
	require.True(t, got.IsKeyedTable())
	require.Equal(t, 3, got.Keys().RowCount())
	require.Equal(t, 3, got.Values().RowCount())
	require.Equal(t, []string{"id"}, got.Keys().Keys().Symbols())
	require.Equal(t, []string{"name", "price"}, got.Values().Keys().Symbols())
}

func TestCompoundList(t *testing.T) {
	cl := NewCompoundList(NewLong(1), NewSymbol("x"), NewBoolean(true))
	require.Equal(t, 3, cl.Len())
	require.Equal(t, int64(1), cl.List()[0].Long())
}

func TestVectorIndexAndAppend(t *testing.T) {
	v := NewLongVector([]int64{10, 20, 30})
	require.Equal(t, 3, v.Len())
	require.Equal(t, int64(20), v.Index(1).Long())

	require.NoError(t, v.AppendLong(40))
	require.Equal(t, 4, v.Len())
	require.Equal(t, int64(40), v.Index(3).Long())

	require.ErrorIs(t, v.AppendSymbol("nope"), ErrType)
}

func TestSymbolVectorAppend(t *testing.T) {
	v := NewSymbolVector([]string{"a", "b"})
	require.NoError(t, v.AppendSymbol("c"))
	require.Equal(t, []string{"a", "b", "c"}, v.Symbols())
	require.ErrorIs(t, v.AppendLong(1), ErrType)
}
