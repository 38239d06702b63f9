package kdbipc

import "fmt"

// NewDict constructs a dictionary (tag 99) from two conforming K
// vectors: keys and values. It fails with a TypeError-wrapping error
// if their lengths differ (§3.3, §8 property 5).
func NewDict(keys, values *K) (*K, error) {
	if keys.Len() != values.Len() {
		return nil, fmt.Errorf("%w: dictionary keys length %d != values length %d", ErrType, keys.Len(), values.Len())
	}
	return &K{typ: TypeDict, refCount: 1, keys: keys, values: values}, nil
}

// Keys borrows the key vector of a dictionary, table, or keyed table.
func (k *K) Keys() *K {
	if k.typ != TypeDict && k.typ != TypeTable {
		panic("kdbipc: Keys of non-dictionary, non-table value")
	}
	return k.keys
}

// Values borrows the value vector/column-list of a dictionary, table,
// or keyed table.
func (k *K) Values() *K {
	if k.typ != TypeDict && k.typ != TypeTable {
		panic("kdbipc: Values of non-dictionary, non-table value")
	}
	return k.values
}

// Flip constructs a table (tag 98) from a dictionary whose keys are a
// symbol vector (the column names) and whose values are a compound
// list of equally-long typed vectors (the columns), mirroring q's
// "flip" primitive. It fails if dict is not a dictionary, if its keys
// are not a symbol vector, if its values are not a compound list, or
// if the columns are not uniformly lengthed typed vectors (§3.3, §4.B,
// §8 property 5).
func Flip(dict *K) (*K, error) {
	if dict.typ != TypeDict {
		return nil, fmt.Errorf("%w: Flip of non-dictionary value (type %d)", ErrType, dict.typ)
	}
	if dict.keys.typ != -TypeSymbol {
		return nil, fmt.Errorf("%w: Flip requires symbol-vector keys, got type %d", ErrType, dict.keys.typ)
	}
	if dict.values.typ != TypeCompoundList {
		return nil, fmt.Errorf("%w: Flip requires a compound-list of columns, got type %d", ErrType, dict.values.typ)
	}
	cols := dict.values.list
	if len(cols) != dict.keys.Len() {
		return nil, fmt.Errorf("%w: Flip column count %d != key count %d", ErrType, len(cols), dict.keys.Len())
	}
	if len(cols) > 0 {
		n := -1
		for _, c := range cols {
			if !IsVector(c.typ) {
				return nil, fmt.Errorf("%w: Flip column is not a typed vector (type %d)", ErrType, c.typ)
			}
			if n == -1 {
				n = c.Len()
			} else if c.Len() != n {
				return nil, fmt.Errorf("%w: Flip columns have unequal length (%d != %d)", ErrType, c.Len(), n)
			}
		}
	}
	return &K{typ: TypeTable, refCount: 1, keys: dict.keys, values: dict.values}, nil
}

// NewTable is a convenience constructor combining NewDict and Flip for
// the common case of building a table directly from column names and
// column vectors.
func NewTable(columnNames []string, columns []*K) (*K, error) {
	keys := NewSymbolVector(columnNames)
	values := NewCompoundList(columns...)
	dict, err := NewDict(keys, values)
	if err != nil {
		return nil, err
	}
	return Flip(dict)
}

// RowCount returns the number of rows in a table (the shared column
// length), or 0 for a table with no columns.
func (k *K) RowCount() int {
	k.requireType(TypeTable)
	if len(k.values.list) == 0 {
		return 0
	}
	return k.values.list[0].Len()
}

// Column returns the named column of a table, or nil if no column by
// that name exists.
func (k *K) Column(name string) *K {
	k.requireType(TypeTable)
	for i, s := range k.keys.symbols {
		if s == name {
			return k.values.list[i]
		}
	}
	return nil
}

// NewKeyedTable constructs a keyed table (a dictionary of table to
// table: keys is the key-column table, values is the data-column
// table) from two conforming tables, with the same row count.
func NewKeyedTable(keys, values *K) (*K, error) {
	if keys.typ != TypeTable || values.typ != TypeTable {
		return nil, fmt.Errorf("%w: NewKeyedTable requires two tables", ErrType)
	}
	if keys.RowCount() != values.RowCount() {
		return nil, fmt.Errorf("%w: keyed table key/value row counts differ (%d != %d)", ErrType, keys.RowCount(), values.RowCount())
	}
	return &K{typ: TypeDict, refCount: 1, keys: keys, values: values}, nil
}

// IsKeyedTable reports whether k is a dictionary of table to table,
// as opposed to a plain dictionary.
func (k *K) IsKeyedTable() bool {
	return k.typ == TypeDict && k.keys != nil && k.keys.typ == TypeTable && k.values != nil && k.values.typ == TypeTable
}
