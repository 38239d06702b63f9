package kdbipc

import lru "github.com/hashicorp/golang-lru"

// symbolInternerSize bounds the number of distinct symbol strings a
// single process will cache across all sessions. Long-running
// listeners decode an unbounded stream of symbol atoms/vectors;
// without a bound the cache would grow forever.
const symbolInternerSize = 4096

// symbolInterner deduplicates decoded symbol strings so repeated
// symbol atoms (column names, table names, recurring enum-like
// values) share one Go string allocation instead of one per
// occurrence on the wire. §3.3 leaves in-memory symbol reuse
// unspecified; this is the policy this implementation picks.
type symbolInterner struct {
	cache *lru.Cache
}

func newSymbolInterner() *symbolInterner {
	c, err := lru.New(symbolInternerSize)
	if err != nil {
		// lru.New only fails for a non-positive size, which
		// symbolInternerSize never is.
		panic(err)
	}
	return &symbolInterner{cache: c}
}

// intern returns s unchanged but, if an equal string has already
// passed through this interner, returns that earlier allocation
// instead so callers holding many equal symbols share memory.
func (si *symbolInterner) intern(s string) string {
	if v, ok := si.cache.Get(s); ok {
		return v.(string)
	}
	si.cache.Add(s, s)
	return s
}

// defaultInterner is the one process-wide interner used by every
// symbol constructor and decode path; sessions do not keep their own.
var defaultInterner = newSymbolInterner()
