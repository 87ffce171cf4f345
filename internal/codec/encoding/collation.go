package encoding

import (
	"sync"
	"unicode"
)

// foldTable is the 65,536-entry case-fold table described in spec.md §4.1.
// It is populated once, lazily, from a deterministic upper-casing mapping and
// is read-only thereafter (spec.md §5, §9 "Global mutable state").
var (
	foldTable     [1 << 16]uint16
	foldTableOnce sync.Once
	initCount     int
	initMu        sync.Mutex
)

// Init populates the process-wide case-fold table. It is idempotent and safe
// to call repeatedly or concurrently; only the first call does any work. This
// mirrors spec.md §5's requirement that "initialization/teardown of
// process-wide state must be guarded against concurrent calls (the core uses
// a double-checked counter to serialize repeated init attempts)".
func Init() {
	initMu.Lock()
	defer initMu.Unlock()
	initCount++
	foldTableOnce.Do(buildFoldTable)
}

func buildFoldTable() {
	for i := range foldTable {
		r := rune(i)
		upper := unicode.ToUpper(r)
		if upper > 0xFFFF || upper < 0 {
			upper = r
		}
		foldTable[i] = uint16(upper)
	}
}

func fold(u uint16) uint16 {
	foldTableOnce.Do(buildFoldTable)
	return foldTable[u]
}

// CompareNames returns lexicographic order on UTF-16 code units; when
// ignoreCase is true each code unit is mapped through the fold table before
// comparison (spec.md §4.1).
func CompareNames(a, b Name, ignoreCase bool) int {
	au, bu := a.Units(), b.Units()
	n := len(au)
	if len(bu) < n {
		n = len(bu)
	}
	for i := 0; i < n; i++ {
		x, y := au[i], bu[i]
		if ignoreCase {
			x, y = fold(x), fold(y)
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(au) < len(bu):
		return -1
	case len(au) > len(bu):
		return 1
	default:
		return 0
	}
}

// CompareCollation implements the two-level child collation order used by
// the dentry index (spec.md §4.1): first case-insensitive, then on a tie,
// case-sensitive. This gives each sibling a unique position while still
// enabling O(log n) case-insensitive lookup with tie-breaking.
func CompareCollation(a, b Name) int {
	if c := CompareNames(a, b, true); c != 0 {
		return c
	}
	return CompareNames(a, b, false)
}
