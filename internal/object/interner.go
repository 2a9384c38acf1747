package object

import "github.com/dchest/siphash"

// Interner is a hash-consing string table: it assigns each distinct
// string a stable ordinal index the first time it is seen, and returns
// the same index on every subsequent lookup. Both the assembler's Pass A
// string-literal harvest and the linker's cross-object string
// unification share this type so both stages dedupe with the same content
// fingerprint, the same role siphash.Hash128 plays for VM register data
// in SnellerInc-sneller/vm/interphash.go.
type Interner struct {
	order   []string
	indexOf map[uint64]map[string]int
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{indexOf: make(map[uint64]map[string]int)}
}

// Intern returns s's ordinal index, assigning a new one the first time s
// is seen. The fingerprint is only a bucket key: equal strings are
// confirmed with a direct comparison, so a hash collision never merges
// two distinct literals.
func (in *Interner) Intern(s string) int {
	fp := fingerprint(s)
	bucket := in.indexOf[fp]
	if bucket == nil {
		bucket = make(map[string]int)
		in.indexOf[fp] = bucket
	}
	if idx, ok := bucket[s]; ok {
		return idx
	}
	idx := len(in.order)
	in.order = append(in.order, s)
	bucket[s] = idx
	return idx
}

// Strings returns the interned strings in assignment order.
func (in *Interner) Strings() []string {
	return in.order
}

// Len reports how many distinct strings have been interned.
func (in *Interner) Len() int { return len(in.order) }

func fingerprint(s string) uint64 {
	lo, _ := siphash.Hash128(0, 0, []byte(s))
	return lo
}
