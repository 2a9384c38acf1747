// Package types implements the Type Table: the map from a textual type
// name (sigil included, e.g. "@uint32") to its byte size, per spec.md §3.
package types

import "golang.org/x/exp/slices"

// Size is the byte size of a type. Valid sizes are {0, 1, 2, 4, 8}.
type Size = uint32

// Table maps sigil-prefixed type names to sizes. The zero value is not
// usable; construct one with New or Default.
type Table struct {
	sizes map[string]Size
}

// New returns an empty Table. Use Default for the built-in set.
func New() *Table {
	return &Table{sizes: make(map[string]Size)}
}

// Default returns a Table seeded with the built-in types from spec.md §3:
// void, void*, the integer family and the two float sizes.
func Default() *Table {
	t := New()
	t.Add("@void", 0)
	t.Add("@void*", 8)
	t.Add("@uint8", 1)
	t.Add("@uint16", 2)
	t.Add("@uint32", 4)
	t.Add("@uint64", 8)
	t.Add("@int8", 1)
	t.Add("@int16", 2)
	t.Add("@int32", 4)
	t.Add("@int64", 8)
	t.Add("@float32", 4)
	t.Add("@float64", 8)
	return t
}

// Add registers (or overwrites) a type name with the given size. The Type
// Table is explicit, constructor-passed configuration (§9 design note),
// never an ambient singleton, so workspaces can extend it independently.
func (t *Table) Add(name string, size Size) {
	t.sizes[name] = size
}

// Size looks up a type name's byte size. ok is false for an unknown type,
// which the assembler reports as UNKNOWN_TYPE.
func (t *Table) Size(name string) (Size, bool) {
	s, ok := t.sizes[name]
	return s, ok
}

// Names returns every registered type name in a deterministic, sorted
// order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.sizes))
	for name := range t.sizes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns an independent copy, cheap enough to hand one per
// workspace/assembler invocation per the "clone cheaply per workspace"
// guidance in spec.md §9.
func (t *Table) Clone() *Table {
	c := New()
	for k, v := range t.sizes {
		c.sizes[k] = v
	}
	return c
}
