package vm

import (
	"fmt"
	"io"
)

// HostFunc is an intrinsic implementation: it runs against the Thread's
// current frame (so it can read its parameters with Thread.paramBytes) and
// returns a fault, if any.
type HostFunc func(t *Thread) *Fault

// Registry is the build-time intrinsic table of spec.md §4.5: a map from
// canonical signature to host function, populated once per Thread and
// consulted by IMPL.
type Registry struct {
	bySignature map[string]HostFunc
}

// NewRegistry returns an empty Registry. Use DefaultRegistry for the
// built-in intrinsic set.
func NewRegistry() *Registry {
	return &Registry{bySignature: make(map[string]HostFunc)}
}

// Register adds or replaces the host function for signature.
func (r *Registry) Register(signature string, fn HostFunc) {
	r.bySignature[signature] = fn
}

// Lookup resolves signature to its host function.
func (r *Registry) Lookup(signature string) (HostFunc, bool) {
	fn, ok := r.bySignature[signature]
	return fn, ok
}

// DefaultRegistry returns a Registry seeded with the one intrinsic spec.md
// §4.5 names: $void::println_str::void*, which writes to w.
func DefaultRegistry(w io.Writer) *Registry {
	r := NewRegistry()
	r.Register("$void::println_str::void*", func(t *Thread) *Fault {
		ptr := getU64(t.paramBytes(0, 8))
		s, ok := t.derefStringPointer(ptr)
		if !ok {
			return t.fault(CodeNullPointer, "println_str: null pointer")
		}
		fmt.Fprintln(w, s)
		return nil
	})
	return r
}
