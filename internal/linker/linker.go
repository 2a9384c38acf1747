// Package linker implements the Linker of spec.md §4.3: it parses a set of
// .cryi objects, unifies their string tables, relocates every string-index
// instruction operand, and serializes a single .crye executable.
package linker

import (
	"github.com/samber/lo"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/rafin-dev/cryo-lang/internal/diag"
	"github.com/rafin-dev/cryo-lang/internal/isa"
	"github.com/rafin-dev/cryo-lang/internal/object"
)

// ObjectFile is one .cryi input, read from disk by the caller (cmd/cryo)
// and handed to Link with its path kept only for diagnostics.
type ObjectFile struct {
	Path string
	Data []byte
}

// Result mirrors assembler.Result: either Bytes holds a valid .crye image,
// or Errors holds Error-or-worse diagnostics and Bytes is nil.
type Result struct {
	Bytes  []byte
	Errors *diag.Queue
}

// Link runs the four steps of spec.md §4.3 over objects, in the order
// given, and returns the linked executable.
func Link(objects []ObjectFile) Result {
	errs := &diag.Queue{}

	// A workspace build directory listing can hand the same object path
	// twice (e.g. a glob that matches it through two patterns); collapse
	// before parsing rather than linking it in twice.
	objects = lo.UniqBy(objects, func(o ObjectFile) string { return o.Path })

	type parsed struct {
		path string
		dec  object.Decoded
	}
	var parsedObjects []parsed

	for _, obj := range objects {
		dec, err := object.Decode(obj.Data, object.HeaderObject)
		if err != nil {
			errs.Push(diag.Diagnostic{
				Code: diag.CodeHeaderMismatch, Message: err.Error(),
				Severity: diag.Critical, Path: obj.Path,
			})
			continue
		}
		parsedObjects = append(parsedObjects, parsed{path: obj.Path, dec: dec})
	}
	if errs.Critical() {
		return Result{Errors: errs}
	}

	// Per-object signature set, so a duplicate inside a single object (the
	// assembler does not check for two definitions of one signature in a
	// source file, and the linker accepts any well-formed .cryi regardless
	// of origin) is reported distinctly from
	// a duplicate across objects, the two-level check carried forward
	// from the original implementation's Linker.cpp (see DESIGN.md).
	globalSig := make(map[string]string) // signature -> owning object path
	for _, p := range parsedObjects {
		seenHere := make(map[string]bool, len(p.dec.Functions))
		for _, fn := range p.dec.Functions {
			if seenHere[fn.Signature] {
				errs.Push(diag.Diagnostic{
					Code:     diag.CodeDuplicateInObject,
					Message:  "duplicate signature " + fn.Signature + " within a single object",
					Severity: diag.Error,
					Path:     p.path,
				})
				continue
			}
			seenHere[fn.Signature] = true

			if owner, exists := globalSig[fn.Signature]; exists {
				errs.Push(diag.Diagnostic{
					Code:     diag.CodeDuplicateSignature,
					Message:  "signature " + fn.Signature + " is defined in both " + owner + " and " + p.path,
					Severity: diag.Error,
					Path:     p.path,
				})
				continue
			}
			globalSig[fn.Signature] = p.path
		}
	}
	if errs.HasErrors() {
		return Result{Errors: errs}
	}

	// Unify strings: each object's string list is interned in object
	// order, giving every distinct literal a single stable global index.
	interner := object.NewInterner()
	relocations := make([]map[uint32]uint32, len(parsedObjects))
	for oi, p := range parsedObjects {
		reloc := make(map[uint32]uint32, len(p.dec.Strings))
		for i, s := range p.dec.Strings {
			reloc[uint32(i)] = uint32(interner.Intern(s))
		}
		relocations[oi] = reloc
	}

	bySignature := make(map[string]object.Function, len(globalSig))
	for oi, p := range parsedObjects {
		reloc := relocations[oi]
		for _, fn := range p.dec.Functions {
			words, err := relocateInstructions(fn.Instructions, reloc)
			if err != nil {
				errs.Push(diag.Diagnostic{
					Code: diag.CodeBadStringIndex, Message: err.Error(),
					Severity: diag.Error, Path: p.path, Offending: fn.Signature,
				})
				continue
			}
			bySignature[fn.Signature] = object.Function{
				Signature:      fn.Signature,
				ReturnSize:     fn.ReturnSize,
				ParameterSizes: fn.ParameterSizes,
				Instructions:   words,
			}
		}
	}
	if errs.HasErrors() {
		return Result{Errors: errs}
	}

	// Deterministic function order regardless of the order objects were
	// given on the command line, so two otherwise-identical builds
	// byte-for-byte agree: collect through the signature map with
	// maps.Values, then sort with slices.SortFunc, the same
	// sorted-iteration style internal/types uses for Names().
	functions := maps.Values(bySignature)
	slices.SortFunc(functions, func(a, b object.Function) bool {
		return a.Signature < b.Signature
	})

	img := object.Image{Strings: interner.Strings(), Functions: functions}
	data, err := object.Encode(object.HeaderExecutable, img)
	if err != nil {
		errs.Push(diag.Diagnostic{Code: diag.CodeHeaderMismatch, Message: err.Error(), Severity: diag.Critical})
		return Result{Errors: errs}
	}
	return Result{Bytes: data, Errors: errs}
}

// relocateInstructions walks words as a sequence of (opcode, operand...)
// commands and rewrites every StringIndex operand through reloc, leaving
// every other operand kind untouched, per spec.md §4.3 step 3.
func relocateInstructions(words []uint32, reloc map[uint32]uint32) ([]uint32, error) {
	out := make([]uint32, len(words))
	copy(out, words)

	i := 0
	for i < len(out) {
		op := isa.Opcode(out[i])
		layout, ok := isa.OperandLayout(op)
		if !ok {
			return nil, unknownOpcodeErr(op)
		}
		i++
		for _, kind := range layout {
			if i >= len(out) {
				return nil, truncatedInstructionErr(op)
			}
			if kind == isa.StringIndex {
				newIdx, ok := reloc[out[i]]
				if !ok {
					return nil, badStringIndexErr(out[i])
				}
				out[i] = newIdx
			}
			i++
		}
	}
	return out, nil
}

type unknownOpcodeErr isa.Opcode

func (e unknownOpcodeErr) Error() string { return "unknown opcode " + isa.Opcode(e).String() }

type truncatedInstructionErr isa.Opcode

func (e truncatedInstructionErr) Error() string {
	return "truncated operand list for " + isa.Opcode(e).String()
}

type badStringIndexErr uint32

func (e badStringIndexErr) Error() string {
	return "string index out of range in source object"
}
