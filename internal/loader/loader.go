// Package loader implements the Executable Loader of spec.md §4.4: it maps
// a .crye file into memory and builds the function table the interpreter
// dispatches against.
package loader

import (
	"fmt"

	"github.com/rafin-dev/cryo-lang/internal/object"
)

// CryoFunction is one loaded function record, borrowing its signature
// string from the owning Image's interned string table.
type CryoFunction struct {
	Signature        string
	EntryWordIndex   int
	InstructionCount int
	ReturnSize       uint32
	ParameterSizes   []uint32
}

// Image is a loaded executable: its string table, its function records and
// the two lookup maps spec.md §4.4 requires (signature -> index,
// entry-word-offset -> index), plus the raw instruction words every
// function's code was decoded from (the interpreter indexes into this
// directly rather than re-walking the file).
type Image struct {
	Strings        []string
	Functions      []CryoFunction
	Instructions   [][]uint32 // parallel to Functions
	bySignature    map[string]int
	byEntryIndex   map[int]int
	closer         func() error
}

// minSize is the smallest input decode accepts: an 8-byte header plus one
// 4-byte word. Anything shorter is rejected before the header is checked.
const minSize = 12

// Close releases any OS resources the platform-specific open path
// acquired (e.g. an mmap). It is always safe to call, even on an Image
// returned by the portable fallback.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	return img.closer()
}

// FindBySignature resolves a function by its canonical signature string.
func (img *Image) FindBySignature(sig string) (CryoFunction, int, bool) {
	idx, ok := img.bySignature[sig]
	if !ok {
		return CryoFunction{}, 0, false
	}
	return img.Functions[idx], idx, true
}

// FindByEntryWordIndex resolves a function by the absolute word offset its
// code begins at.
func (img *Image) FindByEntryWordIndex(entry int) (CryoFunction, int, bool) {
	idx, ok := img.byEntryIndex[entry]
	if !ok {
		return CryoFunction{}, 0, false
	}
	return img.Functions[idx], idx, true
}

// decode shares the header/size validation and table construction every
// platform-specific Open implementation needs once it has the raw bytes
// in hand.
func decode(data []byte, closer func() error) (*Image, error) {
	if len(data) < minSize {
		return nil, fmt.Errorf("loader: executable too small (%d bytes, need at least %d)", len(data), minSize)
	}
	dec, err := object.Decode(data, object.HeaderExecutable)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	img := &Image{
		Strings:      dec.Strings,
		bySignature:  make(map[string]int, len(dec.Functions)),
		byEntryIndex: make(map[int]int, len(dec.Functions)),
		closer:       closer,
	}
	for i, fn := range dec.Functions {
		cf := CryoFunction{
			Signature:        fn.Signature,
			EntryWordIndex:   fn.EntryWordIndex,
			InstructionCount: len(fn.Instructions),
			ReturnSize:       fn.ReturnSize,
			ParameterSizes:   fn.ParameterSizes,
		}
		img.Functions = append(img.Functions, cf)
		img.Instructions = append(img.Instructions, fn.Instructions)
		img.bySignature[fn.Signature] = i
		img.byEntryIndex[fn.EntryWordIndex] = i
	}
	return img, nil
}
