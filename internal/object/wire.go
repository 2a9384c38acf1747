// Package object implements the shared binary layout described in
// spec.md §3: the header, string table and function-declaration/code
// sections common to both the intermediate object (.cryi) and the linked
// executable (.crye). The assembler writes one Image with header
// "CRYOINT\0"; the linker reads N such Images and writes a single Image
// with header "CRYOEXE\0". Byte packing follows the teacher's own manual
// little-endian helper style (std/compiler/elf_x64.go putU64/getU64)
// rather than encoding/binary, kept consistent across this package and
// internal/vm.
package object

import (
	"bytes"
	"fmt"
)

// Sentinel is the block-end marker from spec.md §3.
const Sentinel uint32 = 0xFFFFFFFF

const (
	HeaderObject     = "CRYOINT\x00"
	HeaderExecutable = "CRYOEXE\x00"
	headerSize       = 8
)

func putU32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func getU32(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}

// Function is one function record as laid out on the wire: a signature,
// its parameter/return sizes and its already-assembled instruction words
// (string-index operands inside Instructions are indices into the Image's
// own Strings table).
type Function struct {
	Signature      string
	ReturnSize     uint32
	ParameterSizes []uint32
	Instructions   []uint32
}

// Image is the decoded (or yet-to-be-encoded) contents of a .cryi/.crye
// file: an ordered string table plus an ordered function list. Decode
// also reports, per function, the word offset its code started at (see
// DecodedFunction); the loader turns that offset and the length of the
// decoded instructions into CryoFunction.EntryWordIndex / InstructionCount.
type Image struct {
	Strings   []string
	Functions []Function
}

// DecodedFunction augments Function with the instruction-start word index
// read from its declaration during Decode. The loader indexes functions by
// it (FindByEntryWordIndex); the linker works from Instructions alone.
type DecodedFunction struct {
	Function
	EntryWordIndex int
}

// Decoded is what Decode returns: the string table plus every function's
// wire position.
type Decoded struct {
	Strings   []string
	Functions []DecodedFunction
}

// Encode serializes img into the wire layout with the given 8-byte
// header magic ("CRYOINT\x00" or "CRYOEXE\x00"). Instruction words are
// written verbatim: callers (assembler/linker) are responsible for every
// string-index operand already pointing at img.Strings.
func Encode(header string, img Image) ([]byte, error) {
	if len(header) != headerSize {
		return nil, fmt.Errorf("object: header must be %d bytes, got %d", headerSize, len(header))
	}

	var buf bytes.Buffer
	buf.WriteString(header)

	// String table: NUL-terminated strings back to back, padded to a
	// 4-byte boundary, then the sentinel word.
	for _, s := range img.Strings {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	writeWord(&buf, Sentinel)

	stringIndex := make(map[string]uint32, len(img.Strings))
	for i, s := range img.Strings {
		if _, exists := stringIndex[s]; !exists {
			stringIndex[s] = uint32(i)
		}
	}

	// Function declarations, with a placeholder instruction-start word
	// index recorded for back-patching once the code section's actual
	// offsets are known (spec.md §4.2's two-pass fix-up).
	type patch struct {
		bufOffset int
	}
	patches := make([]patch, len(img.Functions))

	for i, fn := range img.Functions {
		sigIdx, ok := stringIndex[fn.Signature]
		if !ok {
			return nil, fmt.Errorf("object: signature %q not present in string table", fn.Signature)
		}
		writeWord(&buf, sigIdx)
		patches[i] = patch{bufOffset: buf.Len()}
		writeWord(&buf, 0) // instruction_start_word_index placeholder
		writeWord(&buf, uint32(len(fn.Instructions)))
		writeWord(&buf, fn.ReturnSize)
		for _, p := range fn.ParameterSizes {
			writeWord(&buf, p)
		}
		writeWord(&buf, Sentinel)
	}
	writeWord(&buf, Sentinel)

	bodyStart := headerSize

	// Code section.
	entryWords := make([]uint32, len(img.Functions))
	for i, fn := range img.Functions {
		wordIndex := (buf.Len() - bodyStart) / 4
		entryWords[i] = uint32(wordIndex)
		for _, w := range fn.Instructions {
			writeWord(&buf, w)
		}
		writeWord(&buf, Sentinel)
	}

	out := buf.Bytes()
	for i, p := range patches {
		putU32(out[p.bufOffset:p.bufOffset+4], entryWords[i])
	}
	return out, nil
}

func writeWord(buf *bytes.Buffer, v uint32) {
	var w [4]byte
	putU32(w[:], v)
	buf.Write(w[:])
}

// Decode parses data as an image, validating the header against
// wantHeader. Any mismatch is reported without attempting further
// decoding, per spec.md §8 invariant 6.
func Decode(data []byte, wantHeader string) (Decoded, error) {
	if len(data) < headerSize {
		return Decoded{}, fmt.Errorf("object: file too small (%d bytes)", len(data))
	}
	if string(data[:headerSize]) != wantHeader {
		return Decoded{}, fmt.Errorf("object: header mismatch: want %q, got %q", wantHeader, data[:headerSize])
	}
	body := data[headerSize:]

	strs, cursor, err := decodeStringTable(body)
	if err != nil {
		return Decoded{}, fmt.Errorf("object: string table: %w", err)
	}

	var functions []DecodedFunction
	for {
		if cursor+4 > len(body) {
			return Decoded{}, fmt.Errorf("object: function declarations run past end of file")
		}
		w := getU32(body[cursor : cursor+4])
		if w == Sentinel {
			cursor += 4
			break
		}
		sigIdx := w
		cursor += 4
		if cursor+12 > len(body) {
			return Decoded{}, fmt.Errorf("object: truncated function declaration")
		}
		startIdx := getU32(body[cursor : cursor+4])
		cursor += 4
		count := getU32(body[cursor : cursor+4])
		cursor += 4
		retSize := getU32(body[cursor : cursor+4])
		cursor += 4

		var params []uint32
		for {
			if cursor+4 > len(body) {
				return Decoded{}, fmt.Errorf("object: truncated parameter list")
			}
			p := getU32(body[cursor : cursor+4])
			cursor += 4
			if p == Sentinel {
				break
			}
			params = append(params, p)
		}

		if int(sigIdx) >= len(strs) {
			return Decoded{}, fmt.Errorf("object: signature index %d out of range", sigIdx)
		}
		functions = append(functions, DecodedFunction{
			Function: Function{
				Signature:      strs[sigIdx],
				ReturnSize:     retSize,
				ParameterSizes: params,
			},
			EntryWordIndex: int(startIdx),
		})
		_ = count // informational; code below re-derives boundaries via sentinels
	}

	// Code section: functions in declaration order, each terminated by a
	// sentinel word.
	for i := range functions {
		start := cursor
		for {
			if start+4 > len(body) {
				return Decoded{}, fmt.Errorf("object: truncated code section")
			}
			w := getU32(body[start : start+4])
			start += 4
			if w == Sentinel {
				break
			}
			functions[i].Instructions = append(functions[i].Instructions, w)
		}
		cursor = start
	}

	return Decoded{Strings: strs, Functions: functions}, nil
}

// decodeStringTable parses the NUL-terminated string table at the start of
// body and returns the strings plus the byte offset of the word right after
// the block-end sentinel.
//
// The table is written as concatenated NUL-terminated strings, then 0-3
// padding NUL bytes to reach the next 4-byte boundary, then the sentinel
// word. A padding NUL is bit-for-bit identical to the terminator of a real
// empty string, so splitting the whole padded region on every NUL (as a
// naive decoder would) fabricates one spurious "" entry per padding byte.
// Instead, after each string we check whether the remaining bytes up to the
// next aligned offset are all zero and immediately precede the sentinel: if
// so, they're padding and the table ends there, rather than one more
// zero-length string.
func decodeStringTable(body []byte) ([]string, int, error) {
	var strs []string
	cursor := 0
	for {
		aligned := (cursor + 3) &^ 3
		if aligned+4 <= len(body) && getU32(body[aligned:aligned+4]) == Sentinel && allZero(body[cursor:aligned]) {
			return strs, aligned + 4, nil
		}
		end := cursor
		for end < len(body) && body[end] != 0 {
			end++
		}
		if end >= len(body) {
			return nil, 0, fmt.Errorf("missing block-end sentinel")
		}
		strs = append(strs, string(body[cursor:end]))
		cursor = end + 1
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
