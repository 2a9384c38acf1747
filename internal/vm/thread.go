package vm

import (
	"fmt"

	"github.com/rafin-dev/cryo-lang/internal/diag"
	"github.com/rafin-dev/cryo-lang/internal/isa"
	"github.com/rafin-dev/cryo-lang/internal/loader"
)

// Runtime fault codes, re-exported from internal/diag so callers outside
// this package never need to import diag just to compare a Fault's Code.
const (
	CodeStackOverflow       = diag.CodeStackOverflow
	CodeBadStringIndex      = diag.CodeBadStringIndex
	CodeBadFunctionIndex    = diag.CodeBadFunctionIndex
	CodeParamReturnMismatch = diag.CodeParamReturnMismatch
	CodeUnknownOpcode       = diag.CodeUnknownOpcode
	CodeMissingIntrinsic    = diag.CodeMissingIntrinsic
	CodeFellOffEnd          = diag.CodeFellOffEnd
	CodeNullPointer         = diag.CodeNullPointer
)

// Fault is a runtime error that moves a Thread to the Faulted state.
type Fault struct {
	Code      string
	Message   string
	Signature string
	PC        int
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s in %s at word %d: %s", f.Code, f.Signature, f.PC, f.Message)
}

// State is a Thread's position in its state machine: Idle -> Running ->
// (Halted | Faulted).
type State int

const (
	Idle State = iota
	Running
	Halted
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Thread owns a Runtime Stack and executes one function, following calls
// transitively, until a RETURN with an empty call stack (spec.md §4.5).
// execute() (Run) is not re-entrant on a given Thread.
type Thread struct {
	img         *loader.Image
	intrinsics  *Registry
	stack       *runtimeStack
	state       State
	currentFunc int
	pc          int
	lastFault   *Fault
}

// NewThread returns a Thread reading code and strings from img, with
// runtime stack capacity bytes (DefaultCapacity if zero), dispatching
// IMPL through intrinsics.
func NewThread(img *loader.Image, intrinsics *Registry, capacity uint32) *Thread {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Thread{
		img:        img,
		intrinsics: intrinsics,
		stack:      newRuntimeStack(capacity),
		state:      Idle,
	}
}

// State reports the Thread's current state.
func (t *Thread) State() State { return t.state }

// LastFault returns the fault that moved the Thread to Faulted, or nil.
func (t *Thread) LastFault() *Fault { return t.lastFault }

// Run resolves entrySignature in the loaded image and executes it to
// completion (Halted) or until a fault (Faulted). entrySignature must name
// a function taking no parameters; spec.md's CLI boundary never threads
// process arguments into the entry call.
func (t *Thread) Run(entrySignature string) error {
	fn, idx, ok := t.img.FindBySignature(entrySignature)
	if !ok {
		return t.raise(CodeBadFunctionIndex, "entry point "+entrySignature+" not found")
	}
	if len(fn.ParameterSizes) != 0 {
		return t.raise(CodeParamReturnMismatch, "entry point "+entrySignature+" must take no parameters")
	}

	total := fn.ReturnSize
	if total != 0 {
		if t.stack.overflows(total) {
			return t.raise(CodeStackOverflow, "runtime stack too small for entry point's return slot")
		}
		t.stack.pushEntry(total)
	}

	t.stack.frames = append(t.stack.frames, callFrame{
		callerFunc:  -1,
		returnPC:    -1,
		frameBase:   0,
		entriesBase: len(t.stack.entries),
		stackTop:    t.stack.stackCounter,
		layersBase:  len(t.stack.layers),
	})
	t.currentFunc = idx
	t.pc = 0
	t.state = Running

	for t.state == Running {
		if err := t.step(); err != nil {
			return err
		}
	}
	if t.state == Faulted {
		return t.lastFault
	}
	return nil
}

func (t *Thread) raise(code, msg string) *Fault {
	sig := "<unknown>"
	if t.currentFunc >= 0 && t.currentFunc < len(t.img.Functions) {
		sig = t.img.Functions[t.currentFunc].Signature
	}
	f := &Fault{Code: code, Message: msg, Signature: sig, PC: t.pc}
	t.lastFault = f
	t.state = Faulted
	t.stack.entries = nil
	t.stack.layers = nil
	t.stack.frames = nil
	t.stack.stackCounter = 0
	return f
}

func (t *Thread) currentFrame() *callFrame {
	return &t.stack.frames[len(t.stack.frames)-1]
}

// fetchWord reads the word at t.pc in the current function's instruction
// stream and advances t.pc past it.
func (t *Thread) fetchWord() (uint32, bool) {
	words := t.img.Instructions[t.currentFunc]
	if t.pc >= len(words) {
		return 0, false
	}
	w := words[t.pc]
	t.pc++
	return w, true
}

// step executes exactly one instruction.
func (t *Thread) step() error {
	word, ok := t.fetchWord()
	if !ok {
		t.raise(CodeFellOffEnd, "execution ran past the last instruction without RETURN")
		return t.lastFault
	}
	op := isa.Opcode(word)
	layout, ok := isa.OperandLayout(op)
	if !ok {
		t.raise(CodeUnknownOpcode, fmt.Sprintf("unknown opcode 0x%x", word))
		return t.lastFault
	}
	operands := make([]uint32, len(layout))
	for i := range layout {
		w, ok := t.fetchWord()
		if !ok {
			t.raise(CodeFellOffEnd, "truncated instruction operands")
			return t.lastFault
		}
		operands[i] = w
	}

	switch op {
	case isa.STLS:
		t.stack.layers = append(t.stack.layers, 0)
		return nil

	case isa.STLE:
		if len(t.stack.layers) <= t.currentFrame().layersBase {
			t.raise(diag.CodeLayerUnderflow, "STLE with no open layer")
			return t.lastFault
		}
		count := t.stack.layers[len(t.stack.layers)-1]
		t.stack.layers = t.stack.layers[:len(t.stack.layers)-1]
		t.stack.popEntries(count)
		return nil

	case isa.PUSH:
		size := operands[0]
		if t.stack.overflows(size) {
			t.raise(CodeStackOverflow, fmt.Sprintf("stack overflow pushing %d bytes", size))
			return t.lastFault
		}
		t.stack.pushEntry(size)
		if n := len(t.stack.layers); n > 0 {
			t.stack.layers[n-1]++
		}
		return nil

	case isa.POP:
		count := operands[0]
		if uint32(len(t.stack.entries)) < count {
			t.raise(diag.CodePopEmpty, "POP count exceeds live entries")
			return t.lastFault
		}
		if n := len(t.stack.layers); n > 0 && uint32(t.stack.layers[n-1]) < count {
			t.raise(diag.CodePopEmpty, "POP count exceeds the current layer")
			return t.lastFault
		}
		t.stack.popEntries(int(count))
		if n := len(t.stack.layers); n > 0 {
			t.stack.layers[n-1] -= int(count)
		}
		return nil

	case isa.SETU32:
		slot, val := operands[0], operands[1]
		putU32(t.frameSlot(slot, 4), val)
		return nil

	case isa.SETSTR:
		slot, strIdx := operands[0], operands[1]
		if int(strIdx) >= len(t.img.Strings) {
			t.raise(CodeBadStringIndex, fmt.Sprintf("string index %d out of range", strIdx))
			return t.lastFault
		}
		putU64(t.frameSlot(slot, 8), storePointer(int(strIdx)))
		return nil

	case isa.RETURN:
		root := t.currentFrame().callerFunc == -1
		t.popFrame()
		if root {
			t.state = Halted
		}
		return nil

	case isa.CALL_SIG:
		return t.call(operands[0], false)

	case isa.IMPL:
		return t.call(operands[0], true)
	}

	t.raise(CodeUnknownOpcode, fmt.Sprintf("unhandled opcode %s", op))
	return t.lastFault
}

// frameSlot resolves a SETU32/SETSTR slot operand to bytes within the
// current frame.
func (t *Thread) frameSlot(index uint32, size uint32) []byte {
	return t.stack.slot(t.currentFrame().frameBase, index, size)
}

// paramBytes is the intrinsic-facing equivalent of frameSlot, used by
// HostFunc implementations to read their own parameters.
func (t *Thread) paramBytes(index uint32, size uint32) []byte {
	return t.frameSlot(index, size)
}

func (t *Thread) derefStringPointer(ptr uint64) (string, bool) {
	idx, ok := loadPointer(ptr)
	if !ok {
		return "", false
	}
	if idx >= len(t.img.Strings) {
		return "", false
	}
	return t.img.Strings[idx], true
}

func (t *Thread) fault(code, msg string) *Fault {
	return t.raise(code, msg)
}

// storePointer/loadPointer represent a void* that refers to an interned
// string as (string-table index + 1): zero stays reserved for a null
// pointer, matching the zero-initialized bytes a PUSHed-but-never-SETSTR'd
// slot already holds.
func storePointer(idx int) uint64 { return uint64(idx) + 1 }

func loadPointer(ptr uint64) (int, bool) {
	if ptr == 0 {
		return 0, false
	}
	return int(ptr - 1), true
}

// call implements the shared prologue of CALL_SIG and IMPL: resolve the
// target signature, validate the argument shape already on the stack,
// and push a call frame. If asIntrinsic, the callee runs synchronously as
// a host function instead of transferring bytecode control.
func (t *Thread) call(strIdx uint32, asIntrinsic bool) error {
	if int(strIdx) >= len(t.img.Strings) {
		t.raise(CodeBadStringIndex, fmt.Sprintf("string index %d out of range", strIdx))
		return t.lastFault
	}
	sig := t.img.Strings[strIdx]

	var returnSize uint32
	var paramSizes []uint32
	var calleeIdx int
	var intrinsic HostFunc

	if asIntrinsic {
		fn, ok := t.intrinsics.Lookup(sig)
		if !ok {
			t.raise(CodeMissingIntrinsic, "no intrinsic registered for "+sig)
			return t.lastFault
		}
		intrinsic = fn
		// Intrinsics describe their own shape through the same signature
		// grammar as ordinary functions; the registry trusts the caller's
		// operand validation to have matched it at assembly time, so only
		// the one built-in (void return, a single void* parameter) is
		// checked against the stack here.
		returnSize = 0
		paramSizes = []uint32{8}
	} else {
		fn, idx, ok := t.img.FindBySignature(sig)
		if !ok {
			t.raise(CodeBadFunctionIndex, "no function defined for "+sig)
			return t.lastFault
		}
		returnSize = fn.ReturnSize
		paramSizes = fn.ParameterSizes
		calleeIdx = idx
	}

	total := returnSize
	for _, p := range paramSizes {
		total += p
	}
	if uint32(len(t.stack.entries)) < uint32(len(paramSizes))+boolToUint32(returnSize != 0) {
		t.raise(CodeParamReturnMismatch, "not enough values on the stack for "+sig)
		return t.lastFault
	}
	if !t.validateArgs(returnSize, paramSizes) {
		t.raise(CodeParamReturnMismatch, "argument shape on the stack does not match "+sig)
		return t.lastFault
	}

	frame := callFrame{
		callerFunc:  t.currentFunc,
		returnPC:    t.pc,
		frameBase:   t.stack.stackCounter - total,
		entriesBase: len(t.stack.entries),
		stackTop:    t.stack.stackCounter,
		layersBase:  len(t.stack.layers),
	}
	t.stack.frames = append(t.stack.frames, frame)

	if asIntrinsic {
		if f := intrinsic(t); f != nil {
			return f
		}
		t.popFrame()
		return nil
	}

	t.currentFunc = calleeIdx
	t.pc = 0
	return nil
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// validateArgs checks that the tail of the live entries reads, bottom to
// top, {returnSize (if non-zero), paramSizes...}, per spec.md §4.5's
// CALL_SIG row.
func (t *Thread) validateArgs(returnSize uint32, paramSizes []uint32) bool {
	expect := make([]uint32, 0, 1+len(paramSizes))
	if returnSize != 0 {
		expect = append(expect, returnSize)
	}
	expect = append(expect, paramSizes...)
	if len(expect) == 0 {
		return true
	}
	entries := t.stack.entries
	if len(entries) < len(expect) {
		return false
	}
	tail := entries[len(entries)-len(expect):]
	for i, size := range expect {
		if tail[i] != size {
			return false
		}
	}
	return true
}

// popFrame implements the shared epilogue of RETURN and a completed IMPL
// call: discard everything the callee pushed beyond its own args/return
// slot, restore the caller, and pop the frame.
func (t *Thread) popFrame() {
	frame := t.stack.frames[len(t.stack.frames)-1]
	t.stack.frames = t.stack.frames[:len(t.stack.frames)-1]

	t.stack.layers = t.stack.layers[:frame.layersBase]
	t.stack.entries = t.stack.entries[:frame.entriesBase]
	t.stack.stackCounter = frame.stackTop

	t.currentFunc = frame.callerFunc
	t.pc = frame.returnPC
}
