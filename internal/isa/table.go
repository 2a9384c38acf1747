package isa

import "github.com/rafin-dev/cryo-lang/internal/token"

// entry pairs a mnemonic and its expected textual operand token kinds with
// the opcode it assembles to.
type entry struct {
	mnemonic string
	operands []token.Kind
	opcode   Opcode
}

// instructionTable is the Instruction Table of spec.md §2/§4.2: it maps
// (mnemonic, parameter-type-signature) -> opcode. It and operandLayouts in
// opcode.go are the two directions of the single shared table the
// assembler and linker both consult (§9 design note on avoiding
// divergence).
var instructionTable = []entry{
	{"STLS", nil, STLS},
	{"STLE", nil, STLE},
	{"PUSH", []token.Kind{token.Type, token.Id}, PUSH},
	{"POP", []token.Kind{token.U32}, POP},
	{"SETU32", []token.Kind{token.Id, token.U32}, SETU32},
	{"SETSTR", []token.Kind{token.Id, token.StringLiteral}, SETSTR},
	{"RETURN", nil, RETURN},
	{"CALL", []token.Kind{token.Id}, CALL_SIG},
	{"IMPL", []token.Kind{token.Id}, IMPL},
}

var mnemonicSet = func() map[string]bool {
	m := make(map[string]bool, len(instructionTable))
	for _, e := range instructionTable {
		m[e.mnemonic] = true
	}
	return m
}()

// IsInstruction reports whether word names any mnemonic in the table. This
// is handed to the tokenizer as the injected predicate it needs to
// classify Instruction tokens (package token has no dependency on isa).
func IsInstruction(word string) bool {
	return mnemonicSet[word]
}

// Lookup resolves a mnemonic plus the observed operand token kinds to an
// opcode. ok is false when no entry matches, the UNEXPECTED_TOKEN_IN_
// INSTRUCTION_PARAMETERS case in spec.md §4.2.
func Lookup(mnemonic string, operands []token.Kind) (Opcode, bool) {
	for _, e := range instructionTable {
		if e.mnemonic != mnemonic {
			continue
		}
		if kindsEqual(e.operands, operands) {
			return e.opcode, true
		}
	}
	return 0, false
}

// Mnemonic returns the textual mnemonic for an opcode (the inverse of
// Lookup's opcode side).
func Mnemonic(op Opcode) (string, bool) {
	for _, e := range instructionTable {
		if e.opcode == op {
			return e.mnemonic, true
		}
	}
	return "", false
}

func kindsEqual(a, b []token.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
