package isa

import (
	"testing"

	"github.com/rafin-dev/cryo-lang/internal/token"
)

func TestIsInstructionRecognizesEveryMnemonic(t *testing.T) {
	for _, m := range []string{"STLS", "STLE", "PUSH", "POP", "SETU32", "SETSTR", "RETURN", "CALL", "IMPL"} {
		if !IsInstruction(m) {
			t.Errorf("IsInstruction(%q) = false, want true", m)
		}
	}
	if IsInstruction("main") {
		t.Errorf("IsInstruction(\"main\") = true, want false")
	}
}

func TestLookupMatchesOperandShape(t *testing.T) {
	op, ok := Lookup("PUSH", []token.Kind{token.Type, token.Id})
	if !ok || op != PUSH {
		t.Fatalf("Lookup(PUSH, Type,Id) = %v,%v want PUSH,true", op, ok)
	}
	if _, ok := Lookup("PUSH", []token.Kind{token.Id}); ok {
		t.Fatalf("Lookup(PUSH, Id) should not match, wrong operand shape")
	}
	if _, ok := Lookup("NOPE", nil); ok {
		t.Fatalf("Lookup of unknown mnemonic should fail")
	}
}

func TestMnemonicIsLookupInverse(t *testing.T) {
	for _, op := range []Opcode{STLS, STLE, PUSH, POP, SETU32, SETSTR, RETURN, CALL_SIG, IMPL} {
		m, ok := Mnemonic(op)
		if !ok {
			t.Fatalf("Mnemonic(%v) not found", op)
		}
		var operands []token.Kind
		switch op {
		case PUSH:
			operands = []token.Kind{token.Type, token.Id}
		case POP:
			operands = []token.Kind{token.U32}
		case SETU32:
			operands = []token.Kind{token.Id, token.U32}
		case SETSTR:
			operands = []token.Kind{token.Id, token.StringLiteral}
		case CALL_SIG, IMPL:
			operands = []token.Kind{token.Id}
		}
		got, ok := Lookup(m, operands)
		if !ok || got != op {
			t.Errorf("Lookup(%q, ...) = %v,%v, want %v,true", m, got, ok, op)
		}
	}
}

func TestOperandLayoutMatchesTable(t *testing.T) {
	cases := []struct {
		op   Opcode
		want Layout
	}{
		{STLS, Layout{}},
		{PUSH, Layout{Word}},
		{SETSTR, Layout{VariableSlot, StringIndex}},
		{CALL_SIG, Layout{StringIndex}},
		{IMPL, Layout{StringIndex}},
	}
	for _, c := range cases {
		got, ok := OperandLayout(c.op)
		if !ok {
			t.Fatalf("OperandLayout(%v) not found", c.op)
		}
		if len(got) != len(c.want) {
			t.Fatalf("OperandLayout(%v) = %v, want %v", c.op, got, c.want)
		}
		for i := range c.want {
			if got[i] != c.want[i] {
				t.Errorf("OperandLayout(%v)[%d] = %v, want %v", c.op, i, got[i], c.want[i])
			}
		}
	}
}

func TestOperandLayoutUnknownOpcode(t *testing.T) {
	if _, ok := OperandLayout(Opcode(0xDEADBEEF)); ok {
		t.Fatalf("OperandLayout of unknown opcode reported ok")
	}
}

func TestSentinelNeverMatchesAnOpcode(t *testing.T) {
	if _, ok := Mnemonic(Opcode(Sentinel)); ok {
		t.Fatalf("Sentinel must not collide with a real opcode")
	}
}
