// Package token implements the Tokenizer: it turns a read-only source
// buffer into an ordered sequence of Tokens (spec.md §4.1). Every Token's
// Text is copied out of the source buffer into its own Go string, so Tokens
// stay valid after the buffer is released.
package token

import "fmt"

// Kind identifies what a Token represents.
type Kind int

const (
	FunctionDecl Kind = iota
	StartBody
	EndBody
	Id
	ReturnTypeDecl
	Type
	Instruction
	EndCommand
	Separator
	StringLiteral

	U8
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
)

var kindNames = map[Kind]string{
	FunctionDecl:   "FunctionDecl",
	StartBody:      "StartBody",
	EndBody:        "EndBody",
	Id:             "Id",
	ReturnTypeDecl: "ReturnTypeDecl",
	Type:           "Type",
	Instruction:    "Instruction",
	EndCommand:     "EndCommand",
	Separator:      "Separator",
	StringLiteral:  "StringLiteral",
	U8:             "U8",
	U16:            "U16",
	U32:            "U32",
	U64:            "U64",
	I8:             "I8",
	I16:            "I16",
	I32:            "I32",
	I64:            "I64",
	F32:            "F32",
	F64:            "F64",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsNumeric reports whether k is one of the ten fixed-size numeric
// literal kinds.
func (k Kind) IsNumeric() bool {
	return k >= U8 && k <= F64
}

// numericSuffixes maps the textual suffix from spec.md §4.1 rule 8 to its
// Token kind.
var numericSuffixes = map[string]Kind{
	"u8":  U8,
	"u16": U16,
	"u32": U32,
	"u64": U64,
	"i8":  I8,
	"i16": I16,
	"i32": I32,
	"i64": I64,
	"f32": F32,
	"f64": F64,
}

// Token is a single lexical unit: a kind tag, a copy of its source text and
// the line it starts on. No column is stored; diagnostics locate the
// offending text within its line by searching for it.
type Token struct {
	Kind Kind
	Text string
	Line int
}
