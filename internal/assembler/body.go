package assembler

import (
	"strconv"
	"strings"

	"github.com/rafin-dev/cryo-lang/internal/diag"
	"github.com/rafin-dev/cryo-lang/internal/isa"
	"github.com/rafin-dev/cryo-lang/internal/object"
	"github.com/rafin-dev/cryo-lang/internal/token"
	"github.com/rafin-dev/cryo-lang/internal/types"
	"github.com/rafin-dev/cryo-lang/internal/varstack"
)

// assembleBody is Pass C: it walks one function's body tokens, grouping
// them into (instruction, operand...) commands terminated by ';', and
// emits the opcode plus operand words described by isa.OperandLayout.
func assembleBody(def functionDef, tt *types.Table, interner *object.Interner, errs *diag.Queue, path string, source []byte) []uint32 {
	vs := varstack.New()
	vs.SeedFunction(def.ReturnSize, def.ParameterSizes)

	push := func(code, msg string, tok token.Token, sev diag.Severity) {
		errs.Push(diag.Diagnostic{
			Code: code, Message: msg, Severity: sev, Path: path,
			Line: tok.Line, LineText: lineText(source, tok.Line), Offending: tok.Text,
		})
	}

	toks := def.Body
	n := len(toks)
	var words []uint32

	i := 0
	for i < n {
		tok := toks[i]
		if tok.Kind != token.Instruction {
			push(diag.CodeUnexpectedTokenInParameters, "expected an instruction", tok, diag.Error)
			i++
			continue
		}
		mnemonic := tok.Text
		i++

		var operands []token.Token
		for i < n && toks[i].Kind != token.EndCommand && toks[i].Kind != token.Instruction && toks[i].Kind != token.EndBody {
			if toks[i].Kind == token.Separator {
				i++
				continue
			}
			operands = append(operands, toks[i])
			i++
		}

		if i < n && toks[i].Kind == token.EndCommand {
			i++
		} else {
			push(diag.CodeMissingSemicolon, "missing ';' after instruction", tok, diag.Error)
		}

		kinds := make([]token.Kind, len(operands))
		for k, o := range operands {
			kinds[k] = o.Kind
		}
		opcode, ok := isa.Lookup(mnemonic, kinds)
		if !ok {
			push(diag.CodeUnexpectedTokenInParameters, "no instruction '"+mnemonic+"' matches the given operands", tok, diag.Error)
			continue
		}

		emitted, errTok, err := emit(opcode, operands, tt, vs, interner)
		if err != nil {
			push(codeFor(err), err.Error(), errTok, diag.Error)
			continue
		}
		words = append(words, uint32(opcode))
		words = append(words, emitted...)
	}

	return words
}

func codeFor(err error) string {
	switch err {
	case varstack.ErrDuplicateVariable:
		return diag.CodeDuplicateVariable
	case varstack.ErrPopEmpty:
		return diag.CodePopEmpty
	case varstack.ErrLayerUnderflow:
		return diag.CodeLayerUnderflow
	case varstack.ErrVariableNotFound:
		return diag.CodeVariableNotFound
	default:
		return diag.CodeUnknownType
	}
}

// emit computes the operand words that follow opcode in the wire format,
// given the textual operand tokens as written in the .crya source.
func emit(op isa.Opcode, operands []token.Token, tt *types.Table, vs *varstack.Stack, interner *object.Interner) ([]uint32, token.Token, error) {
	var zero token.Token
	switch op {
	case isa.STLS:
		vs.OpenLayer()
		return nil, zero, nil

	case isa.STLE:
		if _, err := vs.CloseLayer(); err != nil {
			return nil, opTok(operands, zero), err
		}
		return nil, zero, nil

	case isa.PUSH:
		typeTok, idTok := operands[0], operands[1]
		size, ok := tt.Size(typeTok.Text)
		if !ok {
			return nil, typeTok, unknownType(typeTok.Text)
		}
		if err := vs.Push(idTok.Text, size); err != nil {
			return nil, idTok, err
		}
		return []uint32{size}, zero, nil

	case isa.POP:
		v, err := parseU32(operands[0])
		if err != nil {
			return nil, operands[0], err
		}
		if err := vs.Pop(v); err != nil {
			return nil, operands[0], err
		}
		return []uint32{v}, zero, nil

	case isa.SETU32:
		idTok, valTok := operands[0], operands[1]
		pos, err := vs.Position(idTok.Text)
		if err != nil {
			return nil, idTok, err
		}
		val, err := parseU32(valTok)
		if err != nil {
			return nil, valTok, err
		}
		return []uint32{pos, val}, zero, nil

	case isa.SETSTR:
		idTok, strTok := operands[0], operands[1]
		pos, err := vs.Position(idTok.Text)
		if err != nil {
			return nil, idTok, err
		}
		idx := interner.Intern(strTok.Text)
		return []uint32{pos, uint32(idx)}, zero, nil

	case isa.RETURN:
		return nil, zero, nil

	case isa.CALL_SIG, isa.IMPL:
		idTok := operands[0]
		idx := interner.Intern(idTok.Text)
		return []uint32{uint32(idx)}, zero, nil
	}

	return nil, zero, unknownType("opcode " + op.String())
}

func opTok(operands []token.Token, fallback token.Token) token.Token {
	if len(operands) > 0 {
		return operands[0]
	}
	return fallback
}

type unknownTypeErr string

func (e unknownTypeErr) Error() string { return "unknown type " + string(e) }

func unknownType(name string) error { return unknownTypeErr(name) }

// parseU32 extracts the numeric value out of a U32 token's text, stripping
// the "u32" suffix spec.md §4.1 rule 8 attaches to every numeric literal.
func parseU32(tok token.Token) (uint32, error) {
	digits := strings.TrimSuffix(tok.Text, "u32")
	v, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
