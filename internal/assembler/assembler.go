// Package assembler implements the three ordered passes of spec.md §4.2:
// string-literal harvest, function validation, and body assembly, then
// serializes the result into a .cryi object (internal/object).
package assembler

import (
	"github.com/samber/lo"

	"github.com/rafin-dev/cryo-lang/internal/diag"
	"github.com/rafin-dev/cryo-lang/internal/isa"
	"github.com/rafin-dev/cryo-lang/internal/object"
	"github.com/rafin-dev/cryo-lang/internal/token"
	"github.com/rafin-dev/cryo-lang/internal/types"
)

// Result is the outcome of Assemble: either Bytes holds a valid .cryi
// image, or Errors holds Error-or-worse diagnostics and Bytes is nil.
type Result struct {
	Bytes  []byte
	Errors *diag.Queue
}

// Assemble runs the tokenizer followed by the three assembler passes over
// source and serializes the result as a .cryi object.
func Assemble(source []byte, path string, typeTable *types.Table) Result {
	errs := &diag.Queue{}

	tz := token.New(source, path, isa.IsInstruction)
	tokens := tz.Tokenize(errs)
	if errs.Critical() {
		return Result{Errors: errs}
	}

	interner := object.NewInterner()
	harvestStrings(tokens, interner)

	defs := parseFunctions(tokens, typeTable, errs, path, source)
	if errs.HasErrors() {
		return Result{Errors: errs}
	}

	funcs := make([]object.Function, 0, len(defs))
	for _, def := range defs {
		// Every function's own canonical signature is added to the string
		// table per spec.md §4.2, not just the ones other functions call.
		interner.Intern(def.Signature)
		words := assembleBody(def, typeTable, interner, errs, path, source)
		funcs = append(funcs, object.Function{
			Signature:      def.Signature,
			ReturnSize:     def.ReturnSize,
			ParameterSizes: def.ParameterSizes,
			Instructions:   words,
		})
	}
	if errs.HasErrors() {
		return Result{Errors: errs}
	}

	img := object.Image{Strings: interner.Strings(), Functions: funcs}
	data, err := object.Encode(object.HeaderObject, img)
	if err != nil {
		errs.Push(diag.Diagnostic{Code: diag.CodeInvalidFunctionDefinition, Message: err.Error(), Severity: diag.Critical, Path: path})
		return Result{Errors: errs}
	}
	return Result{Bytes: data, Errors: errs}
}

// harvestStrings is Pass A: every Id not immediately preceded by a
// FunctionDecl, plus every StringLiteral, is interned. Candidates are
// deduplicated with lo.Uniq before interning, mirroring the "strings are
// deduplicated" requirement in spec.md §4.2 (the Interner itself also
// dedupes; this keeps the harvest step's intent explicit and matches the
// generics-heavy dedup style borrowed from ajroetker-goat).
func harvestStrings(tokens []token.Token, interner *object.Interner) {
	var candidates []string
	for i, tok := range tokens {
		switch tok.Kind {
		case token.Id:
			if i == 0 || tokens[i-1].Kind != token.FunctionDecl {
				candidates = append(candidates, tok.Text)
			}
		case token.StringLiteral:
			candidates = append(candidates, tok.Text)
		}
	}
	for _, s := range lo.Uniq(candidates) {
		interner.Intern(s)
	}
}

// functionDef is a validated function, ready for Pass C body assembly.
type functionDef struct {
	Signature      string
	ReturnSize     uint32
	ParameterSizes []uint32
	Body           []token.Token
}

func stripSigil(s string) string {
	if s == "" {
		return s
	}
	return s[1:]
}

// parseFunctions is Pass B: validates every function definition in the
// token stream and returns the resulting records.
func parseFunctions(tokens []token.Token, tt *types.Table, errs *diag.Queue, path string, source []byte) []functionDef {
	var defs []functionDef
	i := 0
	n := len(tokens)

	lineOf := func(tok token.Token) (int, string) {
		return tok.Line, lineText(source, tok.Line)
	}

	pushAt := func(code, msg string, tok token.Token, sev diag.Severity) {
		line, text := lineOf(tok)
		errs.Push(diag.Diagnostic{Code: code, Message: msg, Severity: sev, Path: path, Line: line, LineText: text, Offending: tok.Text})
	}

	for i < n {
		if tokens[i].Kind != token.FunctionDecl {
			pushAt(diag.CodeInvalidFunctionDefinition, "expected a function definition", tokens[i], diag.Error)
			i++
			continue
		}
		start := i
		i++ // consume 'fn'

		if i >= n || tokens[i].Kind != token.Id {
			if i >= n {
				pushAt(diag.CodeUnexpectedEnd, "unexpected end of input, expected a function name", tokens[start], diag.Error)
			} else {
				pushAt(diag.CodeInvalidFunctionDefinition, "expected a function name after 'fn'", tokens[i], diag.Error)
			}
			i = n
			break
		}
		nameTok := tokens[i]
		i++

		var paramTypeToks []token.Token
		for i < n && tokens[i].Kind == token.Type {
			paramTypeToks = append(paramTypeToks, tokens[i])
			i++
		}

		if i >= n {
			pushAt(diag.CodeUnexpectedEnd, "unexpected end of input, expected '->'", nameTok, diag.Error)
			break
		}
		if tokens[i].Kind != token.ReturnTypeDecl {
			pushAt(diag.CodeInvalidFunctionDefinition, "expected '->' before the return type", tokens[i], diag.Error)
			i++
			continue
		}
		i++ // consume '->'

		if i >= n || tokens[i].Kind != token.Type {
			if i >= n {
				pushAt(diag.CodeUnexpectedEnd, "unexpected end of input, expected a return type", nameTok, diag.Error)
			} else {
				pushAt(diag.CodeInvalidFunctionDefinition, "expected a return type", tokens[i], diag.Error)
			}
			i = n
			break
		}
		returnTypeTok := tokens[i]
		i++

		if i >= n {
			pushAt(diag.CodeUnexpectedEnd, "unexpected end of input, expected '{'", nameTok, diag.Error)
			break
		}
		if tokens[i].Kind != token.StartBody {
			pushAt(diag.CodeFunctionDefinitionMissing, "function is missing its body", tokens[i], diag.Error)
			i++
			continue
		}
		i++ // consume '{'

		bodyStart := i
		nested := false
		for i < n && tokens[i].Kind != token.EndBody {
			if tokens[i].Kind == token.FunctionDecl {
				pushAt(diag.CodeInvalidFunctionDefinition, "nested function definitions are not allowed", tokens[i], diag.Error)
				nested = true
				break
			}
			i++
		}
		if nested {
			// Recover at the nested 'fn' so the outer loop can attempt to
			// parse it as its own (still illegal, but keeps diagnostics
			// from cascading into a single giant failure).
			continue
		}
		if i >= n {
			pushAt(diag.CodeUnexpectedEnd, "unexpected end of input inside function body", nameTok, diag.Error)
			break
		}
		bodyEnd := i
		i++ // consume '}'

		returnSize, ok := tt.Size(returnTypeTok.Text)
		if !ok {
			pushAt(diag.CodeUnknownType, "unknown return type "+returnTypeTok.Text, returnTypeTok, diag.Error)
			continue
		}

		var paramSizes []uint32
		sigParts := make([]string, 0, len(paramTypeToks))
		paramsValid := true
		for _, pt := range paramTypeToks {
			size, ok := tt.Size(pt.Text)
			if !ok {
				pushAt(diag.CodeUnknownType, "unknown parameter type "+pt.Text, pt, diag.Error)
				paramsValid = false
				continue
			}
			if size != 0 {
				sigParts = append(sigParts, stripSigil(pt.Text))
				paramSizes = append(paramSizes, size)
			}
		}
		if !paramsValid {
			continue
		}

		sig := "$" + stripSigil(returnTypeTok.Text) + "::" + stripSigil(nameTok.Text)
		for _, p := range sigParts {
			sig += "::" + p
		}

		defs = append(defs, functionDef{
			Signature:      sig,
			ReturnSize:     returnSize,
			ParameterSizes: paramSizes,
			Body:           tokens[bodyStart:bodyEnd],
		})
	}

	return defs
}

func lineText(source []byte, line int) string {
	current := 1
	start := 0
	for i := 0; i < len(source); i++ {
		if current == line {
			start = i
			break
		}
		if source[i] == '\n' {
			current++
		}
	}
	end := start
	for end < len(source) && source[end] != '\n' {
		end++
	}
	if start > len(source) {
		return ""
	}
	return string(source[start:end])
}
