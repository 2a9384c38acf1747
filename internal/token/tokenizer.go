package token

import (
	"strings"

	"github.com/rafin-dev/cryo-lang/internal/diag"
)

// Tokenizer scans a read-only source buffer into Tokens (spec.md §4.1).
type Tokenizer struct {
	buf  []byte
	path string
	// isInstruction reports whether word is a registered mnemonic. Kept as
	// an injected predicate (rather than importing package isa directly)
	// so the Instruction Table stays the single owner of the mnemonic
	// list (§9 design note) and token has no dependency on isa.
	isInstruction func(word string) bool
}

// New returns a Tokenizer over buf. Tokens copy their text out of buf.
func New(buf []byte, path string, isInstruction func(word string) bool) *Tokenizer {
	return &Tokenizer{buf: buf, path: path, isInstruction: isInstruction}
}

// Tokenize runs the scan described in spec.md §4.1 and returns the token
// sequence plus whatever diagnostics were accumulated into errs. A missing
// string terminator aborts the scan early (Critical severity).
func (t *Tokenizer) Tokenize(errs *diag.Queue) []Token {
	var tokens []Token
	buf := t.buf
	n := len(buf)
	i := 0
	line := 1

	lineTextAt := func(pos int) string {
		start := pos
		for start > 0 && buf[start-1] != '\n' {
			start--
		}
		end := pos
		for end < n && buf[end] != '\n' {
			end++
		}
		return string(buf[start:end])
	}

	push := func(code, msg string, pos int, offending string, sev diag.Severity) {
		errs.Push(diag.Diagnostic{
			Code:      code,
			Message:   msg,
			Severity:  sev,
			Path:      t.path,
			Line:      line,
			LineText:  lineTextAt(pos),
			Offending: offending,
		})
	}

	for i < n {
		c := buf[i]

		switch {
		case c == '\n':
			line++
			i++
			continue
		case isSpace(c):
			i++
			continue
		case c == '#':
			for i < n && buf[i] != '\n' {
				i++
			}
			continue
		case c == '"':
			start := i
			startLine := line
			j := i + 1
			for j < n && buf[j] != '"' {
				if buf[j] == '\n' {
					line++
				}
				j++
			}
			if j >= n {
				push(diag.CodeStringLiteralMissingEnd, "string literal is missing a closing \"", start, string(buf[start:n]), diag.Critical)
				return tokens
			}
			tokens = append(tokens, Token{Kind: StringLiteral, Text: string(buf[i+1 : j]), Line: startLine})
			i = j + 1
			continue
		case c == ',':
			tokens = append(tokens, Token{Kind: Separator, Text: ",", Line: line})
			i++
			continue
		case c == ';':
			tokens = append(tokens, Token{Kind: EndCommand, Text: ";", Line: line})
			i++
			continue
		case c == '{':
			tokens = append(tokens, Token{Kind: StartBody, Text: "{", Line: line})
			i++
			continue
		case c == '}':
			tokens = append(tokens, Token{Kind: EndBody, Text: "}", Line: line})
			i++
			continue
		case c == '-' && i+1 < n && buf[i+1] == '>':
			tokens = append(tokens, Token{Kind: ReturnTypeDecl, Text: "->", Line: line})
			i += 2
			continue
		case c == '@':
			j := i + 1
			for j < n && isWordChar(buf[j]) {
				j++
			}
			tokens = append(tokens, Token{Kind: Type, Text: string(buf[i:j]), Line: line})
			i = j
			continue
		case c == '$':
			j := i + 1
			for j < n && isWordChar(buf[j]) {
				j++
			}
			tokens = append(tokens, Token{Kind: Id, Text: string(buf[i:j]), Line: line})
			i = j
			continue
		}

		if isWordChar(c) {
			// A word that starts with a digit is a numeric literal and may
			// contain '.'; classifyNumeric decides whether its dots are legal.
			numeric := isDigit(c)
			j := i
			for j < n && (isWordChar(buf[j]) || (numeric && buf[j] == '.')) {
				j++
			}
			word := string(buf[i:j])
			if word == "fn" {
				tokens = append(tokens, Token{Kind: FunctionDecl, Text: word, Line: line})
				i = j
				continue
			}
			kind, ok, multipleDots := classify(word, t.isInstruction)
			if !ok {
				if multipleDots {
					push(diag.CodeMultipleDotsInValue, "numeric literal has more than one '.'", i, word, diag.Error)
				} else {
					push(diag.CodeCouldNotDetermineTokenType, "could not determine the type of this token", i, word, diag.Error)
				}
			} else {
				tokens = append(tokens, Token{Kind: kind, Text: word, Line: line})
			}
			i = j
			continue
		}

		// Lone character that is neither whitespace, punctuation, a sigil,
		// nor a valid word character.
		push(diag.CodeInvalidCharacterInIDOrType, "invalid character", i, string(c), diag.Error)
		i++
	}

	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '_' || c == ':' || c == '*'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// classify resolves an identifier-word to a Token kind per spec.md §4.1
// rule 8. ok is false when the word could not be classified; when ok is
// false, multipleDots distinguishes MULTIPLE_DOTS_IN_VALUE from the
// generic COULD_NOT_DETERMINE_TOKEN_TYPE.
func classify(word string, isInstruction func(string) bool) (kind Kind, ok bool, multipleDots bool) {
	if len(word) > 0 && isDigit(word[0]) {
		return classifyNumeric(word)
	}
	if isInstruction != nil && isInstruction(word) {
		return Instruction, true, false
	}
	return 0, false, false
}

func classifyNumeric(word string) (Kind, bool, bool) {
	if strings.Count(word, ".") >= 2 {
		return 0, false, true
	}
	for suffix, kind := range numericSuffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		digits := word[:len(word)-len(suffix)]
		dotIdx := strings.IndexByte(digits, '.')
		isFloatKind := kind == F32 || kind == F64
		if dotIdx >= 0 {
			if !isFloatKind {
				continue
			}
			intPart, fracPart := digits[:dotIdx], digits[dotIdx+1:]
			if intPart == "" || fracPart == "" || !allDigits(intPart) || !allDigits(fracPart) {
				continue
			}
			return kind, true, false
		}
		if digits == "" || !allDigits(digits) {
			continue
		}
		return kind, true, false
	}
	return 0, false, false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
