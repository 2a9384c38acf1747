package token

import (
	"testing"

	"github.com/rafin-dev/cryo-lang/internal/diag"
)

func isInstr(word string) bool {
	return word == "PUSH" || word == "POP" || word == "STLS" || word == "STLE" ||
		word == "CALL" || word == "IMPL" || word == "RETURN" || word == "SETU32" || word == "SETSTR"
}

func tokenize(t *testing.T, src string) ([]Token, *diag.Queue) {
	t.Helper()
	var errs diag.Queue
	tk := New([]byte(src), "test.crya", isInstr)
	toks := tk.Tokenize(&errs)
	return toks, &errs
}

func TestNumericLiteralSingleFloatToken(t *testing.T) {
	toks, errs := tokenize(t, "3.14f32")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Items())
	}
	if len(toks) != 1 || toks[0].Kind != F32 || toks[0].Text != "3.14f32" {
		t.Fatalf("tokens = %+v, want single F32 token", toks)
	}
}

func TestNumericLiteralMultipleDots(t *testing.T) {
	_, errs := tokenize(t, "3..14f32")
	if !errs.HasErrors() {
		t.Fatalf("expected MULTIPLE_DOTS_IN_VALUE error")
	}
	if errs.Items()[0].Code != diag.CodeMultipleDotsInValue {
		t.Fatalf("code = %s, want %s", errs.Items()[0].Code, diag.CodeMultipleDotsInValue)
	}
}

func TestNumericLiteralMissingSuffixIsUnclassifiable(t *testing.T) {
	_, errs := tokenize(t, "3.14")
	if !errs.HasErrors() {
		t.Fatalf("expected COULD_NOT_DETERMINE_TOKEN_TYPE error")
	}
	if errs.Items()[0].Code != diag.CodeCouldNotDetermineTokenType {
		t.Fatalf("code = %s, want %s", errs.Items()[0].Code, diag.CodeCouldNotDetermineTokenType)
	}
}

func TestStringLiteralMissingEndIsCritical(t *testing.T) {
	_, errs := tokenize(t, `"unterminated`)
	if errs.Worst() != diag.Critical {
		t.Fatalf("worst = %v, want Critical", errs.Worst())
	}
	if errs.Items()[0].Code != diag.CodeStringLiteralMissingEnd {
		t.Fatalf("code = %s, want %s", errs.Items()[0].Code, diag.CodeStringLiteralMissingEnd)
	}
}

func TestIdAndTypeSigilsIncludeColonAndStar(t *testing.T) {
	toks, errs := tokenize(t, "IMPL $void::println_str::void*;")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Items())
	}
	want := []struct {
		kind Kind
		text string
	}{
		{Instruction, "IMPL"},
		{Id, "$void::println_str::void*"},
		{EndCommand, ";"},
	}
	if len(toks) != len(want) {
		t.Fatalf("tokens = %+v, want %d tokens", toks, len(want))
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Errorf("token[%d] = %+v, want {%v %q}", i, toks[i], w.kind, w.text)
		}
	}
}

func TestFunctionDeclAndStructuralTokens(t *testing.T) {
	toks, errs := tokenize(t, "fn $main @void -> @void {\n}")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Items())
	}
	wantKinds := []Kind{FunctionDecl, Id, Type, ReturnTypeDecl, Type, StartBody, EndBody}
	if len(toks) != len(wantKinds) {
		t.Fatalf("tokens = %+v, want %d", toks, len(wantKinds))
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Errorf("token[%d].Kind = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestCommentIsSkippedToEndOfLine(t *testing.T) {
	toks, errs := tokenize(t, "# a comment\nPUSH @void* $x;")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Items())
	}
	if len(toks) != 4 {
		t.Fatalf("tokens = %+v, want 4 (comment skipped)", toks)
	}
	if toks[0].Line != 2 {
		t.Fatalf("first real token line = %d, want 2", toks[0].Line)
	}
}

func TestInvalidCharacterReported(t *testing.T) {
	_, errs := tokenize(t, "PUSH ?;")
	if !errs.HasErrors() {
		t.Fatalf("expected invalid character error")
	}
	if errs.Items()[0].Code != diag.CodeInvalidCharacterInIDOrType {
		t.Fatalf("code = %s, want %s", errs.Items()[0].Code, diag.CodeInvalidCharacterInIDOrType)
	}
}
