package diag

import (
	"bytes"
	"strings"
	"testing"
)

func TestQueueWorstLatchesHighestSeverity(t *testing.T) {
	var q Queue
	q.Push(Diagnostic{Code: "EA-0x1001", Severity: Warning})
	if q.Worst() != Warning {
		t.Fatalf("worst = %v, want Warning", q.Worst())
	}
	q.Push(Diagnostic{Code: "EA-0x1002", Severity: Error})
	if q.Worst() != Error {
		t.Fatalf("worst = %v, want Error", q.Worst())
	}
	// A later, lower-severity push must not pull the latch back down.
	q.Push(Diagnostic{Code: "EA-0x1003", Severity: Warning})
	if q.Worst() != Error {
		t.Fatalf("worst = %v, want Error after lower push", q.Worst())
	}
}

func TestQueueCriticalAndHasErrors(t *testing.T) {
	var q Queue
	if q.Critical() || q.HasErrors() {
		t.Fatalf("empty queue should report no critical and no errors")
	}
	q.Push(Diagnostic{Severity: Warning})
	if q.HasErrors() {
		t.Fatalf("warning-only queue should not HasErrors")
	}
	q.Push(Diagnostic{Severity: Critical})
	if !q.Critical() || !q.HasErrors() {
		t.Fatalf("queue with a Critical push should report both Critical and HasErrors")
	}
}

func TestQueueErrFoldsOnlyErrorAndWorse(t *testing.T) {
	var q Queue
	q.Push(Diagnostic{Code: "W", Message: "warn", Severity: Warning})
	if err := q.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil for warning-only queue", err)
	}
	q.Push(Diagnostic{Code: "E", Message: "boom", Severity: Error})
	err := q.Err()
	if err == nil {
		t.Fatalf("Err() = nil, want non-nil once an Error was pushed")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Err() = %q, want it to mention the Error diagnostic", err.Error())
	}
	if strings.Contains(err.Error(), "warn") {
		t.Fatalf("Err() = %q, should not fold Warning-severity diagnostics", err.Error())
	}
}

func TestDiagnosticRenderUnderlinesOffending(t *testing.T) {
	d := Diagnostic{
		Code:      "EA-0x1002",
		Path:      "main.crya",
		Line:      3,
		LineText:  "PUSH @void* $msg;",
		Offending: "@void*",
		Message:   "could not determine token type",
	}
	var buf bytes.Buffer
	d.Render(&buf)
	out := buf.String()
	if !strings.Contains(out, "<@void*>") {
		t.Fatalf("Render() = %q, want offending text bracketed", out)
	}
	if !strings.Contains(out, "main.crya at line 3") {
		t.Fatalf("Render() = %q, want path and line", out)
	}
}

func TestQueueRenderWritesEveryItem(t *testing.T) {
	var q Queue
	q.Push(Diagnostic{Code: "A", Path: "a.crya", Line: 1, LineText: "x", Message: "first"})
	q.Push(Diagnostic{Code: "B", Path: "b.crya", Line: 2, LineText: "y", Message: "second"})
	var buf bytes.Buffer
	q.Render(&buf)
	out := buf.String()
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("Render() = %q, want both diagnostics", out)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}
