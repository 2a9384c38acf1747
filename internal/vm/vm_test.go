package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rafin-dev/cryo-lang/internal/assembler"
	"github.com/rafin-dev/cryo-lang/internal/linker"
	"github.com/rafin-dev/cryo-lang/internal/loader"
	"github.com/rafin-dev/cryo-lang/internal/types"
)

func buildImage(t *testing.T, sources map[string]string) *loader.Image {
	t.Helper()
	var objects []linker.ObjectFile
	for path, src := range sources {
		res := assembler.Assemble([]byte(src), path, types.Default())
		if res.Errors.HasErrors() {
			t.Fatalf("assemble %s: %v", path, res.Errors.Items())
		}
		objects = append(objects, linker.ObjectFile{Path: path, Data: res.Bytes})
	}
	linked := linker.Link(objects)
	if linked.Errors.HasErrors() {
		t.Fatalf("link: %v", linked.Errors.Items())
	}
	path := filepath.Join(t.TempDir(), "main.crye")
	if err := os.WriteFile(path, linked.Bytes, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	img, err := loader.Open(path)
	if err != nil {
		t.Fatalf("loader.Open: %v", err)
	}
	t.Cleanup(func() { img.Close() })
	return img
}

const helloSrc = `fn $main @void -> @void {
  STLS;
  PUSH @void* $msg;
  SETSTR $msg "Hello, world!";
  IMPL $void::println_str::void*;
  STLE;
  RETURN;
}
`

func TestRunHelloWorldPrintsAndHalts(t *testing.T) {
	img := buildImage(t, map[string]string{"hello.crya": helloSrc})
	var out bytes.Buffer
	thread := NewThread(img, DefaultRegistry(&out), 0)
	if err := thread.Run("$void::main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if thread.State() != Halted {
		t.Fatalf("State() = %v, want Halted", thread.State())
	}
	if strings.TrimSpace(out.String()) != "Hello, world!" {
		t.Fatalf("output = %q, want %q", out.String(), "Hello, world!")
	}
}

const multiSrc = `fn $hello @void -> @void {
  STLS;
  PUSH @void* $msg;
  SETSTR $msg "Hi from hello!";
  IMPL $void::println_str::void*;
  STLE;
  RETURN;
}

fn $main @void -> @void {
  STLS;
  CALL $void::hello;
  STLE;
  RETURN;
}
`

func TestRunUserCallTransfersControlAndReturns(t *testing.T) {
	img := buildImage(t, map[string]string{"multi.crya": multiSrc})
	var out bytes.Buffer
	thread := NewThread(img, DefaultRegistry(&out), 0)
	if err := thread.Run("$void::main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if thread.State() != Halted {
		t.Fatalf("State() = %v, want Halted", thread.State())
	}
	if strings.TrimSpace(out.String()) != "Hi from hello!" {
		t.Fatalf("output = %q, want %q", out.String(), "Hi from hello!")
	}
}

func TestRunMissingIntrinsicFaults(t *testing.T) {
	img := buildImage(t, map[string]string{"hello.crya": helloSrc})
	thread := NewThread(img, NewRegistry(), 0)
	err := thread.Run("$void::main")
	if err == nil {
		t.Fatalf("expected a fault for an unregistered intrinsic")
	}
	if thread.State() != Faulted {
		t.Fatalf("State() = %v, want Faulted", thread.State())
	}
	if thread.LastFault().Code != CodeMissingIntrinsic {
		t.Fatalf("fault code = %s, want %s", thread.LastFault().Code, CodeMissingIntrinsic)
	}
}

func TestRunStackOverflowFaults(t *testing.T) {
	src := `fn $main @void -> @void {
  STLS;
  PUSH @uint32 $x;
  STLE;
  RETURN;
}
`
	img := buildImage(t, map[string]string{"main.crya": src})
	thread := NewThread(img, DefaultRegistry(os.Stdout), 4)
	err := thread.Run("$void::main")
	if err == nil {
		t.Fatalf("expected a stack-overflow fault with a 4-byte capacity")
	}
	if thread.LastFault().Code != CodeStackOverflow {
		t.Fatalf("fault code = %s, want %s", thread.LastFault().Code, CodeStackOverflow)
	}
}

func TestRunEntryPointNotFound(t *testing.T) {
	img := buildImage(t, map[string]string{"hello.crya": helloSrc})
	thread := NewThread(img, DefaultRegistry(os.Stdout), 0)
	err := thread.Run("$void::nope")
	if err == nil {
		t.Fatalf("expected a fault for a missing entry point")
	}
	if thread.LastFault().Code != CodeBadFunctionIndex {
		t.Fatalf("fault code = %s, want %s", thread.LastFault().Code, CodeBadFunctionIndex)
	}
}
