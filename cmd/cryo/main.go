// Command cryo is the driver for the Cryo toolchain: new/build/clean/run/
// help, per spec.md §6's external interfaces.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rafin-dev/cryo-lang/internal/assembler"
	"github.com/rafin-dev/cryo-lang/internal/linker"
	"github.com/rafin-dev/cryo-lang/internal/loader"
	"github.com/rafin-dev/cryo-lang/internal/types"
	"github.com/rafin-dev/cryo-lang/internal/vm"
	"github.com/rafin-dev/cryo-lang/internal/workspace"
)

// Exit codes per spec.md §6.
const (
	exitOK           = 0
	exitUsageOrWorkspace = -1
	exitCompileErrors = -2
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsageOrWorkspace)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cryo",
		Short:         "Cryo toolchain: assembler, linker and interpreter for .crya programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newNewCommand())
	root.AddCommand(newBuildCommand())
	root.AddCommand(newCleanCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newHelpCommand())
	return root
}

func newNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new <folder>",
		Short: "scaffold an empty workspace with a src/ subdirectory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := workspace.New(args[0], ""); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitUsageOrWorkspace)
			}
		},
	}
}

func newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build [config]",
		Short: "assemble every .crya under bin/int/ and link into bin/<config>/main.crye",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			config := "debug"
			if len(args) == 1 {
				config = args[0]
			}
			if _, err := runBuild(config); err != nil {
				os.Exit(exitCodeFor(err))
			}
		},
	}
}

func newCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "remove generated artifacts",
		Run: func(cmd *cobra.Command, args []string) {
			ws, err := workspace.Find(".")
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitUsageOrWorkspace)
			}
			if err := ws.Clean(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitUsageOrWorkspace)
			}
		},
	}
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "run [args...]",
		Short:              "build then execute main.crye",
		DisableFlagParsing: true,
		Run: func(cmd *cobra.Command, args []string) {
			config := "debug"
			execPath, err := runBuild(config)
			if err != nil {
				os.Exit(exitCodeFor(err))
			}
			if err := runExecutable(execPath); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitUsageOrWorkspace)
			}
		},
	}
}

func newHelpCommand() *cobra.Command {
	actions := map[string]string{
		"new":   "scaffold an empty workspace with a src/ subdirectory",
		"build": "assemble every .crya under bin/int/, link into bin/<config>/main.crye",
		"clean": "remove generated artifacts",
		"run":   "build then execute main.crye",
		"help":  "print the action list and describe one action at a time",
	}
	return &cobra.Command{
		Use:   "help",
		Short: "print the action list and accept action names for detailed descriptions until quit",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range []string{"new", "build", "clean", "run", "help"} {
				fmt.Printf("  %-6s %s\n", name, actions[name])
			}
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("help> ")
				if !scanner.Scan() {
					return
				}
				word := scanner.Text()
				if word == "quit" {
					return
				}
				if desc, ok := actions[word]; ok {
					fmt.Println(desc)
				} else {
					fmt.Printf("unknown action %q\n", word)
				}
			}
		},
	}
}

// runBuild assembles every .crya file in the nearest workspace and links
// the result, returning the linked executable's path.
func runBuild(config string) (string, error) {
	ws, err := workspace.Find(".")
	if err != nil {
		return "", usageError{err}
	}

	sources, err := ws.CryaFiles()
	if err != nil {
		return "", usageError{err}
	}

	if err := os.MkdirAll(ws.IntermediateDir(), 0o755); err != nil {
		return "", usageError{err}
	}

	tt := types.Default()
	var objects []linker.ObjectFile
	for _, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return "", usageError{err}
		}
		result := assembler.Assemble(data, src, tt)
		if result.Errors.HasErrors() {
			result.Errors.Render(os.Stderr)
			return "", compileError{}
		}
		objPath := filepath.Join(ws.IntermediateDir(), objectName(ws.SourceDir(), src))
		if err := os.WriteFile(objPath, result.Bytes, 0o644); err != nil {
			return "", usageError{err}
		}
		objects = append(objects, linker.ObjectFile{Path: objPath, Data: result.Bytes})
	}

	linked := linker.Link(objects)
	if linked.Errors.HasErrors() {
		linked.Errors.Render(os.Stderr)
		return "", compileError{}
	}

	if err := os.MkdirAll(ws.OutputDir(config), 0o755); err != nil {
		return "", usageError{err}
	}
	execPath := ws.ExecutablePath(config)
	if err := os.WriteFile(execPath, linked.Bytes, 0o644); err != nil {
		return "", usageError{err}
	}
	return execPath, nil
}

// objectName turns a .crya source path relative to srcDir into a sibling
// .cryi name, flattening directory separators so bin/int/ stays flat.
func objectName(srcDir, src string) string {
	rel, err := filepath.Rel(srcDir, src)
	if err != nil {
		rel = filepath.Base(src)
	}
	ext := filepath.Ext(rel)
	base := rel[:len(rel)-len(ext)]
	flat := filepath.ToSlash(base)
	for i := 0; i < len(flat); i++ {
		if flat[i] == '/' {
			flat = flat[:i] + "_" + flat[i+1:]
		}
	}
	return flat + ".cryi"
}

func runExecutable(path string) error {
	img, err := loader.Open(path)
	if err != nil {
		return err
	}
	defer img.Close()

	thread := vm.NewThread(img, vm.DefaultRegistry(os.Stdout), 0)
	if err := thread.Run("$void::main"); err != nil {
		return fmt.Errorf("runtime fault: %w", err)
	}
	return nil
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

type compileError struct{}

func (compileError) Error() string { return "build failed: see diagnostics above" }

func exitCodeFor(err error) int {
	if _, ok := err.(compileError); ok {
		return exitCompileErrors
	}
	fmt.Fprintln(os.Stderr, err)
	return exitUsageOrWorkspace
}
