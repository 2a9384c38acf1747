// Package workspace locates a Cryo workspace root and resolves its
// build-artifact paths, the thin boundary support spec.md §6 describes:
// "cryo.toml marks the workspace root... intermediate objects live under
// bin/int/; the executable under bin/<config>/".
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// marker is the file that marks a directory as a workspace root.
const marker = "cryo.toml"

// Config is cryo.toml's decoded contents. Its only field is the project
// name New writes when scaffolding; extra keys in the file are ignored
// rather than rejected.
type Config struct {
	Name string `toml:"name"`
}

// Workspace is a located workspace root plus its decoded config.
type Workspace struct {
	Root   string
	Config Config
}

// Find walks up from startDir looking for the nearest ancestor containing
// cryo.toml, per the `build`/`run` driver actions in spec.md §6.
func Find(startDir string) (*Workspace, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	for {
		candidate := filepath.Join(dir, marker)
		if _, err := os.Stat(candidate); err == nil {
			return load(dir, candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("workspace: no %s found in %s or any ancestor", marker, startDir)
		}
		dir = parent
	}
}

func load(root, configPath string) (*Workspace, error) {
	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("workspace: %s: %w", configPath, err)
	}
	return &Workspace{Root: root, Config: cfg}, nil
}

// New scaffolds an empty workspace at folder: a src/ subdirectory and a
// minimal cryo.toml. It fails if folder already exists and is non-empty,
// per the `new` driver action.
func New(folder, name string) error {
	entries, err := os.ReadDir(folder)
	if err == nil && len(entries) > 0 {
		return fmt.Errorf("workspace: %s already exists and is not empty", folder)
	}
	if err := os.MkdirAll(filepath.Join(folder, "src"), 0o755); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if name == "" {
		name = filepath.Base(folder)
	}
	f, err := os.Create(filepath.Join(folder, marker))
	if err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	return enc.Encode(Config{Name: name})
}

// SourceDir is where hand-written .crya files live.
func (w *Workspace) SourceDir() string {
	return filepath.Join(w.Root, "src")
}

// IntermediateDir is where the assembler writes .cryi objects (bin/int/).
func (w *Workspace) IntermediateDir() string {
	return filepath.Join(w.Root, "bin", "int")
}

// OutputDir is where the linker writes the executable for the given build
// config (bin/<config>/).
func (w *Workspace) OutputDir(config string) string {
	if config == "" {
		config = "debug"
	}
	return filepath.Join(w.Root, "bin", config)
}

// ExecutablePath is the full path to the linked main.crye for config.
func (w *Workspace) ExecutablePath(config string) string {
	return filepath.Join(w.OutputDir(config), "main.crye")
}

// Clean removes the generated bin/ directory.
func (w *Workspace) Clean() error {
	return os.RemoveAll(filepath.Join(w.Root, "bin"))
}

// CryaFiles lists every .crya file under the workspace's src/ directory.
func (w *Workspace) CryaFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.SourceDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".crya" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return files, nil
}
