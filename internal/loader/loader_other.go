//go:build !unix

package loader

import (
	"fmt"
	"os"
)

// Open reads path into memory wholesale. Non-unix platforms get the
// portable os.ReadFile path rather than a platform mmap binding, the same
// stub-file convention the teacher uses for backends it doesn't implement
// natively (std/compiler/backend_win386_stub.go).
func Open(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return decode(data, nil)
}
