package circuitfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/interpreter"
)

// DefaultName is the circuit file the CLI works on.
const DefaultName = "circuit.py"

// MetaSourceFile is the metadata key holding the absolute path a circuit
// was loaded from.
const MetaSourceFile = "source_file"

// Verifier turns source text into a verified program.
type Verifier interface {
	Verify(ctx context.Context, source string) (*interpreter.QNode, error)
}

// Save writes the source of rep to path and returns the absolute path
// written.
func Save(rep *circuit.Representation, path string) (string, error) {
	if strings.TrimSpace(rep.Source()) == "" {
		return "", engine.NewInvalidInputError("circuit has no source to save")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := os.WriteFile(abs, []byte(rep.Source()), 0o644); err != nil {
		return "", fmt.Errorf("writing circuit file: %w", err)
	}
	return abs, nil
}

// Load reads path and verifies its source. The representation is described
// as loaded from the file's name and records the absolute path in its
// metadata. A missing file yields an error matching fs.ErrNotExist.
func Load(ctx context.Context, path string, v Verifier) (*circuit.Representation, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading circuit file: %w", err)
	}

	source := string(data)
	q, err := v.Verify(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(abs), err)
	}
	return circuit.New(q, source, "Loaded from "+filepath.Base(abs), map[string]string{
		MetaSourceFile: abs,
	}), nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// IsNotExist reports whether err was caused by a missing circuit file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
