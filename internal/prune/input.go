package prune

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/babilon/dedup-domains/internal/record"
)

var (
	ErrSamePath        = errors.New("input and output paths are the same")
	ErrDuplicateOrigin = errors.New("two inputs share an origin name")
)

// Input is one file to prune and where its pruned rows go.
type Input struct {
	Origin  *record.Origin
	OutPath string
}

// Discover lists the files in dir ending in inExt, sorted by name. The
// origin name is the file name without inExt and the output sits next to
// the input with outExt instead.
func Discover(dir, inExt, outExt string) ([]Input, error) {
	if inExt == outExt {
		return nil, fmt.Errorf("%w: extension %q", ErrSamePath, inExt)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var inputs []Input
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || len(name) <= len(inExt) || !strings.HasSuffix(name, inExt) {
			continue
		}
		// an earlier run's output, e.g. a.x.fat for ".fat" -> ".x.fat"
		if strings.HasSuffix(name, outExt) {
			continue
		}
		stem := strings.TrimSuffix(name, inExt)
		inputs = append(inputs, Input{
			Origin:  &record.Origin{Name: stem, Path: filepath.Join(dir, name)},
			OutPath: filepath.Join(dir, stem+outExt),
		})
	}
	return inputs, nil
}

// InputFor builds the Input of an explicitly named file. The output path
// replaces the last extension of path with outExt, or appends outExt when
// path has none.
func InputFor(path, outExt string) (Input, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	out := stem + outExt
	if out == path {
		return Input{}, fmt.Errorf("%w: %s", ErrSamePath, path)
	}
	return Input{
		Origin:  &record.Origin{Name: filepath.Base(stem), Path: path},
		OutPath: out,
	}, nil
}

// checkInputs rejects input sets the writers cannot keep apart. No output
// may land on any input, or it would be truncated before being read.
func checkInputs(inputs []Input) error {
	seen := make(map[string]string, len(inputs))
	paths := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if in.Origin == nil {
			return fmt.Errorf("input without origin (output %s)", in.OutPath)
		}
		if prev, ok := seen[in.Origin.Name]; ok {
			return fmt.Errorf("%w: %q (%s and %s)", ErrDuplicateOrigin, in.Origin.Name, prev, in.Origin.Path)
		}
		seen[in.Origin.Name] = in.Origin.Path
		paths[filepath.Clean(in.Origin.Path)] = struct{}{}
	}
	for _, in := range inputs {
		if _, ok := paths[filepath.Clean(in.OutPath)]; ok {
			return fmt.Errorf("%w: output %s of %q is an input", ErrSamePath, in.OutPath, in.Origin.Name)
		}
	}
	return nil
}
