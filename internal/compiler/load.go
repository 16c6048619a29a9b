package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile reads a spec, choosing the format by extension:
// .yaml/.yml, .json or .cue.
func LoadFile(path string) (Spec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".cue" {
		return LoadCUE(path)
	}

	var parse func([]byte) (Spec, error)
	switch ext {
	case ".yaml", ".yml":
		parse = ParseYAML
	case ".json":
		parse = ParseJSON
	default:
		return Spec{}, &ParseError{Stage: -1, File: path, Code: ErrUnknownFormat,
			Message: fmt.Sprintf("unsupported spec format %q (want .yaml, .yml, .json or .cue)", ext)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read %s: %w", path, err)
	}
	spec, err := parse(data)
	if err != nil {
		return Spec{}, withFile(err, path)
	}
	return spec, nil
}

// withFile records path on a ParseError that has no file yet.
func withFile(err error, path string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.File == "" {
		pe.File = path
	}
	return err
}
