package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CompileCUE parses a spec from an evaluated CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value must be concrete. It is exported as JSON, which keeps struct
// fields in declaration order, and then parsed like any JSON spec:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`collection: "c", pipeline: [{$sort: {b: 1}}]`)
//	spec, err := CompileCUE(v)
func CompileCUE(v cue.Value) (Spec, error) {
	if err := v.Err(); err != nil {
		return Spec{}, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Spec{}, formatCUEError(err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return Spec{}, formatCUEError(err)
	}
	return ParseJSON(data)
}

// LoadCUE reads and compiles a single .cue spec file.
func LoadCUE(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read %s: %w", path, err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	spec, err := CompileCUE(v)
	if err != nil {
		return Spec{}, withFile(err, path)
	}
	return spec, nil
}
