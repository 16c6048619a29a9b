package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pipeopt/internal/ir"
)

// GoldenDir is where RunWithGolden keeps its fixtures, relative to the
// test's package directory.
const GoldenDir = "testdata/golden"

// ErrGoldenMismatch is returned by CheckGolden when a snapshot differs from
// its golden file.
var ErrGoldenMismatch = errors.New("golden mismatch")

// Snapshot returns the canonical JSON compared against golden files:
//
//	{name, plan: <explain document without fingerprint>, results: [...]}
//
// The fingerprint is omitted; the plan already pins the pipeline.
func Snapshot(result *Result) ([]byte, error) {
	plan := result.Plan.Document()
	delete(plan, "fingerprint")

	return ir.MarshalCanonical(ir.IRObject{
		"name":    ir.IRString(result.Name),
		"plan":    plan,
		"results": docsArray(result.Results),
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)

	return nil
}

// CheckGolden compares result's snapshot with dir/{name}.golden outside of
// go test. With update set, the file is (re)written instead.
func CheckGolden(dir string, result *Result, update bool) error {
	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, result.Name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, snapshot) {
		return fmt.Errorf("%w: %s\nwant: %s\n got: %s", ErrGoldenMismatch, path, want, snapshot)
	}
	return nil
}
