package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database   string
	Collection string
}

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	Collection string       `json:"collection"`
	Inserted   int          `json:"inserted"`
	IDs        []ir.IRValue `json:"ids"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <documents-file>",
		Short: "Insert documents into a SQLite store",
		Long: `Insert documents into a collection of a SQLite document store.

The file holds either a JSON array of objects or one JSON object per line
(NDJSON). Documents without _id are given a UUIDv7. The batch is inserted
in a single transaction: a duplicate _id inserts nothing.

Examples:
  pipeopt load --db ./docs.db --collection orders orders.ndjson
  pipeopt load --db ./docs.db --collection orders orders.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection to insert into (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func runLoad(opts *LoadOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := f.Logger()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("documents file not found: %s", path), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to read documents file", err)
	}

	docs, err := parseDocuments(data)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeBadInput, "invalid documents file", err)
	}
	f.VerboseLog("Parsed %d documents from %s", len(docs), path)

	st, err := store.Open(opts.Database, store.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ids, err := st.Insert(commandContext(cmd), opts.Collection, docs...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to insert documents", err)
	}

	if f.Format == "json" {
		return f.Success(LoadResult{Collection: opts.Collection, Inserted: len(ids), IDs: ids})
	}
	fmt.Fprintf(f.Writer, "✓ Inserted %d documents into %s\n", len(ids), opts.Collection)
	return nil
}

// parseDocuments accepts a JSON array of objects or NDJSON. Blank lines in
// NDJSON are skipped.
func parseDocuments(data []byte) ([]ir.IRObject, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("no documents")
	}

	if trimmed[0] == '[' {
		v, err := ir.UnmarshalIRValue(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse JSON array: %w", err)
		}
		arr, ok := v.(ir.IRArray)
		if !ok {
			return nil, fmt.Errorf("expected JSON array, got %s", ir.TypeName(v))
		}
		docs := make([]ir.IRObject, len(arr))
		for i, elem := range arr {
			doc, ok := elem.(ir.IRObject)
			if !ok {
				return nil, fmt.Errorf("document %d: expected object, got %s", i, ir.TypeName(elem))
			}
			docs[i] = doc
		}
		return docs, nil
	}

	var docs []ir.IRObject
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var doc ir.IRObject
		if err := doc.UnmarshalJSON(text); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}
