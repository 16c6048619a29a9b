package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/predicate"
	"github.com/roach88/pipeopt/internal/querysql"
)

// Scan returns the documents of collection that satisfy filter, in
// insertion order (ORDER BY seq ASC). A nil filter returns every document;
// a missing collection returns an empty slice.
//
// Filters that querysql can compile run inside SQLite. Anything else
// (opaque expressions, unknown operators, array literals) is evaluated in
// process with predicate.Matches over the full collection.
//
// Scan satisfies engine.Source.
func (s *Store) Scan(ctx context.Context, collection string, filter predicate.Predicate) ([]ir.IRObject, error) {
	where, params, err := querysql.Compile(filter)
	native := err == nil
	if err != nil {
		if !errors.Is(err, querysql.ErrNotCompilable) {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		s.logger.Debug("filter evaluated in process", "collection", collection, "reason", err)
		where, params = "1", nil
	}

	args := append([]any{collection}, params...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM documents
		WHERE collection = ? AND `+where+`
		ORDER BY seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []ir.IRObject{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := unmarshalDocument(body)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}

		if !native {
			ok, err := predicate.Matches(filter, doc)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", collection, err)
			}
			if !ok {
				continue
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}

	s.logger.Debug("collection scanned", "collection", collection, "native", native, "returned", len(docs))
	return docs, nil
}

// Get retrieves a single document by _id.
// Returns sql.ErrNoRows if not found.
func (s *Store) Get(ctx context.Context, collection string, id ir.IRValue) (ir.IRObject, error) {
	idJSON, err := marshalID(id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", collection, err)
	}

	var body string
	err = s.db.QueryRowContext(ctx, `
		SELECT body FROM documents
		WHERE collection = ? AND id = ?
	`, collection, idJSON).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get %s: %w", collection, err)
	}
	return unmarshalDocument(body)
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE collection = ?
	`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Collections returns all collection names in byte order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM collections
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return names, nil
}
