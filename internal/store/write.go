package store

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/pipeopt/internal/ir"
)

// ErrDuplicateID is returned when a document's _id already exists in the collection.
var ErrDuplicateID = errors.New("duplicate _id")

// Insert appends docs to collection in a single transaction and returns
// their _id values in order. The collection is created on first insert.
//
// Documents without _id are assigned one from the store's IDGenerator; the
// caller's maps are never modified. A duplicate _id aborts the whole batch.
func (s *Store) Insert(ctx context.Context, collection string, docs ...ir.IRObject) ([]ir.IRValue, error) {
	if collection == "" {
		return nil, fmt.Errorf("insert: collection name is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collections (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, collection); err != nil {
		return nil, fmt.Errorf("insert: create collection %s: %w", collection, err)
	}

	ids := make([]ir.IRValue, 0, len(docs))
	for i, doc := range docs {
		doc = s.withID(doc)
		id := doc["_id"]

		idJSON, err := marshalID(id)
		if err != nil {
			return nil, fmt.Errorf("insert %s[%d]: %w", collection, i, err)
		}
		body, err := marshalDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("insert %s[%d]: %w", collection, i, err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body)
			VALUES (?, ?, ?)
			ON CONFLICT(collection, id) DO NOTHING
		`, collection, idJSON, body)
		if err != nil {
			return nil, fmt.Errorf("insert %s[%d]: %w", collection, i, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert %s[%d]: rows affected: %w", collection, i, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("insert %s[%d]: %w %s", collection, i, ErrDuplicateID, idJSON)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert: commit: %w", err)
	}

	s.logger.Debug("documents inserted", "collection", collection, "count", len(ids))
	return ids, nil
}

// withID returns doc, or a shallow copy of it carrying a generated _id.
func (s *Store) withID(doc ir.IRObject) ir.IRObject {
	if _, ok := doc["_id"]; ok {
		return doc
	}
	out := maps.Clone(doc)
	if out == nil {
		out = ir.IRObject{}
	}
	out["_id"] = ir.IRString(s.ids.Generate())
	return out
}

// Drop removes a collection and all its documents.
// Dropping a missing collection is not an error.
func (s *Store) Drop(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, collection); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	s.logger.Debug("collection dropped", "collection", collection)
	return nil
}
