package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/predicate"
)

// MemorySource is an in-memory Source. Documents are returned in insertion
// order and filters are evaluated with predicate.Matches.
//
// Thread-safety: MemorySource is safe for concurrent use.
type MemorySource struct {
	mu          sync.RWMutex
	collections map[string][]ir.IRObject
	scans       int
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{collections: make(map[string][]ir.IRObject)}
}

// Insert appends docs to collection.
func (m *MemorySource) Insert(collection string, docs ...ir.IRObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], docs...)
}

// Scan implements Source.
func (m *MemorySource) Scan(ctx context.Context, collection string, filter predicate.Predicate) ([]ir.IRObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.scans++
	docs := slices.Clone(m.collections[collection])
	m.mu.Unlock()

	out := make([]ir.IRObject, 0, len(docs))
	for _, doc := range docs {
		ok, err := predicate.Matches(filter, doc)
		if err != nil {
			return nil, fmt.Errorf("native filter on %s: %w", collection, err)
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Scans returns how many times Scan has been called.
func (m *MemorySource) Scans() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scans
}
