package store

import (
	"fmt"

	"github.com/roach88/pipeopt/internal/ir"
)

// marshalDocument converts a document to canonical JSON TEXT for storage.
func marshalDocument(doc ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// marshalID converts an _id value to the canonical JSON used as the row key,
// so IRInt(1) and IRString("1") are distinct ids.
func marshalID(id ir.IRValue) (string, error) {
	data, err := ir.MarshalCanonical(id)
	if err != nil {
		return "", fmt.Errorf("marshal _id: %w", err)
	}
	return string(data), nil
}

// unmarshalDocument parses stored JSON TEXT back into a document.
// Integers beyond 2^53 survive because UnmarshalIRValue decodes with json.Number.
func unmarshalDocument(data string) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal document: expected object, got %s", ir.TypeName(v))
	}
	return obj, nil
}
