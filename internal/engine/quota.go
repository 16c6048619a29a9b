package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer tracks the number of documents scanned by one execution
// and enforces a maximum.
//
// Each execution has its own QuotaEnforcer instance. A limit of 0 or less
// disables the check.
type QuotaEnforcer struct {
	maxDocuments int
	current      int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxDocuments int) *QuotaEnforcer {
	return &QuotaEnforcer{maxDocuments: maxDocuments}
}

// Check adds n scanned documents and validates against the limit.
func (q *QuotaEnforcer) Check(collection string, n int) error {
	q.current += n
	if q.maxDocuments > 0 && q.current > q.maxDocuments {
		return &DocumentsExceededError{
			Collection: collection,
			Documents:  q.current,
			Limit:      q.maxDocuments,
		}
	}
	return nil
}

// Current returns the number of documents counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxDocuments returns the limit.
func (q *QuotaEnforcer) MaxDocuments() int {
	return q.maxDocuments
}

// DocumentsExceededError is returned when a scan yields more documents than
// the engine's quota allows.
type DocumentsExceededError struct {
	Collection string
	Documents  int
	Limit      int
}

// Error implements the error interface.
func (e *DocumentsExceededError) Error() string {
	return fmt.Sprintf("scan of %s exceeded document quota: %d documents > %d limit",
		e.Collection, e.Documents, e.Limit)
}

// IsQuotaError returns true if the error is a DocumentsExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var de *DocumentsExceededError
	return errors.As(err, &de)
}
