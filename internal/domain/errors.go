package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request that cannot be analyzed as given.
	ErrInvalidInput = errors.New("invalid input")

	// ErrKnowledgeBase signals malformed or unreadable knowledge-base data.
	ErrKnowledgeBase = errors.New("knowledge base error")
	// ErrClassifierContract signals a classifier response that breaks its output contract.
	ErrClassifierContract = errors.New("classifier contract violation")
	// ErrClassifierUnavailable signals a classifier provider failure.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrClassifierNotConfigured signals an image request without a classifier.
	ErrClassifierNotConfigured = errors.New("classifier not configured")
)

// KnowledgeBaseError wraps ErrKnowledgeBase with the offending table and row.
type KnowledgeBaseError struct {
	Table string
	Row   int // 1-based data row, 0 when the whole table is affected
	Err   error
}

func (e *KnowledgeBaseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: %s row %d: %v", ErrKnowledgeBase.Error(), e.Table, e.Row, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrKnowledgeBase.Error(), e.Table, e.Err)
}

// Is reports ErrKnowledgeBase so callers can match on the sentinel.
func (e *KnowledgeBaseError) Is(target error) bool { return target == ErrKnowledgeBase }

func (e *KnowledgeBaseError) Unwrap() error { return e.Err }

// NewKnowledgeBaseError creates a knowledge-base error for the given table and row.
func NewKnowledgeBaseError(table string, row int, err error) error {
	return &KnowledgeBaseError{Table: table, Row: row, Err: err}
}
