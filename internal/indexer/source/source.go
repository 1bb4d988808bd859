// Package source provides the document collections an index is built from.
// A Source yields (document ID, raw text) pairs; the builder never looks at
// anything else.
package source

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

type Document struct {
	ID   string
	Text string
}

// Source iterates a document collection. Each stops at the first error
// returned by fn or encountered while reading, and returns it.
type Source interface {
	Name() string
	Each(ctx context.Context, fn func(Document) error) error
}

// DocumentError identifies a document that could not be read. It matches
// both ErrDocumentUnreadable and the underlying cause under errors.Is.
type DocumentError struct {
	ID  string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.ID, e.Err)
}

func (e *DocumentError) Unwrap() []error {
	return []error{apperrors.ErrDocumentUnreadable, e.Err}
}

// Memory is a fixed in-process collection, iterated in slice order.
type Memory []Document

func (m Memory) Name() string { return "memory" }

func (m Memory) Each(ctx context.Context, fn func(Document) error) error {
	for _, d := range m {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
