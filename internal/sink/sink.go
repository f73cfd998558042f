// Package sink delivers normalized records to the OLDP API or to files.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

// Sink receives normalized records
type Sink interface {
	WriteLawBook(ctx context.Context, book model.LawBook) error
	WriteLaw(ctx context.Context, law model.Law) error
	WriteCase(ctx context.Context, c model.Case) error
}

// ConflictError reports a record the destination already has
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("already exists: %s", e.Path)
}

// WriteError reports a rejected record with the server-provided detail
type WriteError struct {
	Path       string
	StatusCode int
	Detail     string
}

func (e *WriteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("write %s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("write %s: status %d - %s", e.Path, e.StatusCode, e.Detail)
}

// IsConflict reports whether err marks an existing record
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
