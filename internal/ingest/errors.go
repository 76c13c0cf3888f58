package ingest

import (
	"fmt"

	"github.com/your-org/fileflow/pkg/storage/blobstore"
)

// DuplicateContentError reports that the content hash of an input is already
// stored. It carries the existing record so callers can reference it.
type DuplicateContentError struct {
	Path     string
	Hash     string
	Existing *blobstore.Record
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("content of %s already stored as %s", e.Path, e.Existing.ID)
}

// FormatMismatchError reports that an input failed the batch format
// pre-check and was not sent through the pipeline.
type FormatMismatchError struct {
	Path     string
	Filename string
	Detected string
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("file %s has wrong file type %s", e.Filename, e.Detected)
}

// IOError reports that a source file could not be read to completion.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// StoreError reports that the underlying blob store rejected an operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
