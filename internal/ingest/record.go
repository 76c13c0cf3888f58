package ingest

import (
	"path/filepath"

	"github.com/your-org/fileflow/pkg/storage/blobstore"
)

// FileInput identifies one file to import: a path on disk plus the
// human-supplied name. NewFileInput derives the name from the path.
type FileInput struct {
	Path string
	Name string
}

// NewFileInput normalizes a bare path into a FileInput.
func NewFileInput(path string) FileInput {
	return FileInput{Path: path, Name: filepath.Base(path)}
}

// Options controls a single ingest attempt.
type Options struct {
	// RequireUnique rejects content whose hash is already stored.
	RequireUnique bool

	// ContentType, when set, is trusted instead of sniffing the file.
	ContentType string

	// DisableExtraction skips metadata enrichment entirely.
	DisableExtraction bool

	// Lang is an optional language hint passed through to text extraction.
	Lang string

	// Metadata is merged into the stored record's metadata mapping.
	// Enrichment fields win on key collision.
	Metadata map[string]string
}

// Outcome is the result of one file going through the pipeline: either a
// stored record or the failure that stopped it.
type Outcome struct {
	Input  FileInput
	Record *blobstore.Record
	Err    error
}

// Failed reports whether the input did not produce a stored record.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// BatchResult aggregates the outcomes of a multi-file import. Outcomes is
// ordered by submission; Failures holds only the failed outcomes.
type BatchResult struct {
	Outcomes []Outcome
	Failures []Outcome
}

// collectFailures finalizes the Failures slice from Outcomes.
func (b *BatchResult) collectFailures() {
	for _, o := range b.Outcomes {
		if o.Failed() {
			b.Failures = append(b.Failures, o)
		}
	}
}
