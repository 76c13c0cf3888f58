// Package extractor holds the pluggable enrichment engines the ingestion
// pipeline dispatches to. Engines are best-effort collaborators: every error
// they return is downgraded to an absent metadata field by the caller.
package extractor

import "context"

// Options tunes a text extraction run.
type Options struct {
	// Lang is a language hint passed through to the engine untranslated.
	Lang string
}

// TextExtractor pulls indexable text out of a typed file.
type TextExtractor interface {
	ExtractText(ctx context.Context, contentType, path string, opts Options) (string, error)
}

// ImageMetadataReader reads embedded structured metadata from an image file,
// such as camera capture fields.
type ImageMetadataReader interface {
	ExtractImageMetadata(ctx context.Context, path string) (map[string]string, error)
}
