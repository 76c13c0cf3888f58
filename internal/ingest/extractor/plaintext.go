package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxTextBytes caps how much extracted text a single file may contribute.
const maxTextBytes = 4 << 20

// Engine is the default TextExtractor. It handles plain text directly and
// delegates PDFs to the pdfcpu-backed extractor.
type Engine struct {
	pdf *PDFExtractor
}

// NewEngine constructs the default extraction engine.
func NewEngine() *Engine {
	return &Engine{pdf: &PDFExtractor{}}
}

// ExtractText dispatches by content type. Unsupported types return an error;
// the pipeline treats that as "no text", not a failure.
func (e *Engine) ExtractText(ctx context.Context, contentType, path string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(contentType, "text/"):
		return readPlainText(path)
	case contentType == "application/pdf":
		return e.pdf.ExtractText(ctx, contentType, path, opts)
	default:
		return "", fmt.Errorf("no text extractor for %s", contentType)
	}
}

// PageCount reports the page count of a PDF file.
func (e *Engine) PageCount(path string) (int, error) {
	return e.pdf.PageCount(path)
}

func readPlainText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTextBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
