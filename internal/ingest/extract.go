package ingest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/fileflow/internal/ingest/extractor"
)

// textBearingTypes are non-text MIME types the text engine is still asked
// to handle.
var textBearingTypes = map[string]bool{
	"application/pdf":  true,
	"application/rtf":  true,
	"application/json": true,
	"application/xml":  true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
}

// pageCounter is implemented by text engines that can report PDF page counts.
type pageCounter interface {
	PageCount(path string) (int, error)
}

// Extractor orchestrates best-effort metadata enrichment. Every engine
// failure or timeout is logged and downgraded to an absent field; enrichment
// never fails an ingest.
type Extractor struct {
	text    extractor.TextExtractor
	image   extractor.ImageMetadataReader
	timeout time.Duration
	logger  *zap.Logger
}

// ExtractorParams configures an Extractor. Nil engines disable the
// corresponding enrichment.
type ExtractorParams struct {
	Text    extractor.TextExtractor
	Image   extractor.ImageMetadataReader
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(p ExtractorParams) *Extractor {
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Extractor{
		text:    p.Text,
		image:   p.Image,
		timeout: p.Timeout,
		logger:  p.Logger,
	}
}

// Extract enriches the metadata mapping for a typed file. The returned map
// contains only the fields whose extraction succeeded.
func (e *Extractor) Extract(ctx context.Context, contentType, path string, opts extractor.Options) map[string]string {
	meta := map[string]string{}

	if e.text != nil && isTextBearing(contentType) {
		text, err := runBounded(ctx, e.timeout, func(ctx context.Context) (string, error) {
			return e.text.ExtractText(ctx, contentType, path, opts)
		})
		if err != nil {
			e.logger.Warn("text extraction skipped",
				zap.String("path", path),
				zap.String("content_type", contentType),
				zap.Error(err))
		} else {
			meta["text"] = text
		}
	}

	if contentType == "application/pdf" {
		if pc, ok := e.text.(pageCounter); ok {
			if pages, err := pc.PageCount(path); err == nil {
				meta["pages"] = strconv.Itoa(pages)
			}
		}
	}

	if e.image != nil && contentType == "image/jpeg" {
		fields, err := runBounded(ctx, e.timeout, func(ctx context.Context) (map[string]string, error) {
			return e.image.ExtractImageMetadata(ctx, path)
		})
		if err != nil {
			e.logger.Warn("image metadata extraction skipped",
				zap.String("path", path),
				zap.Error(err))
		} else {
			for k, v := range fields {
				meta[k] = v
			}
		}
	}

	return meta
}

func isTextBearing(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") || textBearingTypes[contentType]
}

// runBounded runs fn under its own timeout. A hung engine cannot block the
// ingest: on timeout the goroutine's eventual result is dropped.
func runBounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{value: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
