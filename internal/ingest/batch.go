package ingest

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func init() {
	// not present in the built-in table on every platform
	mime.AddExtensionType(".csv", "text/csv") //nolint:errcheck
}

// BatchImporter validates a collection of inputs against an expected format
// and drives the pipeline per item, aggregating successes and failures. One
// bad input never aborts the rest of the batch.
type BatchImporter struct {
	pipeline *Pipeline
	workers  int
	logger   *zap.Logger
}

// BatchImporterParams configures a BatchImporter.
type BatchImporterParams struct {
	Pipeline *Pipeline
	Workers  int
	Logger   *zap.Logger
}

// NewBatchImporter constructs a BatchImporter.
func NewBatchImporter(p BatchImporterParams) *BatchImporter {
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &BatchImporter{
		pipeline: p.Pipeline,
		workers:  p.Workers,
		logger:   p.Logger,
	}
}

// ImportCSV imports a batch of CSV files. Inputs are processed concurrently
// but the returned outcomes keep submission order. A single input goes
// through the same path and yields a result of length one.
func (b *BatchImporter) ImportCSV(ctx context.Context, inputs []FileInput, requireUnique bool) *BatchResult {
	result := &BatchResult{Outcomes: make([]Outcome, len(inputs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, input := range inputs {
		g.Go(func() error {
			result.Outcomes[i] = b.importOne(gctx, input, requireUnique)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // failures are carried per-outcome

	result.collectFailures()
	return result
}

func (b *BatchImporter) importOne(ctx context.Context, input FileInput, requireUnique bool) Outcome {
	detected, err := checkCSV(input)
	if err != nil {
		b.logger.Warn("batch input rejected",
			zap.String("path", input.Path),
			zap.String("filename", input.Name),
			zap.Error(err))
		return Outcome{Input: input, Err: err}
	}

	// the pre-check already sniffed the content; hand its type to the
	// pipeline so the file is not read twice
	rec, err := b.pipeline.Ingest(ctx, input, Options{
		RequireUnique: requireUnique,
		ContentType:   detected,
		Metadata:      map[string]string{"mime": "text/csv"},
	})
	if err != nil {
		return Outcome{Input: input, Err: err}
	}
	return Outcome{Input: input, Record: rec}
}

// checkCSV verifies that an input is a CSV file: the sniffed content must be
// plain text and the declared extension must map to text/csv. On success the
// sniffed type is returned for the caller to reuse.
func checkCSV(input FileInput) (string, error) {
	detected, err := DetectType(input.Path)
	if err != nil {
		return "", err
	}
	if detected != "text/plain" && detected != "text/csv" {
		return "", &FormatMismatchError{Path: input.Path, Filename: input.Name, Detected: detected}
	}
	declared := mime.TypeByExtension(filepath.Ext(input.Name))
	if !strings.HasPrefix(declared, "text/csv") {
		return "", &FormatMismatchError{Path: input.Path, Filename: input.Name, Detected: detected}
	}
	return detected, nil
}
