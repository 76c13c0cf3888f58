package ingest

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/your-org/fileflow/internal/ingest/extractor"
	"github.com/your-org/fileflow/pkg/storage/blobstore"
)

// Pipeline drives a single file through hash, dedup, type detection,
// enrichment and storage. It owns the lifecycle of one ingest attempt: it
// alone decides to write to or delete from the store for that attempt.
type Pipeline struct {
	store     blobstore.Store
	extractor *Extractor
	logger    *zap.Logger
}

// PipelineParams configures a Pipeline.
type PipelineParams struct {
	Store     blobstore.Store
	Extractor *Extractor
	Logger    *zap.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(p PipelineParams) *Pipeline {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Pipeline{
		store:     p.Store,
		extractor: p.Extractor,
		logger:    p.Logger,
	}
}

// Ingest runs one file through the pipeline and returns the stored record.
//
// Uniqueness is best-effort single-writer: the dedup check and the physical
// write are not serialized, so two concurrent ingests of the same content may
// both store it. The check is repeated immediately before the write to narrow
// that window; when a concurrent writer committed the hash in the interim the
// existing record is returned instead of creating a duplicate.
func (p *Pipeline) Ingest(ctx context.Context, input FileInput, opts Options) (*blobstore.Record, error) {
	var hash string
	if opts.RequireUnique {
		var err error
		hash, err = ContentHashFile(input.Path)
		if err != nil {
			return nil, err
		}
		existing, err := p.checkUnique(ctx, hash)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &DuplicateContentError{Path: input.Path, Hash: hash, Existing: existing}
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		var err error
		contentType, err = DetectType(input.Path)
		if err != nil {
			return nil, err
		}
	}

	metadata := map[string]string{}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	if hash != "" {
		metadata["hash"] = hash
	}

	if !opts.DisableExtraction && p.extractor != nil {
		for k, v := range p.extractor.Extract(ctx, contentType, input.Path, extractor.Options{Lang: opts.Lang}) {
			metadata[k] = v
		}
	}

	// Everything up to here is side-effect-free; the write below is the
	// first and only mutation of the store.
	if hash != "" {
		existing, err := p.checkUnique(ctx, hash)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			p.logger.Info("concurrent writer stored identical content, reusing record",
				zap.String("hash", hash),
				zap.String("record_id", existing.ID))
			return existing, nil
		}
	}

	f, err := os.Open(input.Path)
	if err != nil {
		return nil, &IOError{Path: input.Path, Err: err}
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, &IOError{Path: input.Path, Err: err}
	}

	rec, err := p.store.Put(ctx, blobstore.PutRequest{
		Reader:      f,
		Filename:    input.Name,
		ContentHash: hash,
		ContentType: contentType,
		Size:        fi.Size(),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, &StoreError{Op: "put", Err: err}
	}

	p.logger.Info("file ingested",
		zap.String("record_id", rec.ID),
		zap.String("filename", rec.Filename),
		zap.String("content_type", rec.ContentType),
		zap.Int64("size_bytes", rec.Size))

	return rec, nil
}

// checkUnique looks a content hash up against already-stored records. A nil
// record means no prior writer has committed that content.
func (p *Pipeline) checkUnique(ctx context.Context, hash string) (*blobstore.Record, error) {
	rec, err := p.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, &StoreError{Op: "find", Err: err}
	}
	return rec, nil
}

// Delete removes a stored record, typically as the compensating action after
// a rejected commit.
func (p *Pipeline) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := p.store.Delete(ctx, id)
	if err != nil {
		return false, &StoreError{Op: "delete", Err: err}
	}
	return ok, nil
}
