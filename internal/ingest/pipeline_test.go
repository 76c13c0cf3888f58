package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/fileflow/internal/ingest/extractor"
	"github.com/your-org/fileflow/pkg/storage/blobstore"
)

// fakeStore is an in-memory blobstore.Store with scriptable failure modes.
type fakeStore struct {
	mu       sync.Mutex
	records     map[string]*blobstore.Record
	content     map[string][]byte
	putCalls    int
	putErr      error
	lastPutSize int64

	// findScript, when non-nil, supplies FindByHash results in call order
	// instead of consulting the stored records.
	findScript []*blobstore.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[string]*blobstore.Record{},
		content: map[string][]byte{},
	}
}

func (f *fakeStore) Put(_ context.Context, req blobstore.PutRequest) (*blobstore.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	f.lastPutSize = req.Size
	if f.putErr != nil {
		return nil, f.putErr
	}

	data, err := io.ReadAll(req.Reader)
	if err != nil {
		return nil, err
	}
	rec := &blobstore.Record{
		ID:          fmt.Sprintf("rec-%d", f.putCalls),
		Filename:    req.Filename,
		ContentHash: req.ContentHash,
		ContentType: req.ContentType,
		Size:        int64(len(data)),
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	f.records[rec.ID] = rec
	f.content[rec.ID] = data
	return rec, nil
}

func (f *fakeStore) Get(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.content[id]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) OpenReadStream(ctx context.Context, id string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return false, nil
	}
	delete(f.records, id)
	delete(f.content, id)
	return true, nil
}

func (f *fakeStore) FindByHash(_ context.Context, hash string) (*blobstore.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findScript != nil {
		rec := f.findScript[0]
		f.findScript = f.findScript[1:]
		return rec, nil
	}
	for _, rec := range f.records {
		if rec.ContentHash == hash {
			return rec, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Close() error {
	return nil
}

// stubText is a scriptable text extraction engine.
type stubText struct {
	text  string
	err   error
	delay time.Duration
}

func (s stubText) ExtractText(ctx context.Context, _, _ string, _ extractor.Options) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

// stubImage is a scriptable image metadata engine.
type stubImage struct {
	fields map[string]string
	err    error
}

func (s stubImage) ExtractImageMetadata(context.Context, string) (map[string]string, error) {
	return s.fields, s.err
}

func extractorOptions() extractor.Options {
	return extractor.Options{}
}

func newTestPipeline(store blobstore.Store, text extractor.TextExtractor) *Pipeline {
	var ext *Extractor
	if text != nil {
		ext = NewExtractor(ExtractorParams{Text: text, Timeout: 5 * time.Second})
	}
	return NewPipeline(PipelineParams{Store: store, Extractor: ext})
}

func TestPipeline_IngestStoresRecord(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	p := newTestPipeline(store, stubText{text: "extracted words"})

	path := writeTestFile(t, "doc.txt", []byte("extracted words"))
	rec, err := p.Ingest(ctx, NewFileInput(path), Options{RequireUnique: true})
	require.NoError(t, err)

	assert.Equal(t, "doc.txt", rec.Filename)
	assert.NotEmpty(t, rec.ContentHash)
	assert.Equal(t, rec.ContentHash, rec.Metadata["hash"])
	assert.Equal(t, "extracted words", rec.Metadata["text"])
	assert.Equal(t, 1, store.putCalls)
}

func TestPipeline_DuplicateContent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	p := newTestPipeline(store, nil)

	path := writeTestFile(t, "dup.txt", []byte("same bytes"))
	first, err := p.Ingest(ctx, NewFileInput(path), Options{RequireUnique: true})
	require.NoError(t, err)

	_, err = p.Ingest(ctx, NewFileInput(path), Options{RequireUnique: true})
	require.Error(t, err)

	var dup *DuplicateContentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.Existing.ID)
	assert.Equal(t, 1, store.putCalls, "second ingest must not write")
}

func TestPipeline_SameContentAllowedWithoutUnique(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	p := newTestPipeline(store, nil)

	path := writeTestFile(t, "dup.txt", []byte("same bytes"))
	_, err := p.Ingest(ctx, NewFileInput(path), Options{})
	require.NoError(t, err)
	_, err = p.Ingest(ctx, NewFileInput(path), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.putCalls)
}

func TestPipeline_TrustsDeclaredType(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	p := newTestPipeline(store, nil)

	path := writeTestFile(t, "fake.csv", pngHeader)
	rec, err := p.Ingest(ctx, NewFileInput(path), Options{ContentType: "text/csv", DisableExtraction: true})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", rec.ContentType)
}

func TestPipeline_ExtractionFailureNonFatal(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	p := newTestPipeline(store, stubText{err: errors.New("engine exploded")})

	path := writeTestFile(t, "doc.txt", []byte("content"))
	rec, err := p.Ingest(ctx, NewFileInput(path), Options{})
	require.NoError(t, err)

	_, hasText := rec.Metadata["text"]
	assert.False(t, hasText, "failed extraction must leave the field absent")
	assert.Equal(t, 1, store.putCalls)
}

func TestPipeline_PreWriteRecheckReturnsExisting(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	winner := &blobstore.Record{ID: "winner", ContentHash: "h"}
	// first check passes, the re-check sees a concurrent writer's record
	store.findScript = []*blobstore.Record{nil, winner}

	p := newTestPipeline(store, nil)
	path := writeTestFile(t, "raced.txt", []byte("raced content"))

	rec, err := p.Ingest(ctx, NewFileInput(path), Options{RequireUnique: true})
	require.NoError(t, err)
	assert.Equal(t, "winner", rec.ID)
	assert.Equal(t, 0, store.putCalls, "local write attempt must be discarded")
}

func TestPipeline_StreamsWithKnownSize(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	p := newTestPipeline(store, nil)

	content := []byte("0123456789abcdef")
	path := writeTestFile(t, "doc.bin", content)
	rec, err := p.Ingest(ctx, NewFileInput(path), Options{DisableExtraction: true})
	require.NoError(t, err)

	assert.Equal(t, int64(len(content)), store.lastPutSize, "store must receive the size up front")
	assert.Equal(t, int64(len(content)), rec.Size)
}

func TestPipeline_StoreErrorFatal(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.putErr = errors.New("disk full")
	p := newTestPipeline(store, nil)

	path := writeTestFile(t, "doc.txt", []byte("content"))
	_, err := p.Ingest(ctx, NewFileInput(path), Options{})
	require.Error(t, err)

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestPipeline_CallerMetadataMerged(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	p := newTestPipeline(store, stubText{text: "body"})

	path := writeTestFile(t, "doc.txt", []byte("body"))
	rec, err := p.Ingest(ctx, NewFileInput(path), Options{
		Metadata: map[string]string{"mime": "text/csv", "text": "caller value"},
	})
	require.NoError(t, err)

	assert.Equal(t, "text/csv", rec.Metadata["mime"])
	assert.Equal(t, "body", rec.Metadata["text"], "enrichment wins on collision")
}
