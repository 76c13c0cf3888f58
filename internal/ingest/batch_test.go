package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImporter(store *fakeStore) *BatchImporter {
	return NewBatchImporter(BatchImporterParams{
		Pipeline: newTestPipeline(store, nil),
		Workers:  3,
	})
}

func TestBatchImporter_MixedInputsKeepOrder(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := newTestImporter(store)

	inputs := []FileInput{
		NewFileInput(writeTestFile(t, "a.csv", []byte("h1,h2\n1,2\n"))),
		NewFileInput(writeTestFile(t, "image.csv", pngHeader)),             // binary behind a csv name
		NewFileInput(writeTestFile(t, "notes.txt", []byte("plain text"))), // wrong extension
		NewFileInput(writeTestFile(t, "b.csv", []byte("x,y\n3,4\n"))),
	}

	result := b.ImportCSV(ctx, inputs, true)
	require.Len(t, result.Outcomes, len(inputs))

	for i, outcome := range result.Outcomes {
		assert.Equal(t, inputs[i].Name, outcome.Input.Name, "outcome %d out of order", i)
	}

	assert.False(t, result.Outcomes[0].Failed())
	assert.True(t, result.Outcomes[1].Failed())
	assert.True(t, result.Outcomes[2].Failed())
	assert.False(t, result.Outcomes[3].Failed())

	mismatches := 0
	for _, failure := range result.Failures {
		var mismatch *FormatMismatchError
		if assert.ErrorAs(t, failure.Err, &mismatch) {
			mismatches++
		}
	}
	assert.Equal(t, 2, mismatches)
}

func TestBatchImporter_CSVRecordMetadata(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := newTestImporter(store)

	path := writeTestFile(t, "report.csv", []byte("incident,severity\noutage,high\n"))
	result := b.ImportCSV(ctx, []FileInput{NewFileInput(path)}, true)

	require.Len(t, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	require.False(t, outcome.Failed(), "err: %v", outcome.Err)

	rec := outcome.Record
	assert.True(t, strings.HasPrefix(rec.ContentType, "text/"), "sniffed type, got %s", rec.ContentType)
	assert.Equal(t, "text/csv", rec.Metadata["mime"])
	assert.Empty(t, result.Failures)
}

func TestBatchImporter_ForwardsSniffedType(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := newTestImporter(store)

	path := writeTestFile(t, "data.csv", []byte("a,b\n1,2\n"))
	input := NewFileInput(path)

	detected, err := checkCSV(input)
	require.NoError(t, err)

	result := b.ImportCSV(ctx, []FileInput{input}, false)
	require.Len(t, result.Outcomes, 1)
	require.False(t, result.Outcomes[0].Failed())

	// the pre-check's sniff result is handed to the pipeline as the declared
	// type, so the file is only read once for detection
	assert.Equal(t, detected, result.Outcomes[0].Record.ContentType)
}

func TestBatchImporter_SingleInputSamePath(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := newTestImporter(store)

	path := writeTestFile(t, "one.csv", []byte("k,v\n1,a\n"))
	result := b.ImportCSV(ctx, []FileInput{NewFileInput(path)}, true)

	require.Len(t, result.Outcomes, 1)
	assert.False(t, result.Outcomes[0].Failed())

	// importing the same content again reports the duplicate per-outcome
	again := b.ImportCSV(ctx, []FileInput{NewFileInput(path)}, true)
	require.Len(t, again.Outcomes, 1)
	var dup *DuplicateContentError
	assert.ErrorAs(t, again.Outcomes[0].Err, &dup)
}

func TestBatchImporter_FailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := newTestImporter(store)

	inputs := []FileInput{
		NewFileInput(writeTestFile(t, "bad.csv", pngHeader)),
		NewFileInput(writeTestFile(t, "good.csv", []byte("a,b\n1,2\n"))),
	}
	result := b.ImportCSV(ctx, inputs, false)

	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[0].Failed())
	assert.False(t, result.Outcomes[1].Failed())
	assert.Equal(t, 1, store.putCalls)
}
