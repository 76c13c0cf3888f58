package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractor_SetsTextField(t *testing.T) {
	e := NewExtractor(ExtractorParams{Text: stubText{text: "hello"}, Timeout: time.Second})

	meta := e.Extract(context.Background(), "text/plain", "ignored.txt", extractorOptions())
	assert.Equal(t, "hello", meta["text"])
}

func TestExtractor_SkipsNonTextTypes(t *testing.T) {
	e := NewExtractor(ExtractorParams{Text: stubText{text: "hello"}, Timeout: time.Second})

	meta := e.Extract(context.Background(), "application/zip", "archive.zip", extractorOptions())
	_, ok := meta["text"]
	assert.False(t, ok)
}

func TestExtractor_HungEngineTimesOut(t *testing.T) {
	e := NewExtractor(ExtractorParams{
		Text:    stubText{text: "never delivered", delay: 2 * time.Second},
		Timeout: 50 * time.Millisecond,
	})

	start := time.Now()
	meta := e.Extract(context.Background(), "text/plain", "slow.txt", extractorOptions())
	elapsed := time.Since(start)

	_, ok := meta["text"]
	assert.False(t, ok, "timed-out extraction must leave the field absent")
	assert.Less(t, elapsed, time.Second, "extraction must be bounded by the timeout")
}

func TestExtractor_ImageFieldsMerged(t *testing.T) {
	e := NewExtractor(ExtractorParams{
		Image:   stubImage{fields: map[string]string{"exif_Make": "TestCam"}},
		Timeout: time.Second,
	})

	meta := e.Extract(context.Background(), "image/jpeg", "photo.jpg", extractorOptions())
	assert.Equal(t, "TestCam", meta["exif_Make"])
}

func TestExtractor_ImageFailureNonFatal(t *testing.T) {
	e := NewExtractor(ExtractorParams{
		Text:    stubText{text: "caption"},
		Image:   stubImage{err: assert.AnError},
		Timeout: time.Second,
	})

	meta := e.Extract(context.Background(), "image/jpeg", "photo.jpg", extractorOptions())
	assert.NotContains(t, meta, "exif_Make")
}
