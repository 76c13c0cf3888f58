package server

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/fileflow/pkg/storage/blobstore"
)

const (
	eventCommitted  = "file.committed"
	eventRolledBack = "file.rolledback"
)

// fileEvent is published to the event bus when a record is committed or
// rolled back.
type fileEvent struct {
	Event       string    `json:"event"`
	RecordID    string    `json:"record_id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ImportType  string    `json:"import_type"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// emitEvent publishes a file event. The producer is optional and publish
// failures only log; the HTTP response never depends on the event bus.
func (s *Server) emitEvent(ctx context.Context, event string, rec *blobstore.Record, importType string) {
	if s.params.Producer == nil {
		return
	}

	payload, err := json.Marshal(fileEvent{
		Event:       event,
		RecordID:    rec.ID,
		Filename:    rec.Filename,
		ContentHash: rec.ContentHash,
		ContentType: rec.ContentType,
		SizeBytes:   rec.Size,
		ImportType:  importType,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("marshal file event", zap.Error(err))
		return
	}

	headers := map[string]string{
		"record_id":  rec.ID,
		"event_type": event,
	}
	if err := s.params.Producer.Publish(ctx, []byte(rec.ID), payload, headers); err != nil {
		s.logger.Error("publish file event",
			zap.String("event", event),
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}
}
