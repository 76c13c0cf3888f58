// Package server exposes the ingestion pipeline as an authenticated HTTP
// upload surface with a commit callback and compensating rollback.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/fileflow/internal/ingest"
	"github.com/your-org/fileflow/pkg/kafka"
	"github.com/your-org/fileflow/pkg/storage/blobstore"
)

// ErrMissingFile is reported when an upload request carries no file.
var ErrMissingFile = errors.New("file is missing")

// ErrTooLarge is reported when an upload exceeds the configured size cap.
var ErrTooLarge = errors.New("file exceeds max size limit")

// ErrUnauthorized is reported when a request fails the auth gate. A bad
// credential and a missing auth configuration surface identically.
var ErrUnauthorized = errors.New("user is not authorized")

// Route binds an upload URL to a storage prefix and an import type.
type Route struct {
	URL           string
	StoragePrefix string
	ImportType    string
}

// AuthFunc authorizes a request and returns the identity it ran as.
// A non-nil error or an empty identity rejects the request.
type AuthFunc func(r *http.Request) (string, error)

// CommitFunc is the application-supplied validation invoked after a
// successful ingest. A non-nil error rejects the stored record and triggers
// the compensating delete.
type CommitFunc func(ctx context.Context, result *UploadResult) error

// UploadResult is handed to the commit callback and, on approval, returned
// to the HTTP caller.
type UploadResult struct {
	File       *blobstore.Record `json:"file"`
	ImportType string            `json:"type"`
	Identity   string            `json:"user,omitempty"`
}

// Params configures the upload server.
type Params struct {
	Opener            blobstore.Opener
	Extractor         *ingest.Extractor
	Routes            []Route
	Auth              AuthFunc        // optional request authorization callback
	Commit            CommitFunc      // optional post-upload validation
	Producer          *kafka.Producer // optional post-commit event bus
	Logger            *zap.Logger
	RequireClientCert bool
	BatchWorkers      int
	MaxSizeBytes      int64
	FormMemBytes      int64
}

type boundRoute struct {
	route    Route
	pipeline *ingest.Pipeline
	importer *ingest.BatchImporter
}

// Server handles upload requests: authorize, ingest, commit, and roll back
// the stored record when the commit callback rejects it.
type Server struct {
	params Params
	logger *zap.Logger
	router chi.Router
	stores []blobstore.Store
}

// New constructs the Server and opens one store per configured route.
func New(p Params) (*Server, error) {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.MaxSizeBytes <= 0 {
		p.MaxSizeBytes = 1 << 30
	}
	if p.FormMemBytes <= 0 {
		p.FormMemBytes = 32 << 20
	}

	s := &Server{params: p, logger: p.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Get("/healthz", s.handleHealth)

	for _, route := range p.Routes {
		store, err := p.Opener.Open(route.StoragePrefix)
		if err != nil {
			s.closeStores()
			return nil, fmt.Errorf("open store for %s: %w", route.URL, err)
		}
		s.stores = append(s.stores, store)

		pipeline := ingest.NewPipeline(ingest.PipelineParams{
			Store:     store,
			Extractor: p.Extractor,
			Logger:    p.Logger,
		})
		bound := boundRoute{
			route:    route,
			pipeline: pipeline,
			importer: ingest.NewBatchImporter(ingest.BatchImporterParams{
				Pipeline: pipeline,
				Workers:  p.BatchWorkers,
				Logger:   p.Logger,
			}),
		}
		r.Post(route.URL, s.handleUpload(bound))
	}

	s.router = r
	return s, nil
}

// Router exposes the configured chi router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the per-route stores.
func (s *Server) Close() error {
	s.closeStores()
	return nil
}

func (s *Server) closeStores() {
	for _, store := range s.stores {
		store.Close() //nolint:errcheck
	}
	s.stores = nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(bound boundRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.authorize(r)
		if err != nil {
			s.logger.Warn("upload rejected", zap.String("url", bound.route.URL), zap.Error(err))
			writeError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
			return
		}

		input, cleanup, err := s.receiveFile(w, r)
		if err != nil {
			s.logger.Warn("upload rejected", zap.String("url", bound.route.URL), zap.Error(err))
			switch {
			case errors.Is(err, ErrMissingFile):
				writeError(w, http.StatusUnsupportedMediaType, ErrMissingFile.Error())
			case errors.Is(err, ErrTooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, ErrTooLarge.Error())
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		defer cleanup()

		batch := bound.importer.ImportCSV(r.Context(), []ingest.FileInput{input}, true)
		outcome := batch.Outcomes[0]
		if outcome.Failed() {
			s.logger.Error("ingest failed",
				zap.String("url", bound.route.URL),
				zap.String("filename", input.Name),
				zap.Error(outcome.Err))
			writeIngestError(w, outcome.Err)
			return
		}

		result := &UploadResult{
			File:       outcome.Record,
			ImportType: bound.route.ImportType,
			Identity:   identity,
		}

		if s.params.Commit != nil {
			if commitErr := s.params.Commit(r.Context(), result); commitErr != nil {
				// the compensating delete must survive a client that hung
				// up after the rejection
				s.rollback(context.WithoutCancel(r.Context()), bound, outcome.Record)
				writeError(w, http.StatusInternalServerError, commitErr.Error())
				return
			}
		}

		s.emitEvent(r.Context(), eventCommitted, outcome.Record, bound.route.ImportType)
		writeJSON(w, http.StatusOK, result)
	}
}

// authorize applies the transport credential check and then the optional
// authorization callback. Both failure modes produce the same rejection so
// callers cannot distinguish a bad credential from a missing configuration.
func (s *Server) authorize(r *http.Request) (string, error) {
	if s.params.RequireClientCert {
		if r.TLS == nil || len(r.TLS.VerifiedChains) == 0 {
			return "", ErrUnauthorized
		}
	}
	if s.params.Auth == nil {
		return "", nil
	}
	identity, err := s.params.Auth(r)
	if err != nil || identity == "" {
		return "", ErrUnauthorized
	}
	return identity, nil
}

// receiveFile spools the multipart file field to a temp file so the pipeline
// can make multiple streaming passes over it. The size cap is enforced three
// times over: on the declared Content-Length, on the body itself (chunked
// requests carry no length), and on the parsed part's size.
func (s *Server) receiveFile(w http.ResponseWriter, r *http.Request) (ingest.FileInput, func(), error) {
	if r.ContentLength > 0 && r.ContentLength > s.params.MaxSizeBytes {
		return ingest.FileInput{}, nil, ErrTooLarge
	}
	// headroom for the multipart framing around the capped file part
	r.Body = http.MaxBytesReader(w, r.Body, s.params.MaxSizeBytes+s.params.FormMemBytes)
	if err := r.ParseMultipartForm(s.params.FormMemBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ingest.FileInput{}, nil, ErrTooLarge
		}
		return ingest.FileInput{}, nil, fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return ingest.FileInput{}, nil, ErrMissingFile
	}
	defer file.Close()

	if header.Size > s.params.MaxSizeBytes {
		return ingest.FileInput{}, nil, ErrTooLarge
	}

	tmp, err := os.CreateTemp("", "fileflow-upload-*")
	if err != nil {
		return ingest.FileInput{}, nil, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return ingest.FileInput{}, nil, fmt.Errorf("spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return ingest.FileInput{}, nil, fmt.Errorf("spool upload: %w", err)
	}

	cleanup := func() { os.Remove(tmp.Name()) }
	return ingest.FileInput{Path: tmp.Name(), Name: header.Filename}, cleanup, nil
}

// rollback issues the compensating delete for a record the commit callback
// refused. A delete failure is logged but never masks the commit rejection
// already owed to the caller.
func (s *Server) rollback(ctx context.Context, bound boundRoute, rec *blobstore.Record) {
	if _, err := bound.pipeline.Delete(ctx, rec.ID); err != nil {
		s.logger.Error("compensating delete failed, record may be orphaned",
			zap.String("record_id", rec.ID),
			zap.Error(err))
		return
	}
	s.logger.Info("commit rejected, stored record rolled back",
		zap.String("record_id", rec.ID),
		zap.String("url", bound.route.URL))
	s.emitEvent(ctx, eventRolledBack, rec, bound.route.ImportType)
}
