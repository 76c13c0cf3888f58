package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/fileflow/internal/ingest"
	"github.com/your-org/fileflow/internal/ingest/extractor"
	"github.com/your-org/fileflow/internal/server"
	"github.com/your-org/fileflow/pkg/config"
	"github.com/your-org/fileflow/pkg/kafka"
	"github.com/your-org/fileflow/pkg/logger"
	"github.com/your-org/fileflow/pkg/storage/blobstore"
	"github.com/your-org/fileflow/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	opener, err := blobstore.NewOpener(blobstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init blob store", zap.Error(err))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.EventsTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
	}

	ext := ingest.NewExtractor(ingest.ExtractorParams{
		Text:    extractor.NewEngine(),
		Image:   &extractor.ExifReader{},
		Timeout: cfg.Upload.ExtractionTimeout,
		Logger:  logr,
	})

	routes, err := cfg.Upload.ParseRoutes()
	if err != nil {
		logr.Fatal("parse upload routes", zap.Error(err))
	}
	serverRoutes := make([]server.Route, 0, len(routes))
	for _, r := range routes {
		serverRoutes = append(serverRoutes, server.Route{
			URL:           r.URL,
			StoragePrefix: r.StoragePrefix,
			ImportType:    r.ImportType,
		})
	}

	srv, err := server.New(server.Params{
		Opener:            opener,
		Extractor:         ext,
		Routes:            serverRoutes,
		Producer:          producer,
		Logger:            logr,
		RequireClientCert: cfg.HTTP.RequireClientCert,
		BatchWorkers:      cfg.Upload.BatchWorkers,
		MaxSizeBytes:      cfg.Upload.MaxSizeBytes,
		FormMemBytes:      cfg.Upload.MultipartMemBytes,
	})
	if err != nil {
		logr.Fatal("init upload server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	useTLS := cfg.HTTP.CertFile != ""
	if useTLS {
		tlsCfg, err := buildTLSConfig(cfg.HTTP)
		if err != nil {
			logr.Fatal("build tls config", zap.Error(err))
		}
		httpServer.TLSConfig = tlsCfg
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if producer != nil {
			if err := producer.Close(shutdownCtx); err != nil {
				logr.Error("producer shutdown failed", zap.Error(err))
			}
		}
		if err := srv.Close(); err != nil {
			logr.Error("server close failed", zap.Error(err))
		}
	}()

	if useTLS {
		logr.Info("import server starting", zap.String("addr", cfg.HTTP.Addr))
		err = httpServer.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
	} else {
		logr.Warn("insecure import server starting without TLS", zap.String("addr", cfg.HTTP.Addr))
		err = httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

// buildTLSConfig wires the optional client certificate requirement.
func buildTLSConfig(cfg config.HTTPConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if !cfg.RequireClientCert {
		return tlsCfg, nil
	}

	pool := x509.NewCertPool()
	if cfg.ClientCAFile != "" {
		pem, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		pool.AppendCertsFromPEM(pem)
	}
	tlsCfg.ClientCAs = pool
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	return tlsCfg, nil
}

func parseResourceAttributes(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	attrs := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" || !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
