package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the fileflow service.
// It is populated once at startup and never mutated afterwards.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Kafka   KafkaConfig
	Storage StorageConfig
	Tracing TracingConfig
	Upload  UploadConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"fileflow-ingestion"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8443"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// TLS material. Leaving CertFile empty starts an insecure listener.
	CertFile          string `env:"HTTP_TLS_CERT_FILE"`
	KeyFile           string `env:"HTTP_TLS_KEY_FILE"`
	ClientCAFile      string `env:"HTTP_TLS_CLIENT_CA_FILE"`
	RequireClientCert bool   `env:"HTTP_TLS_REQUIRE_CLIENT_CERT" envDefault:"false"`
}

type KafkaConfig struct {
	Enabled          bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	EventsTopic      string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"fileflow.events"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

type StorageConfig struct {
	// Provider selects the blob store backend: minio, s3, or fs.
	// For fs, Endpoint is the base directory.
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"fileflow"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=fileflow"`
}

type UploadConfig struct {
	MaxSizeBytes      int64         `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"1073741824"`
	MultipartMemBytes int64         `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"33554432"`
	ExtractionTimeout time.Duration `env:"UPLOAD_EXTRACTION_TIMEOUT" envDefault:"30s"`
	BatchWorkers      int           `env:"UPLOAD_BATCH_WORKERS" envDefault:"4"`

	// Routes declares the upload routes as url=prefix:type entries,
	// e.g. "/import/incidents=import:incidents,/import/reports=import:reports".
	Routes string `env:"UPLOAD_ROUTES" envDefault:"/api/v1/import=import:csv"`
}

// Route is one parsed upload route binding.
type Route struct {
	URL           string
	StoragePrefix string
	ImportType    string
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseRoutes expands the route table string into Route values.
func (u UploadConfig) ParseRoutes() ([]Route, error) {
	var routes []Route
	for _, entry := range strings.Split(u.Routes, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		url, binding, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid route entry %q: want url=prefix:type", entry)
		}
		prefix, importType, ok := strings.Cut(binding, ":")
		if !ok {
			return nil, fmt.Errorf("invalid route binding %q: want prefix:type", binding)
		}
		routes = append(routes, Route{
			URL:           strings.TrimSpace(url),
			StoragePrefix: strings.TrimSpace(prefix),
			ImportType:    strings.TrimSpace(importType),
		})
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no upload routes configured")
	}
	return routes, nil
}
