package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config contains the information required to talk to an S3-compatible store.
type Config struct {
	Provider  string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewOpener creates a store opener based on the given configuration.
func NewOpener(cfg Config) (Opener, error) {
	switch cfg.Provider {
	case "minio", "s3":
		cl, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("init minio client: %w", err)
		}
		return &minioOpener{client: cl, bucket: cfg.Bucket}, nil
	case "fs":
		return NewFSOpener(cfg.Endpoint), nil
	default:
		return nil, fmt.Errorf("unsupported blob store provider: %s", cfg.Provider)
	}
}

type minioOpener struct {
	client *minio.Client
	bucket string
}

func (o *minioOpener) Open(prefix string) (Store, error) {
	if prefix == "" {
		prefix = "fs"
	}
	return &minioStore{client: o.client, bucket: o.bucket, prefix: prefix}, nil
}

// minioStore implements Store on top of an S3-compatible bucket. The record
// sidecar and the hash index are small JSON/text objects alongside the data
// object, mirroring the filesystem layout.
type minioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func (m *minioStore) Put(ctx context.Context, req PutRequest) (*Record, error) {
	id := uuid.NewString()

	// stream the reader straight through; minio falls back to multipart
	// upload when the size is unknown
	size := req.Size
	if size <= 0 {
		size = -1
	}
	opts := minio.PutObjectOptions{
		ContentType:  req.ContentType,
		UserMetadata: req.Metadata,
	}
	info, err := m.client.PutObject(ctx, m.bucket, m.objectKey(id), req.Reader, size, opts)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	rec := &Record{
		ID:          id,
		Filename:    req.Filename,
		ContentHash: req.ContentHash,
		ContentType: req.ContentType,
		Size:        info.Size,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.putJSON(ctx, m.recordKey(id), rec); err != nil {
		m.client.RemoveObject(ctx, m.bucket, m.objectKey(id), minio.RemoveObjectOptions{}) //nolint:errcheck
		return nil, fmt.Errorf("put record: %w", err)
	}

	if rec.ContentHash != "" {
		if existing, err := m.FindByHash(ctx, rec.ContentHash); err == nil && existing == nil {
			if err := m.putRaw(ctx, m.hashKey(rec.ContentHash), []byte(id)); err != nil {
				return nil, fmt.Errorf("put hash index: %w", err)
			}
		}
	}

	return rec, nil
}

func (m *minioStore) Get(ctx context.Context, id string) ([]byte, error) {
	rc, err := m.OpenReadStream(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read object %s: %w", id, err)
	}
	return data, nil
}

func (m *minioStore) OpenReadStream(ctx context.Context, id string) (io.ReadCloser, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, m.objectKey(id), minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object %s: %w", id, err)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, m.objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", id, err)
	}
	return obj, nil
}

func (m *minioStore) Delete(ctx context.Context, id string) (bool, error) {
	rec, err := m.getRecord(ctx, m.recordKey(id))
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("read record %s: %w", id, err)
	}

	m.client.RemoveObject(ctx, m.bucket, m.objectKey(id), minio.RemoveObjectOptions{})  //nolint:errcheck
	m.client.RemoveObject(ctx, m.bucket, m.recordKey(id), minio.RemoveObjectOptions{}) //nolint:errcheck

	if rec.ContentHash != "" {
		if owner, err := m.getRaw(ctx, m.hashKey(rec.ContentHash)); err == nil && string(owner) == id {
			m.client.RemoveObject(ctx, m.bucket, m.hashKey(rec.ContentHash), minio.RemoveObjectOptions{}) //nolint:errcheck
		}
	}
	return true, nil
}

func (m *minioStore) FindByHash(ctx context.Context, hash string) (*Record, error) {
	if hash == "" {
		return nil, nil
	}
	owner, err := m.getRaw(ctx, m.hashKey(hash))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read hash index %s: %w", hash, err)
	}
	rec, err := m.getRecord(ctx, m.recordKey(string(owner)))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read record for hash %s: %w", hash, err)
	}
	return rec, nil
}

func (m *minioStore) Close() error {
	return nil
}

func (m *minioStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.putRaw(ctx, key, data)
}

func (m *minioStore) putRaw(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

func (m *minioStore) getRaw(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (m *minioStore) getRecord(ctx context.Context, key string) (*Record, error) {
	data, err := m.getRaw(ctx, key)
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *minioStore) objectKey(id string) string {
	return path.Join(m.prefix, "objects", id)
}

func (m *minioStore) recordKey(id string) string {
	return path.Join(m.prefix, "records", id+".json")
}

func (m *minioStore) hashKey(hash string) string {
	return path.Join(m.prefix, "hashes", hash)
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
