package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FSStore implements Store on the local filesystem. Content lives in a
// two-level directory structure keyed by record id, with a JSON sidecar per
// record and a hash index for FindByHash lookups.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed store rooted at the given directory.
func NewFSStore(root string) (*FSStore, error) {
	for _, dir := range []string{root, filepath.Join(root, "objects"), filepath.Join(root, "records"), filepath.Join(root, "hashes")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &FSStore{root: root}, nil
}

// Put streams the content to disk, hashing as it writes, and persists the
// record sidecar. The content hash index is first-writer-wins: a second
// record with the same hash is stored but does not displace the index entry.
func (s *FSStore) Put(ctx context.Context, req PutRequest) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	objPath := s.objectPath(id)

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(objPath), ".put-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), req.Reader)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename object: %w", err)
	}

	hash := req.ContentHash
	if hash == "" {
		hash = hex.EncodeToString(hasher.Sum(nil))
	}

	rec := &Record{
		ID:          id,
		Filename:    req.Filename,
		ContentHash: hash,
		ContentType: req.ContentType,
		Size:        size,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.writeRecord(rec); err != nil {
		os.Remove(objPath)
		return nil, err
	}

	idxPath := s.hashPath(hash)
	if _, err := os.Stat(idxPath); os.IsNotExist(err) {
		if err := os.WriteFile(idxPath, []byte(id), 0o644); err != nil {
			return nil, fmt.Errorf("write hash index: %w", err)
		}
	}

	return rec, nil
}

// Get returns the full content of a record.
func (s *FSStore) Get(ctx context.Context, id string) ([]byte, error) {
	rc, err := s.OpenReadStream(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", id, err)
	}
	return data, nil
}

// OpenReadStream opens the content of a record for streaming reads.
func (s *FSStore) OpenReadStream(_ context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", id, err)
	}
	return f, nil
}

// Delete removes a record, its content, and its hash index entry when the
// entry still points at the deleted record.
func (s *FSStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	rec, err := s.readRecord(id)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read record %s: %w", id, err)
	}

	os.Remove(s.objectPath(id))
	os.Remove(s.recordPath(id))

	idxPath := s.hashPath(rec.ContentHash)
	if owner, err := os.ReadFile(idxPath); err == nil && strings.TrimSpace(string(owner)) == id {
		os.Remove(idxPath)
	}
	return true, nil
}

// FindByHash resolves a content hash through the index to its record.
func (s *FSStore) FindByHash(_ context.Context, hash string) (*Record, error) {
	if hash == "" {
		return nil, nil
	}
	owner, err := os.ReadFile(s.hashPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read hash index %s: %w", hash, err)
	}
	rec, err := s.readRecord(strings.TrimSpace(string(owner)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read record for hash %s: %w", hash, err)
	}
	return rec, nil
}

func (s *FSStore) Close() error {
	return nil
}

func (s *FSStore) writeRecord(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(s.recordPath(rec.ID), data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *FSStore) readRecord(id string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return rec, nil
}

func (s *FSStore) objectPath(id string) string {
	if len(id) < 2 {
		return filepath.Join(s.root, "objects", id)
	}
	return filepath.Join(s.root, "objects", id[:2], id[2:])
}

func (s *FSStore) recordPath(id string) string {
	return filepath.Join(s.root, "records", id+".json")
}

func (s *FSStore) hashPath(hash string) string {
	return filepath.Join(s.root, "hashes", hash)
}

// FSOpener opens per-prefix filesystem stores under a common base directory.
type FSOpener struct {
	base string
}

// NewFSOpener creates an Opener rooted at base.
func NewFSOpener(base string) *FSOpener {
	return &FSOpener{base: base}
}

// Open returns a store scoped to the given prefix.
func (o *FSOpener) Open(prefix string) (Store, error) {
	if prefix == "" {
		prefix = "fs"
	}
	return NewFSStore(filepath.Join(o.base, prefix))
}
