package ingest

import (
	"crypto/md5" //nolint:gosec // secondary digest, not used for security
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// ContentHash streams the reader through SHA256 and returns the hex digest.
// The file is never buffered whole; a read error discards the partial state.
func ContentHash(r io.Reader) (string, error) {
	return digest(sha256.New(), r)
}

// ContentHashFile computes the dedup digest of a file on disk.
func ContentHashFile(path string) (string, error) {
	return digestFile(sha256.New(), path)
}

// SHA1File computes a SHA1 digest of a file on disk.
func SHA1File(path string) (string, error) {
	return digestFile(sha1.New(), path)
}

// MD5File computes an MD5 digest of a file on disk.
func MD5File(path string) (string, error) {
	return digestFile(md5.New(), path)
}

func digest(h hash.Hash, r io.Reader) (string, error) {
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func digestFile(h hash.Hash, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	defer f.Close()

	sum, err := digest(h, f)
	if err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	return sum, nil
}
