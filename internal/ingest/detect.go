package ingest

import (
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const unknownType = "application/octet-stream"

// DetectType sniffs the content type of a file by magic bytes, ignoring the
// filename. Content that cannot be classified comes back as
// application/octet-stream so the caller can still store the file.
func DetectType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	return baseType(mtype.String()), nil
}

// baseType strips parameters like "; charset=utf-8" from a MIME type.
func baseType(mime string) string {
	if mime == "" {
		return unknownType
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}
