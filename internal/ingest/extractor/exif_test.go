package extractor

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJPEGWithExif assembles a minimal JPEG whose APP1 segment carries a
// little-endian TIFF block with Make and Model ASCII tags.
func writeJPEGWithExif(t *testing.T, path, camMake, camModel string) {
	t.Helper()

	makeVal := append([]byte(camMake), 0)
	modelVal := append([]byte(camModel), 0)

	// TIFF header (8) + entry count (2) + two 12-byte entries + next-IFD
	// pointer (4) puts the out-of-line values at offset 38.
	valueBase := uint32(38)

	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(42))          //nolint:errcheck
	binary.Write(&tiff, binary.LittleEndian, uint32(8))           //nolint:errcheck
	binary.Write(&tiff, binary.LittleEndian, uint16(2))           //nolint:errcheck
	writeIFDEntry(&tiff, 0x010F, uint32(len(makeVal)), valueBase) // Make
	writeIFDEntry(&tiff, 0x0110, uint32(len(modelVal)), valueBase+uint32(len(makeVal)))
	binary.Write(&tiff, binary.LittleEndian, uint32(0)) //nolint:errcheck
	tiff.Write(makeVal)
	tiff.Write(modelVal)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var jpg bytes.Buffer
	jpg.Write([]byte{0xFF, 0xD8})       // SOI
	jpg.Write([]byte{0xFF, 0xE1})       // APP1
	binary.Write(&jpg, binary.BigEndian, uint16(len(payload)+2)) //nolint:errcheck
	jpg.Write(payload)
	jpg.Write([]byte{0xFF, 0xD9}) // EOI

	require.NoError(t, os.WriteFile(path, jpg.Bytes(), 0o644))
}

// writeIFDEntry appends one ASCII-typed IFD entry with an out-of-line value.
func writeIFDEntry(buf *bytes.Buffer, tag uint16, count, offset uint32) {
	binary.Write(buf, binary.LittleEndian, tag)      //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint16(2)) //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, count)    //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, offset)   //nolint:errcheck
}

func TestExifReader_ExtractImageMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeJPEGWithExif(t, path, "gopher", "mark iv")

	r := &ExifReader{}
	fields, err := r.ExtractImageMetadata(context.Background(), path)
	require.NoError(t, err)
	require.Contains(t, fields, "exif_Make")
	require.Contains(t, fields, "exif_Model")
	assert.Contains(t, fields["exif_Make"], "gopher")
	assert.Contains(t, fields["exif_Model"], "mark iv")
}

func TestExifReader_NoExifBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644))

	r := &ExifReader{}
	_, err := r.ExtractImageMetadata(context.Background(), path)
	assert.Error(t, err)
}
