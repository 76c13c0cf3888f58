package extractor

import (
	"context"
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// exifFields are the capture fields copied into record metadata when present.
var exifFields = []exif.FieldName{
	exif.Make,
	exif.Model,
	exif.DateTime,
	exif.DateTimeOriginal,
	exif.Orientation,
	exif.PixelXDimension,
	exif.PixelYDimension,
	exif.GPSLatitudeRef,
	exif.GPSLongitudeRef,
}

// ExifReader reads embedded capture metadata from JPEG files.
type ExifReader struct{}

// ExtractImageMetadata decodes the EXIF block and flattens the known capture
// fields into a string mapping keyed "exif_<field>".
func (r *ExifReader) ExtractImageMetadata(ctx context.Context, path string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	fields := map[string]string{}
	for _, name := range exifFields {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		fields["exif_"+string(name)] = tag.String()
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no exif capture fields in %s", path)
	}
	return fields, nil
}
