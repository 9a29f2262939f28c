// Package imaging re-encodes stored images into the formats offered by the
// export endpoint.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotFound          = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecode            = errors.New("failed to decode image")
)

// JPEGQuality is used for every jpeg export.
const JPEGQuality = 90

// NormalizeFormat lower-cases a format name, maps jpg to jpeg and rejects
// anything that cannot be encoded.
func NormalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "jpg":
		return "jpeg", nil
	case "png", "jpeg", "gif", "bmp", "tiff":
		return f, nil
	case "tif":
		return "tiff", nil
	}
	return "", fmt.Errorf("%w: %q (must be png, jpeg, gif, bmp or tiff)", ErrUnsupportedFormat, format)
}

// ContentType returns the MIME type served for an export format.
func ContentType(format string) string {
	return "image/" + format
}

// Transcoder decodes an image file and encodes it to a target format.  The
// zero value is ready to use.
type Transcoder struct{}

// Transcode performs a full decode/re-encode of the file at path.  Embedded
// metadata, including a watermark token, does not survive.
func (Transcoder) Transcode(path, format string) ([]byte, error) {
	target, err := NormalizeFormat(format)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return Encode(data, target)
}

// Encode converts in-memory image bytes to the (normalised) target format.
func Encode(data []byte, target string) ([]byte, error) {
	img, current, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug("transcoder: decode failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	slog.Debug("transcoder: decoded image",
		"current_format", current,
		"target_format", target,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	var buf bytes.Buffer
	switch target {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff":
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, target)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image to %s: %w", target, err)
	}
	return buf.Bytes(), nil
}
