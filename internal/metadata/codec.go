// Package metadata reads and writes the single free-text slot used to carry
// a watermark token inside an image file.
//
// The slot is the EXIF UserComment tag: metadata, not pixel data, so any
// metadata-aware tool can display or strip it.  NativeCodec edits the EXIF
// block of PNG (eXIf chunk) and JPEG (APP1 segment) files in process;
// ExifToolCodec delegates to an external exiftool process.  Tokens written
// by one are read by the other.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

var (
	// ErrNotFound is returned when the target file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrCodec is returned when the container cannot be parsed or written.
	ErrCodec = errors.New("metadata codec error")
	// ErrUnsupportedContainer accompanies ErrCodec when the file is neither
	// PNG nor JPEG.  It is a caller error rather than a tool failure.
	ErrUnsupportedContainer = errors.New("unsupported image container")
)

// Codec attaches or retrieves one text token on an image file.
type Codec interface {
	// Write stores token in the designated slot of the file at path,
	// replacing any previous token.
	Write(ctx context.Context, path, token string) error
	// Read returns the stored token.  found is false when the slot is absent.
	Read(ctx context.Context, path string) (token string, found bool, err error)
}

// NewCodec builds the codec named by kind ("native" or "exiftool").
func NewCodec(kind, exiftoolPath string, timeout time.Duration) (Codec, error) {
	switch kind {
	case "", "native":
		return NativeCodec{}, nil
	case "exiftool":
		return &ExifToolCodec{Path: exiftoolPath, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown metadata codec %q", kind)
	}
}

func statFile(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	return info, nil
}
