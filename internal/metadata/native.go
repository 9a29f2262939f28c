package metadata

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// NativeCodec edits the EXIF block of PNG and JPEG files in process.  Image
// data and the other EXIF tags are kept, so decoding the image yields the
// same pixels.
type NativeCodec struct{}

func (NativeCodec) Write(ctx context.Context, path, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := statFile(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := checkHeader(data); err != nil {
		return fmt.Errorf("%w: %s", err, path)
	}
	var out []byte
	if isPNG(data) {
		out, err = setPNGComment(data, token)
	} else {
		out, err = setJPEGComment(data, token)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, info.Mode().Perm())
}

func (NativeCodec) Read(ctx context.Context, path string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if _, err := statFile(path); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	return ReadBytes(data)
}

// ReadBytes extracts the token from an in-memory image, e.g. a payload
// loaded from the record store.
func ReadBytes(data []byte) (string, bool, error) {
	if err := checkHeader(data); err != nil {
		return "", false, err
	}
	if isPNG(data) {
		return pngComment(data)
	}
	return jpegComment(data)
}

// checkHeader rejects files that are not PNG or JPEG, and truncated ones
// whose image header cannot be decoded.
func checkHeader(data []byte) error {
	if !isPNG(data) && !isJPEG(data) {
		return fmt.Errorf("%w: %w", ErrCodec, ErrUnsupportedContainer)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: image header: %v", ErrCodec, err)
	}
	return nil
}

func isPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

func isJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}
