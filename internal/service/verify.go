package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/iliyamo/image-tattoo/internal/metadata"
)

// VerifyService reads back the token embedded by WatermarkService.
type VerifyService struct {
	codec metadata.Codec
}

func NewVerifyService(codec metadata.Codec) *VerifyService {
	return &VerifyService{codec: codec}
}

// Verify returns the token stored in the file at path.  found is false, with
// a nil error, when the file carries no token.
func (s *VerifyService) Verify(ctx context.Context, path string) (token string, found bool, err error) {
	token, found, err = s.codec.Read(ctx, path)
	if errors.Is(err, metadata.ErrNotFound) {
		return "", false, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return token, found, err
}

// VerifyBytes reads the token from an in-memory image, such as the
// image_data column of a stored record.  Codecs that only work on files get
// the payload through a temporary file.
func (s *VerifyService) VerifyBytes(ctx context.Context, data []byte) (string, bool, error) {
	if _, ok := s.codec.(metadata.NativeCodec); ok {
		return metadata.ReadBytes(data)
	}
	f, err := os.CreateTemp("", "tattoo-verify-*")
	if err != nil {
		return "", false, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", false, err
	}
	if err := f.Close(); err != nil {
		return "", false, err
	}
	return s.codec.Read(ctx, f.Name())
}
