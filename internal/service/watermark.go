// Package service holds the business operations behind the HTTP handlers:
// tattooing an image, reading the tattoo back, and user signup/login.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/iliyamo/image-tattoo/internal/metadata"
)

// DefaultToken is embedded when neither the caller nor the configuration
// supplies one.
const DefaultToken = "ID_Patient:12345"

// ErrNotFound is returned when the source image of a watermark or a
// verification does not exist.
var ErrNotFound = errors.New("image not found")

// WatermarkService copies an image and writes a token into the copy.
type WatermarkService struct {
	codec        metadata.Codec
	defaultToken string
	locks        *pathLocks
}

// NewWatermarkService wires the process-wide codec.  An empty defaultToken
// falls back to DefaultToken.
func NewWatermarkService(codec metadata.Codec, defaultToken string) *WatermarkService {
	if defaultToken == "" {
		defaultToken = DefaultToken
	}
	return &WatermarkService{codec: codec, defaultToken: defaultToken, locks: newPathLocks()}
}

// DefaultToken reports the token used when a request carries none.
func (s *WatermarkService) DefaultToken() string { return s.defaultToken }

// ResolveToken returns token, or the default token when token is empty.
func (s *WatermarkService) ResolveToken(token string) string {
	if token == "" {
		return s.defaultToken
	}
	return token
}

// Watermark writes token into a copy of sourcePath stored at targetPath and
// returns the token actually embedded.  The copy is tattooed as a temporary
// sibling of targetPath and renamed into place only once the codec write
// succeeded, so a failure never leaves a half-written target and an
// existing target stays untouched.  Concurrent calls for the same target
// run one after another.
func (s *WatermarkService) Watermark(ctx context.Context, sourcePath, token, targetPath string) (string, error) {
	token, _, err := s.watermark(ctx, sourcePath, token, targetPath, false)
	return token, err
}

// WatermarkPayload is Watermark that also returns the tattooed bytes.  They
// are read before the target lock is released, so a concurrent call for the
// same target cannot swap the file underneath.
func (s *WatermarkService) WatermarkPayload(ctx context.Context, sourcePath, token, targetPath string) (string, []byte, error) {
	return s.watermark(ctx, sourcePath, token, targetPath, true)
}

func (s *WatermarkService) watermark(ctx context.Context, sourcePath, token, targetPath string, load bool) (string, []byte, error) {
	token = s.ResolveToken(token)

	src, err := os.Open(sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrNotFound, sourcePath)
		}
		return "", nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()
	if info, err := src.Stat(); err != nil {
		return "", nil, fmt.Errorf("stat source: %w", err)
	} else if info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, sourcePath)
	}

	unlock := s.locks.lock(targetPath)
	defer unlock()

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create target dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tattoo-*"+filepath.Ext(targetPath))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return "", nil, fmt.Errorf("copy source: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return "", nil, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := s.codec.Write(ctx, tmpPath, token); err != nil {
		return "", nil, fmt.Errorf("write token: %w", err)
	}
	var data []byte
	if load {
		if data, err = os.ReadFile(tmpPath); err != nil {
			return "", nil, fmt.Errorf("read tattooed copy: %w", err)
		}
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return "", nil, fmt.Errorf("commit target: %w", err)
	}
	committed = true
	return token, data, nil
}
