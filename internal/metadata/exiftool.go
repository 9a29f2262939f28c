package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExifToolCodec shells out to exiftool and stores the token in the EXIF
// UserComment tag.  Each invocation is bounded by Timeout.
type ExifToolCodec struct {
	Path    string
	Timeout time.Duration
}

func (c *ExifToolCodec) Write(ctx context.Context, path, token string) error {
	if _, err := statFile(path); err != nil {
		return err
	}
	_, err := c.run(ctx, "-overwrite_original", "-UserComment="+token, "--", path)
	return err
}

func (c *ExifToolCodec) Read(ctx context.Context, path string) (string, bool, error) {
	if _, err := statFile(path); err != nil {
		return "", false, err
	}
	// -b prints the raw value with no trailing newline, so tokens that end
	// in line breaks survive the round trip.
	out, err := c.run(ctx, "-b", "-UserComment", "--", path)
	if err != nil {
		return "", false, err
	}
	token := string(out)
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

func (c *ExifToolCodec) run(ctx context.Context, args ...string) ([]byte, error) {
	bin := c.Path
	if bin == "" {
		bin = "exiftool"
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: exiftool timed out after %s", ErrCodec, c.Timeout)
		}
		return nil, fmt.Errorf("%w: exiftool: %v: %s", ErrCodec, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
