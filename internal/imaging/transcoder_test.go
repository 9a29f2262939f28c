package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < 10; i++ {
		img.Set(i, i, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "src.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "png", want: "png"},
		{in: "JPG", want: "jpeg"},
		{in: "jpeg", want: "jpeg"},
		{in: "gif", want: "gif"},
		{in: "bmp", want: "bmp"},
		{in: "tif", want: "tiff"},
		{in: "webp", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranscode_AllTargets(t *testing.T) {
	src := writeTestPNG(t)
	for _, format := range []string{"png", "jpeg", "gif", "bmp", "tiff"} {
		t.Run(format, func(t *testing.T) {
			out, err := Transcoder{}.Transcode(src, format)
			require.NoError(t, err)

			img, got, err := image.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, format, got)
			assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
		})
	}
}

func TestTranscode_Errors(t *testing.T) {
	_, err := Transcoder{}.Transcode(filepath.Join(t.TempDir(), "nope.png"), "jpeg")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Transcoder{}.Transcode(writeTestPNG(t), "avif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = Transcoder{}.Transcode(garbage, "png")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("jpeg"))
}
