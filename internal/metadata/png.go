package metadata

import (
	"bytes"
	"fmt"

	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// pngFile stores EXIF in the eXIf chunk.
type pngFile struct {
	*pngstructure.ChunkSlice
}

func parsePNG(data []byte) (pngFile, error) {
	mc, err := pngstructure.NewPngMediaParser().ParseBytes(data)
	if err != nil {
		return pngFile{}, fmt.Errorf("%w: parse png: %v", ErrCodec, err)
	}
	cs, ok := mc.(*pngstructure.ChunkSlice)
	if !ok {
		return pngFile{}, fmt.Errorf("%w: parse png: unexpected %T", ErrCodec, mc)
	}
	return pngFile{cs}, nil
}

func (f pngFile) hasExif() bool {
	_, err := f.FindExif()
	return err == nil
}

func (f pngFile) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: write png: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

func setPNGComment(data []byte, token string) ([]byte, error) {
	f, err := parsePNG(data)
	if err != nil {
		return nil, err
	}
	return writeUserComment(f, token)
}

func pngComment(data []byte) (string, bool, error) {
	f, err := parsePNG(data)
	if err != nil {
		return "", false, err
	}
	return readUserComment(f)
}
