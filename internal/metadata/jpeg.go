package metadata

import (
	"bytes"
	"fmt"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// maxJPEGToken keeps the APP1 segment, which also carries the rest of the
// EXIF block, under the 64 KiB segment limit.
const maxJPEGToken = 60000

type jpegFile struct {
	*jpegstructure.SegmentList
}

func parseJPEG(data []byte) (jpegFile, error) {
	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return jpegFile{}, fmt.Errorf("%w: parse jpeg: %v", ErrCodec, err)
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return jpegFile{}, fmt.Errorf("%w: parse jpeg: unexpected %T", ErrCodec, mc)
	}
	return jpegFile{sl}, nil
}

func (f jpegFile) hasExif() bool {
	_, _, err := f.FindExif()
	return err == nil
}

func (f jpegFile) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: write jpeg: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

func setJPEGComment(data []byte, token string) ([]byte, error) {
	if len(token) > maxJPEGToken {
		return nil, fmt.Errorf("%w: token of %d bytes does not fit a JPEG APP1 segment", ErrCodec, len(token))
	}
	f, err := parseJPEG(data)
	if err != nil {
		return nil, err
	}
	return writeUserComment(f, token)
}

func jpegComment(data []byte) (string, bool, error) {
	f, err := parseJPEG(data)
	if err != nil {
		return "", false, err
	}
	return readUserComment(f)
}
