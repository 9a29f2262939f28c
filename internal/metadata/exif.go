package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
)

const (
	// UserCommentTag is the EXIF tag (0x9286) carrying the token.  exiftool
	// reads and writes the same tag, so both codecs see one slot.
	UserCommentTag = "UserComment"

	exifIfdPath = "IFD/Exif"
)

// exifContainer is the EXIF surface shared by the JPEG segment list and the
// PNG chunk slice.
type exifContainer interface {
	hasExif() bool
	Exif() (*exif.Ifd, []byte, error)
	ConstructExifBuilder() (*exif.IfdBuilder, error)
	SetExif(ib *exif.IfdBuilder) error
	encode() ([]byte, error)
}

// writeUserComment replaces the UserComment of c, creating the EXIF block
// and the Exif sub-IFD when the file has none.  Every other tag is kept.
func writeUserComment(c exifContainer, token string) ([]byte, error) {
	rootIb, err := rootBuilder(c)
	if err != nil {
		return nil, err
	}
	ib, err := exif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
	if err != nil {
		return nil, fmt.Errorf("%w: exif sub-ifd: %v", ErrCodec, err)
	}
	uc := exifundefined.Tag9286UserComment{
		EncodingType:  exifundefined.TagUndefinedType_9286_UserComment_Encoding_ASCII,
		EncodingBytes: []byte(token),
	}
	if err := ib.SetStandardWithName(UserCommentTag, uc); err != nil {
		return nil, fmt.Errorf("%w: set %s: %v", ErrCodec, UserCommentTag, err)
	}
	if err := c.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("%w: encode exif: %v", ErrCodec, err)
	}
	return c.encode()
}

func rootBuilder(c exifContainer) (*exif.IfdBuilder, error) {
	if !c.hasExif() {
		im, err := exifcommon.NewIfdMappingWithStandard()
		if err != nil {
			return nil, fmt.Errorf("%w: ifd mapping: %v", ErrCodec, err)
		}
		return exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
	}
	rootIb, err := c.ConstructExifBuilder()
	if err != nil {
		return nil, fmt.Errorf("%w: read exif: %v", ErrCodec, err)
	}
	return rootIb, nil
}

// readUserComment returns the UserComment of c.  found is false when the
// file has no EXIF block, no Exif sub-IFD or no UserComment tag.
func readUserComment(c exifContainer) (string, bool, error) {
	if !c.hasExif() {
		return "", false, nil
	}
	rootIfd, raw, err := c.Exif()
	if err != nil {
		return "", false, fmt.Errorf("%w: read exif: %v", ErrCodec, err)
	}
	exifIfd, err := rootIfd.ChildWithIfdPath(exifcommon.IfdExifStandardIfdIdentity)
	if err != nil {
		return "", false, nil
	}
	entries, err := exifIfd.FindTagWithName(UserCommentTag)
	if err != nil || len(entries) == 0 {
		return "", false, nil
	}
	value, err := entries[0].Value()
	if err != nil {
		return "", false, fmt.Errorf("%w: decode %s: %v", ErrCodec, UserCommentTag, err)
	}

	var uc exifundefined.Tag9286UserComment
	switch v := value.(type) {
	case exifundefined.Tag9286UserComment:
		uc = v
	case *exifundefined.Tag9286UserComment:
		uc = *v
	default:
		return "", false, fmt.Errorf("%w: unexpected %s value %T", ErrCodec, UserCommentTag, value)
	}
	token := decodeUserComment(uc, tiffByteOrder(raw))
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// decodeUserComment turns the tag payload into text.  UNICODE payloads are
// UTF-16 in the byte order of the EXIF block; the rest are taken as UTF-8.
func decodeUserComment(uc exifundefined.Tag9286UserComment, order binary.ByteOrder) string {
	b := uc.EncodingBytes
	if uc.EncodingType != exifundefined.TagUndefinedType_9286_UserComment_Encoding_UNICODE {
		return strings.TrimRight(string(b), "\x00")
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = order.Uint16(b[2*i:])
	}
	if len(units) > 0 && units[0] == 0xFEFF {
		units = units[1:]
	}
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}

func tiffByteOrder(raw []byte) binary.ByteOrder {
	raw = bytes.TrimPrefix(raw, []byte("Exif\x00\x00"))
	if bytes.HasPrefix(raw, []byte("II")) {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
