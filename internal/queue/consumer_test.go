package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine_Watermarked(t *testing.T) {
	body, err := json.Marshal(ImageWatermarkedEvent{
		ImageID:         "img-1",
		OriginalName:    "scan.png",
		WatermarkedName: "uploads/tatouee_1-scan.png",
		Metadata:        "ID_Patient:12345",
		CreatedAt:       "2026-01-02T03:04:05Z",
	})
	require.NoError(t, err)

	line, err := FormatLine(ImageWatermarkedQueue, body)
	require.NoError(t, err)
	assert.Equal(t,
		`[2026-01-02T03:04:05Z] Image watermarked | image_id=img-1 | user_id=guest | original="scan.png" | watermarked="uploads/tatouee_1-scan.png" | metadata="ID_Patient:12345"`+"\n",
		line)
}

func TestFormatLine_Deleted(t *testing.T) {
	body := []byte(`{"image_id":"img-2","user_id":"u-9","deleted_at":"2026-01-02T00:00:00Z"}`)
	line, err := FormatLine(ImageDeletedQueue, body)
	require.NoError(t, err)
	assert.Equal(t, "[2026-01-02T00:00:00Z] Image deleted | image_id=img-2 | user_id=u-9\n", line)
}

func TestFormatLine_Errors(t *testing.T) {
	_, err := FormatLine(ImageDeletedQueue, []byte("{"))
	assert.Error(t, err)
	_, err = FormatLine("booking.confirmed", []byte("{}"))
	assert.Error(t, err)
}

func TestHandleMessage_AppendsOneLinePerEvent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, handleMessage(dir, ImageDeletedQueue, []byte(`{"image_id":"a","deleted_at":"t1"}`)))
	require.NoError(t, handleMessage(dir, ImageDeletedQueue, []byte(`{"image_id":"b","deleted_at":"t2"}`)))
	assert.Error(t, handleMessage(dir, ImageDeletedQueue, []byte(`not json`)))

	data, err := os.ReadFile(filepath.Join(dir, AuditLogName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "image_id=a")
	assert.Contains(t, lines[1], "image_id=b")
}
