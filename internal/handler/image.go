package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/image-tattoo/internal/config"
	"github.com/iliyamo/image-tattoo/internal/imaging"
	"github.com/iliyamo/image-tattoo/internal/metadata"
	"github.com/iliyamo/image-tattoo/internal/middleware"
	"github.com/iliyamo/image-tattoo/internal/model"
	"github.com/iliyamo/image-tattoo/internal/queue"
	"github.com/iliyamo/image-tattoo/internal/repository"
	"github.com/iliyamo/image-tattoo/internal/service"
)

// WatermarkPrefix starts the file name of every tattooed copy.
const WatermarkPrefix = "tatouee_"

// ImageStore is the subset of the image repository used by the handlers.
type ImageStore interface {
	Create(ctx context.Context, img *model.Image) (string, error)
	List(ctx context.Context) ([]*model.Image, error)
	GetByID(ctx context.Context, id string) (*model.Image, error)
	Delete(ctx context.Context, id string) error
}

// ImageHandler serves the upload, verify, listing, export and delete
// endpoints.
type ImageHandler struct {
	UploadDir      string
	MaxUploadBytes int64
	Images         ImageStore
	Watermark      *service.WatermarkService
	Verify         *service.VerifyService
	Transcoder     imaging.Transcoder
	Events         service.Publisher
	// Invalidate drops cached GET /images responses after a write.
	Invalidate func(ctx context.Context) error

	now func() time.Time
}

func NewImageHandler(cfg config.Config, images ImageStore, wm *service.WatermarkService, vs *service.VerifyService, events service.Publisher) *ImageHandler {
	if events == nil {
		events = service.NopPublisher{}
	}
	return &ImageHandler{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Images:         images,
		Watermark:      wm,
		Verify:         vs,
		Events:         events,
		now:            time.Now,
	}
}

type imageDTO struct {
	ID              string    `json:"id"`
	OriginalName    string    `json:"original_name"`
	WatermarkedName string    `json:"watermarked_name"`
	Metadata        string    `json:"metadata"`
	ImageData       []byte    `json:"image_data"` // base64 in JSON
	CreatedAt       time.Time `json:"created_at"`
}

// Upload stores the multipart "image" file, tattoos a copy with the
// "metadata" field (or the default token) and persists the tattooed bytes.
func (h *ImageHandler) Upload(c echo.Context) error {
	fh, status, msg := h.formFile(c)
	if fh == nil {
		return c.JSON(status, echo.Map{"error": msg})
	}

	stored, err := h.saveUpload(fh)
	if err != nil {
		return internalError(c, "failed to store upload", err)
	}

	base := filepath.Base(stored)
	target := filepath.Join(h.UploadDir,
		WatermarkPrefix+strings.TrimSuffix(base, filepath.Ext(base))+"."+mimeSubtype(fh, stored))

	ctx := c.Request().Context()
	token, data, err := h.Watermark.WatermarkPayload(ctx, stored, c.FormValue("metadata"), target)
	if err != nil {
		if errors.Is(err, metadata.ErrUnsupportedContainer) {
			return badRequest(c, "unsupported image format")
		}
		return internalError(c, "failed to watermark image", err)
	}

	img := &model.Image{
		OriginalName:    fh.Filename,
		WatermarkedName: target,
		Metadata:        token,
		Data:            data,
	}
	id, err := h.Images.Create(ctx, img)
	if err != nil {
		return internalError(c, "failed to save image", err)
	}
	h.afterWrite(ctx)

	ev := queue.ImageWatermarkedEvent{
		ImageID:         id,
		OriginalName:    img.OriginalName,
		WatermarkedName: img.WatermarkedName,
		Metadata:        token,
		UserID:          middleware.UserID(c),
		CreatedAt:       img.CreatedAt.Format(time.RFC3339),
	}
	if err := h.Events.ImageWatermarked(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("publish image.watermarked failed", "image_id", id, "err", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "image watermarked",
		"original":    stored,
		"watermarked": target,
		"metadata":    token,
		"imageId":     id,
	})
}

// VerifyUpload reads the token embedded in the multipart "image" file.  The
// upload is discarded afterwards.  metadata is null when no token is found.
func (h *ImageHandler) VerifyUpload(c echo.Context) error {
	fh, status, msg := h.formFile(c)
	if fh == nil {
		return c.JSON(status, echo.Map{"error": msg})
	}
	path, err := h.saveTemp(fh)
	if err != nil {
		return internalError(c, "failed to store upload", err)
	}
	defer os.Remove(path)

	token, found, err := h.Verify.Verify(c.Request().Context(), path)
	if err != nil {
		if errors.Is(err, metadata.ErrUnsupportedContainer) {
			return badRequest(c, "unsupported image format")
		}
		return internalError(c, "failed to read metadata", err)
	}
	if !found {
		return c.JSON(http.StatusOK, echo.Map{"message": "no metadata found", "metadata": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "metadata extracted", "metadata": token})
}

// List returns every stored image, oldest first.
func (h *ImageHandler) List(c echo.Context) error {
	images, err := h.Images.List(c.Request().Context())
	if err != nil {
		return internalError(c, "failed to list images", err)
	}
	out := make([]imageDTO, 0, len(images))
	for _, img := range images {
		out = append(out, imageDTO{
			ID:              img.ID,
			OriginalName:    img.OriginalName,
			WatermarkedName: img.WatermarkedName,
			Metadata:        img.Metadata,
			ImageData:       img.Data,
			CreatedAt:       img.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "images retrieved", "images": out})
}

// Metadata re-extracts the token from a stored payload and compares it with
// the recorded one.
func (h *ImageHandler) Metadata(c echo.Context) error {
	ctx := c.Request().Context()
	img, err := h.Images.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "image not found"})
		}
		return internalError(c, "failed to load image", err)
	}
	token, found, err := h.Verify.VerifyBytes(ctx, img.Data)
	if err != nil {
		if errors.Is(err, metadata.ErrUnsupportedContainer) {
			return badRequest(c, "unsupported image format")
		}
		return internalError(c, "failed to read metadata", err)
	}
	resp := echo.Map{"id": img.ID, "metadata": img.Metadata, "verified": found && token == img.Metadata}
	if found {
		resp["embedded"] = token
	} else {
		resp["embedded"] = nil
	}
	return c.JSON(http.StatusOK, resp)
}

// Export re-encodes a file under the upload directory.  format defaults to
// png.  The token does not survive the re-encode.  Paths that are empty or
// resolve outside the upload directory answer 404 like missing files.
func (h *ImageHandler) Export(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = "png"
	}
	target, err := imaging.NormalizeFormat(format)
	if err != nil {
		return badRequest(c, "unsupported format")
	}

	resolved, ok := h.confine(c.QueryParam("path"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
	}

	data, err := h.Transcoder.Transcode(resolved, target)
	switch {
	case errors.Is(err, imaging.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return badRequest(c, "unsupported format")
	case errors.Is(err, imaging.ErrDecode):
		return badRequest(c, "file is not a decodable image")
	case err != nil:
		return internalError(c, "failed to export image", err)
	}
	return c.Blob(http.StatusOK, imaging.ContentType(target), data)
}

// Delete removes one image record.  Files on disk are kept.
func (h *ImageHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.Images.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "image not found"})
		}
		return internalError(c, "failed to delete image", err)
	}
	h.afterWrite(ctx)

	ev := queue.ImageDeletedEvent{
		ImageID:   id,
		UserID:    middleware.UserID(c),
		DeletedAt: h.now().UTC().Format(time.RFC3339),
	}
	if err := h.Events.ImageDeleted(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("publish image.deleted failed", "image_id", id, "err", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "image deleted"})
}

func (h *ImageHandler) afterWrite(ctx context.Context) {
	if h.Invalidate == nil {
		return
	}
	if err := h.Invalidate(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("cache invalidation failed", "err", err)
	}
}

// formFile extracts the "image" part.  On failure it returns the status and
// message to answer with.
func (h *ImageHandler) formFile(c echo.Context) (*multipart.FileHeader, int, string) {
	req := c.Request()
	if h.MaxUploadBytes > 0 {
		if req.ContentLength > h.MaxUploadBytes {
			return nil, http.StatusRequestEntityTooLarge, "file too large"
		}
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.MaxUploadBytes)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return nil, http.StatusRequestEntityTooLarge, "file too large"
		}
		return nil, http.StatusBadRequest, "no file uploaded"
	}
	return fh, 0, ""
}

// maxNameAttempts bounds the suffixes tried when stored names collide.
const maxNameAttempts = 1000

// saveUpload copies the part to <UploadDir>/<unixMillis>-<base name>.  A
// name already taken in the same millisecond gets a -<n> suffix before the
// extension; existing files are never truncated.
func (h *ImageHandler) saveUpload(fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", err
	}
	base := safeBase(fh.Filename)
	ext := filepath.Ext(base)
	stem := fmt.Sprintf("%d-%s", h.now().UnixMilli(), strings.TrimSuffix(base, ext))

	var (
		dst  *os.File
		path string
		err  error
	)
	for n := 0; n < maxNameAttempts; n++ {
		name := stem + ext
		if n > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		path = filepath.Join(h.UploadDir, name)
		dst, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", err
	}
	if err := copyPart(fh, dst); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

func (h *ImageHandler) saveTemp(fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", err
	}
	dst, err := os.CreateTemp(h.UploadDir, ".verify-*"+filepath.Ext(safeBase(fh.Filename)))
	if err != nil {
		return "", err
	}
	if err := copyPart(fh, dst); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), dst.Close()
}

func copyPart(fh *multipart.FileHeader, dst io.Writer) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}

// confine resolves path and reports whether it lies inside UploadDir.
func (h *ImageHandler) confine(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	root, err := filepath.Abs(h.UploadDir)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

func safeBase(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return base
}

// mimeSubtype returns the extension of the tattooed copy: the subtype of
// the declared content type, or of the sniffed one when the client sent
// none.
func mimeSubtype(fh *multipart.FileHeader, stored string) string {
	ct := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		ct = sniff(stored)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	sub := strings.TrimPrefix(strings.TrimSpace(ct), "image/")
	if sub == "" || strings.Contains(sub, "/") {
		if ext := strings.TrimPrefix(filepath.Ext(stored), "."); ext != "" {
			return strings.ToLower(ext)
		}
		return "bin"
	}
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '.' {
			return r
		}
		return -1
	}, strings.ToLower(sub))
}

func sniff(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := io.ReadFull(f, buf)
	return http.DetectContentType(buf[:n])
}
