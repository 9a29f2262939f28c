package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/image-tattoo/internal/model"
)

// ImageRepo encapsulates all database queries related to tattooed images.
// Each method is a single statement; no multi-statement transactions.
type ImageRepo struct {
	db *sql.DB
}

func NewImageRepo(db *sql.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// Create inserts one image row and returns its id.  The id and creation
// time are filled in when the caller leaves them empty.
func (r *ImageRepo) Create(ctx context.Context, img *model.Image) (string, error) {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	const q = `INSERT INTO images (id, original_name, watermarked_name, metadata, image_data, created_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q,
		img.ID, img.OriginalName, img.WatermarkedName, img.Metadata, img.Data, img.CreatedAt); err != nil {
		return "", storeErr("create image", err)
	}
	return img.ID, nil
}

// List returns every image in insertion order.
func (r *ImageRepo) List(ctx context.Context) ([]*model.Image, error) {
	const q = `SELECT id, original_name, watermarked_name, metadata, image_data, created_at
	           FROM images ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storeErr("list images", err)
	}
	defer rows.Close()

	out := []*model.Image{}
	for rows.Next() {
		img := new(model.Image)
		if err := rows.Scan(&img.ID, &img.OriginalName, &img.WatermarkedName, &img.Metadata, &img.Data, &img.CreatedAt); err != nil {
			return nil, storeErr("list images", err)
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list images", err)
	}
	return out, nil
}

// GetByID fetches one image.  It returns ErrNotFound if no row matches.
func (r *ImageRepo) GetByID(ctx context.Context, id string) (*model.Image, error) {
	const q = `SELECT id, original_name, watermarked_name, metadata, image_data, created_at
	           FROM images WHERE id = ?`
	img := new(model.Image)
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&img.ID, &img.OriginalName, &img.WatermarkedName, &img.Metadata, &img.Data, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get image", err)
	}
	return img, nil
}

// Delete removes one image row.  It returns ErrNotFound when no row is
// affected.  Files on disk are left alone.
func (r *ImageRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return storeErr("delete image", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete image", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
