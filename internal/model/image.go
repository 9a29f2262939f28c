package model

import "time"

// Image represents a tattooed upload as stored in the `images`
// table.  A row is written once per successful upload and is never
// updated; Data holds the watermarked bytes so the token can be
// re-extracted even when the file on disk is gone.
//
// Fields:
//
//	ID              – UUID primary key assigned by the repository.
//	OriginalName    – filename supplied by the client, verbatim.
//	WatermarkedName – path of the tattooed copy on disk.
//	Metadata        – the embedded token.
//	Data            – watermarked image bytes.
//	CreatedAt       – insertion timestamp (UTC).
type Image struct {
	ID              string    // images.id
	OriginalName    string    // images.original_name
	WatermarkedName string    // images.watermarked_name
	Metadata        string    // images.metadata
	Data            []byte    // images.image_data
	CreatedAt       time.Time // images.created_at
}
