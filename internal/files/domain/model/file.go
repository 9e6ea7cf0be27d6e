package model

import (
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoredFile is the metadata record for an object held in the blob store.
// The store-assigned ObjectID doubles as the public file identifier in its
// hex form. Records are created on successful store writes and removed on
// owner-authorized deletes; they are never updated afterwards.
type StoredFile struct {
	ID           primitive.ObjectID `bson:"_id" json:"-"`
	Filename     string             `bson:"filename" json:"filename"`
	OriginalName string             `bson:"originalName" json:"originalName"`
	ContentType  string             `bson:"contentType" json:"contentType"`
	Size         int64              `bson:"size" json:"size"`
	OwnerID      string             `bson:"ownerId" json:"ownerId"`
	UploadedAt   time.Time          `bson:"uploadedAt" json:"uploadedAt"`

	// ThumbnailID references the reduced-size rendition for image uploads.
	// Zero when no thumbnail exists.
	ThumbnailID primitive.ObjectID `bson:"thumbnailId,omitempty" json:"-"`
}

// FileID returns the public identifier for the stored file.
func (f *StoredFile) FileID() string {
	return f.ID.Hex()
}

// HasThumbnail reports whether a thumbnail rendition was generated.
func (f *StoredFile) HasThumbnail() bool {
	return !f.ThumbnailID.IsZero()
}

// ToUploadResult converts the record into the upload response entry shape.
func (f *StoredFile) ToUploadResult() UploadResult {
	return UploadResult{
		OriginalName: f.OriginalName,
		FileID:       f.FileID(),
		Filename:     f.Filename,
		ContentType:  f.ContentType,
	}
}

// BlobMetadata is stored alongside the binary chunks in the object store.
type BlobMetadata struct {
	OwnerID      string    `bson:"ownerId" json:"ownerId"`
	OriginalName string    `bson:"originalName" json:"originalName"`
	ContentType  string    `bson:"contentType" json:"contentType"`
	UploadedAt   time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

// UploadResult is one entry of the upload response array. PageNumber is set
// only for pages produced by document conversion (1-based).
type UploadResult struct {
	OriginalName string `json:"originalName"`
	FileID       string `json:"fileId"`
	Filename     string `json:"filename"`
	ContentType  string `json:"contentType"`
	PageNumber   int    `json:"pageNumber,omitempty"`
}

// ParseFileID validates the public identifier format and converts it into
// the store id. Malformed identifiers are a validation failure, not a miss.
func ParseFileID(fileID string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(fileID)
}

// StoredName derives the collision-resistant object name for an upload from
// a generated identifier and the original file's extension.
func StoredName(generatedID, originalName string) string {
	return generatedID + filepath.Ext(originalName)
}
