package usecase

import (
	"io"

	"filestore/internal/files/domain/model"
)

// Request/Response DTOs - Centralized type definitions

// ProcessUploadRequest carries one accepted multipart upload. ScratchPath
// points at the temporary copy the handler wrote; the handler owns that file
// and removes it after the usecase returns.
type ProcessUploadRequest struct {
	UserID       string `json:"userId" validate:"required"`
	OriginalName string `json:"originalName" validate:"required"`
	ContentType  string `json:"contentType"`
	ScratchPath  string `json:"-"`
	Size         int64  `json:"size"`
}

type GetFileRequest struct {
	FileID string `json:"fileId" validate:"required"`
}

type DeleteFileRequest struct {
	FileID string `json:"fileId" validate:"required"`
	UserID string `json:"userId" validate:"required"`

	// TokenSubject is the user ID carried by a presented bearer token, empty
	// for anonymous callers. When present it must agree with UserID.
	TokenSubject string `json:"-"`
}

type ListFilesRequest struct {
	OwnerID string `json:"userId" validate:"required"`
}

// FileDownload bundles a blob stream with the metadata needed to serve it.
// The caller must close Reader.
type FileDownload struct {
	Meta        *model.StoredFile
	Reader      io.ReadCloser
	ContentType string
	Size        int64
}
