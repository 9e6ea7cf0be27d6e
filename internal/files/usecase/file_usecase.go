package usecase

import (
	"context"
	"fmt"

	"filestore/internal/files/domain/model"
	"filestore/internal/files/domain/repository"
	"filestore/internal/files/domain/service"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/logger"
)

// FileUsecase defines the interface for file storage operations.
type FileUsecase interface {
	// ProcessUpload classifies the upload by content type and either stores
	// it, forwards it for conversion, or rejects it. Returns one result per
	// stored object (one for images, one per page for converted documents).
	ProcessUpload(ctx context.Context, req ProcessUploadRequest) ([]model.UploadResult, error)

	// GetFile opens a stored file for streaming.
	GetFile(ctx context.Context, req GetFileRequest) (*FileDownload, error)

	// GetThumbnail opens the thumbnail rendition of a stored image.
	GetThumbnail(ctx context.Context, req GetFileRequest) (*FileDownload, error)

	// DeleteFile removes a file after verifying the caller owns it.
	DeleteFile(ctx context.Context, req DeleteFileRequest) error

	// ListFiles returns the metadata of all files owned by a user.
	ListFiles(ctx context.Context, req ListFilesRequest) ([]*model.StoredFile, error)
}

type fileUsecaseImpl struct {
	blobStore  repository.BlobStore
	fileRepo   repository.FileRepository
	converter  repository.DocumentConverter
	thumbnails service.ThumbnailService
	events     *FileEventEmitter
	logger     logger.Logger
}

// NewFileUsecase creates a new instance of FileUsecase.
func NewFileUsecase(
	blobStore repository.BlobStore,
	fileRepo repository.FileRepository,
	converter repository.DocumentConverter,
	thumbnails service.ThumbnailService,
	events *FileEventEmitter,
	log logger.Logger,
) FileUsecase {
	return &fileUsecaseImpl{
		blobStore:  blobStore,
		fileRepo:   fileRepo,
		converter:  converter,
		thumbnails: thumbnails,
		events:     events,
		logger:     log,
	}
}

func (uc *fileUsecaseImpl) GetFile(ctx context.Context, req GetFileRequest) (*FileDownload, error) {
	uc.logger.Debug("Fetching file", "fileID", req.FileID)

	id, err := model.ParseFileID(req.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidFileID, req.FileID)
	}

	meta, err := uc.fileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	reader, size, err := uc.blobStore.OpenDownload(ctx, id)
	if err != nil {
		uc.logger.Error("Failed to open blob", "fileID", req.FileID, "error", err)
		return nil, fmt.Errorf("failed to open file %s: %w", req.FileID, err)
	}

	return &FileDownload{
		Meta:        meta,
		Reader:      reader,
		ContentType: meta.ContentType,
		Size:        size,
	}, nil
}

func (uc *fileUsecaseImpl) GetThumbnail(ctx context.Context, req GetFileRequest) (*FileDownload, error) {
	uc.logger.Debug("Fetching thumbnail", "fileID", req.FileID)

	id, err := model.ParseFileID(req.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidFileID, req.FileID)
	}

	meta, err := uc.fileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !meta.HasThumbnail() {
		return nil, fmt.Errorf("%w: no thumbnail for file %s", apperrors.ErrFileNotFound, req.FileID)
	}

	reader, size, err := uc.blobStore.OpenDownload(ctx, meta.ThumbnailID)
	if err != nil {
		uc.logger.Error("Failed to open thumbnail blob", "fileID", req.FileID, "error", err)
		return nil, fmt.Errorf("failed to open thumbnail for %s: %w", req.FileID, err)
	}

	return &FileDownload{
		Meta:        meta,
		Reader:      reader,
		ContentType: service.ThumbnailContentType,
		Size:        size,
	}, nil
}

func (uc *fileUsecaseImpl) DeleteFile(ctx context.Context, req DeleteFileRequest) error {
	uc.logger.Info("Deleting file", "fileID", req.FileID, "userID", req.UserID)

	if req.UserID == "" {
		return apperrors.ErrMissingOwnerID
	}
	// A presented token must agree with the claimed owner.
	if req.TokenSubject != "" && req.TokenSubject != req.UserID {
		uc.logger.Warn("Token subject does not match claimed owner",
			"fileID", req.FileID, "userID", req.UserID)
		return apperrors.ErrOwnerMismatch
	}

	id, err := model.ParseFileID(req.FileID)
	if err != nil {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidFileID, req.FileID)
	}

	meta, err := uc.fileRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if meta.OwnerID != req.UserID {
		uc.logger.Warn("Rejected delete by non-owner",
			"fileID", req.FileID, "userID", req.UserID, "ownerID", meta.OwnerID)
		return apperrors.ErrOwnerMismatch
	}

	// Metadata goes first so the file stops resolving even if blob removal
	// fails; orphaned chunks are harmless and logged.
	if err := uc.fileRepo.Delete(ctx, id); err != nil {
		uc.logger.Error("Failed to delete file metadata", "fileID", req.FileID, "error", err)
		return fmt.Errorf("failed to delete file %s: %w", req.FileID, err)
	}

	if err := uc.blobStore.Delete(ctx, id); err != nil {
		uc.logger.Error("Failed to delete blob after metadata removal", "fileID", req.FileID, "error", err)
	}
	if meta.HasThumbnail() {
		if err := uc.blobStore.Delete(ctx, meta.ThumbnailID); err != nil {
			uc.logger.Error("Failed to delete thumbnail blob", "fileID", req.FileID, "error", err)
		}
	}

	uc.events.FileDeleted(ctx, meta)
	uc.logger.Info("File deleted", "fileID", req.FileID, "ownerID", meta.OwnerID)
	return nil
}

func (uc *fileUsecaseImpl) ListFiles(ctx context.Context, req ListFilesRequest) ([]*model.StoredFile, error) {
	if req.OwnerID == "" {
		return nil, apperrors.ErrMissingOwnerID
	}

	files, err := uc.fileRepo.ListByOwner(ctx, req.OwnerID)
	if err != nil {
		uc.logger.Error("Failed to list files", "ownerID", req.OwnerID, "error", err)
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}
