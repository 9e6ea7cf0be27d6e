package usecase

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"filestore/internal/files/domain/model"
	"filestore/internal/files/domain/service"
	apperrors "filestore/internal/shared/errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Upload processing implementation
func (uc *fileUsecaseImpl) ProcessUpload(ctx context.Context, req ProcessUploadRequest) ([]model.UploadResult, error) {
	contentType := model.NormalizeContentType(req.ContentType)
	uc.logger.Info("Processing upload",
		"userID", req.UserID,
		"originalName", req.OriginalName,
		"contentType", contentType,
		"size", req.Size)

	switch model.ClassifyContentType(contentType) {
	case model.UploadClassImage:
		result, err := uc.storeImage(ctx, req, contentType)
		if err != nil {
			return nil, err
		}
		return []model.UploadResult{result}, nil

	case model.UploadClassPDF:
		return uc.convertDocument(ctx, req)

	default:
		uc.logger.Warn("Rejected unsupported upload",
			"contentType", contentType,
			"originalName", req.OriginalName)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, contentType)
	}
}

// storeImage streams the scratch copy into the blob store under a generated
// name, records metadata, and attaches a best-effort thumbnail.
func (uc *fileUsecaseImpl) storeImage(ctx context.Context, req ProcessUploadRequest, contentType string) (model.UploadResult, error) {
	storedName := model.StoredName(uuid.NewString(), req.OriginalName)

	source, err := os.Open(req.ScratchPath)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("%w: %v", apperrors.ErrScratchWriteError, err)
	}
	defer source.Close()

	now := time.Now().UTC()
	blobID, err := uc.blobStore.Upload(ctx, storedName, model.BlobMetadata{
		OwnerID:      req.UserID,
		OriginalName: req.OriginalName,
		ContentType:  contentType,
		UploadedAt:   now,
	}, source)
	if err != nil {
		uc.logger.Error("Failed to store image blob", "originalName", req.OriginalName, "error", err)
		return model.UploadResult{}, fmt.Errorf("failed to store file: %w", err)
	}

	stored := &model.StoredFile{
		ID:           blobID,
		Filename:     storedName,
		OriginalName: req.OriginalName,
		ContentType:  contentType,
		Size:         req.Size,
		OwnerID:      req.UserID,
		UploadedAt:   now,
	}

	if thumbID, ok := uc.generateThumbnail(ctx, req.ScratchPath, stored); ok {
		stored.ThumbnailID = thumbID
	}

	if err := uc.fileRepo.Insert(ctx, stored); err != nil {
		uc.logger.Error("Failed to insert file metadata, removing orphan blob",
			"fileID", blobID.Hex(), "error", err)
		if delErr := uc.blobStore.Delete(ctx, blobID); delErr != nil {
			uc.logger.Error("Failed to remove orphan blob", "fileID", blobID.Hex(), "error", delErr)
		}
		if stored.HasThumbnail() {
			if delErr := uc.blobStore.Delete(ctx, stored.ThumbnailID); delErr != nil {
				uc.logger.Error("Failed to remove orphan thumbnail", "fileID", blobID.Hex(), "error", delErr)
			}
		}
		return model.UploadResult{}, fmt.Errorf("failed to record file metadata: %w", err)
	}

	uc.events.FileUploaded(ctx, stored)
	uc.logger.Info("Image stored",
		"fileID", stored.FileID(),
		"filename", storedName,
		"ownerID", req.UserID)

	return stored.ToUploadResult(), nil
}

// generateThumbnail renders and stores a thumbnail for the scratch image.
// Any failure is logged and reported as "no thumbnail"; it never fails the
// upload.
func (uc *fileUsecaseImpl) generateThumbnail(ctx context.Context, scratchPath string, stored *model.StoredFile) (primitive.ObjectID, bool) {
	if uc.thumbnails == nil {
		return primitive.NilObjectID, false
	}

	source, err := os.Open(scratchPath)
	if err != nil {
		uc.logger.Warn("Failed to reopen scratch file for thumbnail", "filename", stored.Filename, "error", err)
		return primitive.NilObjectID, false
	}
	defer source.Close()

	thumbBytes, err := uc.thumbnails.Generate(source)
	if err != nil {
		uc.logger.Warn("Thumbnail generation failed", "filename", stored.Filename, "error", err)
		return primitive.NilObjectID, false
	}

	thumbName := uc.thumbnails.ThumbnailName(stored.Filename)
	thumbID, err := uc.blobStore.Upload(ctx, thumbName, model.BlobMetadata{
		OwnerID:      stored.OwnerID,
		OriginalName: stored.OriginalName,
		ContentType:  service.ThumbnailContentType,
		UploadedAt:   stored.UploadedAt,
	}, bytes.NewReader(thumbBytes))
	if err != nil {
		uc.logger.Warn("Failed to store thumbnail blob", "filename", thumbName, "error", err)
		return primitive.NilObjectID, false
	}

	return thumbID, true
}

// convertDocument forwards the scratch PDF to the conversion service and
// relays the per-page descriptors it returns. The conversion service owns
// the page blobs; nothing is written to the local store on this path.
func (uc *fileUsecaseImpl) convertDocument(ctx context.Context, req ProcessUploadRequest) ([]model.UploadResult, error) {
	results, err := uc.converter.ConvertPDF(ctx, model.ConversionRequest{
		ScratchPath:  req.ScratchPath,
		UserID:       req.UserID,
		OriginalName: req.OriginalName,
	})
	if err != nil {
		uc.logger.Error("PDF conversion failed", "originalName", req.OriginalName, "error", err)
		return nil, err
	}
	if results == nil {
		results = []model.UploadResult{}
	}

	uc.events.FileConverted(ctx, req.UserID, req.OriginalName, len(results))
	uc.logger.Info("PDF converted",
		"originalName", req.OriginalName,
		"pages", len(results),
		"userID", req.UserID)

	return results, nil
}
