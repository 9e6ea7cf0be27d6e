package http

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"filestore/internal/files/usecase"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Multipart field names accepted by the upload endpoint.
const (
	fieldUserID = "userId"
	fieldFile   = "file"
)

// cacheForever is sent with every blob response. Stored objects are
// immutable (no update lifecycle), so clients may cache indefinitely.
const cacheForever = "public, max-age=31536000, immutable"

// FileHandler exposes the file storage operations over HTTP.
type FileHandler struct {
	usecase    usecase.FileUsecase
	scratchDir string
	logger     logger.Logger
}

// NewFileHandler creates a new file HTTP handler. scratchDir is where upload
// bodies are staged before classification; empty means the OS temp directory.
func NewFileHandler(uc usecase.FileUsecase, scratchDir string, log logger.Logger) *FileHandler {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &FileHandler{
		usecase:    uc,
		scratchDir: scratchDir,
		logger:     log.WithComponent("files.http"),
	}
}

// RegisterRoutes registers the file endpoints on the given router group.
// optionalAuth attaches a token principal when one is presented; the delete
// handler compares it against the claimed owner.
func (h *FileHandler) RegisterRoutes(router fiber.Router, optionalAuth fiber.Handler) {
	files := router.Group("/files")
	files.Post("/upload", h.Upload)
	files.Get("/", h.List)
	files.Get("/:fileId", h.Download)
	files.Get("/:fileId/thumbnail", h.Thumbnail)
	files.Delete("/:fileId", optionalAuth, h.Delete)
}

// Upload accepts a multipart request with userId and file fields, stages the
// body in a scratch file, and routes it by declared content type. The scratch
// file is removed on every exit path.
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.FormValue(fieldUserID))
	if userID == "" {
		return h.sendError(c, apperrors.NewValidationError("userId field is required").
			WithCode("MISSING_USER_ID"))
	}

	fileHeader, err := c.FormFile(fieldFile)
	if err != nil {
		return h.sendError(c, apperrors.NewValidationError("file field is required").
			WithCode("MISSING_FILE").WithCause(err))
	}

	scratchPath := filepath.Join(h.scratchDir, uuid.NewString()+filepath.Ext(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, scratchPath); err != nil {
		return h.sendError(c, apperrors.NewInternalError("failed to stage upload").
			WithCode("SCRATCH_WRITE_FAILED").WithCause(err))
	}
	defer h.removeScratch(c, scratchPath)

	results, err := h.usecase.ProcessUpload(c.UserContext(), usecase.ProcessUploadRequest{
		UserID:       userID,
		OriginalName: fileHeader.Filename,
		ContentType:  fileHeader.Header.Get(fiber.HeaderContentType),
		ScratchPath:  scratchPath,
		Size:         fileHeader.Size,
	})
	if err != nil {
		return h.sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(results)
}

// Download streams a stored blob back to the caller with its content type,
// length, and the long-lived cache directive.
func (h *FileHandler) Download(c *fiber.Ctx) error {
	download, err := h.usecase.GetFile(c.UserContext(), usecase.GetFileRequest{
		FileID: c.Params("fileId"),
	})
	if err != nil {
		return h.sendError(c, err)
	}

	c.Set(fiber.HeaderContentType, download.ContentType)
	c.Set(fiber.HeaderCacheControl, cacheForever)
	// fasthttp closes the stream after the body is written.
	return c.SendStream(download.Reader, int(download.Size))
}

// Thumbnail streams the reduced-size rendition of a stored image.
func (h *FileHandler) Thumbnail(c *fiber.Ctx) error {
	download, err := h.usecase.GetThumbnail(c.UserContext(), usecase.GetFileRequest{
		FileID: c.Params("fileId"),
	})
	if err != nil {
		return h.sendError(c, err)
	}

	c.Set(fiber.HeaderContentType, download.ContentType)
	c.Set(fiber.HeaderCacheControl, cacheForever)
	return c.SendStream(download.Reader, int(download.Size))
}

// Delete removes a stored file after the usecase verifies ownership. The
// owner identifier comes from the userId query parameter; when a bearer
// token accompanied the request its subject must agree.
func (h *FileHandler) Delete(c *fiber.Ctx) error {
	tokenSubject, _ := utils.GetUserIDFromContext(c.UserContext())

	err := h.usecase.DeleteFile(c.UserContext(), usecase.DeleteFileRequest{
		FileID:       c.Params("fileId"),
		UserID:       strings.TrimSpace(c.Query(fieldUserID)),
		TokenSubject: tokenSubject,
	})
	if err != nil {
		return h.sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "file deleted",
		"fileId":  c.Params("fileId"),
	})
}

// List returns the metadata of all files owned by a user, newest first.
func (h *FileHandler) List(c *fiber.Ctx) error {
	ownerID := strings.TrimSpace(c.Query(fieldUserID))
	if ownerID == "" {
		return h.sendError(c, apperrors.NewValidationError("userId query parameter is required").
			WithCode("MISSING_USER_ID"))
	}

	files, err := h.usecase.ListFiles(c.UserContext(), usecase.ListFilesRequest{OwnerID: ownerID})
	if err != nil {
		return h.sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"files": files,
		"total": len(files),
	})
}

func (h *FileHandler) removeScratch(c *fiber.Ctx, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.WithContext(c.UserContext()).Warn("Failed to remove scratch file",
			"path", path, "error", err)
	}
}

// sendError maps a domain error onto the HTTP error contract
// {message, errorKey, requestId} and logs it with the request correlation id.
func (h *FileHandler) sendError(c *fiber.Ctx, err error) error {
	status, key, message := classifyError(err)

	log := h.logger.WithContext(c.UserContext())
	if status >= fiber.StatusInternalServerError {
		log.Error("File request failed", "errorKey", key, "error", err)
	} else {
		log.Warn("File request rejected", "errorKey", key, "error", err)
	}

	return c.Status(status).JSON(fiber.Map{
		"message":   message,
		"errorKey":  key,
		"requestId": utils.GetRequestIDOrDefault(c.UserContext(), ""),
	})
}

func classifyError(err error) (status int, key, message string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		key := appErr.Code
		if key == "" {
			key = string(appErr.Type)
		}
		return appErr.HTTPCode, key, appErr.Message
	}

	switch {
	case errors.Is(err, apperrors.ErrMissingOwnerID):
		return fiber.StatusUnauthorized, "MISSING_OWNER_ID", "owner ID not supplied"
	case errors.Is(err, apperrors.ErrOwnerMismatch):
		return fiber.StatusForbidden, "OWNER_MISMATCH", "owner ID does not match stored owner"
	case errors.Is(err, apperrors.ErrInvalidFileID):
		return fiber.StatusBadRequest, "INVALID_FILE_ID", "file ID is malformed"
	case errors.Is(err, apperrors.ErrMissingFile):
		return fiber.StatusBadRequest, "MISSING_FILE", "file field missing from request"
	case apperrors.IsUnsupportedMedia(err):
		return fiber.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE", "content type is not supported"
	case apperrors.IsNotFound(err):
		return fiber.StatusNotFound, "NOT_FOUND", "file not found"
	case errors.Is(err, apperrors.ErrConversionFailed):
		return fiber.StatusInternalServerError, "CONVERSION_FAILED", "document conversion failed"
	default:
		return fiber.StatusInternalServerError, "STORAGE_FAILURE", "failed to process file request"
	}
}
