package repository

import (
	"context"

	"filestore/internal/files/domain/model"
)

// DocumentConverter forwards PDF documents to the external conversion
// service and relays the per-page descriptors it returns.
type DocumentConverter interface {
	ConvertPDF(ctx context.Context, req model.ConversionRequest) ([]model.UploadResult, error)
}
