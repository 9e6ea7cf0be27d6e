package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"filestore/internal/files/domain/model"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/logger"
)

// Multipart field names the conversion service expects.
const (
	fieldPDFFile      = "pdf_file"
	fieldUserID       = "userId"
	fieldOriginalName = "originalName"
)

const convertEndpoint = "/convert"

// PDFConverterClient calls the external conversion service that renders each
// PDF page as a PNG and stores the results itself. The service returns one
// descriptor per page; this client relays them unchanged.
type PDFConverterClient struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewPDFConverterClient creates a client for the conversion service at baseURL.
func NewPDFConverterClient(baseURL string, timeout time.Duration, log logger.Logger) *PDFConverterClient {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &PDFConverterClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// ConvertPDF uploads the scratch file to the conversion service and returns
// the per-page descriptors it produced.
func (c *PDFConverterClient) ConvertPDF(ctx context.Context, req model.ConversionRequest) ([]model.UploadResult, error) {
	file, err := os.Open(req.ScratchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(fieldPDFFile, req.OriginalName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy scratch file into request: %w", err)
	}
	if err := writer.WriteField(fieldUserID, req.UserID); err != nil {
		return nil, fmt.Errorf("failed to write userId field: %w", err)
	}
	if err := writer.WriteField(fieldOriginalName, req.OriginalName); err != nil {
		return nil, fmt.Errorf("failed to write originalName field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+convertEndpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug("Forwarding PDF to conversion service",
		"originalName", req.OriginalName,
		"userId", req.UserID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConversionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversion response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Error("Conversion service returned non-2xx status",
			"status", resp.StatusCode,
			"originalName", req.OriginalName)
		return nil, fmt.Errorf("%w: status %d, body: %s", apperrors.ErrConversionFailed, resp.StatusCode, string(respBody))
	}

	var conversionResp model.ConversionResponse
	if err := json.Unmarshal(respBody, &conversionResp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", apperrors.ErrConversionFailed, err)
	}

	c.logger.Debug("Conversion completed",
		"originalName", req.OriginalName,
		"pages", len(conversionResp.ConvertedFiles))

	return conversionResp.ConvertedFiles, nil
}
