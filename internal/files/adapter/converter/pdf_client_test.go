package converter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filestore/internal/files/domain/model"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScratchPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scratch.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake document"), 0o600))
	return path
}

func TestPDFConverterClient_ConvertPDF(t *testing.T) {
	var gotUserID, gotOriginalName, gotFilename string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/convert", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotUserID = r.FormValue("userId")
		gotOriginalName = r.FormValue("originalName")

		file, header, err := r.FormFile("pdf_file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename

		resp := model.ConversionResponse{
			ConvertedFiles: []model.UploadResult{
				{
					OriginalName: "report.pdf",
					FileID:       "65f1a2b3c4d5e6f7a8b9c0d1",
					Filename:     "65f1a2b3c4d5e6f7a8b9c0d1_page1.png",
					ContentType:  "image/png",
					PageNumber:   1,
				},
				{
					OriginalName: "report.pdf",
					FileID:       "65f1a2b3c4d5e6f7a8b9c0d2",
					Filename:     "65f1a2b3c4d5e6f7a8b9c0d2_page2.png",
					ContentType:  "image/png",
					PageNumber:   2,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewPDFConverterClient(server.URL, 5*time.Second, logger.NewLogger())

	results, err := client.ConvertPDF(context.Background(), model.ConversionRequest{
		ScratchPath:  writeScratchPDF(t),
		UserID:       "user123",
		OriginalName: "report.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "user123", gotUserID)
	assert.Equal(t, "report.pdf", gotOriginalName)
	assert.Equal(t, "report.pdf", gotFilename)

	require.Len(t, results, 2)
	assert.Equal(t, "image/png", results[0].ContentType)
	assert.Equal(t, 1, results[0].PageNumber)
	assert.Equal(t, 2, results[1].PageNumber)
}

func TestPDFConverterClient_ConvertPDF_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"converted_files":[]}`))
	}))
	defer server.Close()

	client := NewPDFConverterClient(server.URL, 5*time.Second, logger.NewLogger())

	results, err := client.ConvertPDF(context.Background(), model.ConversionRequest{
		ScratchPath:  writeScratchPDF(t),
		UserID:       "user123",
		OriginalName: "empty.pdf",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPDFConverterClient_ConvertPDF_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversion engine crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewPDFConverterClient(server.URL, 5*time.Second, logger.NewLogger())

	_, err := client.ConvertPDF(context.Background(), model.ConversionRequest{
		ScratchPath:  writeScratchPDF(t),
		UserID:       "user123",
		OriginalName: "report.pdf",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConversionFailed)
	assert.Contains(t, err.Error(), "500")
}

func TestPDFConverterClient_ConvertPDF_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	client := NewPDFConverterClient(server.URL, 5*time.Second, logger.NewLogger())

	_, err := client.ConvertPDF(context.Background(), model.ConversionRequest{
		ScratchPath:  writeScratchPDF(t),
		UserID:       "user123",
		OriginalName: "report.pdf",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConversionFailed)
}

func TestPDFConverterClient_ConvertPDF_MissingScratchFile(t *testing.T) {
	client := NewPDFConverterClient("http://localhost:0", time.Second, logger.NewLogger())

	_, err := client.ConvertPDF(context.Background(), model.ConversionRequest{
		ScratchPath:  filepath.Join(t.TempDir(), "does-not-exist.pdf"),
		UserID:       "user123",
		OriginalName: "ghost.pdf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open scratch file")
}
