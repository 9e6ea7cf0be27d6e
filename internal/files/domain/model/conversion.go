package model

// ConversionRequest describes a PDF handed to the external conversion
// service. ScratchPath points at the handler's temporary copy of the upload;
// the converter reads it but never owns its lifecycle.
type ConversionRequest struct {
	ScratchPath  string
	UserID       string
	OriginalName string
}

// ConversionResponse is the payload returned by the conversion service.
// Each entry describes one converted page.
type ConversionResponse struct {
	ConvertedFiles []UploadResult `json:"converted_files"`
}
