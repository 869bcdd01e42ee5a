package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
)

// FileLimits bounds what the pipeline will accept before any recognition
// tier runs.
type FileLimits struct {
	MaxBytes      int64
	MinImageWidth int
}

// ValidateDocument rejects documents that can never produce a usable
// extraction. A rejection here is fatal for the job.
func ValidateDocument(doc entity.Document, limits FileLimits) error {
	if len(doc.Bytes) == 0 {
		return &common.FileValidationError{Name: doc.Name, Reason: "file is empty"}
	}
	if limits.MaxBytes > 0 && int64(len(doc.Bytes)) > limits.MaxBytes {
		return &common.FileValidationError{
			Name:   doc.Name,
			Reason: fmt.Sprintf("file too large: %d bytes exceeds limit of %d", len(doc.Bytes), limits.MaxBytes),
		}
	}
	ext := constants.NormalizeExt(filepath.Ext(doc.Name))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return &common.FileValidationError{
			Name:   doc.Name,
			Reason: fmt.Sprintf("unsupported extension: %q", ext),
		}
	}
	if constants.IsRasterExt(ext) && limits.MinImageWidth > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(doc.Bytes))
		if err != nil {
			return &common.FileValidationError{
				Name:   doc.Name,
				Reason: fmt.Sprintf("undecodable image: %v", err),
			}
		}
		if cfg.Width < limits.MinImageWidth {
			return &common.FileValidationError{
				Name:   doc.Name,
				Reason: fmt.Sprintf("image too narrow: %dpx < %dpx", cfg.Width, limits.MinImageWidth),
			}
		}
	}
	return nil
}
