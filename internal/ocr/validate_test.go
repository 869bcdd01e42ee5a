package ocr

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestValidateDocument_Empty(t *testing.T) {
	err := ValidateDocument(entity.Document{Name: "a.pdf"}, FileLimits{})
	var fv *common.FileValidationError
	require.True(t, errors.As(err, &fv))
	assert.Contains(t, fv.Reason, "empty")
}

func TestValidateDocument_TooLarge(t *testing.T) {
	doc := entity.Document{Name: "a.pdf", Bytes: make([]byte, 11)}
	err := ValidateDocument(doc, FileLimits{MaxBytes: 10})
	var fv *common.FileValidationError
	require.True(t, errors.As(err, &fv))
	assert.Contains(t, fv.Reason, "too large")
}

func TestValidateDocument_UnsupportedExtension(t *testing.T) {
	doc := entity.Document{Name: "doc.docx", Bytes: []byte("x")}
	err := ValidateDocument(doc, FileLimits{})
	var fv *common.FileValidationError
	require.True(t, errors.As(err, &fv))
	assert.Contains(t, fv.Reason, "unsupported extension")
}

func TestValidateDocument_NarrowImage(t *testing.T) {
	doc := entity.Document{Name: "scan.png", Bytes: pngBytes(t, 640, 480)}
	err := ValidateDocument(doc, FileLimits{MinImageWidth: 1000})
	var fv *common.FileValidationError
	require.True(t, errors.As(err, &fv))
	assert.Contains(t, fv.Reason, "too narrow")
}

func TestValidateDocument_WideImageOK(t *testing.T) {
	doc := entity.Document{Name: "scan.png", Bytes: pngBytes(t, 1200, 20)}
	assert.NoError(t, ValidateDocument(doc, FileLimits{MinImageWidth: 1000}))
}

func TestValidateDocument_PDFSkipsWidthCheck(t *testing.T) {
	doc := entity.Document{Name: "doc.pdf", Bytes: []byte("%PDF-1.4")}
	assert.NoError(t, ValidateDocument(doc, FileLimits{MinImageWidth: 1000}))
}

func TestValidateDocument_CaseInsensitiveExtension(t *testing.T) {
	doc := entity.Document{Name: "SCAN.PNG", Bytes: pngBytes(t, 1200, 20)}
	assert.NoError(t, ValidateDocument(doc, FileLimits{MinImageWidth: 1000}))
}
