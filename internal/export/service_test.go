package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/repository"
)

func TestExportJobsXLSX(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	completed := entity.NewJob("invoice.pdf", []entity.FieldSpec{
		{Name: "vendor_name", Type: entity.FieldText},
		{Name: "total", Type: entity.FieldCurrency},
	}, "")
	require.NoError(t, completed.MarkProcessing(time.Now()))
	rec := entity.ExtractedRecord{
		Fields:           map[string]any{"vendor_name": "Acme Corp", "total": 108.25},
		ValidationStatus: constants.ValidationValid,
	}
	require.NoError(t, completed.Complete(&rec, constants.EngineTier1, 0.95, time.Now()))
	require.NoError(t, repo.Create(context.Background(), completed))

	failed := entity.NewJob("broken.pdf", []entity.FieldSpec{
		{Name: "total", Type: entity.FieldCurrency},
	}, "")
	require.NoError(t, failed.MarkProcessing(time.Now()))
	require.NoError(t, failed.Fail(context.DeadlineExceeded, time.Now()))
	require.NoError(t, repo.Create(context.Background(), failed))

	data, err := NewService(repo, logger).ExportJobsXLSX(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Extractions")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two jobs")

	header := rows[0]
	assert.Contains(t, header, "vendor_name")
	assert.Contains(t, header, "total")
	assert.Contains(t, header, "Status")

	var completedRow, failedRow []string
	for _, r := range rows[1:] {
		if r[0] == completed.ID.String() {
			completedRow = r
		}
		if r[0] == failed.ID.String() {
			failedRow = r
		}
	}
	require.NotNil(t, completedRow)
	require.NotNil(t, failedRow)
	assert.Contains(t, completedRow, "completed")
	assert.Contains(t, completedRow, "Acme Corp")
	assert.Contains(t, failedRow, "failed")
}

func TestExportJobsXLSX_EmptyRepo(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	data, err := NewService(repo, logger).ExportJobsXLSX(context.Background(), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, data, "an empty workbook is still a valid file")
}
