package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docuflow/engine/internal/repository"
)

// Service produces XLSX bytes for completed extraction jobs. Field columns
// are the union of every exported job's schema, so mixed-schema batches still
// land in one sheet.
type Service struct {
	jobs   repository.JobRepository
	logger *slog.Logger
}

func NewService(jobs repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobsXLSX renders the most recent jobs (up to limit) as a workbook.
// Failed jobs are included with their error message and empty field columns.
func (s *Service) ExportJobsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	// union of field names, insertion-ordered
	var fieldNames []string
	seen := map[string]bool{}
	for _, job := range jobs {
		for _, spec := range job.Schema {
			if !seen[spec.Name] {
				seen[spec.Name] = true
				fieldNames = append(fieldNames, spec.Name)
			}
		}
	}

	f := excelize.NewFile()
	const sheet = "Extractions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := append([]string{
		"Job ID",
		"Document",
		"Status",
		"Engine",
		"Attempts",
		"Confidence",
		"Created At",
		"Error",
	}, fieldNames...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, job := range jobs {
		errMsg := ""
		if job.ErrorMessage != nil {
			errMsg = *job.ErrorMessage
		}
		values := []any{
			job.ID.String(),
			job.DocumentRef,
			string(job.Status),
			job.EngineUsed,
			job.Attempts,
			job.Confidence,
			job.CreatedAt.UTC().Format(time.RFC3339),
			errMsg,
		}
		for _, name := range fieldNames {
			var v any
			if job.Result != nil {
				v = job.Result.Fields[name]
			}
			values = append(values, cellValue(v))
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(jobs),
		"columns", len(headers),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// cellValue flattens extracted values into something excelize can render.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		return fmt.Sprintf("%v", t)
	default:
		return t
	}
}
