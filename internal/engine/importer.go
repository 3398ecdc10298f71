package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/logger"
	"github.com/aethra/backoffice/internal/metrics"
	"github.com/aethra/backoffice/internal/tabular"
)

// ImportResult is the full accounting of a bulk import
type ImportResult struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	ImportedCount int      `json:"imported_count"`
	Errors        []string `json:"errors"`
}

// Row is one spreadsheet data row keyed by lower-cased header
type Row struct {
	Number int
	Cells  map[string]string
}

// PersistFunc stores one mapped row. The default creates the record through the service.
type PersistFunc[T any] func(ctx context.Context, svc *Service[T], entity *T, row Row, uctx UserContext) error

// Importer loads records from a spreadsheet, one row at a time.
// A failing row is reported and skipped; it never aborts the batch.
type Importer[T any] struct {
	svc     *Service[T]
	persist PersistFunc[T]
}

// NewImporter creates an importer; a nil persist uses Service.Create
func NewImporter[T any](svc *Service[T], persist PersistFunc[T]) *Importer[T] {
	if persist == nil {
		persist = func(ctx context.Context, svc *Service[T], entity *T, _ Row, uctx UserContext) error {
			_, err := svc.Create(ctx, entity, uctx)
			return err
		}
	}
	return &Importer[T]{svc: svc, persist: persist}
}

// Import reads file, choosing the format from filename, and imports every data row.
// Unreadable files and files without data rows fail the whole import.
func (im *Importer[T]) Import(ctx context.Context, file io.Reader, filename string, uctx UserContext) (*ImportResult, error) {
	format, err := tabular.FormatFromFilename(filename)
	if err != nil {
		return nil, apperrors.NewBadRequestError("unsupported file type: upload an .xlsx or .csv file")
	}
	grid, err := tabular.NewReader(format).Read(file)
	if err != nil {
		logger.FromContext(ctx).Warn("unreadable import file", zap.String("filename", filename), zap.Error(err))
		return nil, apperrors.NewBadRequestError("the uploaded file could not be read")
	}
	return im.ImportRows(ctx, grid, uctx)
}

// ImportRows imports a grid whose first row holds the headers
func (im *Importer[T]) ImportRows(ctx context.Context, grid [][]string, uctx UserContext) (*ImportResult, error) {
	if len(grid) == 0 || isBlankRow(grid[0]) {
		return nil, apperrors.NewBadRequestError("the uploaded file is empty")
	}
	if len(grid) < 2 {
		return nil, apperrors.NewBadRequestError("the uploaded file has no data rows")
	}

	desc := im.svc.Descriptor()
	log := logger.FromContext(ctx).With(zap.String("table", desc.Table)).With(uctx.Fields()...)

	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	result := &ImportResult{Errors: []string{}}
	for i, cells := range grid[1:] {
		number := i + 2
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Import stopped after row %d: %s; remaining rows were not processed", number-1, stopReason(err)))
			log.Warn("import interrupted", zap.Int("last_row", number-1), zap.Error(err))
			break
		}
		if isBlankRow(cells) {
			continue
		}

		row := Row{Number: number, Cells: make(map[string]string, len(headers))}
		for j, h := range headers {
			if h == "" || j >= len(cells) {
				continue
			}
			row.Cells[h] = cells[j]
		}

		if errs := im.importRow(ctx, row, uctx, log); len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			metrics.RecordImportRow(desc.Name, "failed")
			continue
		}
		result.ImportedCount++
		metrics.RecordImportRow(desc.Name, "imported")
	}

	result.Success = len(result.Errors) == 0
	if result.Success {
		result.Message = fmt.Sprintf("Import completed successfully. %d rows imported.", result.ImportedCount)
	} else {
		result.Message = fmt.Sprintf("Import completed with errors. %d rows imported, %d errors.", result.ImportedCount, len(result.Errors))
	}
	log.Info("import finished", zap.Int("imported", result.ImportedCount), zap.Int("errors", len(result.Errors)))
	return result, nil
}

func (im *Importer[T]) importRow(ctx context.Context, row Row, uctx UserContext, log *zap.Logger) []string {
	entity := im.svc.Repository().New(ctx)

	data := make(map[string]interface{}, len(row.Cells))
	for name, cell := range row.Cells {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		data[name] = cell
	}
	if err := im.svc.Apply(ctx, entity, data, uctx.IsPlatform()); err != nil {
		return rowErrors(row.Number, err)
	}

	if err := im.persist(ctx, im.svc, entity, row, uctx); err != nil {
		var appErr apperrors.AppError
		if !stderrors.As(err, &appErr) {
			log.Error("failed to import row", zap.Int("row", row.Number), zap.Error(err))
		}
		return rowErrors(row.Number, err)
	}
	return nil
}

// rowErrors renders an error as row-tagged messages, one per failing field
func rowErrors(number int, err error) []string {
	var ve *apperrors.ValidationError
	if stderrors.As(err, &ve) && len(ve.Fields) > 0 {
		out := make([]string, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			out = append(out, fmt.Sprintf("Row %d: %s %s", number, f.Field, f.Message))
		}
		return out
	}
	var appErr apperrors.AppError
	if stderrors.As(err, &appErr) {
		return []string{fmt.Sprintf("Row %d: %s", number, appErr.Error())}
	}
	return []string{fmt.Sprintf("Row %d: could not be saved", number)}
}

func stopReason(err error) string {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return "time limit reached"
	}
	return "cancelled"
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
