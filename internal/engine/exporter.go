package engine

import (
	"context"
	"strings"

	"github.com/aethra/backoffice/internal/metrics"
	"github.com/aethra/backoffice/internal/tabular"
)

// Exporter renders listings and import templates as sheets
type Exporter[T any] struct {
	repo *Repository[T]
}

// NewExporter creates an exporter
func NewExporter[T any](repo *Repository[T]) *Exporter[T] {
	return &Exporter[T]{repo: repo}
}

// Export renders the whole filtered, sorted listing. Sensitive columns are left out.
func (e *Exporter[T]) Export(ctx context.Context, filters FilterSet, spec SortSpec, uctx UserContext) (*tabular.Sheet, error) {
	rows, err := e.repo.ListAll(ctx, filters, spec, uctx)
	if err != nil {
		return nil, err
	}

	desc := e.repo.desc
	cols := desc.ExportColumns()
	sheet := &tabular.Sheet{
		Title:   sheetTitle(desc),
		Headers: columnNames(cols),
		Rows:    make([][]string, 0, len(rows)),
	}
	for i := range rows {
		line := make([]string, len(cols))
		for j, col := range cols {
			line[j] = render(desc.Value(ctx, &rows[i], col.Name), desc.loc)
		}
		sheet.Rows = append(sheet.Rows, line)
	}

	metrics.RecordExportRows(desc.Name, len(sheet.Rows))
	return sheet, nil
}

// Template returns the import template: the columns a user fills in, plus the sample row when one is configured
func (e *Exporter[T]) Template(ctx context.Context) *tabular.Sheet {
	desc := e.repo.desc
	headers := append(columnNames(desc.TemplateColumns()), desc.ImportColumns...)
	sheet := &tabular.Sheet{
		Title:   sheetTitle(desc),
		Headers: headers,
		Rows:    [][]string{},
	}
	if len(desc.SampleRow) > 0 {
		sample := make([]string, len(headers))
		for i, name := range headers {
			sample[i] = desc.SampleRow[name]
		}
		sheet.Rows = append(sheet.Rows, sample)
	}
	return sheet
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

func sheetTitle(desc *Descriptor) string {
	return strings.ReplaceAll(desc.Name, "_", " ")
}
