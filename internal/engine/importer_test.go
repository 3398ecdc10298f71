package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/models"
	"github.com/aethra/backoffice/internal/tabular"
)

var contractHeaders = []string{"CTR_NUM", "Vendor_ID", "office_id", "start_date", "end_date", "currency"}

func TestImporter_PartialFailureKeepsGoodRows(t *testing.T) {
	db := newTestDB(t)
	im := NewImporter(contractService(t, db), nil)
	ctx := context.Background()

	grid := [][]string{
		contractHeaders,
		{"CTR-1", "1", "1", "45292", "45657", "EUR"},
		{"CTR-2", "", "1", "2024-01-01", "2024-12-31", "EURO"},
		{"", "", "", "", "", ""},
		{"CTR-4", "2.0", "1", "2024-02-01", "2024-03-01", "USD"},
		{"CTR-5", "x", "1", "2024-02-01", "2024-03-01", "USD"},
	}

	result, err := im.ImportRows(ctx, grid, tenantCtx(1, 10))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.ImportedCount)
	assert.Equal(t, []string{
		"Row 3: vendor_id is required",
		"Row 3: currency must be exactly 3 characters",
		"Row 6: vendor_id must be a positive whole number",
	}, result.Errors)
	assert.Equal(t, "Import completed with errors. 2 rows imported, 3 errors.", result.Message)

	rows, err := contractService(t, db).ListAll(ctx, FilterSet{}, SortSpec{SortBy: "ctr_num", SortOrder: "asc"}, tenantCtx(1, 10))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "CTR-1", rows[0].CtrNum)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].StartDate.UTC())
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), rows[0].EndDate.UTC())
	assert.True(t, rows[0].Active)
	assert.Equal(t, uint(1), *rows[0].TenantID)
	assert.Equal(t, uint(2), rows[1].VendorID)
}

func TestImporter_AllRowsSucceed(t *testing.T) {
	db := newTestDB(t)
	im := NewImporter(contractService(t, db), nil)

	grid := [][]string{
		contractHeaders,
		{"CTR-1", "1", "1", "2024-01-01", "2024-12-31", "EUR"},
		{"CTR-2", "1", "1", "2024-01-01", "2024-12-31", "EUR"},
	}
	result, err := im.ImportRows(context.Background(), grid, tenantCtx(1, 10))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.ImportedCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "Import completed successfully. 2 rows imported.", result.Message)
}

func TestImporter_RejectsEmptyFiles(t *testing.T) {
	db := newTestDB(t)
	im := NewImporter(contractService(t, db), nil)
	ctx := context.Background()

	_, err := im.ImportRows(ctx, nil, tenantCtx(1, 10))
	assert.EqualError(t, err, "the uploaded file is empty")

	_, err = im.ImportRows(ctx, [][]string{contractHeaders}, tenantCtx(1, 10))
	assert.EqualError(t, err, "the uploaded file has no data rows")
}

func TestImporter_StopsWhenCancelled(t *testing.T) {
	db := newTestDB(t)
	im := NewImporter(contractService(t, db), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid := [][]string{
		contractHeaders,
		{"CTR-1", "1", "1", "2024-01-01", "2024-12-31", "EUR"},
	}
	result, err := im.ImportRows(ctx, grid, tenantCtx(1, 10))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, result.ImportedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Import stopped after row 1: cancelled; remaining rows were not processed", result.Errors[0])
}

func TestImporter_PersistFailureIsRowTagged(t *testing.T) {
	db := newTestDB(t)
	persist := func(ctx context.Context, svc *Service[models.Contract], c *models.Contract, row Row, uctx UserContext) error {
		if c.CtrNum == "DUP" {
			return apperrors.NewConflictError("contract")
		}
		if c.CtrNum == "BOOM" {
			return stderrors.New("driver: connection reset")
		}
		_, err := svc.Create(ctx, c, uctx)
		return err
	}
	im := NewImporter(contractService(t, db), persist)

	grid := [][]string{
		contractHeaders,
		{"DUP", "1", "1", "2024-01-01", "2024-12-31", "EUR"},
		{"BOOM", "1", "1", "2024-01-01", "2024-12-31", "EUR"},
		{"OK", "1", "1", "2024-01-01", "2024-12-31", "EUR"},
	}
	result, err := im.ImportRows(context.Background(), grid, tenantCtx(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImportedCount)
	require.Len(t, result.Errors, 2)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Row 2: "))
	assert.Equal(t, "Row 3: could not be saved", result.Errors[1])
}

func TestImporter_ImportDetectsFormat(t *testing.T) {
	db := newTestDB(t)
	im := NewImporter(contractService(t, db), nil)
	ctx := context.Background()

	csvBody := "ctr_num,vendor_id,office_id,start_date,end_date,currency\nCTR-CSV,1,1,2024-01-01,2024-12-31,EUR\n"
	result, err := im.Import(ctx, strings.NewReader(csvBody), "contracts.CSV", tenantCtx(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImportedCount)

	var buf bytes.Buffer
	sheet := &tabular.Sheet{
		Title:   "contracts",
		Headers: []string{"ctr_num", "vendor_id", "office_id", "start_date", "end_date", "currency"},
		Rows:    [][]string{{"CTR-XLSX", "1", "1", "2024-01-01", "2024-12-31", "EUR"}},
	}
	require.NoError(t, tabular.XLSX{}.Write(&buf, sheet))
	result, err = im.Import(ctx, &buf, "contracts.xlsx", tenantCtx(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImportedCount)

	_, err = im.Import(ctx, strings.NewReader("x"), "contracts.pdf", tenantCtx(1, 10))
	assert.EqualError(t, err, "unsupported file type: upload an .xlsx or .csv file")

	_, err = im.Import(ctx, strings.NewReader("not a workbook"), "contracts.xlsx", tenantCtx(1, 10))
	assert.EqualError(t, err, "the uploaded file could not be read")
}
