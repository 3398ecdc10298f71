package tabular

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{"contracts.xlsx", FormatXLSX, false},
		{"CONTRACTS.XLSX", FormatXLSX, false},
		{"vehicles.csv", FormatCSV, false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := FormatFromFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestXLSX_WriteThenRead(t *testing.T) {
	sheet := &Sheet{
		Title:   "Contracts",
		Headers: []string{"ctr_num", "currency"},
		Rows:    [][]string{{"CTR-1", "EUR"}, {"CTR-2", "USD"}},
	}

	var buf bytes.Buffer
	require.NoError(t, XLSX{}.Write(&buf, sheet))

	rows, err := XLSX{}.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ctr_num", "currency"}, {"CTR-1", "EUR"}, {"CTR-2", "USD"}}, rows)
}

func TestXLSX_ReadGarbageFails(t *testing.T) {
	_, err := XLSX{}.Read(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestCSV_ReadStripsBOMAndAllowsRaggedRows(t *testing.T) {
	rows, err := CSV{}.Read(strings.NewReader("\ufeffreg_number,vehicle_type\nKA01,truck\nKA02\n"))
	require.NoError(t, err)
	assert.Equal(t, "reg_number", rows[0][0])
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{"KA02"}, rows[2])
}

func TestCSV_Write(t *testing.T) {
	var buf bytes.Buffer
	err := CSV{}.Write(&buf, &Sheet{Headers: []string{"a", "b"}, Rows: [][]string{{"1", "x,y"}}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", buf.String())
}

func TestWriteFile_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "2024", "vehicles.csv")
	err := WriteFile(path, &Sheet{Headers: []string{"reg_number"}, Rows: [][]string{{"KA01"}}}, FormatCSV)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "reg_number\nKA01\n", string(raw))
}

func TestWriteFile_FailsWhenParentIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := WriteFile(filepath.Join(blocker, "out.xlsx"), &Sheet{Headers: []string{"a"}}, FormatXLSX)
	assert.ErrorContains(t, err, "failed to create directory")
}
