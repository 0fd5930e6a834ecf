package ingestion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestSupportedExtension(t *testing.T) {
	require.True(t, supportedExtension("manifest.csv"))
	require.True(t, supportedExtension("MANIFEST.XLSX"))
	require.True(t, supportedExtension("legacy.xls"))
	require.False(t, supportedExtension("manifest.pdf"))
	require.False(t, supportedExtension("manifest"))
}

func TestDecodeCSV_UTF8(t *testing.T) {
	table, err := decodeFile([]byte("快递单号,理货日期\nSF123456789012,2024-01-15\n"), "m.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"快递单号", "理货日期"}, table.Header)
	require.Len(t, table.Rows, 1)
	require.Equal(t, []string{"SF123456789012", "2024-01-15"}, table.Rows[0])
}

func TestDecodeCSV_BOMStripped(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("tracking number\nSF123456789012\n")...)
	table, err := decodeFile(content, "m.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"tracking number"}, table.Header)
}

func TestDecodeCSV_GBKFallback(t *testing.T) {
	// Файл в легаси-кодировке GBK: невалиден как UTF-8, но должен
	// декодироваться в те же китайские заголовки.
	utf8CSV := "快递单号,理货日期\nSF123456789012,2024-01-15\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(utf8CSV)
	require.NoError(t, err)
	require.NotEqual(t, utf8CSV, gbk)

	table, err := decodeFile([]byte(gbk), "m.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"快递单号", "理货日期"}, table.Header)
	require.Equal(t, []string{"SF123456789012", "2024-01-15"}, table.Rows[0])
}

func TestDecodeCSV_Empty(t *testing.T) {
	_, err := decodeFile(nil, "m.csv")
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestDecodeCSV_RaggedRowsAllowed(t *testing.T) {
	table, err := decodeFile([]byte("a,b,c\n1,2\n1,2,3,4\n"), "m.csv")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	require.Len(t, table.Rows[0], 2)
	require.Len(t, table.Rows[1], 4)
}

func TestDecodeCSV_LargeFileChunked(t *testing.T) {
	var b strings.Builder
	b.WriteString("tracking number,manifest date\n")
	row := "SF1234567890" + strings.Repeat("X", 4096) + ",2024-01-15\n"
	for b.Len() <= streamThresholdBytes {
		b.WriteString(row)
	}

	table, err := decodeFile([]byte(b.String()), "big.csv")
	require.NoError(t, err)
	require.Greater(t, len(table.Rows), chunkRows)
}

func TestDecodeExcel_FirstSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"tracking number", "manifest date"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"SF123456789012", "2024-01-15"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := decodeFile(buf.Bytes(), "m.xlsx")
	require.NoError(t, err)
	require.Equal(t, []string{"tracking number", "manifest date"}, table.Header)
	require.Equal(t, [][]string{{"SF123456789012", "2024-01-15"}}, table.Rows)
}

func TestDecodeExcel_LegacyXLSFailsAsDecodeError(t *testing.T) {
	// Настоящий BIFF не разбирается современным ридером.
	biff := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, bytes.Repeat([]byte{0}, 512)...)
	_, err := decodeFile(biff, "legacy.xls")
	require.Error(t, err)
}

func TestDecodeFile_UnsupportedFormat(t *testing.T) {
	_, err := decodeFile([]byte("x"), "m.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
