package ingestion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeColumns_ChineseHeaders(t *testing.T) {
	in := Table{
		Header: []string{"理货日期", "快递单号", "集包单号", "重量"},
		Rows:   [][]string{{"2024-01-15", "SF123456789012", "PKG001", "1.5"}},
	}

	out := normalizeColumns(in)
	require.Equal(t, []string{
		FieldManifestDate, FieldTrackingNumber, FieldPackageNumber, FieldWeight,
	}, out.Header)
	require.Equal(t, [][]string{{"2024-01-15", "SF123456789012", "PKG001", "1.5"}}, out.Rows)
}

func TestNormalizeColumns_EnglishHeadersTrimmed(t *testing.T) {
	in := Table{
		Header: []string{" tracking number ", "manifest date"},
		Rows:   [][]string{{"SF123456789012", "2024-01-15"}},
	}

	out := normalizeColumns(in)
	require.Equal(t, []string{FieldTrackingNumber, FieldManifestDate}, out.Header)
}

func TestNormalizeColumns_UnknownColumnsDropped(t *testing.T) {
	in := Table{
		Header: []string{"快递单号", "备注", "internal id"},
		Rows:   [][]string{{"SF123456789012", "примітка", "42"}},
	}

	out := normalizeColumns(in)
	require.Equal(t, []string{FieldTrackingNumber}, out.Header)
	require.Equal(t, [][]string{{"SF123456789012"}}, out.Rows)
}

func TestNormalizeColumns_ShortRowsPadded(t *testing.T) {
	in := Table{
		Header: []string{"快递单号", "集包单号"},
		Rows:   [][]string{{"SF123456789012"}},
	}

	out := normalizeColumns(in)
	require.Equal(t, [][]string{{"SF123456789012", ""}}, out.Rows)
}

func TestRowMap(t *testing.T) {
	m := rowMap(
		[]string{FieldTrackingNumber, FieldManifestDate, FieldPackageNumber},
		[]string{"SF123456789012", "2024-01-15"},
	)
	require.Equal(t, map[string]string{
		FieldTrackingNumber: "SF123456789012",
		FieldManifestDate:   "2024-01-15",
		FieldPackageNumber:  "",
	}, m)
}
