package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClean_plainValue(t *testing.T) {
	cleaned, reasons := Clean("  T1  ")
	require.Empty(t, reasons)
	require.Equal(t, "T1", cleaned)
}

func TestClean_stripsControlChars(t *testing.T) {
	cleaned, reasons := Clean("AB\x00C\x01D")
	require.Empty(t, reasons)
	require.Equal(t, "ABCD", cleaned)
}

func TestClean_keepsNewlineAndTab(t *testing.T) {
	cleaned, _ := Clean("a\tb\nc")
	require.Equal(t, "a\tb\nc", cleaned)
}

func TestClean_sqlInjection(t *testing.T) {
	for _, in := range []string{
		"1; DROP TABLE cargo_manifests",
		"a UNION SELECT password",
		"x -- comment",
	} {
		_, reasons := Clean(in)
		require.Contains(t, reasons, ReasonSQL, "input: %s", in)
	}
}

func TestClean_script(t *testing.T) {
	_, reasons := Clean("<script>alert(1)</script>")
	require.Contains(t, reasons, ReasonScript)

	_, reasons = Clean("javascript:alert(1)")
	require.Contains(t, reasons, ReasonScript)

	_, reasons = Clean(`<img onerror=alert(1)>`)
	require.Contains(t, reasons, ReasonScript)
}

func TestClean_pathTraversal(t *testing.T) {
	for _, in := range []string{"../../etc/passwd", "..%2fetc", "%2e%2e%2fetc"} {
		_, reasons := Clean(in)
		require.Contains(t, reasons, ReasonTraversal, "input: %s", in)
	}
}

func TestClean_headerInjection(t *testing.T) {
	_, reasons := Clean("x\r\nSet-Cookie: a=b")
	require.Contains(t, reasons, ReasonHeaderInject)
}

func TestClean_lengthLimit(t *testing.T) {
	_, reasons := Clean(strings.Repeat("A", MaxFieldLength+1))
	require.Contains(t, reasons, ReasonTooLong)
}

func TestClean_lengthLimitCountsRunes(t *testing.T) {
	// 400 иероглифов — 1200 байт, но сильно меньше лимита в символах.
	_, reasons := Clean(strings.Repeat("中", 400))
	require.Empty(t, reasons)

	_, reasons = Clean(strings.Repeat("中", MaxFieldLength+1))
	require.Contains(t, reasons, ReasonTooLong)
}

func TestCleanTrackingNumber(t *testing.T) {
	n, reasons := CleanTrackingNumber(" SF123456789012 ")
	require.Empty(t, reasons)
	require.Equal(t, "SF123456789012", n)

	_, reasons = CleanTrackingNumber("")
	require.NotEmpty(t, reasons)

	_, reasons = CleanTrackingNumber("AB1")
	require.NotEmpty(t, reasons)

	_, reasons = CleanTrackingNumber(strings.Repeat("A", 31))
	require.NotEmpty(t, reasons)

	_, reasons = CleanTrackingNumber("ABC 12345")
	require.NotEmpty(t, reasons)
}

func TestCleanTrackingNumber_allowsCarrierShapes(t *testing.T) {
	// Номера реальных перевозчиков не должны отсекаться как "спецсимволы".
	for _, in := range []string{"SF123456789012", "YT1234567890123", "EE123456789CN", "1234567890123"} {
		n, reasons := CleanTrackingNumber(in)
		require.Empty(t, reasons, "input: %s", in)
		require.Equal(t, in, n)
	}
}
