package sample

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/opencouncil/agendalens/internal/parse"
)

func TestExtractNoMarkerReturnsNotOK(t *testing.T) {
	t.Parallel()

	_, ok := Extract("STAFF REPORT\nSUBJECT: Budget\nPURPOSE: Annual budget.", Config{})
	require.False(t, ok)
}

func TestExtractSlicesBetweenMarkers(t *testing.T) {
	t.Parallel()

	doc := `STAFF REPORT
SUBJECT: Preceding Report
CORRESPONDENCE - Page 101
Dear Mayor and Council,
I write in opposition to the marina expansion.
CORRESPONDENCE - Page 102
Dear Council,
Please reconsider the proposed parking rates.
`
	res, ok := Extract(doc, Config{})
	require.True(t, ok)
	require.Contains(t, res.Sample, "opposition to the marina expansion")
	require.Contains(t, res.Sample, "proposed parking rates")
	require.NotContains(t, res.Sample, "Preceding Report")
	require.Equal(t, 2, res.Pages)
}

func TestEstimatePrefersSalutationCount(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("CORRESPONDENCE - Page 200\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "Dear Mayor and Council,\nLetter body %d about the bylaw.\n", i)
	}

	res, ok := Extract(b.String(), Config{})
	require.True(t, ok)
	require.Equal(t, 5, res.ApproxLetters, "5 salutations beat 1-page/2 estimate")
}

func TestEstimateFallsBackToPageCountForScannedLetters(t *testing.T) {
	t.Parallel()

	// Scanned images yield page labels but no extractable salutations.
	var b strings.Builder
	for p := 150; p < 158; p++ {
		fmt.Fprintf(&b, "CORRESPONDENCE - Page %d\n[image content]\n", p)
	}

	res, ok := Extract(b.String(), Config{})
	require.True(t, ok)
	require.Equal(t, 8, res.Pages)
	require.Equal(t, 4, res.ApproxLetters, "half the page count, letters span ~2 pages")
}

func TestEstimateFloorsAtOne(t *testing.T) {
	t.Parallel()

	res, ok := Extract("CORRESPONDENCE - Page 90\n[scan]\n", Config{})
	require.True(t, ok)
	require.Equal(t, 1, res.ApproxLetters)
}

func TestSampleIsBounded(t *testing.T) {
	t.Parallel()

	doc := "CORRESPONDENCE - Page 10\n" + strings.Repeat("Dear Council, long letter text here. ", 5000)
	res, ok := Extract(doc, Config{MaxSampleLen: 1000})
	require.True(t, ok)
	require.LessOrEqual(t, len(res.Sample), 1000)
}

func TestSliceStopsAtNextStaffReport(t *testing.T) {
	t.Parallel()

	doc := `CORRESPONDENCE - Page 50
Dear Mayor,
About the dog park.
STAFF REPORT
SUBJECT: Should Not Be Sampled
`
	res, ok := Extract(doc, Config{EndMarkers: parse.Northfield.SectionMarkers})
	require.True(t, ok)
	require.Contains(t, res.Sample, "dog park")
	require.NotContains(t, res.Sample, "Should Not Be Sampled")
}

func TestSliceStopsAtNextBylawSection(t *testing.T) {
	t.Parallel()

	doc := `CORRESPONDENCE - Page 60
Dear Council,
About the marina fees.
"Marina Fees Amendment", Bylaw No. 1510
A bylaw to amend marina mooring fees.
`
	res, ok := Extract(doc, Config{EndMarkers: parse.Northfield.SectionMarkers})
	require.True(t, ok)
	require.Contains(t, res.Sample, "marina fees")
	require.NotContains(t, res.Sample, "mooring fees")
}

func TestBoundedSampleStaysValidUTF8(t *testing.T) {
	t.Parallel()

	// An en dash straddling the cap must not be split mid-rune.
	line := "Dear Council,\nRates rose 2019–2024 and keep rising. "
	doc := "CORRESPONDENCE - Page 10\n" + strings.Repeat(line, 400)
	for maxLen := 990; maxLen < 1000; maxLen++ {
		res, ok := Extract(doc, Config{MaxSampleLen: maxLen})
		require.True(t, ok)
		require.LessOrEqual(t, len(res.Sample), maxLen)
		require.True(t, utf8.ValidString(res.Sample))
	}
}
