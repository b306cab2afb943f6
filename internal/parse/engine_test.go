package parse

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestStaffReportRoundTrip(t *testing.T) {
	t.Parallel()

	doc := `STAFF REPORT
SUBJECT: Water Main Replacement
PURPOSE: Replace aging infrastructure.
RECOMMENDATION: THAT council approve the contract.
`
	items := Westbrook.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "Water Main Replacement", items[0].Title)
	require.Contains(t, items[0].Description, "Replace aging infrastructure.")
	require.Equal(t, "THAT council approve the contract.", items[0].Decision)
}

func TestStaffReportMultiLineFields(t *testing.T) {
	t.Parallel()

	doc := `STAFF REPORT
SUBJECT: Zoning Amendment for
1215 Harbour Road
PURPOSE: To rezone the parcel from
single family residential to mixed use.
BACKGROUND: The applicant first approached
the District in March.
RECOMMENDATION: THAT council give the amendment
first and second reading.
`
	items := Westbrook.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "Zoning Amendment for 1215 Harbour Road", items[0].Title)
	require.Contains(t, items[0].Description, "To rezone the parcel from single family residential to mixed use.")
	require.Contains(t, items[0].Description, "The applicant first approached the District in March.")
	require.Equal(t, "THAT council give the amendment first and second reading.", items[0].Decision)
}

func TestMinimumLengthRejection(t *testing.T) {
	t.Parallel()

	doc := `STAFF REPORT
SUBJECT: Noise Section
PURPOSE: n/a
`
	items := Westbrook.Parse(doc)
	require.Empty(t, items, "a description under the minimum length must never be emitted")
}

func TestSectionWithoutTitleIsDropped(t *testing.T) {
	t.Parallel()

	doc := `STAFF REPORT
PURPOSE: This section has a perfectly serviceable purpose but no subject line.
`
	items := Westbrook.Parse(doc)
	require.Empty(t, items, "a section producing no title is dropped entirely")
}

func TestNoiseLinesAreStrippedBeforeSectioning(t *testing.T) {
	t.Parallel()

	doc := `Regular Council Meeting Agenda - June 12, 2025
STAFF REPORT
Page 3 of 120
SUBJECT: Sewer Upgrade Phase Two
PURPOSE: Continue the downtown sewer replacement program.
Regular Council Meeting Agenda - June 12, 2025
`
	items := Westbrook.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "Sewer Upgrade Phase Two", items[0].Title)
	require.NotContains(t, items[0].RawContent, "Page 3 of 120")
}

func TestBylawExtractionPrefersTitleBlock(t *testing.T) {
	t.Parallel()

	doc := `"Water Rates Amendment Bylaw, 2025", Bylaw No. 1420
TITLE: A bylaw to amend water utility rates for the 2025 fiscal year.

Further procedural text follows here.
`
	items := Westbrook.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "Water Rates Amendment Bylaw, 2025, Bylaw No. 1420", items[0].Title)
	require.Contains(t, items[0].Description, "amend water utility rates")
}

func TestBylawExtractionRawSliceFallback(t *testing.T) {
	t.Parallel()

	doc := `Bylaw No. 1399
The council of the Town wishes to regulate parking on Main Street
between First Avenue and Fourth Avenue during winter months.
`
	items := Westbrook.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "Bylaw No. 1399", items[0].Title)
	require.Contains(t, items[0].Description, "regulate parking on Main Street")
}

func TestRepeatedBylawConcatenatesRawContent(t *testing.T) {
	t.Parallel()

	doc := `Bylaw No. 1402
First reading text for the bylaw appears on this page of the package.

STAFF REPORT
SUBJECT: Unrelated Report
PURPOSE: Keeps the two bylaw occurrences apart in the document.

Bylaw No. 1402
Second occurrence text from a later page of the same package.
`
	items := Westbrook.Parse(doc)
	require.Len(t, items, 2)
	require.Equal(t, "Bylaw No. 1402", items[0].Title)
	require.Contains(t, items[0].RawContent, "First reading text")
	require.Contains(t, items[0].RawContent, "Second occurrence text")
}

func TestCorrespondenceKeepsLeadingParagraphs(t *testing.T) {
	t.Parallel()

	doc := `RECEIVED LOG: Correspondence for Council Information
Letter from the Harbourside Residents Association regarding the proposed
marina expansion and its effect on foreshore access.

Letter from a resident of Pine Street regarding snow clearing service.

Letter from the Chamber of Commerce supporting the downtown revitalization.

Letter four should not appear in the description text.
`
	items := Westbrook.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "RECEIVED LOG: Correspondence for Council Information", items[0].Title)
	require.Contains(t, items[0].Description, "Harbourside Residents Association")
	require.Contains(t, items[0].Description, "Chamber of Commerce")
	require.NotContains(t, items[0].Description, "Letter four")
}

func TestContentCapAddsEllipsis(t *testing.T) {
	t.Parallel()

	table := Westbrook
	table.MaxContentLen = 80

	doc := "STAFF REPORT\nSUBJECT: Long Report\nPURPOSE: " +
		strings.Repeat("All work and no play makes for a very long agenda item. ", 10) + "\n"
	items := table.Parse(doc)
	require.Len(t, items, 1)
	require.True(t, strings.HasSuffix(items[0].Description, "…"))
	require.LessOrEqual(t, len(items[0].Description), 80+len("…"))
}

func TestContentCapNeverSplitsARune(t *testing.T) {
	t.Parallel()

	// En dashes and smart quotes are routine in extracted agenda text; a
	// cap landing inside one must back up to the rune boundary rather than
	// emit invalid UTF-8.
	// Each repeat is 46 bytes with the en dash at bytes 23-25, so the cap
	// sweep below lands on every byte of the second repeat's dash.
	body := strings.Repeat("Budget figures for 2019–2024 were reviewed. ", 20)
	doc := "STAFF REPORT\nSUBJECT: Long Report\nPURPOSE: " + body + "\n"

	for maxLen := 68; maxLen < 75; maxLen++ {
		table := Westbrook
		table.MaxContentLen = maxLen

		items := table.Parse(doc)
		require.Len(t, items, 1)
		require.True(t, utf8.ValidString(items[0].Description), "cap %d", maxLen)
		require.True(t, utf8.ValidString(items[0].RawContent), "cap %d", maxLen)
	}
}

func TestBylawRawSliceFallbackNeverSplitsARune(t *testing.T) {
	t.Parallel()

	// The fallback slice is 400 bytes; the en dash here occupies bytes
	// 399-401 of the body, straddling the cut.
	doc := "\"Fee Schedule Amendment\", Bylaw No. 1510\n" +
		strings.Repeat("a", 399) + "–2024 fee schedule increases apply annually.\n"

	items := Westbrook.Parse(doc)
	require.Len(t, items, 1)
	require.True(t, utf8.ValidString(items[0].Description))
	require.Equal(t, strings.Repeat("a", 399), items[0].Description)
}

func TestSouthportLegacyLabels(t *testing.T) {
	t.Parallel()

	doc := `REPORT TO COUNCIL
RE: Community Hall Roof Repair
ISSUE: The hall roof has leaked since the January storms.
HISTORY: Repairs were last budgeted in 2019.
RECOMMENDATION: THAT council award the roofing contract.
`
	items := Southport.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "Community Hall Roof Repair", items[0].Title)
	require.Contains(t, items[0].Description, "leaked since the January storms")
	require.Equal(t, "THAT council award the roofing contract.", items[0].Decision)
}

func TestEastgateTitleCaseLabels(t *testing.T) {
	t.Parallel()

	doc := `Report to Council
Subject: Transit Exchange Redesign
Purpose: Present the preferred design option for the downtown exchange.
Recommendation: That Council endorse option B.
`
	items := Eastgate.Parse(doc)
	require.Len(t, items, 1)
	require.Equal(t, "Transit Exchange Redesign", items[0].Title)
	require.Contains(t, items[0].Description, "preferred design option")
}

// TestExtractDecision pins decision extraction against the five literal
// fixtures the pipeline has always used.
func TestExtractDecision(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "financial plan bylaw",
			content: "Five Year Financial Plan Bylaw No. 1345 was presented to council.\n" +
				"Actions: Council gave the bylaw first, second and third readings.",
			want: "Council gave the bylaw first, second and third readings.",
		},
		{
			name:    "rcmp quarterly report",
			content: "RCMP Quarterly Report for Q2 was received for information. Staff Sgt. Morrison presented detachment statistics.",
			want:    "",
		},
		{
			name:    "mrdt",
			content: "MRDT renewal discussion deferred pending provincial guidance on the accommodation tax program.",
			want:    "",
		},
		{
			name:    "approved plan",
			content: "Actions: Council approved the plan.",
			want:    "Council approved the plan.",
		},
		{
			name:    "deferred matter at end of text",
			content: "Discussion of the zoning variance took most of the session.\nActions: Council deferred the matter.",
			want:    "Council deferred the matter.",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ExtractDecision(tc.content))
		})
	}
}
