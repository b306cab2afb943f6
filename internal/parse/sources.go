package parse

import "regexp"

// The marker tables below encode everything source-specific about the four
// agenda formats. Patterns were derived from real documents; when a portal
// reworks its template, the fix belongs here, not in the engine.

// Westbrook publishes CivicWeb HTML agendas: uppercase staff-report headers
// with colon-labelled fields, bylaws cited inline.
var Westbrook = SourceTable{
	Name: "westbrook",
	Noise: []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*(Regular|Special|Committee of the Whole) Council (Meeting )?(Agenda|Minutes)\s*[-–]\s*\w+ \d{1,2}, \d{4}\s*$`),
		regexp.MustCompile(`^\s*Page \d+( of \d+)?\s*$`),
	},
	SectionMarkers: []*regexp.Regexp{
		regexp.MustCompile(`^\s*STAFF REPORT\s*$`),
		regexp.MustCompile(`Bylaw No\.?\s*\d{3,5}`),
		regexp.MustCompile(`^\s*RECEIVED LOG:`),
	},
	StaffReportMarker:    regexp.MustCompile(`^\s*STAFF REPORT\s*$`),
	BylawMarker:          regexp.MustCompile(`(?:"([^"]+)",?\s+)?Bylaw No\.?\s*(\d{3,5})`),
	CorrespondenceMarker: regexp.MustCompile(`^\s*RECEIVED LOG:`),
	FieldLabels: []FieldLabel{
		{Kind: FieldSubject, Pattern: regexp.MustCompile(`^SUBJECT\s*:`)},
		{Kind: FieldPurpose, Pattern: regexp.MustCompile(`^PURPOSE\s*:`)},
		{Kind: FieldBackground, Pattern: regexp.MustCompile(`^BACKGROUND\s*:`)},
		{Kind: FieldRecommendation, Pattern: regexp.MustCompile(`^RECOMMENDATION(S)?\s*:`)},
	},
	TitleBlock: regexp.MustCompile(`(?s)TITLE\s*:?\s*(.{20,400}?)(?:\n\s*\n|PURPOSE|$)`),
}

// Eastgate runs an eSCRIBE portal: title-case labels, reports opened by a
// "Report to Council" line.
var Eastgate = SourceTable{
	Name: "eastgate",
	Noise: []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*City of Eastgate\s*[-|]\s*Council Agenda`),
		regexp.MustCompile(`^\s*\d+\s*/\s*\d+\s*$`),
	},
	SectionMarkers: []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*Report to Council\s*$`),
		regexp.MustCompile(`(?i)Bylaw\s+(?:No\.?\s*)?\d{3,5}`),
	},
	StaffReportMarker: regexp.MustCompile(`(?i)^\s*Report to Council\s*$`),
	BylawMarker:       regexp.MustCompile(`(?i)(?:"([^"]+)",?\s+)?Bylaw\s+(?:No\.?\s*)?(\d{3,5})`),
	FieldLabels: []FieldLabel{
		{Kind: FieldSubject, Pattern: regexp.MustCompile(`(?i)^Subject\s*:`)},
		{Kind: FieldPurpose, Pattern: regexp.MustCompile(`(?i)^Purpose\s*:`)},
		{Kind: FieldBackground, Pattern: regexp.MustCompile(`(?i)^Background\s*:`)},
		{Kind: FieldRecommendation, Pattern: regexp.MustCompile(`(?i)^Recommendation(s)?\s*:`)},
	},
	TitleBlock: regexp.MustCompile(`(?is)Title\s*:?\s*(.{20,400}?)(?:\n\s*\n|Purpose|$)`),
}

// Northfield posts one 100-400 page PDF agenda package per meeting. The page
// boilerplate carries the meeting date and a page number; correspondence
// pages are labelled and feed the sampler.
var Northfield = SourceTable{
	Name: "northfield",
	Noise: []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*Town of Northfield\s+(Regular|Special) Meeting of Council`),
		regexp.MustCompile(`(?i)^\s*Agenda Package\s+\w+ \d{1,2}, \d{4}\s+Page \d+\s*$`),
	},
	SectionMarkers: []*regexp.Regexp{
		regexp.MustCompile(`^\s*STAFF REPORT\s*$`),
		regexp.MustCompile(`(?i)Bylaw No\.?\s*\d{3,5}`),
		regexp.MustCompile(`(?i)^\s*CORRESPONDENCE\s*[-–]\s*Page\s+\d+`),
	},
	StaffReportMarker:    regexp.MustCompile(`^\s*STAFF REPORT\s*$`),
	BylawMarker:          regexp.MustCompile(`(?i)(?:"([^"]+)",?\s+)?Bylaw No\.?\s*(\d{3,5})`),
	CorrespondenceMarker: regexp.MustCompile(`(?i)^\s*CORRESPONDENCE\s*[-–]\s*Page\s+\d+`),
	FieldLabels: []FieldLabel{
		{Kind: FieldSubject, Pattern: regexp.MustCompile(`^SUBJECT\s*:`)},
		{Kind: FieldPurpose, Pattern: regexp.MustCompile(`^PURPOSE\s*:`)},
		{Kind: FieldBackground, Pattern: regexp.MustCompile(`^BACKGROUND\s*:`)},
		{Kind: FieldRecommendation, Pattern: regexp.MustCompile(`^RECOMMENDATION(S)?\s*:`)},
	},
	TitleBlock: regexp.MustCompile(`(?s)TITLE\s*:?\s*(.{20,400}?)(?:\n\s*\n|PURPOSE|$)`),
}

// Southport still serves hand-edited HTML from the early 2000s: report
// sections open with "REPORT TO COUNCIL", fields use RE:/ISSUE:/HISTORY:.
var Southport = SourceTable{
	Name: "southport",
	Noise: []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*Village of Southport Council`),
		regexp.MustCompile(`^\s*-\s*\d+\s*-\s*$`),
	},
	SectionMarkers: []*regexp.Regexp{
		regexp.MustCompile(`^\s*REPORT TO COUNCIL\s*$`),
		regexp.MustCompile(`Bylaw No\.?\s*\d{3,5}`),
	},
	StaffReportMarker: regexp.MustCompile(`^\s*REPORT TO COUNCIL\s*$`),
	BylawMarker:       regexp.MustCompile(`(?:"([^"]+)",?\s+)?Bylaw No\.?\s*(\d{3,5})`),
	FieldLabels: []FieldLabel{
		{Kind: FieldSubject, Pattern: regexp.MustCompile(`^RE\s*:`)},
		{Kind: FieldPurpose, Pattern: regexp.MustCompile(`^ISSUE\s*:`)},
		{Kind: FieldBackground, Pattern: regexp.MustCompile(`^HISTORY\s*:`)},
		{Kind: FieldRecommendation, Pattern: regexp.MustCompile(`^RECOMMENDATION(S)?\s*:`)},
	},
	TitleBlock: regexp.MustCompile(`(?s)TITLE\s*:?\s*(.{20,400}?)(?:\n\s*\n|PURPOSE|$)`),
}

// Tables lists every source table keyed by name.
var Tables = map[string]SourceTable{
	Westbrook.Name:  Westbrook,
	Eastgate.Name:   Eastgate,
	Northfield.Name: Northfield,
	Southport.Name:  Southport,
}
