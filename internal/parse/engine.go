// Package parse turns raw agenda text (HTML-stripped or PDF-extracted) into
// a normalized list of agenda items.
//
// The four sources share no schema, but their documents have the same shape:
// recurring page boilerplate, structural markers that open sections (a staff
// report header, a bylaw citation, a correspondence log), and labelled
// fields inside each section. One generic engine consumes a declarative
// per-source table instead of four copy-pasted parsers.
package parse

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/opencouncil/agendalens/internal/civic"
)

// FieldKind identifies a labelled field inside a staff-report section.
type FieldKind string

// Field kinds tracked by the per-section walk.
const (
	FieldSubject        FieldKind = "subject"
	FieldPurpose        FieldKind = "purpose"
	FieldBackground     FieldKind = "background"
	FieldRecommendation FieldKind = "recommendation"
)

// FieldLabel binds a field kind to the line pattern that switches to it.
type FieldLabel struct {
	Kind    FieldKind
	Pattern *regexp.Regexp
}

// SourceTable is the declarative marker set for one source variant. The
// engine never special-cases a source; everything source-specific lives
// here.
type SourceTable struct {
	Name string

	// Noise lines (page headers/footers) removed before sectioning.
	Noise []*regexp.Regexp

	// SectionMarkers open a new segment at each matching line. The split
	// is a lookahead: the marker line starts its segment and no text is
	// lost between segments.
	SectionMarkers []*regexp.Regexp

	// StaffReportMarker identifies segments walked with FieldLabels.
	StaffReportMarker *regexp.Regexp
	// BylawMarker matches a bylaw citation; group 1 (optional) is the
	// quoted bylaw name, group 2 the number.
	BylawMarker *regexp.Regexp
	// CorrespondenceMarker identifies public-correspondence segments.
	CorrespondenceMarker *regexp.Regexp

	FieldLabels []FieldLabel

	// TitleBlock matches an embedded TITLE/PURPOSE block inside a bylaw
	// segment, preferred over the raw slice fallback. Group 1 is the text.
	TitleBlock *regexp.Regexp

	MinDescriptionLen int
	MaxContentLen     int
}

const (
	defaultMinDescriptionLen = 10
	defaultMaxContentLen     = 8000
	// correspondence descriptions keep the first few paragraphs only
	correspondenceParagraphs = 3
	// bylaw raw-slice fallback length when no TITLE/PURPOSE block exists
	bylawSliceLen = 400
)

// Parse runs the three-stage extraction over raw document text.
func (t SourceTable) Parse(text string) []civic.ExtractedItem {
	minLen := t.MinDescriptionLen
	if minLen <= 0 {
		minLen = defaultMinDescriptionLen
	}
	maxLen := t.MaxContentLen
	if maxLen <= 0 {
		maxLen = defaultMaxContentLen
	}

	cleaned := t.stripNoise(text)
	segments := t.section(cleaned)

	var items []civic.ExtractedItem
	for _, seg := range segments {
		var item civic.ExtractedItem
		var ok bool
		switch {
		case t.StaffReportMarker != nil && t.StaffReportMarker.MatchString(seg.marker):
			item, ok = t.extractStaffReport(seg)
		case t.BylawMarker != nil && t.BylawMarker.MatchString(seg.marker):
			item, ok = t.extractBylaw(seg)
		case t.CorrespondenceMarker != nil && t.CorrespondenceMarker.MatchString(seg.marker):
			item, ok = t.extractCorrespondence(seg)
		}
		if !ok {
			continue
		}
		if item.Title == "" || len(item.Description) < minLen {
			// Noise-only sections are dropped, never emitted with a
			// placeholder.
			continue
		}
		item.Description = capContent(item.Description, maxLen)
		item.RawContent = capContent(item.RawContent, maxLen)
		items = append(items, item)
	}

	return dedupeByTitle(items)
}

type segment struct {
	marker string // the line that opened the segment
	body   string // everything from the marker to the next marker
}

func (t SourceTable) stripNoise(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		noisy := false
		for _, re := range t.Noise {
			if re.MatchString(line) {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// section splits the cleaned text at structural marker boundaries. Content
// before the first marker has no section identity and is discarded.
func (t SourceTable) section(text string) []segment {
	lines := strings.Split(text, "\n")

	var boundaries []int
	for i, line := range lines {
		for _, re := range t.SectionMarkers {
			if re.MatchString(line) {
				boundaries = append(boundaries, i)
				break
			}
		}
	}

	segments := make([]segment, 0, len(boundaries))
	for bi, start := range boundaries {
		end := len(lines)
		if bi+1 < len(boundaries) {
			end = boundaries[bi+1]
		}
		segments = append(segments, segment{
			marker: lines[start],
			body:   strings.Join(lines[start:end], "\n"),
		})
	}
	return segments
}

// extractStaffReport walks the segment's lines tracking the active labelled
// field and concatenating lines that belong to it.
func (t SourceTable) extractStaffReport(seg segment) (civic.ExtractedItem, bool) {
	fields := map[FieldKind][]string{}
	var current FieldKind

	for _, line := range strings.Split(seg.body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switched := false
		for _, label := range t.FieldLabels {
			if loc := label.Pattern.FindStringIndex(trimmed); loc != nil {
				current = label.Kind
				if rest := strings.TrimSpace(trimmed[loc[1]:]); rest != "" {
					fields[current] = append(fields[current], rest)
				}
				switched = true
				break
			}
		}
		if switched || current == "" {
			continue
		}
		fields[current] = append(fields[current], trimmed)
	}

	title := strings.Join(fields[FieldSubject], " ")
	var descParts []string
	if p := strings.Join(fields[FieldPurpose], " "); p != "" {
		descParts = append(descParts, p)
	}
	if b := strings.Join(fields[FieldBackground], " "); b != "" {
		descParts = append(descParts, b)
	}

	item := civic.ExtractedItem{
		Title:       strings.TrimSpace(title),
		Description: strings.Join(descParts, "\n\n"),
		RawContent:  strings.TrimSpace(seg.body),
		Decision:    strings.Join(fields[FieldRecommendation], " "),
	}
	if item.Decision == "" {
		item.Decision = ExtractDecision(seg.body)
	}
	return item, item.Title != ""
}

// extractBylaw pulls number and name from the citation line, preferring an
// embedded TITLE/PURPOSE block over a raw slice of the segment body.
func (t SourceTable) extractBylaw(seg segment) (civic.ExtractedItem, bool) {
	m := t.BylawMarker.FindStringSubmatch(seg.marker)
	if m == nil {
		return civic.ExtractedItem{}, false
	}
	name := strings.TrimSpace(strings.Trim(m[1], `",`))
	number := strings.TrimSpace(m[2])

	title := fmt.Sprintf("Bylaw No. %s", number)
	if name != "" {
		title = fmt.Sprintf("%s, Bylaw No. %s", name, number)
	}

	description := ""
	if t.TitleBlock != nil {
		if tm := t.TitleBlock.FindStringSubmatch(seg.body); tm != nil {
			description = strings.TrimSpace(collapseWhitespace(tm[1]))
		}
	}
	if description == "" {
		// Raw slice fallback: the text right after the citation line.
		rest := seg.body
		if idx := strings.Index(rest, "\n"); idx >= 0 {
			rest = rest[idx+1:]
		}
		rest = strings.TrimSpace(collapseWhitespace(rest))
		description = truncateOnRune(rest, bylawSliceLen)
	}

	return civic.ExtractedItem{
		Title:       title,
		Description: description,
		RawContent:  strings.TrimSpace(seg.body),
		Decision:    ExtractDecision(seg.body),
	}, true
}

// extractCorrespondence splits on blank-line paragraph boundaries and keeps
// the first few as the description.
func (t SourceTable) extractCorrespondence(seg segment) (civic.ExtractedItem, bool) {
	body := seg.body
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}

	paragraphs := splitParagraphs(body)
	if len(paragraphs) == 0 {
		return civic.ExtractedItem{}, false
	}
	keep := paragraphs
	if len(keep) > correspondenceParagraphs {
		keep = keep[:correspondenceParagraphs]
	}

	title := strings.TrimSpace(seg.marker)
	title = strings.TrimSuffix(title, ":")

	return civic.ExtractedItem{
		Title:       collapseWhitespace(title),
		Description: strings.Join(keep, "\n\n"),
		RawContent:  strings.TrimSpace(seg.body),
	}, true
}

var decisionPattern = regexp.MustCompile(`Actions:\s*(.+)`)

// ExtractDecision returns the council action recorded after an "Actions:"
// marker, or "" when the content carries none.
func ExtractDecision(text string) string {
	m := decisionPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// dedupeByTitle merges repeated titles within one parse pass, concatenating
// raw content (the same bylaw reappearing across pages) rather than dropping
// either occurrence.
func dedupeByTitle(items []civic.ExtractedItem) []civic.ExtractedItem {
	seen := map[string]int{}
	out := items[:0]
	for _, item := range items {
		if idx, ok := seen[item.Title]; ok {
			out[idx].RawContent = out[idx].RawContent + "\n\n" + item.RawContent
			if out[idx].Decision == "" {
				out[idx].Decision = item.Decision
			}
			continue
		}
		seen[item.Title] = len(out)
		out = append(out, item)
	}
	return out
}

func capContent(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return truncateOnRune(s, maxLen) + "…"
}

// truncateOnRune cuts s at maxLen bytes, backing the cut up to a rune
// boundary so extracted text with en dashes or smart quotes never becomes
// invalid UTF-8 on its way to storage.
func truncateOnRune(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, collapseWhitespace(p))
		}
	}
	return out
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(s, " ")
}
