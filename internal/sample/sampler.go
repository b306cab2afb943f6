// Package sample extracts a bounded public-correspondence sample from large
// agenda packages and estimates how many letters it represents.
package sample

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Config bounds the stored sample. The full correspondence slice in a 400
// page package can run to hundreds of thousands of characters; only a
// prefix is kept, for both storage and the downstream prompt.
type Config struct {
	MaxSampleLen int

	// EndMarkers are the source's section-opening patterns. The slice ends
	// at the first line after the last correspondence page that opens
	// another section, so trailing bylaw or report text stays out of the
	// sample. Empty means the slice runs to end of document.
	EndMarkers []*regexp.Regexp
}

// DefaultMaxSampleLen keeps prompts and rows bounded.
const DefaultMaxSampleLen = 20000

// Result is the sampler's output for one agenda package.
type Result struct {
	// Sample is the bounded prefix of the correspondence slice.
	Sample string
	// ApproxLetters is a heuristic estimate, deliberately skewed high:
	// many submissions are scanned images with no extractable text, so
	// under-counting is the likelier failure.
	ApproxLetters int
	// Pages counts distinct correspondence page labels.
	Pages int
}

var (
	// correspondencePage is the page-label pattern one source stamps on
	// every correspondence page; group 1 is the page number.
	correspondencePage = regexp.MustCompile(`(?im)^\s*CORRESPONDENCE\s*[-–]\s*Page\s+(\d+)`)

	// salutation matches the header line each typed letter opens with.
	salutation = regexp.MustCompile(`(?im)^\s*(Dear\s+(Mayor|Council|Sir|Madam)|To\s+(Mayor|Mayor and Council|Whom))`)
)

// Extract locates the correspondence span of text and returns the bounded
// sample with its letter-count estimate. ok is false when the document
// carries no correspondence marker.
func Extract(text string, cfg Config) (Result, bool) {
	maxLen := cfg.MaxSampleLen
	if maxLen <= 0 {
		maxLen = DefaultMaxSampleLen
	}

	locs := correspondencePage.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return Result{}, false
	}

	// Slice from the first marker through the last marker's page, stopping
	// where the next agenda section begins.
	start := locs[0][0]
	last := locs[len(locs)-1]
	end := len(text)
	if idx, ok := firstSectionStart(text[last[1]:], cfg.EndMarkers); ok {
		end = last[1] + idx
	}
	slice := text[start:end]

	pages := countDistinctPages(slice)
	est := estimateLetters(slice, pages)

	slice = truncateOnRune(slice, maxLen)

	return Result{
		Sample:        slice,
		ApproxLetters: est,
		Pages:         pages,
	}, true
}

// estimateLetters takes the maximum of two independent heuristics, floored
// at 1: counted salutation headers, and half the labelled page count (each
// letter typically spans about two pages). The max intentionally skews
// high; scanned letters produce pages but no salutations.
func estimateLetters(slice string, pages int) int {
	bySalutation := len(salutation.FindAllString(slice, -1))
	byPages := pages / 2

	est := bySalutation
	if byPages > est {
		est = byPages
	}
	if est < 1 {
		est = 1
	}
	return est
}

// firstSectionStart scans tail line by line and returns the offset of the
// first line any marker matches. Markers are line-anchored the way the
// parse engine applies them, so each line is tested on its own.
func firstSectionStart(tail string, markers []*regexp.Regexp) (int, bool) {
	if len(markers) == 0 {
		return 0, false
	}
	offset := 0
	for offset < len(tail) {
		lineLen := strings.IndexByte(tail[offset:], '\n')
		if lineLen < 0 {
			lineLen = len(tail) - offset
		}
		line := tail[offset : offset+lineLen]
		for _, m := range markers {
			if m.MatchString(line) {
				return offset, true
			}
		}
		offset += lineLen + 1
	}
	return 0, false
}

// truncateOnRune cuts s at maxLen bytes, backing the cut up to a rune
// boundary so the stored sample is always valid UTF-8.
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

func countDistinctPages(slice string) int {
	seen := map[string]struct{}{}
	for _, m := range correspondencePage.FindAllStringSubmatch(slice, -1) {
		seen[m[1]] = struct{}{}
	}
	return len(seen)
}
