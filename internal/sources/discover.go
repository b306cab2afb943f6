package sources

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MeetingLink is one dated document link discovered on a meeting-list page.
type MeetingLink struct {
	Title string
	URL   string
	Date  time.Time
	// Type is the meeting type forming part of the natural key:
	// regular, special, committee.
	Type string
}

var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"02-Jan-2006",
	"January 2 2006",
}

var dateInText = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}|\d{4}-\d{2}-\d{2}`)

// DiscoverMeetings extracts dated agenda links from a meeting-list page.
// Links whose text yields no resolvable date are skipped; date is part of
// the meeting's natural key and a null date is never stored.
func (s Source) DiscoverMeetings(listHTML []byte) ([]MeetingLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(listHTML))
	if err != nil {
		return nil, fmt.Errorf("parse meeting list: %w", err)
	}

	base, err := url.Parse(s.ListURL)
	if err != nil {
		return nil, fmt.Errorf("parse list url: %w", err)
	}

	var links []MeetingLink
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if href == "" || text == "" {
			return
		}
		if !looksLikeAgendaLink(href, text) {
			return
		}

		date, ok := parseDateFrom(text)
		if !ok {
			// Try the row the link sits in; many portals put the date
			// in a sibling cell.
			if row := sel.Closest("tr, li, div"); row.Length() > 0 {
				date, ok = parseDateFrom(row.Text())
			}
		}
		if !ok {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		links = append(links, MeetingLink{
			Title: text,
			URL:   abs,
			Date:  date,
			Type:  meetingTypeFrom(text),
		})
	})

	return links, nil
}

func looksLikeAgendaLink(href, text string) bool {
	h := strings.ToLower(href)
	t := strings.ToLower(text)
	if strings.Contains(h, "agenda") || strings.Contains(t, "agenda") {
		return true
	}
	return strings.Contains(h, ".pdf") && strings.Contains(t, "council")
}

func parseDateFrom(text string) (time.Time, bool) {
	m := dateInText.FindString(text)
	if m == "" {
		return time.Time{}, false
	}
	m = strings.TrimSpace(m)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, m); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func meetingTypeFrom(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "special"):
		return "special"
	case strings.Contains(t, "committee"):
		return "committee"
	default:
		return "regular"
	}
}
