// Package thread groups same-bylaw agenda items across meetings into issue
// threads. It is a pure read-path function; nothing here touches storage.
package thread

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/opencouncil/agendalens/internal/civic"
)

// titleBylaw extracts a bylaw number from an item title when no stored
// field exists.
var titleBylaw = regexp.MustCompile(`(?i)Bylaw\s+(?:No\.?\s*)?(\d{3,5})`)

// BylawNumber returns the item's bylaw number: the stored field when set,
// else the title pattern, else "".
func BylawNumber(item civic.AgendaItem) string {
	if item.BylawNumber != "" {
		return item.BylawNumber
	}
	if m := titleBylaw.FindStringSubmatch(item.Title); m != nil {
		return m[1]
	}
	return ""
}

// Thread partitions items into issue groups and a standalone remainder.
// Items sharing a (municipality, bylaw number) key across two or more
// meetings form a group; grouped items never reappear in the standalone
// list. Group members are sorted by meeting date descending; the most
// recent item supplies the group's display identity. Ties on date keep
// stable input order.
func Thread(items []civic.AgendaItem) ([]civic.IssueGroup, []civic.AgendaItem) {
	type key struct {
		municipality int64
		bylaw        string
	}

	byKey := map[key][]civic.AgendaItem{}
	var keyOrder []key
	for _, item := range items {
		bylaw := BylawNumber(item)
		if bylaw == "" {
			continue
		}
		k := key{municipality: item.MunicipalityID, bylaw: bylaw}
		if _, ok := byKey[k]; !ok {
			keyOrder = append(keyOrder, k)
		}
		byKey[k] = append(byKey[k], item)
	}

	grouped := map[int64]struct{}{}
	var groups []civic.IssueGroup
	for _, k := range keyOrder {
		members := byKey[k]
		if countDistinctMeetings(members) < 2 {
			continue
		}

		sort.SliceStable(members, func(i, j int) bool {
			return members[i].MeetingDate.After(members[j].MeetingDate)
		})

		for _, m := range members {
			grouped[m.ID] = struct{}{}
		}

		latest := members[0]
		title := latest.Title
		if title == "" {
			title = fmt.Sprintf("Bylaw No. %s", k.bylaw)
		}

		total := 0
		for _, m := range members {
			total += m.FeedbackCount
		}

		groups = append(groups, civic.IssueGroup{
			MunicipalityID: k.municipality,
			BylawNumber:    k.bylaw,
			Title:          title,
			Topic:          latest.Topic,
			Items:          members,
			FeedbackTotal:  total,
		})
	}

	var standalone []civic.AgendaItem
	for _, item := range items {
		if _, ok := grouped[item.ID]; ok {
			continue
		}
		standalone = append(standalone, item)
	}

	return groups, standalone
}

func countDistinctMeetings(items []civic.AgendaItem) int {
	seen := map[int64]struct{}{}
	for _, it := range items {
		seen[it.MeetingID] = struct{}{}
	}
	return len(seen)
}
