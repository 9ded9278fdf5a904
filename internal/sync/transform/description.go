package transform

import (
	"sort"
	"strings"

	"github.com/andrzw/marketsync/internal/core/domain"
)

// Description item types on the wire.
const (
	ItemTypeText  = "TEXT"
	ItemTypeImage = "IMAGE"
)

// DescriptionItem is one ordered item within a section. TEXT items carry
// Content, IMAGE items carry URL; the two fields are mutually exclusive.
type DescriptionItem struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// DescriptionSection groups ordered items under one section id.
type DescriptionSection struct {
	Items []DescriptionItem `json:"items"`
}

// MapDescription rebuilds the offer description from its raw rows: rows are
// sorted by (section id, item id), classified as IMAGE or TEXT, and grouped
// into sections in ascending section order.
func MapDescription(rows []*domain.DescriptionRow) []DescriptionSection {
	ordered := make([]*domain.DescriptionRow, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			ordered = append(ordered, row)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SectionID != ordered[j].SectionID {
			return ordered[i].SectionID < ordered[j].SectionID
		}
		return ordered[i].ItemID < ordered[j].ItemID
	})

	var sections []DescriptionSection
	lastSection := -1
	for _, row := range ordered {
		if row.SectionID != lastSection {
			sections = append(sections, DescriptionSection{})
			lastSection = row.SectionID
		}

		item := DescriptionItem{Type: ItemTypeText, Content: row.Content}
		if strings.EqualFold(row.Type, ItemTypeImage) {
			item = DescriptionItem{Type: ItemTypeImage, URL: row.Content}
		}

		last := len(sections) - 1
		sections[last].Items = append(sections[last].Items, item)
	}
	return sections
}
