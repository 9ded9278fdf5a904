package transform

import (
	"testing"

	"github.com/andrzw/marketsync/internal/core/domain"
)

func TestMapDescriptionOrdering(t *testing.T) {
	rows := []*domain.DescriptionRow{
		{SectionID: 1, ItemID: 2, Type: "TEXT", Content: "hello"},
		{SectionID: 1, ItemID: 1, Type: "image", Content: "http://img/1.jpg"},
	}

	sections := MapDescription(rows)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}

	items := sections[0].Items
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	// Item id 1 (the image) sorts before item id 2 (the text).
	if items[0].Type != ItemTypeImage || items[0].URL != "http://img/1.jpg" || items[0].Content != "" {
		t.Errorf("first item = %+v, want IMAGE with url only", items[0])
	}
	if items[1].Type != ItemTypeText || items[1].Content != "hello" || items[1].URL != "" {
		t.Errorf("second item = %+v, want TEXT with content only", items[1])
	}
}

func TestMapDescriptionGroupsSections(t *testing.T) {
	rows := []*domain.DescriptionRow{
		{SectionID: 2, ItemID: 1, Type: "TEXT", Content: "second"},
		nil,
		{SectionID: 1, ItemID: 1, Type: "TEXT", Content: "first"},
		{SectionID: 2, ItemID: 2, Type: "TEXT", Content: "second-b"},
	}

	sections := MapDescription(rows)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0].Items[0].Content != "first" {
		t.Errorf("sections not ordered ascending: %+v", sections)
	}
	if len(sections[1].Items) != 2 || sections[1].Items[1].Content != "second-b" {
		t.Errorf("section 2 items wrong: %+v", sections[1].Items)
	}
}

func TestMapDescriptionEmpty(t *testing.T) {
	if got := MapDescription(nil); len(got) != 0 {
		t.Errorf("expected no sections, got %+v", got)
	}
	if got := MapDescription([]*domain.DescriptionRow{nil, nil}); len(got) != 0 {
		t.Errorf("null rows must be dropped, got %+v", got)
	}
}
