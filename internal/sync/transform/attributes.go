package transform

import (
	"encoding/json"
	"strings"

	"github.com/andrzw/marketsync/internal/core/domain"
)

// SourceTag marks every outbound attribute with its origin system.
const SourceTag = "marketsync"

// typeDictionary is the raw type whose values pair names with dictionary ids.
const typeDictionary = "dictionary"

// ValueKind discriminates the decoded attribute value union.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindDictionary
)

// Value is one decoded attribute value. Raw JSON text from storage is decoded
// exactly once, here; nothing deeper in the pipeline sees opaque text.
type Value struct {
	Kind  ValueKind
	Str   string
	Num   float64
	Entry domain.DictionaryEntry
}

// MarshalJSON renders the union in its wire form: dictionary entries as
// {id,name} objects, numbers and strings as bare JSON scalars.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindDictionary:
		return json.Marshal(v.Entry)
	case KindNumber:
		return json.Marshal(v.Num)
	default:
		return json.Marshal(v.Str)
	}
}

// Attribute is the normalized outbound attribute.
type Attribute struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Type   string  `json:"type"`
	Values []Value `json:"values"`
}

// NormalizeType maps a raw declared type onto the destination vocabulary.
// Blank becomes "string", "float" becomes "number", anything else is passed
// through lower-cased.
func NormalizeType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch t {
	case "":
		return "string"
	case "float":
		return "number"
	default:
		return t
	}
}

// MapAttribute converts one raw attribute row into the outbound shape.
// Dictionary rows pair each value name with the id at the same position; when
// the id list is missing or shorter, the name itself stands in as the id.
func MapAttribute(row domain.AttributeRow) Attribute {
	names := decodeStringList(row.Values)

	attr := Attribute{
		ID:     row.AttrID,
		Source: SourceTag,
		Type:   NormalizeType(row.Type),
		Values: make([]Value, 0, len(names)),
	}

	if strings.EqualFold(strings.TrimSpace(row.Type), typeDictionary) {
		ids := decodeStringList(row.ValueIDs)
		for i, name := range names {
			id := name
			if i < len(ids) {
				id = ids[i]
			}
			attr.Values = append(attr.Values, Value{
				Kind:  KindDictionary,
				Entry: domain.DictionaryEntry{ID: id, Name: name},
			})
		}
		return attr
	}

	for _, name := range names {
		attr.Values = append(attr.Values, Value{Kind: KindString, Str: name})
	}
	return attr
}

// MapAttributes converts a full row set, keeping input order.
func MapAttributes(rows []domain.AttributeRow) []Attribute {
	attrs := make([]Attribute, 0, len(rows))
	for _, row := range rows {
		attrs = append(attrs, MapAttribute(row))
	}
	return attrs
}

// decodeStringList decodes a JSON array stored as text. Malformed or empty
// input decodes to an empty list rather than failing the whole offer.
func decodeStringList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
