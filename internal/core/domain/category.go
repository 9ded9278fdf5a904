package domain

// CategoryNode is one node of the destination category tree. Parent is stored
// as an id reference, not a pointer, so corrupt parent chains cannot produce
// live cycles; path building walks an id-indexed arena with a hop bound.
type CategoryNode struct {
	ID       int64
	Name     string
	ParentID int64
}

// CategoryParameter describes one attribute of a destination category schema.
type CategoryParameter struct {
	ID         string
	CategoryID int64
	Name       string
	Type       string
	Required   bool
	Min        *float64
	Max        *float64
	Dictionary []DictionaryEntry
}

// DictionaryEntry is one legal (id, name) pair of a dictionary attribute.
type DictionaryEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
