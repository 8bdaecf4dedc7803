package models

// Listing is the raw directory content gathered across pages.
// Data holds the decoded "data" array entries in source order, each entry once.
type Listing struct {
	Data      []interface{} `json:"data"`
	Pages     int           `json:"-"`
	Truncated bool          `json:"-"`

	// OffsetIgnored is set when a full page held only entries already seen
	OffsetIgnored bool `json:"-"`
}

// Len returns the number of raw entries
func (l *Listing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Data)
}

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Limit    int `json:"limit"`
	Offset   int `json:"offset"`
	MaxPages int `json:"max_pages"`
}
