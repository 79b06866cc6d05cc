package koreader

// RawBook is a row of the snapshot's book table.
type RawBook struct {
	// ID is only meaningful within the snapshot it came from.
	ID       int64
	Title    string
	Author   string
	Pages    int
	MD5      string
	Series   *string
	Language *string
}

// RawEvent is a page reading record. Nil pointers mark values the snapshot
// did not provide or that were not integers.
type RawEvent struct {
	BookID     *int64
	Page       *int64
	StartTime  any
	Duration   int64
	TotalPages *int64
}

// Snapshot is everything extracted from one statistics file.
type Snapshot struct {
	Books  []RawBook
	Events []RawEvent
	// EventSource names the table events were read from, empty when none matched.
	EventSource string
}
