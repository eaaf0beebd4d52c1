package domain

// RelatedEvent is a news item associated with trading activity.
// Deduplication identity is the composite (Source, Title, Timestamp);
// ID is assigned by the store on first insert.
type RelatedEvent struct {
	ID         int64
	Timestamp  int64 // Unix timestamp in milliseconds
	Source     string
	Title      string
	URL        string
	Summary    string
	Confidence float64 // 0..1
	CreatedAt  int64
	ExpiresAt  int64
}
