package domain

import "time"

// SubjectIDFormatURI is the only subject identifier scheme supported.
const SubjectIDFormatURI = "uri"

// SubjectItem identifies the resource owner by an external identifier.
type SubjectItem struct {
	ID     string `json:"id"`
	Format string `json:"format"`
}

// Subject is a persisted subject identifier owned by a grant.
type Subject struct {
	ID        string
	GrantID   string
	SubID     string
	Format    string
	CreatedAt time.Time
}

// Item converts the persisted row back to its request shape.
func (s Subject) Item() SubjectItem {
	return SubjectItem{ID: s.SubID, Format: s.Format}
}
