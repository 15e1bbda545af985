package model

// Cursor is the single opaque token representing the most-recently
// fully-processed mutation. It is persisted atomically with the
// guarantee that every outbound delivery for that mutation has been
// enqueued.
type Cursor struct {
	Token       string `json:"token"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// NewCursor builds a Cursor at the current position.
func NewCursor(token string) *Cursor {
	return &Cursor{Token: token, UpdatedAt: GetMillis()}
}

// IsEmpty reports whether the cursor has never been advanced, in which
// case the Change Source opens the feed from the current position.
func (c *Cursor) IsEmpty() bool {
	return c == nil || c.Token == ""
}
