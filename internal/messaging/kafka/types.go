package kafka

// InvalidationEvent is the wire format of webhook-driven cache
// invalidation messages. Type selects the dispatch path: "realtime"
// touches one user+context, "smart" fans out to affected users,
// "batch" carries many items at once.
type InvalidationEvent struct {
	Type          string           `json:"type"`
	Domain        string           `json:"domain"`
	UserID        string           `json:"userId"`
	ContextID     string           `json:"contextId,omitempty"`
	AffectedUsers []string         `json:"affectedUsers,omitempty"`
	Items         []BatchEventItem `json:"items,omitempty"`
}

// BatchEventItem is one entry of a batch invalidation event.
type BatchEventItem struct {
	Domain    string `json:"domain"`
	UserID    string `json:"userId"`
	ContextID string `json:"contextId,omitempty"`
}
