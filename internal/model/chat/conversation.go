package chat

import "time"

// Conversation is a view-scoped chat log handle. Nothing about it outlives the view.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
