package domain

import "time"

// Conversation state persisted across turns. A failed turn must not lose any
// of it; the next turn continues from the stored messages.
type Conversation struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	CurrentTurn    int       `json:"current_turn"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ConversationMessage struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Turn           int       `json:"turn"`
	CreatedAt      time.Time `json:"created_at"`
}

// StreamEvent is the tagged streaming variant emitted by the generation
// collaborator: either a text delta or the terminal Done marker, never both
// probed duck-style.
type StreamEvent struct {
	Delta string
	Done  bool
}
