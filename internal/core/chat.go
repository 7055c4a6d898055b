package core

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of the advisor conversation.
type ChatMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}
