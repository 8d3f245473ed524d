package domain

// ChatRole is the author of a chat turn
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a conversation
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatReply is what the proxy returns to the dashboard
type ChatReply struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
}
