package chat

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation, immutable once created.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemTurn builds the instruction turn sent ahead of the context window.
// It is synthesized fresh for every model request and never stored.
func SystemTurn(prompt string) Turn {
	return Turn{Role: RoleSystem, Content: prompt}
}

// UserTurn wraps user input.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn wraps a model (or fallback) reply.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
