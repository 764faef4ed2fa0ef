package storage

import "time"

type conversationRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	AgentID   string    `db:"agent_id"`
	Model     string    `db:"model"`
	ResumeID  string    `db:"resume_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type messageRow struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Position       int       `db:"position"`
	Role           string    `db:"role"`
	Content        string    `db:"content"`
	ToolCalls      *string   `db:"tool_calls"` // JSON array of tool calls
	CreatedAt      time.Time `db:"created_at"`
}
