package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/burrowhq/burrow/src/session"
)

var _ session.Store = (*DB)(nil)

// Save persists the whole conversation state. Messages are rewritten in one
// transaction; the last writer wins.
func (d *DB) Save(ctx context.Context, state *session.State) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO conversations (id, title, agent_id, model, resume_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			agent_id = excluded.agent_id,
			model = excluded.model,
			resume_id = excluded.resume_id,
			updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert,
		state.ID, state.Title, state.AgentID, state.Model, state.ResumeID,
		state.CreatedAt, state.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, state.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	insert := `INSERT INTO messages (id, conversation_id, position, role, content, tool_calls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i, msg := range state.Messages {
		var toolCalls *string
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool calls: %w", err)
			}
			s := string(data)
			toolCalls = &s
		}
		if _, err := tx.ExecContext(ctx, insert,
			uuid.New().String(), state.ID, i, msg.Role, msg.Content, toolCalls, msg.Timestamp,
		); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load retrieves a conversation by id. Returns (nil, nil) when not found.
func (d *DB) Load(ctx context.Context, id string) (*session.State, error) {
	query := `SELECT id, title, agent_id, model, resume_id, created_at, updated_at FROM conversations WHERE id = ?`
	var conv conversationRow
	if err := sqlscan.Get(ctx, d.db, &conv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}

	var rows []messageRow
	msgQuery := `SELECT id, conversation_id, position, role, content, tool_calls, created_at
		FROM messages WHERE conversation_id = ? ORDER BY position`
	if err := sqlscan.Select(ctx, d.db, &rows, msgQuery, id); err != nil {
		return nil, err
	}

	state := &session.State{
		ID:        conv.ID,
		Title:     conv.Title,
		AgentID:   conv.AgentID,
		Model:     conv.Model,
		ResumeID:  conv.ResumeID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, row := range rows {
		msg := session.Message{
			Role:      row.Role,
			Content:   row.Content,
			Timestamp: row.CreatedAt,
		}
		if row.ToolCalls != nil && *row.ToolCalls != "" {
			if err := json.Unmarshal([]byte(*row.ToolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
			}
		}
		state.Messages = append(state.Messages, msg)
	}

	return state, nil
}
