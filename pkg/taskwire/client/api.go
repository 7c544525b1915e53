package client

import (
	"context"
	"encoding/json"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// Typed convenience wrappers around Request for the message catalog.
// Payload shapes are owned by the collaborators; the client passes them
// through opaquely and returns the reply payload raw.

// GetTodayTodos fetches the todos for today.
func (c *Client) GetTodayTodos(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeTodoGetToday, nil)
}

// GetTodosByDate fetches the todos for a date (YYYY-MM-DD).
func (c *Client) GetTodosByDate(ctx context.Context, date string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeTodoGetByDate, map[string]string{"date": date})
}

// CreateTodo creates a todo and returns the stored entity.
func (c *Client) CreateTodo(ctx context.Context, todo any) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeTodoCreate, todo)
}

// UpdateTodo updates a todo; last write wins across devices.
func (c *Client) UpdateTodo(ctx context.Context, todo any) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeTodoUpdate, todo)
}

// DeleteTodo deletes a todo by id.
func (c *Client) DeleteTodo(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeTodoDelete, map[string]string{"id": id})
}

// CompleteTodo marks a todo completed.
func (c *Client) CompleteTodo(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeTodoComplete, map[string]string{"id": id})
}

// UncompleteTodo clears a todo's completion.
func (c *Client) UncompleteTodo(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeTodoUncomplete, map[string]string{"id": id})
}

// GetNotesByUser fetches a user's notes.
func (c *Client) GetNotesByUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeNotesGetByUser, map[string]string{"userId": userID})
}

// CreateNote creates a note.
func (c *Client) CreateNote(ctx context.Context, note any) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeNotesCreate, note)
}

// UpdateNote updates a note.
func (c *Client) UpdateNote(ctx context.Context, note any) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeNotesUpdate, note)
}

// DeleteNote deletes a note by id.
func (c *Client) DeleteNote(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeNotesDelete, map[string]string{"id": id})
}

// RequestNoteSuggestions asks the backend for AI suggestions on a note.
func (c *Client) RequestNoteSuggestions(ctx context.Context, note any) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeNotesAISuggestions, note)
}

// CheckLinkStatus fetches the account's current linking state.
func (c *Client) CheckLinkStatus(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeLinkCheckStatus, nil)
}

// SendLinkInvitation invites another account to link.
func (c *Client) SendLinkInvitation(ctx context.Context, invitation any) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeLinkSendInvitation, invitation)
}

// AcceptLinkInvitation accepts a pending link invitation.
func (c *Client) AcceptLinkInvitation(ctx context.Context, invitationID string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeLinkAcceptInvitation, map[string]string{"invitationId": invitationID})
}

// RejectLinkInvitation rejects a pending link invitation.
func (c *Client) RejectLinkInvitation(ctx context.Context, invitationID string) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeLinkRejectInvitation, map[string]string{"invitationId": invitationID})
}

// CancelLink dissolves the account's established link.
func (c *Client) CancelLink(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeLinkCancel, nil)
}

// GetPendingLinkRequests lists link requests awaiting a decision.
func (c *Client) GetPendingLinkRequests(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, protocol.TypeLinkGetPendingRequests, nil)
}
