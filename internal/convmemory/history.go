// Package convmemory holds per-session conversation history: an append-only,
// chronologically ordered turn log used to rewrite follow-up questions.
package convmemory

import (
	"context"

	"docchat/internal/models"
)

// History is the conversation log capability. An unknown session key reads as
// empty history, never an error. Appends for the same session serialize;
// concurrent appends both land, in some well-defined order.
type History interface {
	Append(ctx context.Context, sessionKey string, turn models.Turn) error
	Turns(ctx context.Context, sessionKey string) ([]models.Turn, error)
}
