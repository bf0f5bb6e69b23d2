// Package ai abstracts the chat-completion backends used to refine song
// queries.
package ai

import "context"

type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}
