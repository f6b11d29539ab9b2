// Package llm abstracts the completion model used to draft grounded answers.
package llm

import "context"

// Provider produces one completion for a system prompt plus user message.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
