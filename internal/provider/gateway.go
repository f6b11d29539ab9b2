// Package provider defines the uniform gateway over external data providers.
// Gateways hide pagination, rate limits and credential refresh behind one
// page-oriented interface; cursors are opaque and resumable.
package provider

import (
	"context"
	"net/url"
	"time"

	"github.com/synapta-ai/synapta/internal/model"
)

// Page is one batch of provider records plus the cursor for the next batch.
// An empty NextCursor means the sequence is exhausted.
type Page struct {
	Records    []model.RawRecord
	NextCursor string
}

// Gateway fetches pages of raw records for one provider kind.
// FetchPage classifies failures as model.ErrAuthExpired, model.ErrRateLimited
// or model.ErrTransient; anything else is a non-retryable client bug.
type Gateway interface {
	Kind() model.ProviderKind
	FetchPage(ctx context.Context, accountID, cursor string, since time.Time) (*Page, error)
}

// Proxier is the slice of the Connect client gateways depend on.
type Proxier interface {
	Proxy(ctx context.Context, accountID, targetURL string, query url.Values, out interface{}) error
}

// FetchSlot serializes page fetches: the concurrency ceiling is one
// in-flight fetch per gateway.
type FetchSlot struct{ ch chan struct{} }

func NewFetchSlot() FetchSlot { return FetchSlot{ch: make(chan struct{}, 1)} }

func (s FetchSlot) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s FetchSlot) Release() { <-s.ch }
