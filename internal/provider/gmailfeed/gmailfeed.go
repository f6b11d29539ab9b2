// Package gmailfeed reads Gmail messages through the Connect proxy and
// exposes them as provider pages. Listing and per-message hydration both go
// through the proxy so the service never holds Google credentials.
package gmailfeed

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/provider"
)

const apiBase = "https://www.googleapis.com/gmail/v1/users/me"

// maxResultsCap is the largest maxResults the messages.list API accepts.
const maxResultsCap = 500

// Gateway pages through a Gmail mailbox newest-first within the sync window.
type Gateway struct {
	proxy    provider.Proxier
	pageSize int
	slot     provider.FetchSlot
	logger   zerolog.Logger
}

func New(proxy provider.Proxier, pageSize int, logger zerolog.Logger) *Gateway {
	if pageSize > maxResultsCap {
		pageSize = maxResultsCap
	}
	return &Gateway{
		proxy:    proxy,
		pageSize: pageSize,
		slot:     provider.NewFetchSlot(),
		logger:   logger.With().Str("gateway", "gmail").Logger(),
	}
}

func (g *Gateway) Kind() model.ProviderKind { return model.ProviderGmail }

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

type messagePart struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []messagePart `json:"parts"`
}

type message struct {
	ID           string      `json:"id"`
	InternalDate string      `json:"internalDate"`
	Payload      messagePart `json:"payload"`
}

// FetchPage lists one page of message ids then hydrates each message to its
// full form. Hydration failures with a retryable or auth classification abort
// the page; a record that hydrates but cannot be parsed is passed through
// with a zero timestamp so the normalizer can count it as malformed.
func (g *Gateway) FetchPage(ctx context.Context, accountID, cursor string, since time.Time) (*provider.Page, error) {
	if err := g.slot.Acquire(ctx); err != nil {
		return nil, err
	}
	defer g.slot.Release()

	q := url.Values{}
	q.Set("q", "after:"+since.Format("2006/01/02"))
	q.Set("maxResults", strconv.Itoa(g.pageSize))
	if cursor != "" {
		q.Set("pageToken", cursor)
	}

	var list listResponse
	if err := g.proxy.Proxy(ctx, accountID, apiBase+"/messages", q, &list); err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}

	page := &provider.Page{NextCursor: list.NextPageToken}
	for _, ref := range list.Messages {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec, err := g.fetchMessage(ctx, accountID, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("gmail message %s: %w", ref.ID, err)
		}
		page.Records = append(page.Records, rec)
	}
	g.logger.Debug().Int("records", len(page.Records)).Str("next_cursor", page.NextCursor).Msg("fetched gmail page")
	return page, nil
}

func (g *Gateway) fetchMessage(ctx context.Context, accountID, id string) (model.RawRecord, error) {
	q := url.Values{}
	q.Set("format", "full")
	var msg message
	if err := g.proxy.Proxy(ctx, accountID, apiBase+"/messages/"+id, q, &msg); err != nil {
		return model.RawRecord{}, err
	}

	rec := model.RawRecord{
		Provider: model.ProviderGmail,
		ID:       id,
		Email:    &model.EmailRecord{Body: extractBody(msg.Payload)},
	}
	// Header names arrive as the sender wrote them, so match case-insensitively.
	for _, h := range msg.Payload.Headers {
		switch {
		case strings.EqualFold(h.Name, "Subject"):
			rec.Email.Subject = h.Value
		case strings.EqualFold(h.Name, "From"):
			rec.Email.From = h.Value
		case strings.EqualFold(h.Name, "To"):
			rec.Email.To = h.Value
		}
	}
	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
		rec.ModifiedAt = time.UnixMilli(ms).UTC()
	} else {
		g.logger.Warn().Str("message_id", id).Msg("gmail message missing internalDate")
	}
	return rec, nil
}

// extractBody walks the MIME tree preferring text/plain parts. Gmail encodes
// part bodies as unpadded URL-safe base64.
func extractBody(p messagePart) string {
	if p.MimeType == "text/plain" && p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	for _, part := range p.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}
	if len(p.Parts) == 0 && p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	return ""
}

func decodeBody(data string) string {
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}
