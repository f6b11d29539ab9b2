package gmailfeed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/model"
)

// fakeProxy routes proxy calls by target URL and records the queries it saw.
type fakeProxy struct {
	responses map[string]interface{}
	errs      map[string]error
	queries   map[string]url.Values
}

func newFakeProxy() *fakeProxy {
	return &fakeProxy{
		responses: make(map[string]interface{}),
		errs:      make(map[string]error),
		queries:   make(map[string]url.Values),
	}
}

func (f *fakeProxy) Proxy(_ context.Context, _ string, targetURL string, query url.Values, out interface{}) error {
	f.queries[targetURL] = query
	if err := f.errs[targetURL]; err != nil {
		return err
	}
	resp, ok := f.responses[targetURL]
	if !ok {
		return errors.New("unexpected target " + targetURL)
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func encodeBody(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func TestFetchPage(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/messages"] = map[string]interface{}{
		"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}},
		"nextPageToken": "tok-2",
	}
	proxy.responses[apiBase+"/messages/m1"] = map[string]interface{}{
		"id":           "m1",
		"internalDate": "1750000000000",
		"payload": map[string]interface{}{
			"mimeType": "multipart/alternative",
			"headers": []map[string]string{
				{"name": "Subject", "value": "Q3 renewal"},
				{"name": "From", "value": "ana@acme.test"},
				{"name": "To", "value": "me@synapta.test"},
			},
			"parts": []map[string]interface{}{
				{"mimeType": "text/html", "body": map[string]string{"data": encodeBody("<p>hi</p>")}},
				{"mimeType": "text/plain", "body": map[string]string{"data": encodeBody("plain body")}},
			},
		},
	}
	proxy.responses[apiBase+"/messages/m2"] = map[string]interface{}{
		"id":           "m2",
		"internalDate": "1750000060000",
		"payload": map[string]interface{}{
			"mimeType": "text/plain",
			"headers":  []map[string]string{{"name": "Subject", "value": "re: invoice"}},
			"body":     map[string]string{"data": encodeBody("single part")},
		},
	}

	g := New(proxy, 50, zerolog.Nop())
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	page, err := g.FetchPage(context.Background(), "acct-1", "", since)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextCursor != "tok-2" {
		t.Fatalf("next cursor = %q, want tok-2", page.NextCursor)
	}
	if len(page.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(page.Records))
	}

	r := page.Records[0]
	if r.Provider != model.ProviderGmail || r.ID != "m1" {
		t.Fatalf("unexpected record identity: %+v", r)
	}
	if r.Email.Subject != "Q3 renewal" || r.Email.From != "ana@acme.test" || r.Email.To != "me@synapta.test" {
		t.Fatalf("headers not extracted: %+v", r.Email)
	}
	if r.Email.Body != "plain body" {
		t.Fatalf("body = %q, want the text/plain part", r.Email.Body)
	}
	if want := time.UnixMilli(1750000000000).UTC(); !r.ModifiedAt.Equal(want) {
		t.Fatalf("modified at = %v, want %v", r.ModifiedAt, want)
	}
	if page.Records[1].Email.Body != "single part" {
		t.Fatalf("single-part body = %q", page.Records[1].Email.Body)
	}

	listQuery := proxy.queries[apiBase+"/messages"]
	if got := listQuery.Get("q"); got != "after:2026/05/01" {
		t.Fatalf("list q = %q", got)
	}
	if got := listQuery.Get("maxResults"); got != "50" {
		t.Fatalf("maxResults = %q", got)
	}
	if listQuery.Has("pageToken") {
		t.Fatal("first page should not carry a pageToken")
	}
}

func TestFetchPageCursorPassthrough(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/messages"] = map[string]interface{}{}

	g := New(proxy, 10, zerolog.Nop())
	page, err := g.FetchPage(context.Background(), "acct-1", "tok-7", time.Now())
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextCursor != "" {
		t.Fatalf("next cursor = %q, want empty", page.NextCursor)
	}
	if len(page.Records) != 0 {
		t.Fatalf("got %d records, want 0", len(page.Records))
	}
	if got := proxy.queries[apiBase+"/messages"].Get("pageToken"); got != "tok-7" {
		t.Fatalf("pageToken = %q", got)
	}
}

func TestFetchPageLowercaseHeaders(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/messages"] = map[string]interface{}{
		"messages": []map[string]string{{"id": "m1"}},
	}
	proxy.responses[apiBase+"/messages/m1"] = map[string]interface{}{
		"id":           "m1",
		"internalDate": "1750000000000",
		"payload": map[string]interface{}{
			"mimeType": "text/plain",
			"headers": []map[string]string{
				{"name": "subject", "value": "lower case"},
				{"name": "from", "value": "ana@acme.test"},
				{"name": "TO", "value": "me@synapta.test"},
			},
			"body": map[string]string{"data": encodeBody("body")},
		},
	}

	g := New(proxy, 10, zerolog.Nop())
	page, err := g.FetchPage(context.Background(), "acct-1", "", time.Now())
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	e := page.Records[0].Email
	if e.Subject != "lower case" || e.From != "ana@acme.test" || e.To != "me@synapta.test" {
		t.Fatalf("headers not matched case-insensitively: %+v", e)
	}
}

func TestNewClampsPageSize(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/messages"] = map[string]interface{}{}

	g := New(proxy, 2000, zerolog.Nop())
	if _, err := g.FetchPage(context.Background(), "acct-1", "", time.Now()); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if got := proxy.queries[apiBase+"/messages"].Get("maxResults"); got != "500" {
		t.Fatalf("maxResults = %q, want 500", got)
	}
}

func TestFetchPagePropagatesClassifiedErrors(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/messages"] = map[string]interface{}{
		"messages": []map[string]string{{"id": "m1"}},
	}
	proxy.errs[apiBase+"/messages/m1"] = model.ErrRateLimited

	g := New(proxy, 10, zerolog.Nop())
	_, err := g.FetchPage(context.Background(), "acct-1", "", time.Now())
	if !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestFetchPageAuthExpiredOnList(t *testing.T) {
	proxy := newFakeProxy()
	proxy.errs[apiBase+"/messages"] = model.ErrAuthExpired

	g := New(proxy, 10, zerolog.Nop())
	_, err := g.FetchPage(context.Background(), "acct-1", "", time.Now())
	if !errors.Is(err, model.ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
}

func TestExtractBodyPaddedBase64(t *testing.T) {
	data := base64.URLEncoding.EncodeToString([]byte("padded"))
	p := messagePart{MimeType: "text/plain"}
	p.Body.Data = data
	if got := extractBody(p); got != "padded" {
		t.Fatalf("extractBody = %q", got)
	}
}
