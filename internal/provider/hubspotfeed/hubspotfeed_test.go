package hubspotfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/model"
)

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

func TestFetchPageContacts(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/contacts"] = map[string]interface{}{
		"results": []map[string]interface{}{
			{
				"id": "101",
				"properties": map[string]string{
					"firstname":        "Ana",
					"lastname":         "Silva",
					"email":            "ana@acme.test",
					"lastmodifieddate": "2026-06-15T10:00:00Z",
				},
			},
		},
		"paging": map[string]interface{}{"next": map[string]string{"after": "after-1"}},
	}

	g := New(proxy, 100, zerolog.Nop())
	page, err := g.FetchPage(context.Background(), "acct-1", "", time.Now())
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextCursor != "contact:after-1" {
		t.Fatalf("next cursor = %q", page.NextCursor)
	}
	if len(page.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(page.Records))
	}
	r := page.Records[0]
	if r.Provider != model.ProviderHubSpot || r.ID != "101" {
		t.Fatalf("unexpected record identity: %+v", r)
	}
	if r.Object.Type != model.CRMContact || r.Object.Properties["firstname"] != "Ana" {
		t.Fatalf("unexpected object: %+v", r.Object)
	}
	if want := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC); !r.ModifiedAt.Equal(want) {
		t.Fatalf("modified at = %v, want %v", r.ModifiedAt, want)
	}

	q := proxy.queries[apiBase+"/contacts"]
	if got := q.Get("limit"); got != "100" {
		t.Fatalf("limit = %q", got)
	}
	if props := q.Get("properties"); !strings.Contains(props, "lifecyclestage") {
		t.Fatalf("properties = %q, missing contact property list", props)
	}
	if q.Has("after") {
		t.Fatal("first page should not carry an after token")
	}
}

func TestFetchPageStepsToNextCollection(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/deals"] = map[string]interface{}{
		"results": []map[string]interface{}{
			{
				"id": "201",
				"properties": map[string]string{
					"dealname":   "Acme renewal",
					"dealstage":  "contractsent",
					"createdate": "2026-07-01T08:30:00Z",
				},
			},
		},
	}

	g := New(proxy, 100, zerolog.Nop())
	page, err := g.FetchPage(context.Background(), "acct-1", "deal:", time.Now())
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextCursor != "company:" {
		t.Fatalf("next cursor = %q, want company:", page.NextCursor)
	}
	if page.Records[0].Object.Type != model.CRMDeal {
		t.Fatalf("object type = %v", page.Records[0].Object.Type)
	}
	if want := time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC); !page.Records[0].ModifiedAt.Equal(want) {
		t.Fatalf("deal modified at = %v", page.Records[0].ModifiedAt)
	}
}

func TestFetchPageLastCollectionEndsWalk(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/companies"] = map[string]interface{}{
		"results": []map[string]interface{}{
			{"id": "301", "properties": map[string]string{"name": "Acme", "createdate": "2026-04-02T00:00:00Z"}},
		},
	}

	g := New(proxy, 100, zerolog.Nop())
	page, err := g.FetchPage(context.Background(), "acct-1", "company:", time.Now())
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextCursor != "" {
		t.Fatalf("next cursor = %q, want empty", page.NextCursor)
	}
}

func TestFetchPageResumesWithAfterToken(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/contacts"] = map[string]interface{}{}

	g := New(proxy, 100, zerolog.Nop())
	if _, err := g.FetchPage(context.Background(), "acct-1", "contact:after-9", time.Now()); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if got := proxy.queries[apiBase+"/contacts"].Get("after"); got != "after-9" {
		t.Fatalf("after = %q", got)
	}
}

func TestFetchPageBadCursor(t *testing.T) {
	g := New(newFakeProxy(), 100, zerolog.Nop())
	if _, err := g.FetchPage(context.Background(), "acct-1", "bogus", time.Now()); err == nil {
		t.Fatal("expected error for malformed cursor")
	}
	if _, err := g.FetchPage(context.Background(), "acct-1", "ticket:x", time.Now()); err == nil {
		t.Fatal("expected error for unknown object type")
	}
}

func TestFetchPagePropagatesClassifiedErrors(t *testing.T) {
	proxy := newFakeProxy()
	proxy.errs[apiBase+"/contacts"] = model.ErrAuthExpired

	g := New(proxy, 100, zerolog.Nop())
	_, err := g.FetchPage(context.Background(), "acct-1", "", time.Now())
	if !errors.Is(err, model.ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
}

func TestMissingTimestampYieldsZeroTime(t *testing.T) {
	proxy := newFakeProxy()
	proxy.responses[apiBase+"/contacts"] = map[string]interface{}{
		"results": []map[string]interface{}{
			{"id": "102", "properties": map[string]string{"firstname": "No", "lastname": "Dates"}},
		},
	}

	g := New(proxy, 100, zerolog.Nop())
	page, err := g.FetchPage(context.Background(), "acct-1", "", time.Now())
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !page.Records[0].ModifiedAt.IsZero() {
		t.Fatalf("modified at = %v, want zero", page.Records[0].ModifiedAt)
	}
}
