// Package hubspotfeed reads HubSpot CRM objects through the Connect proxy.
// One logical sync walks contacts, then deals, then companies; the cursor
// encodes both the object type and HubSpot's own paging token so a run can
// resume mid-collection.
package hubspotfeed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/provider"
)

const apiBase = "https://api.hubapi.com/crm/v3/objects"

// objectOrder fixes the collection walk order so cursors stay stable.
var objectOrder = []model.CRMObjectType{
	model.CRMContact,
	model.CRMDeal,
	model.CRMCompany,
}

var objectPaths = map[model.CRMObjectType]string{
	model.CRMContact: "contacts",
	model.CRMDeal:    "deals",
	model.CRMCompany: "companies",
}

var objectProperties = map[model.CRMObjectType][]string{
	model.CRMContact: {"firstname", "lastname", "email", "phone", "company", "jobtitle", "lifecyclestage", "lastmodifieddate"},
	model.CRMDeal:    {"dealname", "amount", "dealstage", "pipeline", "closedate", "createdate"},
	model.CRMCompany: {"name", "domain", "industry", "city", "state", "numberofemployees", "createdate"},
}

// Gateway pages through the CRM collections in objectOrder.
type Gateway struct {
	proxy    provider.Proxier
	pageSize int
	slot     provider.FetchSlot
	logger   zerolog.Logger
}

func New(proxy provider.Proxier, pageSize int, logger zerolog.Logger) *Gateway {
	return &Gateway{
		proxy:    proxy,
		pageSize: pageSize,
		slot:     provider.NewFetchSlot(),
		logger:   logger.With().Str("gateway", "hubspot").Logger(),
	}
}

func (g *Gateway) Kind() model.ProviderKind { return model.ProviderHubSpot }

type objectPage struct {
	Results []struct {
		ID         string            `json:"id"`
		Properties map[string]string `json:"properties"`
	} `json:"results"`
	Paging struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// FetchPage fetches one page of the collection the cursor points at. CRM
// objects are current-state facts, so the sync window is not applied here;
// every live object is returned once per run.
func (g *Gateway) FetchPage(ctx context.Context, accountID, cursor string, since time.Time) (*provider.Page, error) {
	if err := g.slot.Acquire(ctx); err != nil {
		return nil, err
	}
	defer g.slot.Release()

	objType, after, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(g.pageSize))
	q.Set("properties", strings.Join(objectProperties[objType], ","))
	if after != "" {
		q.Set("after", after)
	}

	var resp objectPage
	if err := g.proxy.Proxy(ctx, accountID, apiBase+"/"+objectPaths[objType], q, &resp); err != nil {
		return nil, fmt.Errorf("hubspot %s list: %w", objectPaths[objType], err)
	}

	page := &provider.Page{}
	for _, obj := range resp.Results {
		page.Records = append(page.Records, model.RawRecord{
			Provider:   model.ProviderHubSpot,
			ID:         obj.ID,
			ModifiedAt: modifiedAt(objType, obj.Properties),
			Object: &model.CRMRecord{
				Type:       objType,
				Properties: obj.Properties,
			},
		})
	}
	page.NextCursor = nextCursor(objType, resp.Paging.Next.After)
	g.logger.Debug().
		Str("object_type", string(objType)).
		Int("records", len(page.Records)).
		Str("next_cursor", page.NextCursor).
		Msg("fetched hubspot page")
	return page, nil
}

// decodeCursor splits "<type>:<after>". The empty cursor starts the walk at
// the first collection.
func decodeCursor(cursor string) (model.CRMObjectType, string, error) {
	if cursor == "" {
		return objectOrder[0], "", nil
	}
	typ, after, ok := strings.Cut(cursor, ":")
	if !ok {
		return "", "", fmt.Errorf("malformed hubspot cursor %q", cursor)
	}
	objType := model.CRMObjectType(typ)
	if _, known := objectPaths[objType]; !known {
		return "", "", fmt.Errorf("unknown hubspot object type in cursor %q", cursor)
	}
	return objType, after, nil
}

// nextCursor advances within the current collection while HubSpot keeps
// paging, otherwise steps to the next collection. Empty means done.
func nextCursor(current model.CRMObjectType, after string) string {
	if after != "" {
		return string(current) + ":" + after
	}
	for i, t := range objectOrder {
		if t == current && i+1 < len(objectOrder) {
			return string(objectOrder[i+1]) + ":"
		}
	}
	return ""
}

// modifiedAt reads the freshest timestamp HubSpot exposes for the object
// type. Contacts carry lastmodifieddate; deals and companies only expose
// createdate through the plain list endpoint.
func modifiedAt(objType model.CRMObjectType, props map[string]string) time.Time {
	keys := []string{"lastmodifieddate", "createdate"}
	if objType != model.CRMContact {
		keys = []string{"createdate"}
	}
	for _, k := range keys {
		if v := props[k]; v != "" {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}
