// Package episode normalizes provider-native records into graph episodes.
// Build is pure: the same record always produces the same episode, and the
// episode ID is derived from the record identity so re-ingestion upserts.
package episode

import (
	"fmt"
	"strings"

	"github.com/synapta-ai/synapta/internal/model"
)

// maxBodyLen bounds email bodies so one long thread cannot dominate the
// graph's context extraction.
const maxBodyLen = 2000

// Build normalizes one raw record into an episode. It returns
// model.ErrMalformedRecord (wrapped with the reason) when the record lacks
// the identity or timestamp the pipeline's idempotence depends on.
func Build(accountID string, rec model.RawRecord) (model.Episode, error) {
	if rec.ID == "" {
		return model.Episode{}, fmt.Errorf("%w: missing record id", model.ErrMalformedRecord)
	}
	if rec.ModifiedAt.IsZero() {
		return model.Episode{}, fmt.Errorf("%w: record %s has no timestamp", model.ErrMalformedRecord, rec.ID)
	}

	switch rec.Provider {
	case model.ProviderGmail:
		if rec.Email == nil {
			return model.Episode{}, fmt.Errorf("%w: gmail record %s has no email payload", model.ErrMalformedRecord, rec.ID)
		}
		return buildEmail(accountID, rec), nil
	case model.ProviderHubSpot:
		if rec.Object == nil {
			return model.Episode{}, fmt.Errorf("%w: hubspot record %s has no object payload", model.ErrMalformedRecord, rec.ID)
		}
		return buildCRM(accountID, rec)
	default:
		return model.Episode{}, fmt.Errorf("%w: unknown provider %q", model.ErrMalformedRecord, rec.Provider)
	}
}

func buildEmail(accountID string, rec model.RawRecord) model.Episode {
	e := rec.Email
	body := truncateRunes(e.Body, maxBodyLen)
	subject := e.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	content := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\n\n%s", e.From, e.To, subject, body)
	return model.Episode{
		Provider:   model.ProviderGmail,
		AccountID:  accountID,
		SourceID:   rec.ID,
		EpisodeID:  "gmail_" + rec.ID,
		OccurredAt: rec.ModifiedAt,
		Content:    content,
		Source:     "Gmail - " + subject,
		Metadata: map[string]string{
			"from":    e.From,
			"to":      e.To,
			"subject": e.Subject,
		},
	}
}

func buildCRM(accountID string, rec model.RawRecord) (model.Episode, error) {
	obj := rec.Object
	var content, label string
	switch obj.Type {
	case model.CRMContact:
		name := joinNonEmpty(" ", obj.Properties["firstname"], obj.Properties["lastname"])
		content = fieldSheet(
			field{"Contact", name},
			field{"Email", obj.Properties["email"]},
			field{"Phone", obj.Properties["phone"]},
			field{"Company", obj.Properties["company"]},
			field{"Job Title", obj.Properties["jobtitle"]},
			field{"Lifecycle Stage", obj.Properties["lifecyclestage"]},
		)
		label = name
	case model.CRMDeal:
		content = fieldSheet(
			field{"Deal", obj.Properties["dealname"]},
			field{"Amount", obj.Properties["amount"]},
			field{"Stage", obj.Properties["dealstage"]},
			field{"Pipeline", obj.Properties["pipeline"]},
			field{"Close Date", obj.Properties["closedate"]},
		)
		label = obj.Properties["dealname"]
	case model.CRMCompany:
		content = fieldSheet(
			field{"Company", obj.Properties["name"]},
			field{"Domain", obj.Properties["domain"]},
			field{"Industry", obj.Properties["industry"]},
			field{"Location", joinNonEmpty(", ", obj.Properties["city"], obj.Properties["state"])},
			field{"Employees", obj.Properties["numberofemployees"]},
		)
		label = obj.Properties["name"]
	default:
		return model.Episode{}, fmt.Errorf("%w: unknown crm object type %q", model.ErrMalformedRecord, obj.Type)
	}
	if label == "" {
		label = rec.ID
	}
	return model.Episode{
		Provider:   model.ProviderHubSpot,
		AccountID:  accountID,
		SourceID:   rec.ID,
		EpisodeID:  fmt.Sprintf("hubspot_%s_%s", obj.Type, rec.ID),
		OccurredAt: rec.ModifiedAt,
		Content:    content,
		Source:     fmt.Sprintf("HubSpot %s - %s", titleCase(string(obj.Type)), label),
		Metadata: map[string]string{
			"object_type": string(obj.Type),
		},
	}, nil
}

type field struct{ name, value string }

// fieldSheet renders "Name: value" lines, skipping empty values so sparse
// CRM objects stay readable.
func fieldSheet(fields ...field) string {
	var b strings.Builder
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.name)
		b.WriteString(": ")
		b.WriteString(f.value)
	}
	return b.String()
}

// truncateRunes cuts s to at most max runes, never splitting a multibyte
// character.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
