package workflow

import (
	"fmt"
	"strings"
)

var descriptionTemplates = map[string]string{
	EventLeadCreated:     "Lead draft created",
	EventLeadSubmitted:   "Lead submitted for review",
	EventOwnerAssigned:   "Owner assigned: {owner}",
	EventStatusChanged:   "Status changed from {from} to {to}",
	EventInfoRequested:   "Additional information requested",
	EventApproved:        "Lead approved",
	EventRejected:        "Lead rejected: {reason}",
	EventLeadResubmitted: "Lead resubmitted with requested information",

	EventPayoutRequested: "Payout of {amount} requested to {bankName}",
	EventPayoutApproved:  "Payout of {amount} approved",
	EventPayoutRejected:  "Payout of {amount} rejected: {reason}",
	EventPayoutCancelled: "Payout of {amount} cancelled by requester",
	EventPayoutPaid:      "Payout of {amount} paid (ref {reference})",
	EventPayoutFailed:    "Payout of {amount} failed: {reason}",

	EventDisputeOpened:     "Dispute opened",
	EventEvidenceAdded:     "Evidence added ({count}/{required})",
	EventEvidenceRequested: "Additional evidence requested",
	EventEvidenceSubmitted: "Evidence submitted for review",
	EventDisputeResolved:   "Dispute resolved ({outcome}): {summary}",
}

// Describe renders the human readable description of an event from the fixed
// template dictionary. Placeholders without a metadata value render as "-".
func Describe(eventType string, fields map[string]any) string {
	tmpl, ok := descriptionTemplates[eventType]
	if !ok {
		return humanize(eventType)
	}
	var b strings.Builder
	for {
		start := strings.IndexByte(tmpl, '{')
		if start < 0 {
			b.WriteString(tmpl)
			break
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:start])
		key := tmpl[start+1 : start+end]
		if v, ok := fields[key]; ok && fmt.Sprint(v) != "" {
			fmt.Fprint(&b, v)
		} else {
			b.WriteString("-")
		}
		tmpl = tmpl[start+end+1:]
	}
	return b.String()
}

func humanize(eventType string) string {
	s := strings.ToLower(strings.ReplaceAll(eventType, "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
