package workflow

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

func fixedAppender() *Appender {
	n := 0
	now := time.Date(2024, 10, 31, 15, 4, 5, 0, time.UTC)
	return NewAppender().
		WithIDGenerator(func() string { n++; return fmt.Sprintf("ev-%d", n) }).
		WithClock(func() time.Time { return now })
}

func TestAppend_AddsExactlyOneEventAndKeepsHistory(t *testing.T) {
	app := fixedAppender()
	var tl Timeline
	tl, _ = app.Append(tl, EventLeadSubmitted, coSelector(), "", nil)
	tl, _ = app.Append(tl, EventOwnerAssigned, opsBD(), "", OwnerAssignment{OwnerID: "o1", OwnerName: "Omar"})

	before := tl.Clone()
	next, ev := app.Append(tl, EventStatusChanged, opsBD(), "", StatusChange{From: LeadSubmitted, To: LeadUnderReview})

	if len(next) != len(tl)+1 {
		t.Fatalf("expected %d events, got %d", len(tl)+1, len(next))
	}
	if !reflect.DeepEqual(next[:len(tl)], before) {
		t.Fatal("prior events changed")
	}
	if !reflect.DeepEqual(tl, before) {
		t.Fatal("input timeline mutated")
	}
	if last, _ := next.Last(); last.ID != ev.ID {
		t.Fatalf("expected appended event last, got %s", last.ID)
	}
	if ev.ID != "ev-3" || ev.ActorType != RoleOpsBD || ev.ActorName != "Olivia Ops" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Description != "Status changed from SUBMITTED to UNDER_REVIEW" {
		t.Fatalf("unexpected description %q", ev.Description)
	}
}

func TestAppend_DoesNotAliasAcrossBranches(t *testing.T) {
	app := fixedAppender()
	base := make(Timeline, 0, 8)
	base, _ = app.Append(base, EventLeadCreated, coSelector(), "", nil)

	a, _ := app.Append(base, EventLeadSubmitted, coSelector(), "", nil)
	b, _ := app.Append(base, EventInfoRequested, opsBD(), "", nil)
	if a[1].EventType == b[1].EventType {
		t.Fatal("branches share backing storage")
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		eventType string
		meta      Metadata
		want      string
	}{
		{EventLeadSubmitted, nil, "Lead submitted for review"},
		{EventOwnerAssigned, OwnerAssignment{OwnerID: "o", OwnerName: "Omar"}, "Owner assigned: Omar"},
		{EventRejected, Rejection{Reason: "duplicate merchant"}, "Lead rejected: duplicate merchant"},
		{EventRejected, nil, "Lead rejected: -"},
		{EventPayoutPaid, PaymentResult{Amount: "120.00", Reference: "TRX-9"}, "Payout of 120.00 paid (ref TRX-9)"},
		{"CUSTOM_NOTE", Fields{"note": "x"}, "Custom note"},
	}
	for _, tc := range cases {
		var fields map[string]any
		if tc.meta != nil {
			fields = tc.meta.Fields()
		}
		if got := Describe(tc.eventType, fields); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.eventType, tc.want, got)
		}
	}
}

func TestMetadataShapes(t *testing.T) {
	f := InfoRequest{StatusChange: StatusChange{From: LeadSubmitted, To: LeadInfoRequested}, Requested: []string{"contactPhone"}}.Fields()
	if f["from"] != "SUBMITTED" || f["to"] != "INFO_REQUESTED" {
		t.Fatalf("status change not flattened: %v", f)
	}
	if fields, ok := f["fields"].([]string); !ok || fields[0] != "contactPhone" {
		t.Fatalf("requested fields missing: %v", f)
	}
	if Fields(nil).Fields() != nil {
		t.Fatal("empty open metadata should flatten to nil")
	}
}
