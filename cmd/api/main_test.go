package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coselect/dispute"
	"coselect/lead"
	"coselect/outbox"
	"coselect/payout"
	"coselect/profile"
	"coselect/session"
	"coselect/store"
	"coselect/workflow"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context, store.Collection) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Save(context.Context, store.Collection, []byte) error {
	return errors.New("disk on fire")
}

func (brokenStore) Remove(context.Context, store.Collection) error {
	return errors.New("disk on fire")
}

func newTestServer(backend store.Store) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &outbox.Recorder{}
	profiles := profile.NewService(profile.NewRepository(backend))
	server := &Server{
		sessions: session.NewService(backend, session.NewIssuer("test-secret", time.Hour), nil),
		leads:    lead.NewService(lead.NewRepository(backend), rec).WithLogger(logger),
		payouts:  payout.NewService(payout.NewRepository(backend), profiles, rec).WithLogger(logger),
		disputes: dispute.NewService(dispute.NewRepository(backend), rec).
			WithLogger(logger).
			WithScheduler(func(time.Duration, func()) {}),
		profiles: profiles,
		logger:   logger,
		now:      func() time.Time { return time.Date(2024, 11, 3, 8, 0, 0, 0, time.UTC) },
	}
	return server.routes()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, userID string, role workflow.Role) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/session", "", session.StartRequest{UserID: userID, Name: userID, Role: role})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var res session.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return res.Token
}

func decodeLead(t *testing.T, rec *httptest.ResponseRecorder) leadResponse {
	t.Helper()
	var resp leadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

var sampleLead = map[string]any{
	"merchantName": "Warung Bu Sri",
	"category":     "F&B",
	"region":       "Jabodetabek",
	"city":         "Bekasi",
	"contactName":  "Sri",
	"contactPhone": "+62811000111",
	"submit":       true,
}

func TestSession_StartAndCurrent(t *testing.T) {
	h := newTestServer(store.NewMemory())
	token := login(t, h, "co-1", workflow.RoleCoSelector)

	rec := do(t, h, http.MethodGet, "/api/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sc session.Context
	if err := json.Unmarshal(rec.Body.Bytes(), &sc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sc.Actor.ID != "co-1" || sc.Actor.Role != workflow.RoleCoSelector || sc.ViewPreset != session.PresetMyWork {
		t.Fatalf("unexpected session %+v", sc)
	}
}

func TestSession_MissingOrBadToken(t *testing.T) {
	h := newTestServer(store.NewMemory())

	if rec := do(t, h, http.MethodGet, "/api/leads", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/leads", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSession_InternalRoleRejected(t *testing.T) {
	h := newTestServer(store.NewMemory())
	rec := do(t, h, http.MethodPost, "/api/session", "", session.StartRequest{UserID: "x", Role: workflow.RoleAdmin})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLeadLifecycle(t *testing.T) {
	h := newTestServer(store.NewMemory())
	co := login(t, h, "co-1", workflow.RoleCoSelector)
	bd := login(t, h, "bd-1", workflow.RoleOpsBD)

	rec := do(t, h, http.MethodPost, "/api/leads", co, sampleLead)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	created := decodeLead(t, rec)
	if created.Status != workflow.LeadSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", created.Status)
	}
	path := "/api/leads/" + created.ID

	// Skipping review is not an edge.
	if rec := do(t, h, http.MethodPost, path+"/transitions", bd, map[string]any{"to": "APPROVED"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, path+"/transitions", co, map[string]any{"to": "UNDER_REVIEW"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, path+"/transitions", bd, map[string]any{"to": "under_review"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start review: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	reviewing := decodeLead(t, rec)
	if len(reviewing.AvailableTargets) == 0 {
		t.Fatal("expected available targets for OPS_BD")
	}

	if rec := do(t, h, http.MethodPost, path+"/transitions", bd, map[string]any{"to": "APPROVED"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("approve without owner: expected 422, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, path+"/owner", bd, lead.ActorRef{ID: "bd-1", Name: "Bima"}); rec.Code != http.StatusOK {
		t.Fatalf("assign owner: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, path+"/transitions", bd, map[string]any{"to": "APPROVED"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	approved := decodeLead(t, rec)
	if approved.Status != workflow.LeadApproved || len(approved.Timeline) != 5 {
		t.Fatalf("unexpected approved lead: status=%s events=%d", approved.Status, len(approved.Timeline))
	}
}

func TestLead_NotFoundAndBadJSON(t *testing.T) {
	h := newTestServer(store.NewMemory())
	co := login(t, h, "co-1", workflow.RoleCoSelector)

	if rec := do(t, h, http.MethodGet, "/api/leads/missing", co, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/leads", co, map[string]any{"merchant": "typo"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestLead_HiddenFromOtherCoSelectors(t *testing.T) {
	h := newTestServer(store.NewMemory())
	owner := login(t, h, "co-1", workflow.RoleCoSelector)
	other := login(t, h, "co-2", workflow.RoleCoSelector)
	bd := login(t, h, "bd-1", workflow.RoleOpsBD)

	rec := do(t, h, http.MethodPost, "/api/leads", owner, sampleLead)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	id := decodeLead(t, rec).ID

	if rec := do(t, h, http.MethodGet, "/api/leads/"+id, other, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("other co-selector: expected 404, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/leads/"+id, owner, nil); rec.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/leads/"+id, bd, nil); rec.Code != http.StatusOK {
		t.Fatalf("reviewer: expected 200, got %d", rec.Code)
	}
}

func TestPayout_IneligibleRequest(t *testing.T) {
	h := newTestServer(store.NewMemory())
	co := login(t, h, "co-1", workflow.RoleCoSelector)

	rec := do(t, h, http.MethodPost, "/api/payouts", co, map[string]any{"amount": "10.00"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/api/payouts/eligibility", co, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("eligibility: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Eligible bool           `json:"eligible"`
		Issues   []payout.Issue `json:"issues"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Eligible || len(resp.Issues) == 0 {
		t.Fatalf("expected issues, got %+v", resp)
	}

	if rec := do(t, h, http.MethodGet, "/api/payouts/eligibility?user=co-2", co, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign eligibility: expected 403, got %d", rec.Code)
	}
}

func TestDispute_OpenAndResolve(t *testing.T) {
	h := newTestServer(store.NewMemory())
	co := login(t, h, "co-1", workflow.RoleCoSelector)
	bd := login(t, h, "bd-1", workflow.RoleOpsBD)

	rec := do(t, h, http.MethodPost, "/api/disputes", co, map[string]any{"subject": "Missing commission"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var opened dispute.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &opened); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opened.Urgency != dispute.UrgencyNormal {
		t.Fatalf("expected NORMAL urgency, got %s", opened.Urgency)
	}

	path := "/api/disputes/" + opened.ID
	if rec := do(t, h, http.MethodPost, path+"/resolution", bd, map[string]any{"outcome": "upheld"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("resolve without summary: expected 422, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, path+"/resolution", bd, map[string]any{"outcome": "upheld", "summary": "Paid out"})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodPost, path+"/evidence", co, map[string]any{"artifact": "late.png"}); rec.Code != http.StatusConflict {
		t.Fatalf("evidence after resolve: expected 409, got %d", rec.Code)
	}
}

func TestExportLeads(t *testing.T) {
	h := newTestServer(store.NewMemory())
	co := login(t, h, "co-1", workflow.RoleCoSelector)
	bd := login(t, h, "bd-1", workflow.RoleOpsBD)

	if rec := do(t, h, http.MethodPost, "/api/leads", co, sampleLead); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/exports/leads.csv", co, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("co-selector export: expected 403, got %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/exports/leads.csv", bd, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "leads-20241103.csv") {
		t.Fatalf("unexpected disposition %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "\ufeff\"id\",") || !strings.Contains(body, `"Warung Bu Sri"`) {
		t.Fatalf("unexpected csv body %q", body)
	}
}

func TestReset_RequiresDevTools(t *testing.T) {
	h := newTestServer(store.NewMemory())
	fin := login(t, h, "fin-1", workflow.RoleFinance)

	if rec := do(t, h, http.MethodPost, "/api/dev/reset", fin, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/session/elevate", fin, map[string]any{"passphrase": "whatever"}); rec.Code != http.StatusForbidden {
		t.Fatalf("elevate with disabled gate: expected 403, got %d", rec.Code)
	}
}

func TestStorageFailureIsUnavailable(t *testing.T) {
	h := newTestServer(brokenStore{})
	rec := do(t, h, http.MethodPost, "/api/session", "", session.StartRequest{UserID: "co-1", Role: workflow.RoleCoSelector})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(store.NewMemory())
	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/healthz", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{workflow.ErrInvalidTransition, http.StatusConflict},
		{workflow.ErrPreconditionFailed, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: 10.00 of 20.00", payout.ErrUncovered), http.StatusUnprocessableEntity},
		{workflow.ErrUnauthorized, http.StatusForbidden},
		{lead.ErrNotFound, http.StatusNotFound},
		{payout.ErrReferenceRequired, http.StatusBadRequest},
		{dispute.ErrResolved, http.StatusConflict},
		{&store.Error{Op: "load", Collection: store.Leads, Err: errors.New("x")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
