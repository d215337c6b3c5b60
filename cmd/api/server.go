package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"coselect/dispute"
	"coselect/export"
	"coselect/lead"
	"coselect/payout"
	"coselect/profile"
	"coselect/session"
	"coselect/workflow"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	sessions *session.Service
	leads    *lead.Service
	payouts  *payout.Service
	disputes *dispute.Service
	profiles *profile.Service
	logger   *slog.Logger
	now      func() time.Time
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/session", s.handleStartSession)
	mux.Handle("GET /api/session", s.authed(s.handleCurrentSession))
	mux.Handle("POST /api/session/role", s.authed(s.handleSwitchRole))
	mux.Handle("POST /api/session/preset", s.authed(s.handleSetPreset))
	mux.Handle("POST /api/session/elevate", s.authed(s.handleElevate))

	mux.Handle("GET /api/leads", s.authed(s.handleListLeads))
	mux.Handle("POST /api/leads", s.authed(s.handleCreateLead))
	mux.Handle("GET /api/leads/{id}", s.authed(s.handleGetLead))
	mux.Handle("PATCH /api/leads/{id}", s.authed(s.handleUpdateLead))
	mux.Handle("POST /api/leads/{id}/transitions", s.authed(s.handleLeadTransition))
	mux.Handle("POST /api/leads/{id}/owner", s.authed(s.handleAssignOwner))
	mux.Handle("POST /api/leads/{id}/resubmissions", s.authed(s.handleResubmitRejected))

	mux.Handle("GET /api/payouts", s.authed(s.handleListPayouts))
	mux.Handle("POST /api/payouts", s.authed(s.handleRequestPayout))
	mux.Handle("GET /api/payouts/eligibility", s.authed(s.handleEligibility))
	mux.Handle("GET /api/payouts/{id}", s.authed(s.handleGetPayout))
	mux.Handle("POST /api/payouts/{id}/transitions", s.authed(s.handlePayoutTransition))
	mux.Handle("GET /api/transactions", s.authed(s.handleListTransactions))
	mux.Handle("POST /api/transactions", s.authed(s.handleRecordTransaction))
	mux.Handle("POST /api/transactions/{id}/status", s.authed(s.handleTransactionStatus))

	mux.Handle("GET /api/disputes", s.authed(s.handleListDisputes))
	mux.Handle("POST /api/disputes", s.authed(s.handleOpenDispute))
	mux.Handle("GET /api/disputes/{id}", s.authed(s.handleGetDispute))
	mux.Handle("POST /api/disputes/{id}/evidence", s.authed(s.handleAddEvidence))
	mux.Handle("POST /api/disputes/{id}/evidence-requests", s.authed(s.handleRequestEvidence))
	mux.Handle("POST /api/disputes/{id}/evidence-submissions", s.authed(s.handleSubmitEvidence))
	mux.Handle("POST /api/disputes/{id}/resolution", s.authed(s.handleResolveDispute))
	mux.Handle("POST /api/disputes/{id}/messages", s.authed(s.handlePostMessage))

	mux.Handle("GET /api/profiles", s.authed(s.handleListProfiles))
	mux.Handle("GET /api/profiles/{id}", s.authed(s.handleGetProfile))
	mux.Handle("PUT /api/profiles/{id}", s.authed(s.handleSaveProfile))
	mux.Handle("POST /api/profiles/{id}/kyc", s.authed(s.handleSetKYC))
	mux.Handle("PUT /api/profiles/{id}/bank-account", s.authed(s.handleSetBankAccount))

	mux.Handle("GET /api/exports/leads.csv", s.authed(s.handleExportLeads))
	mux.Handle("GET /api/exports/payouts.csv", s.authed(s.handleExportPayouts))
	mux.Handle("POST /api/dev/reset", s.authed(s.handleReset))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.logRequests(mux)
}

// authed resolves the bearer token into a session context.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, session.Context)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sc, err := s.sessions.Verify(token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next(w, r, sc)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// ── session ─────────────────────────────────────────────────────────────────

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.sessions.Start(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request, sc session.Context) {
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleSwitchRole(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Role workflow.Role `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, _ := workflow.ParseRole(string(req.Role))
	res, err := s.sessions.SwitchRole(r.Context(), sc, role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSetPreset(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Preset session.ViewPreset `json:"preset"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.sessions.SetViewPreset(r.Context(), sc, req.Preset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleElevate(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.sessions.Elevate(sc, req.Passphrase)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sc session.Context) {
	if err := s.sessions.ResetStorage(r.Context(), sc); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Warn("storage reset", "actor", sc.Actor.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

// ── leads ───────────────────────────────────────────────────────────────────

type leadResponse struct {
	lead.Lead
	AvailableTargets []workflow.Status `json:"availableTargets"`
}

func (s *Server) leadView(l lead.Lead, actor workflow.Actor) leadResponse {
	targets := s.leads.AvailableTargets(l, actor)
	if targets == nil {
		targets = []workflow.Status{}
	}
	return leadResponse{Lead: l, AvailableTargets: targets}
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request, sc session.Context) {
	q := r.URL.Query()
	leads, err := s.leads.List(r.Context(), sc.Actor, lead.Filters{
		Status:      workflow.Status(strings.ToUpper(q.Get("status"))),
		OwnerID:     q.Get("owner"),
		SubmittedBy: q.Get("submittedBy"),
		Region:      q.Get("region"),
		Query:       q.Get("q"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]leadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, s.leadView(l, sc.Actor))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		lead.Details
		Submit bool `json:"submit"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	l, err := s.leads.CreateDraft(r.Context(), sc.Actor, req.Details)
	if err == nil && req.Submit {
		l, err = s.leads.Submit(r.Context(), l.ID, sc.Actor)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.leadView(l, sc.Actor))
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request, sc session.Context) {
	l, err := s.leads.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if l.SubmittedBy.ID != sc.Actor.ID && !workflow.Can(sc.Actor, workflow.CapViewAllLeads) {
		writeError(w, http.StatusNotFound, lead.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.leadView(l, sc.Actor))
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var changes lead.Details
	if err := decode(r, &changes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	l, err := s.leads.UpdateDraft(r.Context(), r.PathValue("id"), sc.Actor, changes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.leadView(l, sc.Actor))
}

type leadTransitionRequest struct {
	To                  workflow.Status `json:"to"`
	Reason              string          `json:"reason"`
	ReasonCode          string          `json:"reasonCode"`
	ResubmissionAllowed bool            `json:"resubmissionAllowed"`
	RequestedFields     []string        `json:"requestedFields"`
	Note                string          `json:"note"`
	Changes             lead.Details    `json:"changes"`
}

func (s *Server) handleLeadTransition(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req leadTransitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	l, err := s.leads.Transition(r.Context(), r.PathValue("id"), sc.Actor, lead.TransitionParams{
		To:                  workflow.Status(strings.ToUpper(string(req.To))),
		Reason:              req.Reason,
		ReasonCode:          req.ReasonCode,
		ResubmissionAllowed: req.ResubmissionAllowed,
		RequestedFields:     req.RequestedFields,
		Note:                req.Note,
		Changes:             req.Changes,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.leadView(l, sc.Actor))
}

func (s *Server) handleAssignOwner(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var owner lead.ActorRef
	if err := decode(r, &owner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	l, err := s.leads.AssignOwner(r.Context(), r.PathValue("id"), sc.Actor, owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.leadView(l, sc.Actor))
}

func (s *Server) handleResubmitRejected(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var changes lead.Details
	if err := decode(r, &changes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	l, err := s.leads.ResubmitRejected(r.Context(), r.PathValue("id"), sc.Actor, changes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.leadView(l, sc.Actor))
}

// ── payouts ─────────────────────────────────────────────────────────────────

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request, sc session.Context) {
	q := r.URL.Query()
	payouts, err := s.payouts.List(r.Context(), sc.Actor, payout.Filters{
		Status:      workflow.Status(strings.ToUpper(q.Get("status"))),
		RequesterID: q.Get("requester"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payouts)
}

func (s *Server) handleRequestPayout(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.payouts.Request(r.Context(), sc.Actor, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request, sc session.Context) {
	userID := sc.Actor.ID
	if other := r.URL.Query().Get("user"); other != "" && other != userID {
		if err := workflow.Authorize(sc.Actor, workflow.CapViewPayouts); err != nil {
			s.fail(w, r, err)
			return
		}
		userID = other
	}
	e, err := s.payouts.Eligibility(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"eligible": e.Eligible(),
		"issues":   e.Issues,
		"balance":  e.Balance,
		"minimum":  e.Minimum,
	})
}

func (s *Server) handleGetPayout(w http.ResponseWriter, r *http.Request, sc session.Context) {
	p, err := s.payouts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if p.RequesterID != sc.Actor.ID && !workflow.Can(sc.Actor, workflow.CapViewPayouts) {
		writeError(w, http.StatusNotFound, payout.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payout":           p,
		"availableTargets": s.payouts.AvailableTargets(p, sc.Actor),
	})
}

func (s *Server) handlePayoutTransition(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		To         workflow.Status `json:"to"`
		Reason     string          `json:"reason"`
		ReasonCode string          `json:"reasonCode"`
		Reference  string          `json:"reference"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.payouts.Transition(r.Context(), r.PathValue("id"), sc.Actor, payout.TransitionParams{
		To:         workflow.Status(strings.ToUpper(string(req.To))),
		Reason:     req.Reason,
		ReasonCode: req.ReasonCode,
		Reference:  req.Reference,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, sc session.Context) {
	owner := r.URL.Query().Get("owner")
	if owner == "" && !workflow.Can(sc.Actor, workflow.CapViewPayouts) {
		owner = sc.Actor.ID
	}
	txs, err := s.payouts.ListTransactions(r.Context(), sc.Actor, owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var tx payout.Transaction
	if err := decode(r, &tx); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := s.payouts.RecordTransaction(r.Context(), sc.Actor, tx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleTransactionStatus(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Status payout.TransactionStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := s.payouts.SetTransactionStatus(r.Context(), sc.Actor, r.PathValue("id"), req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ── disputes ────────────────────────────────────────────────────────────────

func (s *Server) handleListDisputes(w http.ResponseWriter, r *http.Request, sc session.Context) {
	q := r.URL.Query()
	cases, err := s.disputes.List(r.Context(), sc.Actor, dispute.Filters{
		Status:   workflow.Status(strings.ToUpper(q.Get("status"))),
		OpenedBy: q.Get("openedBy"),
		Urgency:  dispute.Urgency(strings.ToUpper(q.Get("urgency"))),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Subject     string `json:"subject"`
		Reference   string `json:"reference"`
		Description string `json:"description"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.disputes.Open(r.Context(), sc.Actor, dispute.OpenParams{
		Subject:     req.Subject,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.disputeView(c))
}

func (s *Server) disputeView(c dispute.Case) dispute.Summary {
	return dispute.Summary{Case: c, Urgency: s.disputes.Classify(c)}
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request, sc session.Context) {
	c, err := s.disputes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if c.OpenedBy.ID != sc.Actor.ID && !workflow.Can(sc.Actor, workflow.CapViewAllCases) {
		writeError(w, http.StatusNotFound, dispute.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.disputeView(c))
}

func (s *Server) handleAddEvidence(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Artifact string `json:"artifact"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondCase(w, r)(s.disputes.AddEvidence(r.Context(), r.PathValue("id"), sc.Actor, req.Artifact))
}

func (s *Server) handleRequestEvidence(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Additional int    `json:"additional"`
		Note       string `json:"note"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondCase(w, r)(s.disputes.RequestEvidence(r.Context(), r.PathValue("id"), sc.Actor, req.Additional, req.Note))
}

func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request, sc session.Context) {
	s.respondCase(w, r)(s.disputes.SubmitEvidence(r.Context(), r.PathValue("id"), sc.Actor))
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Outcome dispute.Outcome `json:"outcome"`
		Summary string          `json:"summary"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome := dispute.Outcome(strings.ToUpper(string(req.Outcome)))
	s.respondCase(w, r)(s.disputes.Resolve(r.Context(), r.PathValue("id"), sc.Actor, outcome, req.Summary))
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondCase(w, r)(s.disputes.PostMessage(r.Context(), r.PathValue("id"), sc.Actor, req.Body))
}

func (s *Server) respondCase(w http.ResponseWriter, r *http.Request) func(dispute.Case, error) {
	return func(c dispute.Case, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.disputeView(c))
	}
}

// ── profiles ────────────────────────────────────────────────────────────────

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request, sc session.Context) {
	profiles, err := s.profiles.List(r.Context(), sc.Actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, sc session.Context) {
	id := r.PathValue("id")
	if id != sc.Actor.ID && !workflow.Can(sc.Actor, workflow.CapManageProfile) {
		s.fail(w, r, workflow.Authorize(sc.Actor, workflow.CapManageProfile))
		return
	}
	p, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var p profile.Profile
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.UserID = r.PathValue("id")
	p, err := s.profiles.Save(r.Context(), sc.Actor, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSetKYC(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var req struct {
		Status profile.KYCStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.profiles.SetKYCStatus(r.Context(), sc.Actor, r.PathValue("id"), req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSetBankAccount(w http.ResponseWriter, r *http.Request, sc session.Context) {
	var account profile.BankAccount
	if err := decode(r, &account); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.profiles.SetBankAccount(r.Context(), sc.Actor, r.PathValue("id"), account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ── exports ─────────────────────────────────────────────────────────────────

func (s *Server) handleExportLeads(w http.ResponseWriter, r *http.Request, sc session.Context) {
	if err := workflow.Authorize(sc.Actor, workflow.CapExport); err != nil {
		s.fail(w, r, err)
		return
	}
	leads, err := s.leads.List(r.Context(), sc.Actor, lead.Filters{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCSV(w, r, "leads", lead.ExportHeader, lead.ExportRows(leads))
}

func (s *Server) handleExportPayouts(w http.ResponseWriter, r *http.Request, sc session.Context) {
	if err := workflow.Authorize(sc.Actor, workflow.CapExport); err != nil {
		s.fail(w, r, err)
		return
	}
	payouts, err := s.payouts.List(r.Context(), sc.Actor, payout.Filters{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCSV(w, r, "payouts", payout.ExportHeader, payout.ExportRows(payouts))
}

func (s *Server) writeCSV(w http.ResponseWriter, r *http.Request, prefix string, header []string, rows [][]string) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, header, rows); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(prefix, s.now().Format("20060102"))+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
