package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"coselect/store"
	"coselect/workflow"
)

var (
	ErrInvalidRole   = errors.New("session: role cannot be selected")
	ErrInvalidPreset = errors.New("session: invalid view preset")
)

// Service starts sessions, switches roles and keeps per-user view presets in
// the settings collection.
type Service struct {
	mu     sync.Mutex
	store  store.Store
	issuer *Issuer
	gate   *DevGate
}

// Result bundles the session value with its signed token.
type Result struct {
	Token   string  `json:"token"`
	Session Context `json:"session"`
}

func NewService(s store.Store, issuer *Issuer, gate *DevGate) *Service {
	return &Service{store: s, issuer: issuer, gate: gate}
}

// Start opens a session for a selectable role and restores the user's saved
// preset.
func (s *Service) Start(ctx context.Context, req StartRequest) (Result, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return Result{}, fmt.Errorf("session: user_id is required")
	}
	role, ok := workflow.ParseRole(string(req.Role))
	if !ok || !role.Selectable() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = userID
	}

	preset, err := s.preset(ctx, userID, role)
	if err != nil {
		return Result{}, err
	}
	return s.issue(Context{Actor: workflow.Actor{ID: userID, Name: name, Role: role}, ViewPreset: preset})
}

// SwitchRole reissues the session under another selectable role.
func (s *Service) SwitchRole(ctx context.Context, sc Context, role workflow.Role) (Result, error) {
	if err := workflow.Authorize(sc.Actor, workflow.CapSwitchRole); err != nil {
		return Result{}, fmt.Errorf("session: switch role: %w", err)
	}
	if !role.Selectable() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	preset, err := s.preset(ctx, sc.Actor.ID, role)
	if err != nil {
		return Result{}, err
	}
	sc.Actor.Role = role
	sc.ViewPreset = preset
	return s.issue(sc)
}

// Elevate unlocks the dev tools and returns an ADMIN session.
func (s *Service) Elevate(sc Context, passphrase string) (Result, error) {
	if err := s.gate.Check(passphrase); err != nil {
		return Result{}, err
	}
	sc.Actor.Role = workflow.RoleAdmin
	sc.ViewPreset = PresetAll
	return s.issue(sc)
}

// SetViewPreset stores the preset for the session user and reissues the token.
func (s *Service) SetViewPreset(ctx context.Context, sc Context, preset ViewPreset) (Result, error) {
	if !preset.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPreset, preset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings(ctx)
	if err != nil {
		return Result{}, err
	}
	settings.Presets[presetKey(sc.Actor.ID, sc.Actor.Role)] = preset
	if err := store.Put(ctx, s.store, store.Settings, settings); err != nil {
		return Result{}, fmt.Errorf("session: save preset: %w", err)
	}
	sc.ViewPreset = preset
	return s.issue(sc)
}

// ResetStorage wipes every collection. Only dev-tools sessions may call it.
func (s *Service) ResetStorage(ctx context.Context, sc Context) error {
	if err := workflow.Authorize(sc.Actor, workflow.CapResetStorage); err != nil {
		return fmt.Errorf("session: reset storage: %w", err)
	}
	if !s.gate.Enabled() {
		return ErrDevToolsDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.Reset(ctx, s.store)
}

func (s *Service) Verify(token string) (Context, error) {
	return s.issuer.Parse(token)
}

func (s *Service) preset(ctx context.Context, userID string, role workflow.Role) (ViewPreset, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return "", err
	}
	if p, ok := settings.Presets[presetKey(userID, role)]; ok && p.Valid() {
		return p, nil
	}
	return DefaultPreset(role), nil
}

func (s *Service) settings(ctx context.Context) (Settings, error) {
	settings, _, err := store.Get[Settings](ctx, s.store, store.Settings)
	if err != nil {
		return Settings{}, fmt.Errorf("session: load settings: %w", err)
	}
	if settings.Presets == nil {
		settings.Presets = map[string]ViewPreset{}
	}
	return settings, nil
}

func (s *Service) issue(sc Context) (Result, error) {
	token, err := s.issuer.Issue(sc)
	if err != nil {
		return Result{}, err
	}
	return Result{Token: token, Session: sc}, nil
}

func presetKey(userID string, role workflow.Role) string {
	return userID + "/" + string(role)
}
