package workflow

import (
	"errors"
	"fmt"
)

// DenialKind classifies why a transition was refused.
type DenialKind string

const (
	InvalidTransition  DenialKind = "INVALID_TRANSITION"
	Unauthorized       DenialKind = "UNAUTHORIZED"
	PreconditionFailed DenialKind = "PRECONDITION_FAILED"
)

var (
	ErrInvalidTransition  = errors.New("workflow: invalid transition")
	ErrUnauthorized       = errors.New("workflow: unauthorized")
	ErrPreconditionFailed = errors.New("workflow: precondition failed")
)

// Decision is the outcome of Validate. A zero Kind means the transition was
// approved.
type Decision struct {
	Entity Entity
	From   Status
	To     Status
	Kind   DenialKind
	Reason string
	// Edge is set for approved decisions.
	Edge Edge
}

// Approved reports whether the transition may be applied.
func (d Decision) Approved() bool {
	return d.Kind == ""
}

// Err returns nil for approved decisions and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Approved() {
		return nil
	}
	return &DeniedError{Decision: d}
}

// DeniedError wraps a denied Decision so it can travel through error returns.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	from := e.Decision.From
	if from == StatusNone {
		from = "(new)"
	}
	return fmt.Sprintf("workflow: %s %s -> %s denied (%s): %s",
		e.Decision.Entity, from, e.Decision.To, e.Decision.Kind, e.Decision.Reason)
}

// Is matches the sentinel error of the denial kind.
func (e *DeniedError) Is(target error) bool {
	switch e.Decision.Kind {
	case InvalidTransition:
		return target == ErrInvalidTransition
	case Unauthorized:
		return target == ErrUnauthorized
	case PreconditionFailed:
		return target == ErrPreconditionFailed
	}
	return false
}

// Validate decides whether actor may move an entity from current to target.
// It never mutates anything: identical arguments always yield identical
// decisions.
//
// Preconditions are evaluated before the role check so a missing business
// prerequisite is reported the same way whoever asks.
func Validate(entity Entity, current, target Status, actor Actor, snap Snapshot) Decision {
	d := Decision{Entity: entity, From: current, To: target}

	edge, ok := Lookup(entity, current, target)
	if !ok {
		d.Kind = InvalidTransition
		if IsTerminal(entity, current) {
			d.Reason = fmt.Sprintf("%s is terminal", current)
		} else {
			d.Reason = "no such edge in registry"
		}
		return d
	}

	for _, p := range edge.Preconditions {
		if detail := p.Check(snap); detail != "" {
			d.Kind = PreconditionFailed
			d.Reason = detail
			return d
		}
	}

	if !roleIn(actor.Role, edge.Roles) {
		d.Kind = Unauthorized
		d.Reason = fmt.Sprintf("role %q may not perform this transition", actor.Role)
		return d
	}
	if edge.RequesterOnly && (actor.ID == "" || actor.ID != snap.RequesterID) {
		d.Kind = Unauthorized
		d.Reason = "only the requester may perform this transition"
		return d
	}

	d.Edge = edge
	return d
}

// AvailableTargets lists the statuses actor may move the entity to right now.
func AvailableTargets(entity Entity, current Status, actor Actor, snap Snapshot) []Status {
	var out []Status
	for _, e := range registry {
		if e.Entity != entity || e.From != current {
			continue
		}
		if Validate(entity, current, e.To, actor, snap).Approved() {
			out = append(out, e.To)
		}
	}
	return out
}
