package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Appender builds timeline events. The id generator and clock are injectable
// for deterministic tests.
type Appender struct {
	idGenerator func() string
	now         func() time.Time
}

func NewAppender() *Appender {
	return &Appender{
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (a *Appender) WithIDGenerator(gen func() string) *Appender {
	a.idGenerator = gen
	return a
}

func (a *Appender) WithClock(now func() time.Time) *Appender {
	a.now = now
	return a
}

// Now exposes the appender clock so callers stamp entities with the same time
// as the event they append.
func (a *Appender) Now() time.Time {
	return a.now().UTC()
}

// Append returns a new timeline with one event added at the end. The input
// timeline is never modified.
func (a *Appender) Append(tl Timeline, eventType string, actor Actor, reasonCode string, meta Metadata) (Timeline, Event) {
	var fields map[string]any
	if meta != nil {
		fields = meta.Fields()
	}
	ev := Event{
		ID:          a.idGenerator(),
		ActorType:   actor.Role,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		OccurredAt:  a.Now(),
		EventType:   eventType,
		Description: Describe(eventType, fields),
		ReasonCode:  reasonCode,
		Metadata:    fields,
	}

	out := make(Timeline, len(tl), len(tl)+1)
	copy(out, tl)
	return append(out, ev), ev
}
