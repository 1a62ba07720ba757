package service

import (
	"sync"
	"time"

	"github.com/avdeyev/tapbattle/backend/model"
	"github.com/avdeyev/tapbattle/backend/storage/memory"
	"github.com/rs/zerolog"
)

// recorder captures broadcasts so tests can assert on the exact event
// stream without a real switch. Timer callbacks broadcast from their own
// goroutines, hence the mutex.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	SessionID string
	Event     model.Event
}

func (r *recorder) Broadcast(ev model.Event, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{SessionID: sessionID, Event: ev})
}

func (r *recorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofType(eventType string) []model.Event {
	var out []model.Event
	for _, rec := range r.all() {
		if rec.Event.Type == eventType {
			out = append(out, rec.Event)
		}
	}
	return out
}

// updates returns the match-channel payloads of the given kind.
func (r *recorder) updates(kind string) []model.UpdatePayload {
	var out []model.UpdatePayload
	for _, ev := range r.ofType(model.EventUpdate) {
		p, ok := ev.Payload.(model.UpdatePayload)
		if ok && p.Type == kind {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) countUpdates(kind string) int {
	return len(r.updates(kind))
}

func newTestService(countdown, game, settle, evictAfter time.Duration) (*Service, *recorder) {
	logger := zerolog.Nop()
	rec := &recorder{}
	svc := NewService(Config{
		Logger:      &logger,
		Store:       memory.NewStore(),
		Broadcaster: rec,
		Countdown:   countdown,
		Game:        game,
		Settle:      settle,
		EvictAfter:  evictAfter,
	})
	return svc, rec
}
