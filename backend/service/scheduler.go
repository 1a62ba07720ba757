package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler arms keyed single-shot timers. Re-arming a key replaces the
// previous timer; every timer is cancellable, so a future abort path can
// stop a session's pending transitions. Callbacks must re-fetch session
// state by id, never close over a live session object.
type Scheduler struct {
	logger  zerolog.Logger
	mx      *sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewScheduler(logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
		mx:     &sync.Mutex{},
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms fn to run once after d, replacing any timer already
// armed under the same key.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.mx.Lock()
		delete(s.timers, key)
		stopped := s.stopped
		s.mx.Unlock()
		if stopped {
			return
		}
		fn()
	})
	s.logger.Debug().Str("key", key).Dur("after", d).Msg("timer armed")
}

// Cancel stops the timer armed under key, reporting whether one was
// pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	t, ok := s.timers[key]
	if !ok {
		return false
	}
	delete(s.timers, key)
	return t.Stop()
}

// Stop cancels all pending timers and rejects any further Schedule call.
func (s *Scheduler) Stop() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
