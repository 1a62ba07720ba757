package _switch

import (
	"sync"

	"github.com/avdeyev/tapbattle/backend/model"
	"github.com/rs/zerolog"
)

// Switch multicasts session events to every connection subscribed to a
// session's channel. Endpoints register a buffered TX channel; a send
// never blocks the caller, a saturated endpoint just misses the event.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]map[string]chan<- model.Event
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]map[string]chan<- model.Event),
	}
}

func (sw *Switch) Connect(sessionID, endpointID string, tx chan<- model.Event) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("sessionID", sessionID).
			Str("endpointID", endpointID).
			Msg("endpoint connected")
	}()

	session, ok := sw.fwd[sessionID]
	if !ok {
		session = make(map[string]chan<- model.Event)
		sw.fwd[sessionID] = session
	}
	session[endpointID] = tx
}

func (sw *Switch) Disconnect(sessionID, endpointID string) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("sessionID", sessionID).
			Str("endpointID", endpointID).
			Msg("endpoint disconnected")
	}()

	session, ok := sw.fwd[sessionID]
	if ok {
		delete(session, endpointID)
		if len(session) == 0 {
			delete(sw.fwd, sessionID)
		}
	}
}

// Broadcast delivers the event to every endpoint subscribed to the
// session, including the one that caused it.
func (sw *Switch) Broadcast(ev model.Event, sessionID string) {
	sw.mx.RLock()
	session := sw.fwd[sessionID]
	sw.mx.RUnlock()

	if len(session) == 0 {
		sw.logger.Debug().
			Str("sessionID", sessionID).
			Str("type", ev.Type).
			Msg("broadcast did not reach anyone")
		return
	}

	for endpointID, tx := range session {
		select {
		case tx <- ev:
		default:
			// Endpoint is not draining its channel. Drop rather than
			// stall every other subscriber of this session.
			sw.logger.Warn().
				Str("sessionID", sessionID).
				Str("endpointID", endpointID).
				Str("type", ev.Type).
				Msg("dead endpoint, event dropped")
		}
	}
}
