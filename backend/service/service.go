package service

import (
	"sync"
	"time"

	"github.com/avdeyev/tapbattle/backend/model"
	"github.com/rs/zerolog"
)

const (
	DefaultCountdown  = 3 * time.Second
	DefaultGame       = 30 * time.Second
	DefaultSettle     = 2 * time.Second
	DefaultEvictAfter = time.Minute

	minPlayersToStart = 2
)

type (
	// Directory is the session registry. The service never keeps a lobby
	// or match across calls; everything is re-fetched by id.
	Directory interface {
		GetLobby(id string) (*model.Lobby, error)
		EnsureLobby(id string) *model.Lobby
		DeleteLobby(id string)
		GetMatch(id string) (*model.Match, error)
		EnsureMatch(id string, countdownMs, gameMs int64) *model.Match
		DeleteMatch(id string)
	}

	Broadcaster interface {
		Broadcast(ev model.Event, sessionID string)
	}

	Config struct {
		Logger      *zerolog.Logger
		Store       Directory
		Broadcaster Broadcaster

		// Durations applied to every match at creation time. Zero means
		// the default.
		Countdown  time.Duration
		Game       time.Duration
		Settle     time.Duration
		EvictAfter time.Duration
	}

	// Service runs the lobby and match state machines. One mutex is held
	// for the whole of every handler and every timer callback, so
	// mutations never interleave and need no finer locking.
	Service struct {
		logger zerolog.Logger
		store  Directory
		bc     Broadcaster
		sched  *Scheduler

		countdown  time.Duration
		game       time.Duration
		settle     time.Duration
		evictAfter time.Duration

		mu sync.Mutex
	}
)

func NewService(cfg Config) *Service {
	svc := &Service{
		logger:     cfg.Logger.With().Str("component", "session-service").Logger(),
		store:      cfg.Store,
		bc:         cfg.Broadcaster,
		sched:      NewScheduler(cfg.Logger),
		countdown:  cfg.Countdown,
		game:       cfg.Game,
		settle:     cfg.Settle,
		evictAfter: cfg.EvictAfter,
	}
	if svc.countdown <= 0 {
		svc.countdown = DefaultCountdown
	}
	if svc.game <= 0 {
		svc.game = DefaultGame
	}
	if svc.settle <= 0 {
		svc.settle = DefaultSettle
	}
	if svc.evictAfter <= 0 {
		svc.evictAfter = DefaultEvictAfter
	}
	return svc
}

// Shutdown cancels every armed timer. In-flight callbacks finish first.
func (svc *Service) Shutdown() {
	svc.sched.Stop()
	svc.logger.Debug().Msg("service stopped")
}

// Disconnect handles a connection's pending-disconnect signal. For every
// session the connection was subscribed to, a player_left event is
// broadcast if a match exists for that id. Purely informational: the
// roster, tap counts and phase timers stay untouched and the match runs
// to its scheduled finish.
func (svc *Service) Disconnect(sessionIDs []string, wallet string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, id := range sessionIDs {
		match, err := svc.store.GetMatch(id)
		if err != nil {
			continue
		}
		svc.bc.Broadcast(model.Event{
			Type: model.EventUpdate,
			Payload: model.UpdatePayload{
				Type:        model.UpdatePlayerLeft,
				PlayerCount: len(match.Players) - 1,
			},
		}, id)
		svc.logger.Debug().
			Str("matchID", id).
			Str("wallet", wallet).
			Msg("player left")
	}
}

// LobbyView returns a copy of the lobby safe to serialize outside the
// service lock.
func (svc *Service) LobbyView(id string) (*model.Lobby, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lobby, err := svc.store.GetLobby(id)
	if err != nil {
		return nil, err
	}
	view := *lobby
	view.Players = make(map[string]*model.LobbyPlayer, len(lobby.Players))
	for w, p := range lobby.Players {
		cp := *p
		view.Players[w] = &cp
	}
	return &view, nil
}

// MatchView returns a copy of the match safe to serialize outside the
// service lock.
func (svc *Service) MatchView(id string) (*model.Match, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	match, err := svc.store.GetMatch(id)
	if err != nil {
		return nil, err
	}
	view := *match
	view.Players = make(map[string]*model.MatchPlayer, len(match.Players))
	for w, p := range match.Players {
		cp := *p
		view.Players[w] = &cp
	}
	return &view, nil
}
