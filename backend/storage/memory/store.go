package memory

import (
	"errors"
	"sync"

	"github.com/avdeyev/tapbattle/backend/model"
)

var (
	ErrLobbyNotFound = errors.New("lobby is not found")
	ErrMatchNotFound = errors.New("match is not found")
)

// Store is the process-wide session directory. It exclusively owns every
// lobby and match object; callers always re-fetch by id and never hold a
// session across handler boundaries.
type Store struct {
	mx      *sync.Mutex
	lobbies map[string]*model.Lobby
	matches map[string]*model.Match
}

func NewStore() *Store {
	return &Store{
		mx:      &sync.Mutex{},
		lobbies: make(map[string]*model.Lobby),
		matches: make(map[string]*model.Match),
	}
}

func (s *Store) GetLobby(id string) (*model.Lobby, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	lobby, ok := s.lobbies[id]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	return lobby, nil
}

// EnsureLobby returns the lobby with the given id, creating it in the
// waiting state if it does not exist yet.
func (s *Store) EnsureLobby(id string) *model.Lobby {
	s.mx.Lock()
	defer s.mx.Unlock()

	lobby, ok := s.lobbies[id]
	if !ok {
		lobby = model.NewLobby(id)
		s.lobbies[id] = lobby
	}
	return lobby
}

func (s *Store) DeleteLobby(id string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	delete(s.lobbies, id)
}

func (s *Store) GetMatch(id string) (*model.Match, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	match, ok := s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

// EnsureMatch returns the match with the given id, creating it in the
// waiting phase with the supplied durations if it does not exist yet.
// Durations of an existing match are never overwritten.
func (s *Store) EnsureMatch(id string, countdownMs, gameMs int64) *model.Match {
	s.mx.Lock()
	defer s.mx.Unlock()

	match, ok := s.matches[id]
	if !ok {
		match = model.NewMatch(id, countdownMs, gameMs)
		s.matches[id] = match
	}
	return match
}

func (s *Store) DeleteMatch(id string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	delete(s.matches, id)
}
