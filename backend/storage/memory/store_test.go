package memory

import (
	"testing"

	"github.com/avdeyev/tapbattle/backend/model"
	"github.com/stretchr/testify/require"
)

func TestStore_LobbyLifecycle(t *testing.T) {
	s := NewStore()

	_, err := s.GetLobby("s1")
	require.ErrorIs(t, err, ErrLobbyNotFound)

	lobby := s.EnsureLobby("s1")
	require.Equal(t, "s1", lobby.ID)
	require.Equal(t, model.LobbyWaiting, lobby.State)
	require.Empty(t, lobby.Players)

	// Ensure is idempotent: same object, no reset.
	lobby.Players["walletA"] = &model.LobbyPlayer{Wallet: "walletA", Role: model.RoleCreator}
	again := s.EnsureLobby("s1")
	require.Same(t, lobby, again)
	require.Len(t, again.Players, 1)

	got, err := s.GetLobby("s1")
	require.NoError(t, err)
	require.Same(t, lobby, got)

	s.DeleteLobby("s1")
	_, err = s.GetLobby("s1")
	require.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestStore_MatchLifecycle(t *testing.T) {
	s := NewStore()

	_, err := s.GetMatch("m1")
	require.ErrorIs(t, err, ErrMatchNotFound)

	match := s.EnsureMatch("m1", 3000, 30000)
	require.Equal(t, model.PhaseWaiting, match.Phase)
	require.Equal(t, int64(3000), match.CountdownMs)
	require.Equal(t, int64(30000), match.GameMs)

	// A later ensure with different durations must not overwrite the
	// durations fixed at creation.
	again := s.EnsureMatch("m1", 1, 2)
	require.Same(t, match, again)
	require.Equal(t, int64(3000), again.CountdownMs)
	require.Equal(t, int64(30000), again.GameMs)

	s.DeleteMatch("m1")
	_, err = s.GetMatch("m1")
	require.ErrorIs(t, err, ErrMatchNotFound)
}

func TestStore_LobbyAndMatchShareIDNamespaceIndependently(t *testing.T) {
	s := NewStore()

	s.EnsureLobby("s1")
	s.EnsureMatch("s1", 3000, 30000)

	s.DeleteLobby("s1")
	_, err := s.GetMatch("s1")
	require.NoError(t, err)
}
