package service

import (
	"testing"
	"time"

	"github.com/avdeyev/tapbattle/backend/model"
	"github.com/stretchr/testify/require"
)

func TestJoinMatch_RejoinIsIdempotent(t *testing.T) {
	svc, rec := newTestService(time.Hour, time.Hour, time.Hour, time.Hour)

	svc.JoinMatch("m1", "walletA")
	svc.JoinMatch("m1", "walletA")

	match, err := svc.MatchView("m1")
	require.NoError(t, err)
	require.Len(t, match.Players, 1)
	require.Equal(t, model.PhaseWaiting, match.Phase)
	require.Equal(t, 0, rec.countUpdates(model.UpdateCountdownStart))

	joined := rec.updates(model.UpdatePlayerJoined)
	require.Len(t, joined, 2)
	require.Equal(t, 1, joined[0].PlayerCount)
	require.Equal(t, 1, joined[1].PlayerCount)
}

func TestJoinMatch_SecondPlayerStartsCountdown(t *testing.T) {
	svc, rec := newTestService(time.Hour, time.Hour, time.Hour, time.Hour)
	defer svc.Shutdown()

	svc.JoinMatch("m1", "walletA")
	svc.JoinMatch("m1", "walletB")

	match, err := svc.MatchView("m1")
	require.NoError(t, err)
	require.Equal(t, model.PhaseCountdown, match.Phase)
	require.Equal(t, 1, rec.countUpdates(model.UpdateCountdownStart))
}

func TestTap_GatedOnActivePhaseAndKnownWallet(t *testing.T) {
	svc, rec := newTestService(20*time.Millisecond, time.Hour, time.Hour, time.Hour)
	defer svc.Shutdown()

	out := svc.Tap("m1", "walletA")
	require.False(t, out.Applied)
	require.Equal(t, model.ReasonMatchNotFound, out.Reason)

	svc.JoinMatch("m1", "walletA")
	out = svc.Tap("m1", "walletA")
	require.False(t, out.Applied)
	require.Equal(t, model.ReasonNotActive, out.Reason)

	svc.JoinMatch("m1", "walletB")
	require.Eventually(t, func() bool {
		m, err := svc.MatchView("m1")
		return err == nil && m.Phase == model.PhaseActive
	}, testWait, testTick)

	// Unknown wallet during the active window: dropped, no broadcast.
	out = svc.Tap("m1", "walletC")
	require.False(t, out.Applied)
	require.Equal(t, model.ReasonUnknownWallet, out.Reason)
	require.Equal(t, 0, rec.countUpdates(model.UpdateTapUpdate))

	require.True(t, svc.Tap("m1", "walletA").Applied)
	taps := rec.updates(model.UpdateTapUpdate)
	require.Len(t, taps, 1)
	require.Equal(t, "walletA", taps[0].Wallet)
	require.Equal(t, 1, taps[0].Taps)

	match, err := svc.MatchView("m1")
	require.NoError(t, err)
	require.Equal(t, 1, match.Players["walletA"].Taps)
	require.Zero(t, match.Players["walletB"].Taps)
}

func TestMatch_FullFlowDeterministicWinner(t *testing.T) {
	svc, rec := newTestService(20*time.Millisecond, 80*time.Millisecond, time.Hour, time.Hour)
	defer svc.Shutdown()

	svc.JoinMatch("m1", "walletA")
	svc.JoinMatch("m1", "walletB")

	require.Eventually(t, func() bool {
		m, err := svc.MatchView("m1")
		return err == nil && m.Phase == model.PhaseActive
	}, testWait, testTick)

	for i := 0; i < 5; i++ {
		require.True(t, svc.Tap("m1", "walletA").Applied)
	}
	for i := 0; i < 3; i++ {
		require.True(t, svc.Tap("m1", "walletB").Applied)
	}

	require.Eventually(t, func() bool {
		return rec.countUpdates(model.UpdateGameEnd) == 1
	}, testWait, testTick)

	end := rec.updates(model.UpdateGameEnd)[0]
	require.Equal(t, "walletA", end.Winner)
	require.Equal(t, []model.Score{
		{Wallet: "walletA", Score: 5},
		{Wallet: "walletB", Score: 3},
	}, end.Scores)

	match, err := svc.MatchView("m1")
	require.NoError(t, err)
	require.Equal(t, model.PhaseFinished, match.Phase)
	require.Equal(t, "walletA", match.Winner)

	// Taps after the finish are dropped.
	out := svc.Tap("m1", "walletA")
	require.False(t, out.Applied)
	require.Equal(t, model.ReasonNotActive, out.Reason)
	require.Equal(t, 5, match.Players["walletA"].Taps)
}

func TestMatch_PhaseSequenceIsMonotonic(t *testing.T) {
	svc, rec := newTestService(15*time.Millisecond, 30*time.Millisecond, time.Hour, time.Hour)
	defer svc.Shutdown()

	svc.JoinMatch("m1", "walletA")
	svc.JoinMatch("m1", "walletB")

	require.Eventually(t, func() bool {
		return rec.countUpdates(model.UpdateGameEnd) == 1
	}, testWait, testTick)

	// The match-channel stream carries each transition exactly once, in
	// order: countdown_start, game_start, game_end.
	var transitions []string
	for _, ev := range rec.ofType(model.EventUpdate) {
		p := ev.Payload.(model.UpdatePayload)
		switch p.Type {
		case model.UpdateCountdownStart, model.UpdateGameStart, model.UpdateGameEnd:
			transitions = append(transitions, p.Type)
		}
	}
	require.Equal(t, []string{
		model.UpdateCountdownStart,
		model.UpdateGameStart,
		model.UpdateGameEnd,
	}, transitions)

	start := rec.updates(model.UpdateGameStart)[0]
	require.Equal(t, int64(30), start.Duration)
	require.Positive(t, start.StartTime)
}

func TestDisconnect_IsPurelyInformational(t *testing.T) {
	svc, rec := newTestService(15*time.Millisecond, 60*time.Millisecond, time.Hour, time.Hour)
	defer svc.Shutdown()

	svc.JoinMatch("m1", "walletA")
	svc.JoinMatch("m1", "walletB")

	require.Eventually(t, func() bool {
		m, err := svc.MatchView("m1")
		return err == nil && m.Phase == model.PhaseActive
	}, testWait, testTick)

	svc.Tap("m1", "walletA")
	svc.Tap("m1", "walletA")
	svc.Tap("m1", "walletB")

	svc.Disconnect([]string{"m1"}, "walletA")

	left := rec.updates(model.UpdatePlayerLeft)
	require.Len(t, left, 1)
	require.Equal(t, 1, left[0].PlayerCount)

	// Roster and taps stay exactly as last recorded, and the match still
	// reaches finished with the disconnected player's taps counted.
	match, err := svc.MatchView("m1")
	require.NoError(t, err)
	require.Len(t, match.Players, 2)
	require.Equal(t, 2, match.Players["walletA"].Taps)

	require.Eventually(t, func() bool {
		return rec.countUpdates(model.UpdateGameEnd) == 1
	}, testWait, testTick)
	require.Equal(t, "walletA", rec.updates(model.UpdateGameEnd)[0].Winner)
}

func TestDisconnect_NoMatchNoBroadcast(t *testing.T) {
	svc, rec := newTestService(time.Hour, time.Hour, time.Hour, time.Hour)

	svc.Disconnect([]string{"ghost"}, "walletA")
	require.Empty(t, rec.all())
}

func TestFinishedSessionsAreEvicted(t *testing.T) {
	svc, rec := newTestService(10*time.Millisecond, 20*time.Millisecond, time.Hour, 30*time.Millisecond)
	defer svc.Shutdown()

	svc.JoinLobby("s1", "walletA", model.RoleCreator)
	svc.JoinMatch("s1", "walletA")
	svc.JoinMatch("s1", "walletB")

	require.Eventually(t, func() bool {
		return rec.countUpdates(model.UpdateGameEnd) == 1
	}, testWait, testTick)

	require.Eventually(t, func() bool {
		_, err := svc.MatchView("s1")
		return err != nil
	}, testWait, testTick)
	_, err := svc.LobbyView("s1")
	require.Error(t, err)
}

func TestTally_TieBreaksOnLexicographicallySmallestWallet(t *testing.T) {
	match := model.NewMatch("m1", 3000, 30000)
	match.Players["walletC"] = &model.MatchPlayer{Wallet: "walletC", Taps: 7}
	match.Players["walletA"] = &model.MatchPlayer{Wallet: "walletA", Taps: 7}
	match.Players["walletB"] = &model.MatchPlayer{Wallet: "walletB", Taps: 2}

	scores, winner := tally(match)
	require.Equal(t, "walletA", winner)
	require.Equal(t, []model.Score{
		{Wallet: "walletA", Score: 7},
		{Wallet: "walletC", Score: 7},
		{Wallet: "walletB", Score: 2},
	}, scores)
}

func TestTally_EmptyMatchHasNoWinner(t *testing.T) {
	scores, winner := tally(model.NewMatch("m1", 3000, 30000))
	require.Empty(t, scores)
	require.Empty(t, winner)
}
