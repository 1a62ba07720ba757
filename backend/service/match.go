package service

import (
	"sort"
	"time"

	"github.com/avdeyev/tapbattle/backend/model"
)

// JoinMatch adds the wallet to the match roster, creating the match in
// the waiting phase if needed. Re-joining is idempotent and never resets
// a tap count. Reaching two players while the match is still waiting
// starts the countdown; this is the only start path for matches formed
// without a lobby.
func (svc *Service) JoinMatch(matchID, wallet string) model.Outcome {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	match := svc.store.EnsureMatch(matchID, svc.countdown.Milliseconds(), svc.game.Milliseconds())
	if _, ok := match.Players[wallet]; !ok {
		match.Players[wallet] = &model.MatchPlayer{Wallet: wallet}
	}

	svc.bc.Broadcast(model.Event{
		Type: model.EventUpdate,
		Payload: model.UpdatePayload{
			Type:        model.UpdatePlayerJoined,
			PlayerCount: len(match.Players),
			Wallet:      wallet,
		},
	}, matchID)
	svc.logger.Debug().
		Str("matchID", matchID).
		Str("wallet", wallet).
		Int("players", len(match.Players)).
		Msg("wallet joined match")

	if len(match.Players) >= minPlayersToStart && match.Phase == model.PhaseWaiting {
		svc.startCountdown(match)
	}
	return model.Applied()
}

// Tap counts one tap for the wallet. Taps are only mutable while the
// match is active; anything else is dropped.
func (svc *Service) Tap(matchID, wallet string) model.Outcome {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	match, err := svc.store.GetMatch(matchID)
	if err != nil {
		return model.Ignored(model.ReasonMatchNotFound)
	}
	if match.Phase != model.PhaseActive {
		return model.Ignored(model.ReasonNotActive)
	}
	player, ok := match.Players[wallet]
	if !ok {
		return model.Ignored(model.ReasonUnknownWallet)
	}

	player.Taps++
	svc.bc.Broadcast(model.Event{
		Type: model.EventUpdate,
		Payload: model.UpdatePayload{
			Type:   model.UpdateTapUpdate,
			Wallet: wallet,
			Taps:   player.Taps,
		},
	}, matchID)
	return model.Applied()
}

// startCountdown enters the countdown phase and arms the game-start
// timer. Called with svc.mu held and the match in waiting.
func (svc *Service) startCountdown(match *model.Match) {
	match.Phase = model.PhaseCountdown
	now := time.Now().UnixMilli()

	svc.bc.Broadcast(model.Event{
		Type: model.EventUpdate,
		Payload: model.UpdatePayload{
			Type:      model.UpdateCountdownStart,
			StartTime: now,
			Duration:  match.CountdownMs,
		},
	}, match.ID)
	svc.logger.Info().
		Str("matchID", match.ID).
		Int64("countdownMs", match.CountdownMs).
		Msg("countdown started")

	id := match.ID
	svc.sched.Schedule(id+":countdown", time.Duration(match.CountdownMs)*time.Millisecond, func() {
		svc.beginPlay(id)
	})
}

// beginPlay is the countdown-expiry callback: it re-fetches the match by
// id, enters the active phase and arms the game-end timer.
func (svc *Service) beginPlay(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	match, err := svc.store.GetMatch(id)
	if err != nil {
		return
	}
	if match.Phase != model.PhaseCountdown {
		return
	}

	match.Phase = model.PhaseActive
	now := time.Now().UnixMilli()

	svc.bc.Broadcast(model.Event{
		Type: model.EventUpdate,
		Payload: model.UpdatePayload{
			Type:      model.UpdateGameStart,
			StartTime: now,
			Duration:  match.GameMs,
		},
	}, id)
	svc.logger.Info().
		Str("matchID", id).
		Int64("gameMs", match.GameMs).
		Msg("game started")

	svc.sched.Schedule(id+":game", time.Duration(match.GameMs)*time.Millisecond, func() {
		svc.finish(id)
	})
}

// finish is the game-expiry callback: it computes the winner, enters the
// finished phase and schedules eviction of the session after the grace
// period.
func (svc *Service) finish(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	match, err := svc.store.GetMatch(id)
	if err != nil {
		return
	}
	if match.Phase != model.PhaseActive {
		return
	}

	match.Phase = model.PhaseFinished
	scores, winner := tally(match)
	match.Winner = winner

	svc.bc.Broadcast(model.Event{
		Type: model.EventUpdate,
		Payload: model.UpdatePayload{
			Type:   model.UpdateGameEnd,
			Scores: scores,
			Winner: winner,
		},
	}, id)
	svc.logger.Info().
		Str("matchID", id).
		Str("winner", winner).
		Msg("game finished")

	svc.sched.Schedule(id+":evict", svc.evictAfter, func() {
		svc.evictSession(id)
	})
}

func (svc *Service) evictSession(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.store.DeleteMatch(id)
	svc.store.DeleteLobby(id)
	svc.logger.Debug().Str("sessionID", id).Msg("session evicted")
}

// tally builds the final score list, taps descending with wallet as the
// tie-break, and picks the winner: the highest tap count, resolved to
// the lexicographically smallest wallet on a tie.
func tally(match *model.Match) ([]model.Score, string) {
	scores := make([]model.Score, 0, len(match.Players))
	for _, p := range match.Players {
		scores = append(scores, model.Score{Wallet: p.Wallet, Score: p.Taps})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Wallet < scores[j].Wallet
	})
	if len(scores) == 0 {
		return scores, ""
	}
	return scores, scores[0].Wallet
}
