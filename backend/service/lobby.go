package service

import (
	"github.com/avdeyev/tapbattle/backend/model"
)

// JoinLobby registers the wallet under the given role, creating the lobby
// on first use. The role binding is last-writer-wins: a join with an
// already occupied role displaces the previous holder. Role is trusted
// caller input and not validated beyond presence.
func (svc *Service) JoinLobby(lobbyID, wallet string, role model.Role) model.Outcome {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lobby := svc.store.EnsureLobby(lobbyID)

	for w, p := range lobby.Players {
		if p.Role == role && w != wallet {
			delete(lobby.Players, w)
		}
	}
	lobby.Players[wallet] = &model.LobbyPlayer{Wallet: wallet, Role: role}

	svc.bc.Broadcast(model.Event{
		Type: model.EventLobbyUpdate,
		Payload: model.LobbyUpdatePayload{
			PlayerCount: len(lobby.Players),
			Status:      lobby.State,
		},
	}, lobbyID)
	svc.bc.Broadcast(model.Event{
		Type: model.EventPlayerJoined,
		Payload: model.PlayerJoinedPayload{
			PlayerCount: len(lobby.Players),
			Wallet:      wallet,
		},
	}, lobbyID)

	svc.logger.Debug().
		Str("lobbyID", lobbyID).
		Str("wallet", wallet).
		Str("role", string(role)).
		Msg("wallet joined lobby")
	return model.Applied()
}

// ConfirmDeposit records the deposit-confirmed signal for the wallet's
// role. Unknown lobbies and wallets with no registered role are ignored
// and leave deposits and lobby state untouched. Once both roles have
// deposited, the lobby flips to ready and the match is materialized.
func (svc *Service) ConfirmDeposit(lobbyID, wallet string) model.Outcome {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lobby, err := svc.store.GetLobby(lobbyID)
	if err != nil {
		return model.Ignored(model.ReasonLobbyNotFound)
	}
	player, ok := lobby.Players[wallet]
	if !ok {
		return model.Ignored(model.ReasonUnknownWallet)
	}

	player.Deposited = true
	switch player.Role {
	case model.RoleCreator:
		lobby.Deposits.Creator = true
	case model.RoleOpponent:
		lobby.Deposits.Opponent = true
	}

	svc.bc.Broadcast(model.Event{
		Type:    model.EventDepositConfirmed,
		Payload: model.DepositConfirmedPayload{Role: player.Role},
	}, lobbyID)
	svc.logger.Debug().
		Str("lobbyID", lobbyID).
		Str("wallet", wallet).
		Str("role", string(player.Role)).
		Msg("deposit confirmed")

	if lobby.Deposits.Creator && lobby.Deposits.Opponent && lobby.State != model.LobbyReady {
		svc.readyLobby(lobby)
	}
	return model.Applied()
}

// readyLobby flips the lobby to ready, materializes the match for the
// same session id and schedules the countdown after the settle delay.
// Called with svc.mu held.
func (svc *Service) readyLobby(lobby *model.Lobby) {
	lobby.State = model.LobbyReady

	svc.bc.Broadcast(model.Event{
		Type:    model.EventMatchReady,
		Payload: model.MatchReadyPayload{MatchID: lobby.ID},
	}, lobby.ID)

	match := svc.store.EnsureMatch(lobby.ID, svc.countdown.Milliseconds(), svc.game.Milliseconds())
	for w := range lobby.Players {
		if _, ok := match.Players[w]; !ok {
			match.Players[w] = &model.MatchPlayer{Wallet: w}
		}
	}

	// The settle delay gives clients time to switch onto the match
	// screen. The callback only fires the countdown if the match is
	// still waiting; a direct join_match may have advanced it already.
	svc.sched.Schedule(lobby.ID+":start", svc.settle, func() {
		svc.startAfterSettle(lobby.ID)
	})

	svc.logger.Info().
		Str("lobbyID", lobby.ID).
		Int("players", len(match.Players)).
		Msg("lobby ready, match scheduled")
}

func (svc *Service) startAfterSettle(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	match, err := svc.store.GetMatch(id)
	if err != nil {
		return
	}
	if match.Phase != model.PhaseWaiting {
		return
	}
	svc.startCountdown(match)
}
