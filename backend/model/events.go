package model

// Event types sent on a lobby's channel. Match-side events all go out
// under EventUpdate with an UpdatePayload discriminated by its Type field.
const (
	EventLobbyUpdate      = "lobby_update"
	EventPlayerJoined     = "player_joined"
	EventDepositConfirmed = "deposit_confirmed"
	EventMatchReady       = "match_ready"
	EventUpdate           = "update"
)

const (
	UpdatePlayerJoined   = "player_joined"
	UpdateCountdownStart = "countdown_start"
	UpdateGameStart      = "game_start"
	UpdateTapUpdate      = "tap_update"
	UpdateGameEnd        = "game_end"
	UpdatePlayerLeft     = "player_left"
)

// Event is the envelope multicast to every connection subscribed to a
// session's channel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type LobbyUpdatePayload struct {
	PlayerCount int        `json:"playerCount"`
	Status      LobbyState `json:"status"`
}

type PlayerJoinedPayload struct {
	PlayerCount int    `json:"playerCount"`
	Wallet      string `json:"wallet"`
}

type DepositConfirmedPayload struct {
	Role Role `json:"role"`
}

type MatchReadyPayload struct {
	MatchID string `json:"matchId"`
}

// UpdatePayload carries every match-channel event; fields outside the
// relevant set for a given Type stay zero and are omitted on the wire.
type UpdatePayload struct {
	Type        string  `json:"type"`
	PlayerCount int     `json:"playerCount,omitempty"`
	Wallet      string  `json:"wallet,omitempty"`
	StartTime   int64   `json:"startTime,omitempty"`
	Duration    int64   `json:"duration,omitempty"`
	Taps        int     `json:"taps,omitempty"`
	Scores      []Score `json:"scores,omitempty"`
	Winner      string  `json:"winner,omitempty"`
}

// Command types accepted from clients.
const (
	CmdJoinLobby   = "join_lobby"
	CmdDepositMade = "deposit_made"
	CmdJoinMatch   = "join_match"
	CmdTap         = "tap"
)

// Command is one inbound client event. SessionID and Wallet are filled by
// the transport from the connection's identity; Role is caller-supplied
// and trusted as-is.
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Wallet    string `json:"wallet,omitempty"`
	Role      Role   `json:"role,omitempty"`
}
