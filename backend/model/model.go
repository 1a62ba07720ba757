package model

type Role string

const (
	RoleCreator  Role = "creator"
	RoleOpponent Role = "opponent"
)

type LobbyState string

const (
	LobbyWaiting LobbyState = "waiting"
	LobbyReady   LobbyState = "ready"
)

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseFinished  Phase = "finished"
)

type LobbyPlayer struct {
	Wallet    string `json:"wallet"`
	Role      Role   `json:"role"`
	Deposited bool   `json:"deposited"`
}

type Deposits struct {
	Creator  bool `json:"creator"`
	Opponent bool `json:"opponent"`
}

// Lobby invariant: State == LobbyReady iff both deposit flags are set.
type Lobby struct {
	ID       string                  `json:"id"`
	Players  map[string]*LobbyPlayer `json:"players"`
	State    LobbyState              `json:"state"`
	Deposits Deposits                `json:"deposits"`
}

func NewLobby(id string) *Lobby {
	return &Lobby{
		ID:      id,
		Players: make(map[string]*LobbyPlayer),
		State:   LobbyWaiting,
	}
}

type MatchPlayer struct {
	Wallet string `json:"wallet"`
	Score  int    `json:"score"`
	Taps   int    `json:"taps"`
}

// Match holds one contest's roster and phase. CountdownMs and GameMs are
// fixed at creation time and are the only source of truth for this match's
// timing. Winner is set once, at the finished transition.
type Match struct {
	ID          string                  `json:"id"`
	Players     map[string]*MatchPlayer `json:"players"`
	Phase       Phase                   `json:"phase"`
	CountdownMs int64                   `json:"countdownMs"`
	GameMs      int64                   `json:"gameMs"`
	Winner      string                  `json:"winner,omitempty"`
}

func NewMatch(id string, countdownMs, gameMs int64) *Match {
	return &Match{
		ID:          id,
		Players:     make(map[string]*MatchPlayer),
		Phase:       PhaseWaiting,
		CountdownMs: countdownMs,
		GameMs:      gameMs,
	}
}

type Score struct {
	Wallet string `json:"wallet"`
	Score  int    `json:"score"`
}
