package model

// Outcome reports whether a client event mutated session state. Invalid
// or out-of-order events are ignored, never errored back to the caller;
// the reason exists for logging and tests.
type Outcome struct {
	Applied bool
	Reason  string
}

func Applied() Outcome {
	return Outcome{Applied: true}
}

func Ignored(reason string) Outcome {
	return Outcome{Reason: reason}
}

const (
	ReasonLobbyNotFound = "lobby not found"
	ReasonMatchNotFound = "match not found"
	ReasonUnknownWallet = "unknown wallet"
	ReasonNotActive     = "match not active"
)
