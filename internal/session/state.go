package session

// State is a session lifecycle state.
type State int

const (
	Idle State = iota
	Connecting
	Started // transport open, start sent, awaiting the server's ack
	Active
	Complete
	Stopped
	Error
)

var stateNames = [...]string{
	Idle:       "Idle",
	Connecting: "Connecting",
	Started:    "Started",
	Active:     "Active",
	Complete:   "Complete",
	Stopped:    "Stopped",
	Error:      "Error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == Complete || s == Stopped || s == Error
}

// Live reports whether s is a running, non-terminal session state.
func (s State) Live() bool {
	return s == Connecting || s == Started || s == Active
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
