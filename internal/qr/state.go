package qr

// State is the controller's position in the redemption flow.
type State int

const (
	StateUninitialized State = iota
	StateUnauthenticated
	StateNoSubscription
	StateCheckingActivity
	StateExpired
	StateFetchingToken
	StateTokenReady
)

var stateNames = map[State]string{
	StateUninitialized:    "uninitialized",
	StateUnauthenticated:  "unauthenticated",
	StateNoSubscription:   "no_subscription",
	StateCheckingActivity: "checking_activity",
	StateExpired:          "expired",
	StateFetchingToken:    "fetching_token",
	StateTokenReady:       "token_ready",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
