// Package session keeps the authenticated token the rest of the engine calls the
// booking service with.
package session

// State of the session token.
type State string

const (
	StateAbsent  State = "absent"
	StateValid   State = "valid"
	StateInvalid State = "invalid"
)

// transitions lists the allowed state changes.
var transitions = map[State][]State{
	StateAbsent:  {StateValid, StateAbsent},
	StateValid:   {StateAbsent, StateInvalid, StateValid},
	StateInvalid: {StateValid, StateAbsent},
}

// CanTransition checks if transition is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
