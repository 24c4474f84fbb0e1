package domain

// Transition is derived at sweep time from two consecutive results and is
// never stored.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionBecameDown
	TransitionBecameUp
)

func (t Transition) String() string {
	switch t {
	case TransitionBecameDown:
		return "became-down"
	case TransitionBecameUp:
		return "became-up"
	default:
		return "none"
	}
}
