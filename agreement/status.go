package agreement

// Status is the lifecycle position of an agreement. Transitions are
// one-directional: draft -> pending -> signed or rejected. No transition
// leads back to draft, and signed/rejected are terminal.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusSigned   Status = "signed"
	StatusRejected Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusDraft:   {StatusPending},
	StatusPending: {StatusSigned, StatusRejected},
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSigned, StatusRejected:
		return true
	default:
		return false
	}
}
