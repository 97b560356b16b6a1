package registration

import "clm/internal/customer/models"

// State is a step of one registration attempt.
type State string

const (
	StateReceived             State = "Received"
	StateEnriched             State = "Enriched"
	StateAuthorizationChecked State = "AuthorizationChecked"
	StateComplianceChecked    State = "ComplianceChecked"
	StateEventAssembled       State = "EventAssembled"
	StateValidated            State = "Validated"
	StateCommitted            State = "Committed"
	StateRejected             State = "Rejected"
)

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRejected
}

// Outcome records how far a registration got. Reason is set only when rejected,
// and names the step that rejected it.
type Outcome struct {
	CustomerID  string
	Event       *models.Event
	State       State
	Transitions []State
	Reason      string
	// FailedAt is the last state reached before rejection.
	FailedAt State
}

func (o *Outcome) advance(s State) {
	o.State = s
	o.Transitions = append(o.Transitions, s)
}

func (o *Outcome) reject(reason string) {
	o.FailedAt = o.State
	o.Reason = reason
	o.advance(StateRejected)
}
