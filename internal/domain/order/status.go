package order

import "fmt"

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// transitions maps each state to the states it may move to. Pending orders
// move to Paid via the payment callback or to Confirmed/Rejected by an
// administrator; Paid and Confirmed are equivalent for onward transitions.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusPaid, StatusRejected, StatusFailed},
	StatusConfirmed: {StatusShipped, StatusFailed},
	StatusPaid:      {StatusShipped, StatusFailed},
	StatusShipped:   {StatusDelivered},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// InvalidTransitionError reports a disallowed order status transition.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}
