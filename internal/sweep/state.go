package sweep

// State is a step in the life of one product within a sweep.
type State string

// Unit states. A unit moves PENDING → SCRAPED | SCRAPE_FAILED → RECONCILED →
// NOTIFIED | NO_NOTIFICATION | DISPATCH_FAILED → DONE, or stops early in
// RECONCILE_FAILED, PERSIST_FAILED or CANCELLED.
const (
	StatePending         State = "PENDING"
	StateScraped         State = "SCRAPED"
	StateScrapeFailed    State = "SCRAPE_FAILED"
	StateReconciled      State = "RECONCILED"
	StateNotified        State = "NOTIFIED"
	StateNoNotification  State = "NO_NOTIFICATION"
	StateDispatchFailed  State = "DISPATCH_FAILED"
	StateDone            State = "DONE"
	StateReconcileFailed State = "RECONCILE_FAILED"
	StatePersistFailed   State = "PERSIST_FAILED"
	StateCancelled       State = "CANCELLED"
)

// String returns the string representation of State.
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition follows s.
func (s State) IsTerminal() bool {
	switch s {
	case StateDone, StateReconcileFailed, StatePersistFailed, StateCancelled:
		return true
	}
	return false
}
