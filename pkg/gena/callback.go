package gena

// EventType identifies which kind of upcall a Callback is receiving.
type EventType int

const (
	// EventReceived carries an *EventRecord: a NOTIFY was accepted.
	EventReceived EventType = iota
	// EventSubscriptionExpired carries a *LifecycleEvent with Err == nil:
	// AUTO_RENEW_MARGIN is 0 and the subscription's TIMEOUT has elapsed.
	EventSubscriptionExpired
	// EventAutorenewalFailed carries a *LifecycleEvent with a non-nil Err:
	// a timer-driven renewal failed for a reason other than the
	// subscription already being gone.
	EventAutorenewalFailed
)

// String returns a human-readable event type name.
func (e EventType) String() string {
	switch e {
	case EventReceived:
		return "EVENT_RECEIVED"
	case EventSubscriptionExpired:
		return "EVENT_SUBSCRIPTION_EXPIRED"
	case EventAutorenewalFailed:
		return "EVENT_AUTORENEWAL_FAILED"
	default:
		return "UNKNOWN"
	}
}

// LifecycleEvent is the payload for EventSubscriptionExpired and
// EventAutorenewalFailed.
type LifecycleEvent struct {
	Sid          string
	PublisherURL string
	Timeout      TimeoutSpec
	Err          error
}

// Callback is the user upcall contract. It is invoked with no core lock
// held, from whichever goroutine triggered the event (the renewal timer's
// own goroutine, or the NOTIFY handler's goroutine) — it must not block
// indefinitely, and if it calls back into
// Manager methods it will not deadlock precisely because no lock is held
// across the call.
type Callback func(event EventType, payload any, cookie any)
