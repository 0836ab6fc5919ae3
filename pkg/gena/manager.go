package gena

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gena-go/gena-go/pkg/log"
)

// Manager is the client-side GENA control point: it owns the handle table,
// the outbound Transport, the renewal Scheduler, and the two-lock ordering
// spec.md §5 requires between an initial SUBSCRIBE and a racing NOTIFY.
type Manager struct {
	Config    Config
	Transport *Transport
	Scheduler *Scheduler
	Logger    log.Logger

	handles *HandleTable

	// subscribeLock serializes "SUBSCRIBE is in flight, SID not yet known"
	// windows against the Notification Receiver's seq==0 recovery path. It
	// is never acquired while a HandleTable or ClientState lock is held.
	// Subscribe holds it from just before the do_subscribe call that opens
	// a brand new subscription until the table is updated and the renewal
	// armed (including, if the handle vanished meanwhile, the UNSUBSCRIBE
	// that undoes the new subscription).
	subscribeLock sync.Mutex

	closed   bool
	closedMu sync.Mutex
}

// NewManager builds a Manager from cfg. A nil logger is replaced with
// log.NoopLogger.
func NewManager(cfg Config, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Manager{
		Config:    cfg,
		Transport: NewTransport(cfg),
		Scheduler: NewScheduler(),
		Logger:    logger,
		handles:   NewHandleTable(),
	}
}

// RegisterClient allocates a new client handle bound to cb and cookie, per
// spec.md's GenaClientRegister.
func (m *Manager) RegisterClient(cb Callback, cookie any) ClientHandle {
	h := m.handles.Register(cb, cookie)
	m.logState(log.StateEntityHandle, "", "REGISTERED", fmt.Sprintf("handle=%d", h), h)
	return h
}

// UnregisterClient removes the handle from the table and then drains every
// subscription it owned — issuing a best-effort UNSUBSCRIBE for each —
// per spec.md's GenaClientUnregister / GenaUnregisterClient.
func (m *Manager) UnregisterClient(ctx context.Context, h ClientHandle) error {
	cs := m.handles.Unregister(h)
	if cs == nil {
		return ErrBadHandle
	}

	for {
		sub := cs.popAny()
		if sub == nil {
			break
		}
		m.Scheduler.Cancel(sub.RenewTimerID)
		// Best-effort: the local bookkeeping is already gone regardless of
		// whether the publisher accepts the UNSUBSCRIBE.
		_ = m.Transport.DoUnsubscribe(ctx, sub.EventURL, sub.Sid)
		m.logState(log.StateEntitySubscription, "ACTIVE", "REMOVED", "client unregistered", h)
	}
	cs.clear()

	m.logState(log.StateEntityHandle, "REGISTERED", "REMOVED", "", h)
	return nil
}

// Subscribe issues an initial SUBSCRIBE for eventURL on behalf of h and, on
// success, arms the auto-renewal timer, per spec.md §4.3's GenaSubscribe.
// No per-handle lock is held across the network call; subscribeLock alone
// serializes this against the Notification Receiver's seq==0 path.
func (m *Manager) Subscribe(ctx context.Context, h ClientHandle, eventURL string, timeoutReq TimeoutSpec) (sid string, timeoutGranted TimeoutSpec, err error) {
	cs := m.handles.lookup(h)
	if cs == nil {
		return "", 0, ErrBadHandle
	}

	m.subscribeLock.Lock()
	defer m.subscribeLock.Unlock()

	sid, timeoutGranted, err = m.Transport.DoSubscribe(ctx, eventURL, timeoutReq, "", cs.PathToken)
	if err != nil {
		return "", 0, err
	}

	// Re-validate: the handle may have been unregistered while the request
	// was in flight. If so, the subscription we just won is orphaned; undo
	// it rather than leaking it on the publisher.
	if m.handles.lookup(h) != cs {
		_ = m.Transport.DoUnsubscribe(context.Background(), eventURL, sid)
		return "", 0, ErrBadHandle
	}

	sub := &Subscription{Sid: sid, EventURL: eventURL}
	cs.add(sub)
	m.armRenewal(h, cs, sub, timeoutGranted)

	m.logMessage("SUBSCRIBE", sid, timeoutGranted, h)
	m.logState(log.StateEntitySubscription, "", "ACTIVE", "", h)

	return sid, timeoutGranted, nil
}

// Renew refreshes an existing subscription ahead of its expiry, per
// spec.md §4.3's GenaRenewSubscription. On transport failure the local
// entry is removed, matching the original SDK's "a failed renewal drops
// the subscription rather than leaving a stale SID" behavior.
func (m *Manager) Renew(ctx context.Context, h ClientHandle, sid string, timeoutReq TimeoutSpec) (newSid string, timeoutGranted TimeoutSpec, err error) {
	cs := m.handles.lookup(h)
	if cs == nil {
		return "", 0, ErrBadHandle
	}

	sub := cs.find(sid)
	if sub == nil {
		return "", 0, ErrBadSid
	}
	eventURL, oldTimer, _ := cs.snapshotForRenew(sid)
	m.Scheduler.Cancel(oldTimer)

	newSid, timeoutGranted, err = m.Transport.DoSubscribe(ctx, eventURL, timeoutReq, sid, cs.PathToken)

	// Re-validate before branching on err, per spec.md §4.3 steps 5-6: a
	// handle unregistered while this renewal was in flight must report
	// ErrBadHandle even if the transport call itself also failed.
	if m.handles.lookup(h) != cs {
		if err == nil {
			_ = m.Transport.DoUnsubscribe(context.Background(), eventURL, newSid)
		}
		return "", 0, ErrBadHandle
	}

	if err != nil {
		cs.remove(sid)
		return "", 0, err
	}

	current := cs.find(sid)
	if current == nil {
		// Concurrently unsubscribed while the renewal was in flight; undo
		// the renewal we just won rather than resurrect a dead entry.
		_ = m.Transport.DoUnsubscribe(context.Background(), eventURL, newSid)
		return "", 0, ErrBadSid
	}

	renewed := &Subscription{Sid: newSid, EventURL: eventURL}
	cs.rename(sid, renewed)
	m.armRenewal(h, cs, renewed, timeoutGranted)

	m.logMessage("SUBSCRIBE", newSid, timeoutGranted, h)
	m.logState(log.StateEntitySubscription, "ACTIVE", "ACTIVE", "renewed", h)

	return newSid, timeoutGranted, nil
}

// Unsubscribe issues UNSUBSCRIBE for sid and removes it from the handle's
// table regardless of the publisher's response, per spec.md §4.3's
// GenaUnSubscribe: a publisher that is gone or unreachable must not prevent
// the control point from forgetting a subscription it no longer wants.
func (m *Manager) Unsubscribe(ctx context.Context, h ClientHandle, sid string) error {
	cs := m.handles.lookup(h)
	if cs == nil {
		return ErrBadHandle
	}

	sub, ok := cs.snapshot(sid)
	if !ok {
		return ErrBadSid
	}

	err := m.Transport.DoUnsubscribe(ctx, sub.EventURL, sid)

	if m.handles.lookup(h) != cs {
		return ErrBadHandle
	}

	m.Scheduler.Cancel(cs.cancelTimerFor(sid))
	cs.remove(sid)

	m.logState(log.StateEntitySubscription, "ACTIVE", "REMOVED", "unsubscribed", h)

	return err
}

// armRenewal schedules sub's renewal per spec.md §4.5: AutoRenewMargin == 0
// schedules an expiry upcall instead of a renewal attempt; an infinite
// grant needs no timer at all.
func (m *Manager) armRenewal(h ClientHandle, cs *ClientState, sub *Subscription, timeoutGranted TimeoutSpec) {
	if timeoutGranted.IsInfinite() {
		return
	}

	granted := time.Duration(timeoutGranted) * time.Second
	sid := sub.Sid
	eventURL := sub.EventURL

	if m.Config.AutoRenewDisabled() {
		m.Scheduler.Schedule(granted, func(id TimerID) {
			cs.setTimerID(sid, id)
		}, func(firedID TimerID) {
			if !cs.clearTimerIfCurrent(sid, firedID) {
				return
			}
			cs.remove(sid)
			m.dispatch(cs, EventSubscriptionExpired, &LifecycleEvent{
				Sid:          sid,
				PublisherURL: eventURL,
				Timeout:      timeoutGranted,
			})
		})
		return
	}

	delay := granted - m.Config.AutoRenewMargin
	if delay < 0 {
		delay = 0
	}

	m.Scheduler.Schedule(delay, func(id TimerID) {
		cs.setTimerID(sid, id)
	}, func(firedID TimerID) {
		m.handleRenewalFire(h, cs, sid, firedID, eventURL, timeoutGranted)
	})
}

// handleRenewalFire runs on the Scheduler's own goroutine when a renewal
// timer expires. It re-validates that the subscription is still the one
// the timer was armed for before touching the network, per the "timer
// references" design note: a concurrently-unsubscribed or already-renewed
// entry makes this fire a no-op. It requests previousTimeout (the TIMEOUT
// actually granted by the prior SUBSCRIBE/renewal) rather than the
// configured floor, per spec.md §4.5 step 2's "renew(handle, sid,
// previous_timeout)" — renegotiating down to MinSubSecs on every
// auto-renewal would silently shrink a subscription's granted lifetime.
// On transport failure it re-checks the handle is still registered before
// dispatching EventAutorenewalFailed: a handle unregistered while the
// renewal was in flight must drop the upcall silently, the same as
// Subscribe/Renew treat a concurrently-unregistered handle.
func (m *Manager) handleRenewalFire(h ClientHandle, cs *ClientState, sid string, firedID TimerID, eventURL string, previousTimeout TimeoutSpec) {
	if !cs.clearTimerIfCurrent(sid, firedID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.Config.HTTPDefaultTimeout)
	defer cancel()

	newSid, timeoutGranted, err := m.Transport.DoSubscribe(ctx, eventURL, previousTimeout, sid, cs.PathToken)
	if err != nil {
		cs.remove(sid)
		// A handle unregistered while this renewal was in flight must not
		// surface an upcall for it — the same BadHandle-equivalent
		// silence Subscribe/Renew give a concurrently-unregistered handle.
		if m.handles.lookup(h) != cs {
			return
		}
		m.dispatch(cs, EventAutorenewalFailed, &LifecycleEvent{
			Sid:          sid,
			PublisherURL: eventURL,
			Err:          err,
		})
		return
	}

	current := cs.find(sid)
	if current == nil {
		_ = m.Transport.DoUnsubscribe(context.Background(), eventURL, newSid)
		return
	}

	renewed := &Subscription{Sid: newSid, EventURL: eventURL}
	cs.rename(sid, renewed)
	m.armRenewal(h, cs, renewed, timeoutGranted)

	m.logMessage("SUBSCRIBE", newSid, timeoutGranted, h)
	m.logState(log.StateEntitySubscription, "ACTIVE", "ACTIVE", "auto-renewed", h)
}

// dispatch invokes cs's callback with no Manager or ClientState lock held.
func (m *Manager) dispatch(cs *ClientState, event EventType, payload any) {
	cb, cookie := cs.callback()
	if cb != nil {
		cb(event, payload, cookie)
	}
}

// SetCallback replaces the upcall handle h dispatches events to. Useful
// when the caller only learns the handle after RegisterClient returns (a
// callback closure wants to capture it) and so cannot pass it to
// RegisterClient directly.
func (m *Manager) SetCallback(h ClientHandle, cb Callback) error {
	cs := m.handles.lookup(h)
	if cs == nil {
		return ErrBadHandle
	}
	cs.setCallback(cb)
	return nil
}

// Close cancels every pending renewal timer across all registered clients
// without issuing any UNSUBSCRIBE calls, for process-shutdown paths that
// cannot afford to block on the network. Handles and their subscriptions
// are left in the table; a process that calls Close is exiting, not
// resuming.
func (m *Manager) Close(ctx context.Context) error {
	m.closedMu.Lock()
	if m.closed {
		m.closedMu.Unlock()
		return nil
	}
	m.closed = true
	m.closedMu.Unlock()

	m.handles.mu.Lock()
	clients := make([]*ClientState, 0, len(m.handles.clients))
	for _, cs := range m.handles.clients {
		clients = append(clients, cs)
	}
	m.handles.mu.Unlock()

	for _, cs := range clients {
		cs.mu.Lock()
		for _, sub := range cs.subscriptions {
			m.Scheduler.Cancel(sub.RenewTimerID)
		}
		cs.mu.Unlock()
	}
	return nil
}

func (m *Manager) logMessage(method, sid string, timeout TimeoutSpec, h ClientHandle) {
	t := int(timeout)
	m.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sid,
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleController,
		Handle:       itoa(h),
		Message: &log.MessageEvent{
			Type:    log.MessageTypeRequest,
			Method:  method,
			Sid:     sid,
			Timeout: &t,
		},
	})
}

func (m *Manager) logState(entity log.StateEntity, oldState, newState, reason string, h ClientHandle) {
	m.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		LocalRole: log.RoleController,
		Handle:    itoa(h),
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
