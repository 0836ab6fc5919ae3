package gena

import (
	"sync"

	"github.com/google/uuid"
)

// ClientHandle identifies a registered control point client. The enclosing
// library normally owns handle allocation; HandleTable is the minimal
// stand-in this package needs to be independently testable and runnable.
type ClientHandle int

// ClientState holds everything a client handle needs: the user's upcall,
// its cookie, its own subscription table, and the path token under which
// its CALLBACK URL was advertised (see Receiver.correlate).
type ClientState struct {
	Callback  Callback
	Cookie    any
	PathToken string

	mu            sync.Mutex
	subscriptions map[string]*Subscription // keyed by Sid
}

func newClientState(cb Callback, cookie any) *ClientState {
	return &ClientState{
		Callback:      cb,
		Cookie:        cookie,
		PathToken:     uuid.NewString(),
		subscriptions: make(map[string]*Subscription),
	}
}

// add stores sub in the table under sub.Sid, replacing any entry already
// stored under that SID. The Manager does not check for one beforehand.
func (c *ClientState) add(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[sub.Sid] = sub
}

// find returns the subscription for sid, or nil.
func (c *ClientState) find(sid string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions[sid]
}

// remove deletes the subscription keyed by sid, if present.
func (c *ClientState) remove(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, sid)
}

// rename moves a subscription from oldSid to its (possibly new) sub.Sid,
// used after a successful renewal rotates the SID.
func (c *ClientState) rename(oldSid string, sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscriptions[oldSid]; !ok {
		return
	}
	delete(c.subscriptions, oldSid)
	c.subscriptions[sub.Sid] = sub
}

// snapshot returns a value copy of sid's subscription, or ok == false if
// it is not present.
func (c *ClientState) snapshot(sid string) (sub Subscription, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, found := c.subscriptions[sid]
	if !found {
		return Subscription{}, false
	}
	return *s, true
}

// cancelTimerFor clears sid's RenewTimerID to NoTimer and returns the id
// it held, so the caller can hand it to Scheduler.Cancel outside any
// ClientState lock. Returns NoTimer if sid is absent or already timerless.
func (c *ClientState) cancelTimerFor(sid string) TimerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[sid]
	if !ok {
		return NoTimer
	}
	id := sub.RenewTimerID
	sub.RenewTimerID = NoTimer
	return id
}

// setTimerID records id as the live renewal timer for sid. Reports false
// if sid is no longer in the table (it was concurrently removed).
func (c *ClientState) setTimerID(sid string, id TimerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[sid]
	if !ok {
		return false
	}
	sub.RenewTimerID = id
	return true
}

// clearTimerIfCurrent clears RenewTimerID on sid's subscription if it is
// still set to id, leaving it untouched if a newer timer has since been
// armed. Reports whether the subscription is still present at all, which
// a fired job uses to tell "already unsubscribed, nothing to do" apart
// from "still here, proceed".
func (c *ClientState) clearTimerIfCurrent(sid string, id TimerID) (present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[sid]
	if !ok {
		return false
	}
	if sub.RenewTimerID == id {
		sub.RenewTimerID = NoTimer
	}
	return true
}

// snapshotForRenew returns sid's event URL and clears its timer id to
// NoTimer, returning ok == false if sid is not present. The caller is
// responsible for cancelling the returned timer id in the Scheduler.
func (c *ClientState) snapshotForRenew(sid string) (eventURL string, timerID TimerID, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, found := c.subscriptions[sid]
	if !found {
		return "", NoTimer, false
	}
	eventURL = sub.EventURL
	timerID = sub.RenewTimerID
	sub.RenewTimerID = NoTimer
	return eventURL, timerID, true
}

// popAny removes and returns an arbitrary subscription, or nil if the
// table is empty. Used by UnregisterClient, which does not care about
// iteration order (the table is an unordered collection per the data
// model).
func (c *ClientState) popAny() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sid, sub := range c.subscriptions {
		delete(c.subscriptions, sid)
		return sub
	}
	return nil
}

// clear empties the table unconditionally, discarding any entries.
func (c *ClientState) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions = make(map[string]*Subscription)
}

// Len reports the number of active subscriptions for this client.
func (c *ClientState) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// setCallback replaces the upcall this client dispatches events to.
func (c *ClientState) setCallback(cb Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Callback = cb
}

// callback returns the current upcall and cookie under lock, for dispatch
// sites that must not race setCallback.
func (c *ClientState) callback() (Callback, any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Callback, c.Cookie
}

// HandleTable maps small integer handles to ClientState records. It is
// safe for concurrent use; it is the HandleLock-protected resource the
// Manager operates on.
type HandleTable struct {
	mu      sync.Mutex
	next    ClientHandle
	clients map[ClientHandle]*ClientState
}

// NewHandleTable creates an empty handle table.
func NewHandleTable() *HandleTable {
	return &HandleTable{clients: make(map[ClientHandle]*ClientState)}
}

// Register allocates a new handle for cb/cookie and returns it.
func (t *HandleTable) Register(cb Callback, cookie any) ClientHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.clients[h] = newClientState(cb, cookie)
	return h
}

// Unregister removes h from the table, returning its ClientState so the
// caller can drain its subscriptions. Returns nil if h is unknown.
func (t *HandleTable) Unregister(h ClientHandle) *ClientState {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.clients[h]
	delete(t.clients, h)
	return cs
}

// lookup returns the ClientState for h, or nil if h is invalid. Callers
// must treat a nil result as ErrBadHandle.
func (t *HandleTable) lookup(h ClientHandle) *ClientState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clients[h]
}

// soleActiveClient returns the single registered ClientState when exactly
// one is registered, per spec.md's "there is at most one active client
// handle at a time" assumption for legacy (path-token-less) correlation.
// Returns 0, nil if zero or more than one client is registered.
func (t *HandleTable) soleActiveClient() (ClientHandle, *ClientState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.clients) != 1 {
		return 0, nil
	}
	for h, cs := range t.clients {
		return h, cs
	}
	return 0, nil
}

// byPathToken returns the handle/ClientState advertised under the given
// CALLBACK path token, or 0, nil if none matches.
func (t *HandleTable) byPathToken(token string) (ClientHandle, *ClientState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for h, cs := range t.clients {
		if cs.PathToken == token {
			return h, cs
		}
	}
	return 0, nil
}
