package gena

import "testing"

func TestHandleTableRegisterLookupUnregister(t *testing.T) {
	ht := NewHandleTable()

	h := ht.Register(nil, "cookie")
	cs := ht.lookup(h)
	if cs == nil {
		t.Fatal("lookup of freshly registered handle returned nil")
	}
	if cs.Cookie != "cookie" {
		t.Errorf("Cookie = %v, want %q", cs.Cookie, "cookie")
	}
	if cs.PathToken == "" {
		t.Error("PathToken should be assigned on registration")
	}

	removed := ht.Unregister(h)
	if removed != cs {
		t.Error("Unregister should return the same ClientState that was registered")
	}
	if ht.lookup(h) != nil {
		t.Error("lookup after Unregister should return nil")
	}
	if ht.Unregister(h) != nil {
		t.Error("double Unregister should return nil")
	}
}

func TestHandleTableSoleActiveClient(t *testing.T) {
	ht := NewHandleTable()

	if h, cs := ht.soleActiveClient(); h != 0 || cs != nil {
		t.Error("soleActiveClient on empty table should return 0, nil")
	}

	h1 := ht.Register(nil, nil)
	if h, cs := ht.soleActiveClient(); h != h1 || cs == nil {
		t.Errorf("soleActiveClient with one client: got h=%d cs=%v", h, cs)
	}

	ht.Register(nil, nil)
	if h, cs := ht.soleActiveClient(); h != 0 || cs != nil {
		t.Error("soleActiveClient with two clients should return 0, nil")
	}
}

func TestHandleTableByPathToken(t *testing.T) {
	ht := NewHandleTable()
	h := ht.Register(nil, nil)
	cs := ht.lookup(h)

	gotH, gotCS := ht.byPathToken(cs.PathToken)
	if gotH != h || gotCS != cs {
		t.Error("byPathToken did not resolve the registered client")
	}

	if _, cs := ht.byPathToken("does-not-exist"); cs != nil {
		t.Error("byPathToken of an unknown token should return nil")
	}
}

func TestClientStateAddFindRemove(t *testing.T) {
	cs := newClientState(nil, nil)
	sub := &Subscription{Sid: "uuid:1", EventURL: "http://pub/event"}
	cs.add(sub)

	if got := cs.find("uuid:1"); got != sub {
		t.Error("find should return the added subscription")
	}
	if cs.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cs.Len())
	}

	cs.remove("uuid:1")
	if cs.find("uuid:1") != nil {
		t.Error("find after remove should return nil")
	}
	if cs.Len() != 0 {
		t.Errorf("Len() = %d after remove, want 0", cs.Len())
	}
}

func TestClientStateRename(t *testing.T) {
	cs := newClientState(nil, nil)
	cs.add(&Subscription{Sid: "uuid:old", EventURL: "http://pub/event"})

	renewed := &Subscription{Sid: "uuid:new", EventURL: "http://pub/event"}
	cs.rename("uuid:old", renewed)

	if cs.find("uuid:old") != nil {
		t.Error("old sid should no longer be present after rename")
	}
	if cs.find("uuid:new") != renewed {
		t.Error("new sid should map to the renewed subscription")
	}

	// Renaming an absent sid is a no-op.
	cs.rename("uuid:gone", &Subscription{Sid: "uuid:ghost"})
	if cs.find("uuid:ghost") != nil {
		t.Error("rename of a missing sid should not insert anything")
	}
}

func TestClientStateTimerHelpers(t *testing.T) {
	cs := newClientState(nil, nil)
	cs.add(&Subscription{Sid: "uuid:1", EventURL: "http://pub/event"})

	if !cs.setTimerID("uuid:1", 42) {
		t.Fatal("setTimerID on a present sid should succeed")
	}
	if cs.setTimerID("uuid:missing", 1) {
		t.Error("setTimerID on a missing sid should fail")
	}

	if present := cs.clearTimerIfCurrent("uuid:1", 99); !present {
		t.Error("clearTimerIfCurrent should report present even for a stale id")
	}
	if got := cs.find("uuid:1").RenewTimerID; got != 42 {
		t.Errorf("clearTimerIfCurrent with a stale id should not clear; got %d", got)
	}

	if present := cs.clearTimerIfCurrent("uuid:1", 42); !present {
		t.Error("clearTimerIfCurrent with the current id should report present")
	}
	if got := cs.find("uuid:1").RenewTimerID; got != NoTimer {
		t.Errorf("clearTimerIfCurrent with the current id should clear it; got %d", got)
	}
}

func TestClientStateSnapshotForRenew(t *testing.T) {
	cs := newClientState(nil, nil)
	cs.add(&Subscription{Sid: "uuid:1", EventURL: "http://pub/event", RenewTimerID: 5})

	url, timerID, ok := cs.snapshotForRenew("uuid:1")
	if !ok || url != "http://pub/event" || timerID != 5 {
		t.Fatalf("snapshotForRenew = (%q, %d, %v), want (http://pub/event, 5, true)", url, timerID, ok)
	}
	if got := cs.find("uuid:1").RenewTimerID; got != NoTimer {
		t.Errorf("snapshotForRenew should clear RenewTimerID; got %d", got)
	}

	if _, _, ok := cs.snapshotForRenew("uuid:missing"); ok {
		t.Error("snapshotForRenew of a missing sid should report ok=false")
	}
}

func TestClientStateCancelTimerFor(t *testing.T) {
	cs := newClientState(nil, nil)
	cs.add(&Subscription{Sid: "uuid:1", RenewTimerID: 9})

	if id := cs.cancelTimerFor("uuid:1"); id != 9 {
		t.Errorf("cancelTimerFor = %d, want 9", id)
	}
	if id := cs.cancelTimerFor("uuid:1"); id != NoTimer {
		t.Errorf("second cancelTimerFor = %d, want NoTimer", id)
	}
	if id := cs.cancelTimerFor("uuid:missing"); id != NoTimer {
		t.Errorf("cancelTimerFor of a missing sid = %d, want NoTimer", id)
	}
}

func TestClientStatePopAnyAndClear(t *testing.T) {
	cs := newClientState(nil, nil)
	if cs.popAny() != nil {
		t.Error("popAny on an empty table should return nil")
	}

	cs.add(&Subscription{Sid: "uuid:1"})
	cs.add(&Subscription{Sid: "uuid:2"})

	first := cs.popAny()
	if first == nil {
		t.Fatal("popAny should return a subscription from a non-empty table")
	}
	if cs.Len() != 1 {
		t.Errorf("Len() = %d after popAny, want 1", cs.Len())
	}

	cs.clear()
	if cs.Len() != 0 {
		t.Errorf("Len() = %d after clear, want 0", cs.Len())
	}
}

func TestClientStateCallback(t *testing.T) {
	cs := newClientState(nil, "cookie")
	called := false
	cs.setCallback(func(EventType, any, any) { called = true })

	cb, cookie := cs.callback()
	if cookie != "cookie" {
		t.Errorf("callback() cookie = %v, want %q", cookie, "cookie")
	}
	cb(EventReceived, nil, cookie)
	if !called {
		t.Error("callback set via setCallback was not invoked")
	}
}
