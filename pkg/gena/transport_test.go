package gena

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeOracle answers LocalAddressFor with a fixed address, avoiding any
// dependency on the test machine's real routing table.
type fakeOracle struct {
	addr    net.IP
	isIPv6  bool
	failErr error
}

func (f fakeOracle) LocalAddressFor(string) (net.IP, bool, error) {
	if f.failErr != nil {
		return nil, false, f.failErr
	}
	return f.addr, f.isIPv6, nil
}

func newTestTransport(t *testing.T, oracle LocalAddressOracle) *Transport {
	t.Helper()
	cfg := Defaults()
	return &Transport{
		Config: cfg,
		Oracle: oracle,
		Client: &http.Client{Timeout: 2 * time.Second},
	}
}

func TestDoSubscribeInitialSuccess(t *testing.T) {
	var gotCallback, gotNT, gotTimeout string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "SUBSCRIBE" {
			t.Errorf("method = %s, want SUBSCRIBE", r.Method)
		}
		gotCallback = r.Header.Get("CALLBACK")
		gotNT = r.Header.Get("NT")
		gotTimeout = r.Header.Get("TIMEOUT")
		w.Header().Set("SID", "uuid:abc")
		w.Header().Set("TIMEOUT", "Second-1800")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("192.168.1.5")})
	sid, granted, err := tr.DoSubscribe(context.Background(), srv.URL, 1800, "", "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid != "uuid:abc" {
		t.Errorf("sid = %q, want uuid:abc", sid)
	}
	if granted != 1800 {
		t.Errorf("granted = %d, want 1800", granted)
	}
	if gotNT != "upnp:event" {
		t.Errorf("NT = %q, want upnp:event", gotNT)
	}
	if gotCallback == "" {
		t.Error("CALLBACK header should be set on an initial subscribe")
	}
	if gotTimeout != "Second-1800" {
		t.Errorf("TIMEOUT = %q, want Second-1800", gotTimeout)
	}
}

func TestDoSubscribeRenewalSetsSID(t *testing.T) {
	var gotSid, gotCallback string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSid = r.Header.Get("SID")
		gotCallback = r.Header.Get("CALLBACK")
		w.Header().Set("SID", "uuid:abc")
		w.Header().Set("TIMEOUT", "Second-1800")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("192.168.1.5")})
	_, _, err := tr.DoSubscribe(context.Background(), srv.URL, 1800, "uuid:abc", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSid != "uuid:abc" {
		t.Errorf("SID header = %q, want uuid:abc", gotSid)
	}
	if gotCallback != "" {
		t.Error("a renewal SUBSCRIBE should not set CALLBACK")
	}
}

func TestDoSubscribeFloorsTimeoutAtMinSubSecs(t *testing.T) {
	var gotTimeout string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTimeout = r.Header.Get("TIMEOUT")
		w.Header().Set("SID", "uuid:abc")
		w.Header().Set("TIMEOUT", "Second-1800")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("192.168.1.5")})
	tr.Config.MinSubSecs = 1800
	_, _, err := tr.DoSubscribe(context.Background(), srv.URL, 5, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTimeout != "Second-1800" {
		t.Errorf("TIMEOUT = %q, want floored to Second-1800", gotTimeout)
	}
}

func TestDoSubscribeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("192.168.1.5")})
	_, _, err := tr.DoSubscribe(context.Background(), srv.URL, 1800, "", "")
	if !errors.Is(err, ErrSubscribeUnaccepted) {
		t.Errorf("error = %v, want ErrSubscribeUnaccepted", err)
	}
}

func TestDoSubscribeMissingHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("192.168.1.5")})
	_, _, err := tr.DoSubscribe(context.Background(), srv.URL, 1800, "", "")
	if !errors.Is(err, ErrBadResponse) {
		t.Errorf("error = %v, want ErrBadResponse", err)
	}
}

func TestDoSubscribeMalformedTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("SID", "uuid:abc")
		w.Header().Set("TIMEOUT", "garbage")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("192.168.1.5")})
	_, _, err := tr.DoSubscribe(context.Background(), srv.URL, 1800, "", "")
	if !errors.Is(err, ErrBadResponse) {
		t.Errorf("error = %v, want ErrBadResponse", err)
	}
}

func TestDoSubscribeInvalidURL(t *testing.T) {
	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("192.168.1.5")})
	_, _, err := tr.DoSubscribe(context.Background(), "not-a-url", 1800, "", "")
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("error = %v, want ErrInvalidURL", err)
	}
}

func TestDoSubscribeOracleFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be contacted when the oracle fails")
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{failErr: ErrSocketConnect})
	_, _, err := tr.DoSubscribe(context.Background(), srv.URL, 1800, "", "")
	if !errors.Is(err, ErrSocketConnect) {
		t.Errorf("error = %v, want ErrSocketConnect", err)
	}
}

func TestDoSubscribeConnectionFailure(t *testing.T) {
	tr := newTestTransport(t, fakeOracle{addr: net.ParseIP("127.0.0.1")})
	_, _, err := tr.DoSubscribe(context.Background(), "http://127.0.0.1:1", 1800, "", "")
	if !errors.Is(err, ErrSocketConnect) {
		t.Errorf("error = %v, want ErrSocketConnect", err)
	}
}

func TestDoUnsubscribeSuccess(t *testing.T) {
	var gotMethod, gotSid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotSid = r.Header.Get("SID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{})
	err := tr.DoUnsubscribe(context.Background(), srv.URL, "uuid:abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != "UNSUBSCRIBE" {
		t.Errorf("method = %s, want UNSUBSCRIBE", gotMethod)
	}
	if gotSid != "uuid:abc" {
		t.Errorf("SID = %q, want uuid:abc", gotSid)
	}
}

func TestDoUnsubscribeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	tr := newTestTransport(t, fakeOracle{})
	err := tr.DoUnsubscribe(context.Background(), srv.URL, "uuid:abc")
	if !errors.Is(err, ErrUnsubscribeUnaccepted) {
		t.Errorf("error = %v, want ErrUnsubscribeUnaccepted", err)
	}
}

func TestDoUnsubscribeConnectionFailure(t *testing.T) {
	tr := newTestTransport(t, fakeOracle{})
	err := tr.DoUnsubscribe(context.Background(), "http://127.0.0.1:1", "uuid:abc")
	if !errors.Is(err, ErrSocketConnect) {
		t.Errorf("error = %v, want ErrSocketConnect", err)
	}
}
