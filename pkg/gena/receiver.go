package gena

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gena-go/gena-go/pkg/log"
)

// Receiver is the inbound side of GENA: an http.HandlerFunc-compatible
// NOTIFY endpoint a control point runs so publishers can deliver events. It
// shares a Manager's handle table so NOTIFY delivery can correlate a SID
// back to the client handle that owns it.
type Receiver struct {
	manager *Manager
}

// NewReceiver builds a Receiver bound to m's handle table.
func NewReceiver(m *Manager) *Receiver {
	return &Receiver{manager: m}
}

// Handle implements the NOTIFY method per spec.md §4.4. It is registered
// directly as an http.HandlerFunc; GET/POST/etc. are rejected with 405
// before any GENA-specific validation runs.
func (r *Receiver) Handle(w http.ResponseWriter, req *http.Request) {
	if req.Method != "NOTIFY" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sid := strings.TrimSpace(req.Header.Get("SID"))
	if sid == "" {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	seqHeader := strings.TrimSpace(req.Header.Get("SEQ"))
	seq, err := strconv.Atoi(seqHeader)
	if seqHeader == "" || err != nil || seq < 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	nt := req.Header.Get("NT")
	nts := req.Header.Get("NTS")
	if nt == "" || nts == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !strings.EqualFold(nt, "upnp:event") || !strings.EqualFold(nts, "upnp:propchange") {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	ct := req.Header.Get("CONTENT-TYPE")
	if !strings.Contains(strings.ToLower(ct), "xml") {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil || len(body) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	changed, err := ParsePropertySet(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h, cs := r.correlate(req.URL)
	if cs == nil {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	sub := cs.find(sid)
	if sub == nil && seq == 0 {
		// The NOTIFY raced ahead of the SUBSCRIBE response that installs
		// this SID. SubscribeLock is held by the in-flight Subscribe call
		// for exactly the window between "request sent" and "table
		// updated"; acquiring and releasing it here just blocks until that
		// window closes, then retries the lookup once.
		r.manager.subscribeLock.Lock()
		sub = cs.find(sid)
		r.manager.subscribeLock.Unlock()
	}
	if sub == nil {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	w.WriteHeader(http.StatusOK)

	r.manager.logMessage("NOTIFY", sid, 0, h)
	r.manager.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sid,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleController,
		Handle:       itoa(h),
		Message: &log.MessageEvent{
			Type:     log.MessageTypeNotification,
			Method:   "NOTIFY",
			Sid:      sid,
			EventKey: intPtr(seq),
			Payload:  map[string]string(changed),
		},
	})

	r.manager.dispatch(cs, EventReceived, &EventRecord{
		Sid:              sid,
		EventKey:         seq,
		ChangedVariables: changed,
	})
}

// correlate maps an inbound NOTIFY to the client handle its CALLBACK was
// advertised under, per the CALLBACK path correlation feature: the request
// path carries the per-handle token Transport embedded when it subscribed.
// If the path carries no recognized token, it falls back to the single
// registered client (the pre-multi-handle behavior). Either way, the
// seq==0-before-SUBSCRIBE-reply race is handled by the caller retrying the
// SID lookup under SubscribeLock, not by this function.
func (r *Receiver) correlate(u *url.URL) (ClientHandle, *ClientState) {
	token := strings.Trim(u.Path, "/")
	if token != "" {
		if h, cs := r.manager.handles.byPathToken(token); cs != nil {
			return h, cs
		}
	}
	return r.manager.handles.soleActiveClient()
}

// ListenAndServe is a convenience entry point: it mounts Handle at path on
// its own http.Server and blocks until ctx is cancelled or the server
// fails.
func (r *Receiver) ListenAndServe(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.HandleFunc(path, r.Handle)

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func itoa(h ClientHandle) string {
	return strconv.Itoa(int(h))
}

func intPtr(v int) *int {
	return &v
}
