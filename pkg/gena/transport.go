package gena

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Transport issues the synchronous outbound SUBSCRIBE/UNSUBSCRIBE requests
// on behalf of Manager. It is the only component that touches the network.
type Transport struct {
	Config Config
	Oracle LocalAddressOracle

	// Client is the http.Client used for requests. Built lazily from
	// Config.HTTPDefaultTimeout if nil.
	Client *http.Client
}

// NewTransport builds a Transport from cfg with the default local-address
// oracle.
func NewTransport(cfg Config) *Transport {
	return &Transport{
		Config: cfg,
		Oracle: DefaultLocalAddressOracle,
		Client: &http.Client{Timeout: cfg.HTTPDefaultTimeout},
	}
}

func (t *Transport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: t.Config.HTTPDefaultTimeout}
}

// callbackURL renders the CALLBACK header value for addr, bracketing IPv6
// literals, and appends pathToken so the Notification Receiver can
// correlate inbound NOTIFYs to a specific client handle.
func callbackURL(addr net.IP, isIPv6 bool, cfg Config, pathToken string) string {
	host := addr.String()
	port := cfg.LocalPortV4
	if isIPv6 {
		host = "[" + host + "]"
		port = cfg.LocalPortV6
	}
	path := ""
	if pathToken != "" {
		path = pathToken + "/"
	}
	return fmt.Sprintf("http://%s:%d/%s", host, port, path)
}

// DoSubscribe sends an initial SUBSCRIBE (renewalSid == "") or a renewal
// SUBSCRIBE (renewalSid != ""), per spec.md §4.1.
func (t *Transport) DoSubscribe(ctx context.Context, eventURL string, timeoutReq TimeoutSpec, renewalSid, pathToken string) (sid string, timeoutGranted TimeoutSpec, err error) {
	dest, err := url.Parse(eventURL)
	if err != nil || dest.Host == "" || (dest.Scheme != "http" && dest.Scheme != "https") {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidURL, eventURL)
	}

	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", eventURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidURL, eventURL)
	}

	if renewalSid == "" {
		addr, isIPv6, err := t.Oracle.LocalAddressFor(dest.Host)
		if err != nil {
			return "", 0, err
		}
		req.Header.Set("CALLBACK", "<"+callbackURL(addr, isIPv6, t.Config, pathToken)+">")
		req.Header.Set("NT", "upnp:event")
	} else {
		req.Header.Set("SID", renewalSid)
	}
	req.Header.Set("TIMEOUT", timeoutReq.Header(t.Config.MinSubSecs))
	req.Header.Set("USER-AGENT", t.Config.UserAgent)

	resp, err := t.client().Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrSocketConnect, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: http status %d", ErrSubscribeUnaccepted, resp.StatusCode)
	}

	respSid := resp.Header.Get("SID")
	respTimeout := resp.Header.Get("TIMEOUT")
	if respSid == "" || respTimeout == "" {
		return "", 0, fmt.Errorf("%w: missing SID or TIMEOUT header", ErrBadResponse)
	}

	granted, err := ParseTimeoutHeader(respTimeout)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return respSid, granted, nil
}

// DoUnsubscribe sends UNSUBSCRIBE for sid at eventURL. Best-effort from the
// caller's perspective: the local Subscription is removed regardless of
// the outcome (see Manager.Unsubscribe).
func (t *Transport) DoUnsubscribe(ctx context.Context, eventURL, sid string) error {
	req, err := http.NewRequestWithContext(ctx, "UNSUBSCRIBE", eventURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, eventURL)
	}
	req.Header.Set("SID", sid)
	req.Header.Set("USER-AGENT", t.Config.UserAgent)

	resp, err := t.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSocketConnect, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http status %d", ErrUnsubscribeUnaccepted, resp.StatusCode)
	}
	return nil
}
