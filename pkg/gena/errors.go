package gena

import "errors"

// Error kinds returned by Manager, Transport and ParsePropertySet.
//
// OutOfMemory from the originating UPnP SDK's error taxonomy has no
// counterpart here: Go reports allocation failure by panicking, not by a
// recoverable error value, so no component can produce it.
var (
	ErrBadHandle             = errors.New("gena: bad handle")
	ErrBadSid                = errors.New("gena: bad sid")
	ErrInvalidURL            = errors.New("gena: invalid url")
	ErrSocketConnect         = errors.New("gena: socket connect failed")
	ErrSubscribeUnaccepted   = errors.New("gena: subscribe not accepted")
	ErrUnsubscribeUnaccepted = errors.New("gena: unsubscribe not accepted")
	ErrBadResponse           = errors.New("gena: bad response")
	ErrParseFailed           = errors.New("gena: propertyset parse failed")
)
