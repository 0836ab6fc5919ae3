package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// glogEncMode is the CBOR encoder mode for .glog protocol event files:
// canonical key ordering and nanosecond-precision timestamps so two runs
// of the same subscription traffic serialize identically.
var glogEncMode cbor.EncMode

// glogDecMode is the CBOR decoder mode for .glog protocol event files.
var glogDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	glogEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("gena: failed to build .glog CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	glogDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("gena: failed to build .glog CBOR decoder mode: %v", err))
	}
}

// encodeEvent encodes a single Event as a standalone .glog CBOR record, for
// callers in this package that need a round trip without going through a
// FileLogger (the package tests).
func encodeEvent(event Event) ([]byte, error) {
	return glogEncMode.Marshal(event)
}

// decodeEvent decodes a single .glog CBOR record produced by encodeEvent.
func decodeEvent(data []byte) (Event, error) {
	var event Event
	if err := glogDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// newGlogDecoder wraps r in a streaming CBOR decoder configured for .glog
// files: a flat sequence of concatenated Event records with no length
// prefix or container framing, decoded one at a time with Decode.
func newGlogDecoder(r io.Reader) *cbor.Decoder {
	return glogDecMode.NewDecoder(r)
}

// FileLogger writes protocol events to a .glog file, CBOR-encoded one
// record after another with no outer framing.
// It is safe for concurrent use from multiple goroutines.
type FileLogger struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileLogger creates a new FileLogger that writes to the specified path.
// If the file exists, new events are appended. The file is created with
// permissions 0644 if it doesn't exist.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: glogEncMode.NewEncoder(f),
	}, nil
}

// Log writes an event to the log file.
// This method is safe for concurrent use.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	// Ignore encoding errors - logging should not disrupt subscription
	// handling.
	_ = l.encoder.Encode(event)
}

// Close closes the log file.
// It is safe to call Close multiple times.
// After Close is called, subsequent Log calls are silently ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
