// Package log provides structured protocol logging for the GENA control
// point.
//
// This package defines the Logger interface and Event types for capturing
// GENA traffic at multiple layers (transport, wire, service). It is separate
// from operational logging (slog) - protocol capture provides a complete
// machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by passing a Logger implementation to
// gena.NewManager:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, _ := log.NewFileLogger("/var/log/gena/ctrlpt.glog")
//
//	// Both: use MultiLogger
//	fileLogger, _ := log.NewFileLogger("/var/log/gena/ctrlpt.glog")
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
//	manager := gena.NewManager(cfg, logger)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw HTTP request/response bytes (FrameEvent)
//   - Wire: Decoded SUBSCRIBE/UNSUBSCRIBE/NOTIFY messages (MessageEvent)
//   - Service: Subscription lifecycle transitions (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with a .glog extension. The gena-log CLI tool
// provides viewing, filtering, and export capabilities.
package log
