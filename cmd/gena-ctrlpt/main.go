// Command gena-ctrlpt is a reference GENA control point: it subscribes to
// UPnP eventing publishers, prints NOTIFY deliveries as they arrive, and
// keeps subscriptions alive with automatic renewal.
//
// Usage:
//
//	gena-ctrlpt [flags]
//
// Flags:
//
//	-config string       Configuration file path (YAML)
//	-listen string        Address the NOTIFY receiver binds to (default ":8058")
//	-protocol-log string  Write a CBOR protocol log to this path
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Interactive Commands:
//
//	subscribe <event-url> [timeout-secs] - Subscribe to a publisher
//	renew <handle> <sid> [timeout-secs]  - Renew a subscription early
//	unsubscribe <handle> <sid>           - Cancel a subscription
//	list                                  - List registered handles
//	quit                                  - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gena-go/gena-go/pkg/gena"
	"github.com/gena-go/gena-go/pkg/log"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path (YAML)")
	listen := flag.String("listen", ":8058", "Address the NOTIFY receiver binds to")
	protocolLog := flag.String("protocol-log", "", "Write a CBOR protocol log to this path")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevel),
	}))
	slog.SetDefault(slogger)

	cfg := gena.Defaults()
	if *configFile != "" {
		loaded, err := gena.LoadConfig(*configFile)
		if err != nil {
			slogger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	protocolLogger := buildProtocolLogger(slogger, *protocolLog)
	if fl, ok := protocolLogger.(interface{ Close() error }); ok {
		defer fl.Close()
	}

	manager := gena.NewManager(cfg, protocolLogger)
	receiver := gena.NewReceiver(manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := receiver.ListenAndServe(ctx, *listen, "/"); err != nil {
			slogger.Error("NOTIFY receiver stopped", "error", err)
		}
	}()
	slogger.Info("NOTIFY receiver listening", "addr", *listen)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slogger.Info("shutting down")
		cancel()
	}()

	repl, err := newREPL(manager, slogger)
	if err != nil {
		slogger.Error("failed to start interactive prompt", "error", err)
		os.Exit(1)
	}
	repl.run(ctx)

	_ = manager.Close(context.Background())
}

func buildProtocolLogger(slogger *slog.Logger, path string) log.Logger {
	console := log.NewSlogAdapter(slogger)
	if path == "" {
		return console
	}
	file, err := log.NewFileLogger(path)
	if err != nil {
		slogger.Warn("failed to open protocol log file, logging to console only", "path", path, "error", err)
		return console
	}
	return log.NewMultiLogger(console, file)
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func onEvent(r *repl, h gena.ClientHandle) gena.Callback {
	return func(event gena.EventType, payload any, cookie any) {
		w := r.Stdout()
		switch p := payload.(type) {
		case *gena.EventRecord:
			fmt.Fprintf(w, "\n[NOTIFY] handle=%d sid=%s seq=%d\n", h, p.Sid, p.EventKey)
			for k, v := range p.ChangedVariables {
				fmt.Fprintf(w, "    %s = %s\n", k, v)
			}
		case *gena.LifecycleEvent:
			if p.Err != nil {
				fmt.Fprintf(w, "\n[%s] handle=%d sid=%s publisher=%s error=%v\n", event, h, p.Sid, p.PublisherURL, p.Err)
			} else {
				fmt.Fprintf(w, "\n[%s] handle=%d sid=%s publisher=%s\n", event, h, p.Sid, p.PublisherURL)
			}
		}
		r.rl.Refresh()
	}
}
