package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/gena-go/gena-go/pkg/gena"
)

// repl drives the interactive command loop for the control point, backed
// by a readline.Instance so NOTIFY output printed from background
// goroutines doesn't mangle the in-progress command line.
type repl struct {
	manager *gena.Manager
	logger  *slog.Logger
	handles []gena.ClientHandle
	rl      *readline.Instance
}

func newREPL(manager *gena.Manager, logger *slog.Logger) (*repl, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gena> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &repl{manager: manager, logger: logger, rl: rl}, nil
}

// Stdout returns a writer coordinated with the readline prompt, so NOTIFY
// callbacks printing from their own goroutine don't race the input line.
func (r *repl) Stdout() io.Writer {
	return r.rl.Stdout()
}

func (r *repl) run(ctx context.Context) {
	defer r.rl.Close()
	r.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "help", "?":
			r.printHelp()
		case "subscribe", "sub":
			r.cmdSubscribe(ctx, args)
		case "renew":
			r.cmdRenew(ctx, args)
		case "unsubscribe", "unsub":
			r.cmdUnsubscribe(ctx, args)
		case "list", "ls":
			r.cmdList()
		case "quit", "exit", "q":
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			return
		default:
			fmt.Fprintf(r.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.rl.Stdout(), `
GENA Control Point Commands:
  subscribe <event-url> [timeout-secs]  - Register a handle and subscribe
  renew <handle> <sid> [timeout-secs]   - Renew a subscription early
  unsubscribe <handle> <sid>            - Cancel a subscription
  list                                   - List active handles
  help                                   - Show this help
  quit                                   - Exit`)
}

func (r *repl) cmdSubscribe(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.rl.Stdout(), "usage: subscribe <event-url> [timeout-secs]")
		return
	}
	eventURL := args[0]
	timeout := gena.TimeoutSpec(1800)
	if len(args) >= 2 {
		if args[1] == "infinite" {
			timeout = gena.TimeoutInfinite
		} else if n, err := strconv.Atoi(args[1]); err == nil {
			timeout = gena.TimeoutSpec(n)
		}
	}

	h := r.manager.RegisterClient(nil, nil)
	r.handles = append(r.handles, h)
	_ = r.manager.SetCallback(h, onEvent(r, h))

	sid, granted, err := r.manager.Subscribe(ctx, h, eventURL, timeout)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "subscribe failed: %v\n", err)
		_ = r.manager.UnregisterClient(ctx, h)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "subscribed: handle=%d sid=%s granted=%s\n", h, sid, granted.Header(0))
}

func (r *repl) cmdRenew(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.rl.Stdout(), "usage: renew <handle> <sid> [timeout-secs]")
		return
	}
	h, sid, ok := parseHandleSid(r.rl.Stdout(), args[0], args[1])
	if !ok {
		return
	}
	timeout := gena.TimeoutSpec(1800)
	if len(args) >= 3 {
		if n, err := strconv.Atoi(args[2]); err == nil {
			timeout = gena.TimeoutSpec(n)
		}
	}

	newSid, granted, err := r.manager.Renew(ctx, h, sid, timeout)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "renew failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "renewed: handle=%d sid=%s granted=%s\n", h, newSid, granted.Header(0))
}

func (r *repl) cmdUnsubscribe(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.rl.Stdout(), "usage: unsubscribe <handle> <sid>")
		return
	}
	h, sid, ok := parseHandleSid(r.rl.Stdout(), args[0], args[1])
	if !ok {
		return
	}
	if err := r.manager.Unsubscribe(ctx, h, sid); err != nil {
		fmt.Fprintf(r.rl.Stdout(), "unsubscribe failed: %v\n", err)
		return
	}
	fmt.Fprintln(r.rl.Stdout(), "unsubscribed")
}

func (r *repl) cmdList() {
	if len(r.handles) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "no registered handles")
		return
	}
	for _, h := range r.handles {
		fmt.Fprintf(r.rl.Stdout(), "  handle=%d\n", h)
	}
}

func parseHandleSid(w io.Writer, handleArg, sid string) (gena.ClientHandle, string, bool) {
	n, err := strconv.Atoi(handleArg)
	if err != nil {
		fmt.Fprintf(w, "invalid handle: %s\n", handleArg)
		return 0, "", false
	}
	return gena.ClientHandle(n), sid, true
}
