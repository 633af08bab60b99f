// Package interactive provides the interactive command-line interface
// for deskthing-client.
package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/chzyer/readline"

	"github.com/zanderp25/DeskThing-Client/pkg/connection"
	"github.com/zanderp25/DeskThing-Client/pkg/listener"
	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// Client is the part of *connection.Client the console drives.
type Client interface {
	Connect() error
	Disconnect()
	State() connection.State
	Stats() connection.Stats
	Send(env wire.Envelope) error
	Subscribe(fn listener.Listener) listener.ID
	Unsubscribe(id listener.ID) bool
}

// Console handles interactive mode for deskthing-client.
type Console struct {
	client Client
	rl     *readline.Instance
	out    io.Writer

	// Subscriptions opened from the console, printed on unsubscribe.
	mu   sync.Mutex
	subs map[listener.ID]string
}

// New creates a console reading from the terminal.
func New(client Client) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "deskthing> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newConsole(client, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(client Client, out io.Writer) *Console {
	return &Console{
		client: client,
		out:    out,
		subs:   make(map[listener.ID]string),
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.Execute(line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the console should
// exit.
func (c *Console) Execute(line string) (quit bool) {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "connect", "c":
		c.cmdConnect()

	case "disconnect", "d":
		c.cmdDisconnect()

	case "status", "s":
		c.cmdStatus()

	case "send":
		c.cmdSend(input)

	case "subscribe", "sub":
		c.cmdSubscribe(args)

	case "unsubscribe", "unsub":
		c.cmdUnsubscribe(args)

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
DeskThing Client Commands:
  Connection:
    connect                          - Connect (or restart the connection)
    disconnect                       - Disconnect and stop reconnecting
    status                           - Show connection status

  Messages:
    send <app> <type> [json-payload] - Send an application message
    subscribe [app]                  - Print inbound messages (optionally one app)
    unsubscribe <id>                 - Stop printing for a subscription

  General:
    help                             - Show this help
    quit                             - Exit`)
}

func (c *Console) cmdConnect() {
	if err := c.client.Connect(); err != nil {
		fmt.Fprintf(c.out, "Connect failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Connecting (state: %s)\n", c.client.State())
}

func (c *Console) cmdDisconnect() {
	c.client.Disconnect()
	fmt.Fprintf(c.out, "Disconnected (state: %s)\n", c.client.State())
}

func (c *Console) cmdStatus() {
	s := c.client.Stats()

	fmt.Fprintln(c.out, "\nConnection Status:")
	fmt.Fprintln(c.out, "-------------------------------------------")
	fmt.Fprintf(c.out, "  State:       %s\n", s.State)
	fmt.Fprintf(c.out, "  Address:     %s\n", s.Address)
	if s.RemoteAddr != "" {
		fmt.Fprintf(c.out, "  Remote:      %s\n", s.RemoteAddr)
	}
	if s.ConnectionID != "" {
		fmt.Fprintf(c.out, "  Session:     %s\n", s.ConnectionID)
	}
	if !s.ConnectedSince.IsZero() {
		fmt.Fprintf(c.out, "  Up:          %s\n", time.Since(s.ConnectedSince).Round(time.Second))
	}
	fmt.Fprintf(c.out, "  Epoch:       %d\n", s.Epoch)
	fmt.Fprintf(c.out, "  Connects:    %d (reconnects: %d, dial failures: %d)\n",
		s.Connects, s.Reconnects, s.DialFailures)
	fmt.Fprintf(c.out, "  Messages:    %d sent, %d received, %d malformed\n",
		s.MessagesSent, s.MessagesReceived, s.Malformed)
	if s.Heartbeat.Running {
		fmt.Fprintf(c.out, "  Heartbeat:   %d probes, %d misses\n", s.Heartbeat.ProbesSent, s.Heartbeat.Misses)
	}
	if s.LastError != "" {
		fmt.Fprintf(c.out, "  Last error:  %s\n", s.LastError)
	}

	c.mu.Lock()
	ids := make([]listener.ID, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	if len(ids) > 0 {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		fmt.Fprintf(c.out, "  Subscriptions: %v\n", ids)
	}
}

// cmdSend handles "send <app> <type> [json-payload]". The payload is the
// rest of the line so it may contain spaces.
func (c *Console) cmdSend(input string) {
	fields := splitFields(input, 4)
	if len(fields) < 3 {
		fmt.Fprintln(c.out, "Usage: send <app> <type> [json-payload]")
		return
	}

	var payload any
	if len(fields) == 4 {
		if err := json.Unmarshal([]byte(fields[3]), &payload); err != nil {
			fmt.Fprintf(c.out, "Invalid JSON payload: %v\n", err)
			return
		}
	}

	env := wire.Application(fields[1], fields[2], payload)
	if err := c.client.Send(env); err != nil {
		fmt.Fprintf(c.out, "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Sent %s/%s\n", env.App, env.Type)
}

func (c *Console) cmdSubscribe(args []string) {
	app := ""
	if len(args) > 0 {
		app = args[0]
	}

	id := c.client.Subscribe(func(env wire.Envelope) error {
		if app != "" && env.App != app {
			return nil
		}
		fmt.Fprintf(c.out, "[MSG] %s\n", formatEnvelope(env))
		return nil
	})

	c.mu.Lock()
	c.subs[id] = app
	c.mu.Unlock()

	if app == "" {
		fmt.Fprintf(c.out, "Subscribed to all messages (id: %d)\n", id)
	} else {
		fmt.Fprintf(c.out, "Subscribed to %s messages (id: %d)\n", app, id)
	}
}

func (c *Console) cmdUnsubscribe(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: unsubscribe <id>")
		return
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid subscription id: %v\n", err)
		return
	}
	id := listener.ID(n)

	c.mu.Lock()
	_, own := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()

	if !own || !c.client.Unsubscribe(id) {
		fmt.Fprintf(c.out, "No console subscription with id %d\n", id)
		return
	}
	fmt.Fprintf(c.out, "Unsubscribed %d\n", id)
}

// splitFields splits s on whitespace into at most n fields. The last field
// keeps the remainder of the line, inner whitespace included.
func splitFields(s string, n int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for len(out) < n-1 && s != "" {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func formatEnvelope(env wire.Envelope) string {
	var b strings.Builder
	b.WriteString(env.App)
	b.WriteByte('/')
	b.WriteString(env.Type)
	if env.Request != "" {
		b.WriteString(" (")
		b.WriteString(env.Request)
		b.WriteByte(')')
	}
	if env.Payload != nil {
		data, err := json.Marshal(env.Payload)
		if err != nil {
			fmt.Fprintf(&b, " %v", env.Payload)
		} else {
			b.WriteByte(' ')
			b.Write(data)
		}
	}
	return b.String()
}
