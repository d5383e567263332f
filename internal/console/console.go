// Package console drives a waypoint.Flow from line-based text input.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

const help = `commands:
  next [target] [key=value ...]   move forward, optionally merging values first
  skip [target] [key=value ...]   move forward, tagging the step as skipped
  back                            return to the previous step
  set key=value ...               merge values into the context
  reset                           start over and drop the stored snapshot
  save                            write a snapshot now
  state                           print the current state
  help                            show this help
  quit                            leave`

// Console reads commands and dispatches them to a Flow.
type Console struct {
	flow   *waypoint.Flow
	reader *bufio.Reader
	out    io.Writer
	logger *slog.Logger

	lines     chan lineResult
	startOnce sync.Once
}

type lineResult struct {
	text string
	err  error
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger used for rejected commands.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// New creates a console reading from in and writing to out.
func New(flow *waypoint.Flow, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		flow:   flow,
		reader: bufio.NewReader(in),
		out:    out,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pump reads lines in the background so Run can honor cancellation while
// blocked on input.
func (c *Console) pump() {
	defer close(c.lines)
	for {
		text, err := c.reader.ReadString('\n')
		if text != "" {
			c.lines <- lineResult{text: text}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.lines <- lineResult{err: err}
			}
			return
		}
	}
}

// Run processes commands until quit, end of input or cancellation.
func (c *Console) Run(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.lines = make(chan lineResult)
		go c.pump()
	})

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-c.lines:
			if !ok {
				return nil
			}
			if line.err != nil {
				return line.err
			}
			err := c.Execute(ctx, line.text)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				c.logger.Debug("command rejected", "line", strings.TrimSpace(line.text), "err", err)
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			c.prompt()
		}
	}
}

func (c *Console) prompt() {
	fmt.Fprintf(c.out, "[%s %s] > ", c.flow.StepID(), c.flow.Status())
}

// Execute runs a single command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "next", "skip":
		nav, err := parseNavigation(args)
		if err != nil {
			return err
		}
		if cmd == "skip" {
			return c.flow.Skip(ctx, nav)
		}
		return c.flow.Next(ctx, nav)
	case "back":
		return c.flow.Back(ctx)
	case "set":
		values, err := parseValues(args)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			return fmt.Errorf("set needs at least one key=value")
		}
		return c.flow.SetContext(ctx, domain.Set(values))
	case "reset":
		c.flow.Reset(ctx)
		return nil
	case "save":
		if !c.flow.Save(ctx) {
			return fmt.Errorf("snapshot not saved")
		}
		fmt.Fprintln(c.out, "saved", c.flow.Key())
		return nil
	case "state":
		data, err := json.MarshalIndent(c.flow.State(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, string(data))
		return nil
	case "help", "?":
		fmt.Fprintln(c.out, help)
		return nil
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func parseNavigation(args []string) (domain.Navigation, error) {
	var nav domain.Navigation
	if len(args) > 0 && !strings.Contains(args[0], "=") {
		nav.Target, args = args[0], args[1:]
	}
	values, err := parseValues(args)
	if err != nil {
		return nav, err
	}
	if len(values) > 0 {
		nav.Update = domain.Set(values)
	}
	return nav, nil
}

// parseValues reads key=value pairs. Values that parse as JSON keep their
// type, anything else is a string.
func parseValues(args []string) (domain.Context, error) {
	values := domain.Context{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[key] = v
	}
	return values, nil
}
