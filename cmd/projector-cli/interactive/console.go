// cmd/projector-cli/interactive/console.go

// Package interactive provides the interactive console for a single projector.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"projector-service/internal/catalog"
	"projector-service/pkg/driver"
)

// Console drives one projector from a readline prompt
type Console struct {
	projector driver.Projector
	catalog   *catalog.Catalog
	rl        *readline.Instance
	out       io.Writer
	timeout   time.Duration
}

// New creates a console. historyFile may be empty.
func New(projector driver.Projector, cat *catalog.Catalog, historyFile string, timeout time.Duration) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "projector> ",
		HistoryFile:     historyFile,
		AutoComplete:    completer(cat),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		projector: projector,
		catalog:   cat,
		rl:        rl,
		out:       rl.Stdout(),
		timeout:   timeout,
	}, nil
}

// Stdout returns a writer that coordinates with the prompt
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until exit, EOF or ctx ends
func (c *Console) Run(ctx context.Context) {
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
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if !c.Execute(ctx, input) {
			fmt.Fprintln(c.out, "Exiting...")
			return
		}
	}
}

// Execute runs one console line. It returns false when the console should exit.
func (c *Console) Execute(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "power", "p":
		c.cmdPower(opCtx)
	case "get", "g":
		c.cmdGet(opCtx, args)
	case "read", "r":
		c.cmdRead(opCtx, args)
	case "write", "w":
		c.cmdWrite(opCtx, args)
	case "cmd", "c":
		c.cmdCommand(opCtx, args)
	case "raw":
		c.cmdRaw(opCtx, strings.TrimSpace(strings.TrimPrefix(input, parts[0])))
	case "serial":
		c.cmdSerial(opCtx)
	case "state", "s":
		c.cmdState()
	case "list", "ls":
		c.cmdList()
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) cmdPower(ctx context.Context) {
	power, err := c.projector.GetPower(ctx)
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "Power: %s (%s)\n", power.Label(), power)
}

func (c *Console) cmdGet(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: get <CODE>")
		return
	}
	value, err := c.projector.GetProperty(ctx, strings.ToUpper(args[0]))
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "%s = %s\n", strings.ToUpper(args[0]), value)
}

func (c *Console) cmdRead(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: read <PROPERTY>")
		return
	}
	id := strings.ToUpper(args[0])
	value, err := c.projector.ReadConfigValue(ctx, id)
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "%s = %d\n", id, value)
}

func (c *Console) cmdWrite(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: write <PROPERTY> <value>")
		return
	}
	id := strings.ToUpper(args[0])
	value, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid value: %s\n", args[1])
		return
	}
	if err := c.projector.WriteConfigValue(ctx, id, value); err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "%s set to %d\n", id, value)
}

func (c *Console) cmdCommand(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "Usage: cmd <COMMAND>")
		return
	}
	id := strings.ToUpper(strings.Join(args, " "))
	reply, err := c.projector.SendCommand(ctx, id)
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "OK %s\n", reply)
}

func (c *Console) cmdRaw(ctx context.Context, line string) {
	if line == "" {
		fmt.Fprintln(c.out, "Usage: raw <LINE>")
		return
	}
	reply, err := c.projector.SendRaw(ctx, line)
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "%q\n", reply)
}

func (c *Console) cmdSerial(ctx context.Context) {
	serial, err := c.projector.GetSerialNumber(ctx)
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "Serial: %s\n", serial)
}

func (c *Console) cmdState() {
	status := c.projector.Status()
	out := c.out
	fmt.Fprintf(out, "Session:   %s\n", status.SessionState)
	fmt.Fprintf(out, "Busy:      %t %s\n", status.Busy, status.BusyLabel)
	fmt.Fprintf(out, "Ops:       %d (errors %d, reconnects %d)\n",
		status.Stats.OperationCount, status.Stats.ErrorCount, status.Stats.Reconnects)
	fmt.Fprintf(out, "Bytes:     %d out, %d in\n", status.Stats.BytesWritten, status.Stats.BytesRead)
	if status.SerialNumber != "" {
		fmt.Fprintf(out, "Serial:    %s\n", status.SerialNumber)
	}
}

func (c *Console) cmdList() {
	out := c.out
	fmt.Fprintln(out, "Properties:")
	for _, p := range c.catalog.AllProperties() {
		if !p.Writable {
			fmt.Fprintf(out, "  %-12s readout\n", p.ID)
			continue
		}
		fmt.Fprintf(out, "  %-12s %d..%d\n", p.ID, p.Human.Min, p.Human.Max)
	}
}

func (c *Console) printError(err error) {
	fmt.Fprintf(c.out, "Error: %v\n", err)
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Projector Commands:
  power              - Read the power state
  get <CODE>         - Query a raw property code
  read <PROPERTY>    - Read a catalog property in human units
  write <PROP> <n>   - Write a catalog property in human units
  cmd <COMMAND>      - Send a catalog command (e.g. "cmd PWR ON")
  raw <LINE>         - Send a free-form line
  serial             - Read the serial number
  state              - Show session state and counters
  list               - List catalog properties
  help               - Show this help
  exit               - Exit`)
}

func completer(cat *catalog.Catalog) *readline.PrefixCompleter {
	properties := make([]readline.PrefixCompleterInterface, 0)
	for _, p := range cat.AllProperties() {
		properties = append(properties, readline.PcItem(p.ID))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("power"),
		readline.PcItem("get"),
		readline.PcItem("read", properties...),
		readline.PcItem("write", properties...),
		readline.PcItem("cmd"),
		readline.PcItem("raw"),
		readline.PcItem("serial"),
		readline.PcItem("state"),
		readline.PcItem("list"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}
