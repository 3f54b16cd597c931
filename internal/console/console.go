package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"gosgi/internal/formatting"
	"gosgi/internal/framework"
	"gosgi/internal/module"
	"gosgi/pkg/logging"
)

// errExit is returned by the exit command to leave Run.
var errExit = errors.New("exit")

// Console is an interactive shell bound to one framework.
type Console struct {
	fw       *framework.Framework
	out      io.Writer
	options  formatting.Options
	registry *Registry
}

// New creates a console writing to out.
func New(fw *framework.Framework, out io.Writer, options formatting.Options) *Console {
	c := &Console{
		fw:       fw,
		out:      out,
		options:  options,
		registry: NewRegistry(),
	}
	c.registerCommands()
	return c
}

// Execute runs one command line.
func (c *Console) Execute(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	name := strings.ToLower(parts[0])
	if name == "?" {
		name = "help"
	}
	cmd, ok := c.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", parts[0])
	}
	return cmd.Run(parts[1:])
}

// Run reads and executes commands until exit, EOF, ctx cancellation or
// framework shutdown.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "g! ",
		HistoryFile:       filepath.Join(os.TempDir(), ".gosgi_history"),
		AutoComplete:      c.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	fmt.Fprintln(c.out, "gosgi console. Type 'help' for available commands. Use TAB for completion.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		if err := c.Execute(strings.TrimSpace(line)); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		if st := c.fw.State(); st != framework.StateActive && st != framework.StateStarting {
			logging.Info("Console", "Framework is %s, leaving console", st)
			return nil
		}
	}
}

func (c *Console) completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range c.registry.List() {
		names := append([]string{cmd.Name}, cmd.Aliases...)
		for _, name := range names {
			if cmd.Complete != nil {
				complete := cmd.Complete
				items = append(items, readline.PcItem(name, readline.PcItemDynamic(func(string) []string {
					return complete()
				})))
			} else {
				items = append(items, readline.PcItem(name))
			}
		}
	}
	return readline.NewPrefixCompleter(items...)
}

func (c *Console) write(t formatting.Table) error {
	return formatting.NewFormatter(c.options).Write(c.out, t)
}

func (c *Console) bundleIDs() []string {
	var ids []string
	for _, b := range c.fw.Bundles() {
		ids = append(ids, strconv.FormatInt(int64(b.ID()), 10))
	}
	return ids
}

func parseBundleIDs(args []string) ([]module.BundleID, error) {
	ids := make([]module.BundleID, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid bundle id %q", a)
		}
		ids = append(ids, module.BundleID(n))
	}
	return ids, nil
}

func (c *Console) bundleArg(args []string, usage string) (*framework.Bundle, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	ids, err := parseBundleIDs(args[:1])
	if err != nil {
		return nil, err
	}
	return c.fw.Bundle(ids[0])
}
