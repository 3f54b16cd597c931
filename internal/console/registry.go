package console

import (
	"sort"
)

// Command is one shell command.
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Run         func(args []string) error
	// Complete returns candidates for the first argument.
	Complete func() []string
}

// Registry manages available commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]string // alias -> primary command name
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd.Name
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) (*Command, bool) {
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if primary, ok := r.aliases[name]; ok {
		cmd, ok := r.commands[primary]
		return cmd, ok
	}
	return nil, false
}

// List returns the registered commands sorted by name.
func (r *Registry) List() []*Command {
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
