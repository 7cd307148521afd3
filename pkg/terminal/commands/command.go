package commands

import (
	"github.com/google/uuid"

	"github.com/msto63/mdwterm/pkg/terminal/text"
)

// Option is an option value given in a command invocation
type Option struct {
	Descriptor *OptionDescriptor
	ID         string
	Raw        string
	Value      interface{}
	ByAlias    bool
}

// Argument is a positional value given in a command invocation
type Argument struct {
	Descriptor *ArgumentDescriptor
	ID         string
	Raw        string
	Value      interface{}
}

// Command is a descriptor bound to the option and argument values of one
// invocation
type Command struct {
	Descriptor *Descriptor
	Options    []*Option
	Arguments  []*Argument

	comparer text.TextComparer
}

// NewCommand creates a command instance for d
func NewCommand(d *Descriptor, cmp text.TextComparer) *Command {
	if cmp == nil {
		cmp = text.CaseSensitive
	}
	return &Command{Descriptor: d, comparer: cmp}
}

// ID returns the descriptor id
func (c *Command) ID() string {
	return c.Descriptor.ID
}

// TryGetOption finds an option value by option id or alias
func (c *Command) TryGetOption(idOrAlias string) (*Option, bool) {
	for _, opt := range c.Options {
		if c.comparer.Equal(opt.ID, idOrAlias) {
			return opt, true
		}
		if opt.Descriptor != nil && opt.Descriptor.Alias != "" && c.comparer.Equal(opt.Descriptor.Alias, idOrAlias) {
			return opt, true
		}
	}
	return nil, false
}

// HasOption reports whether the option was given
func (c *Command) HasOption(idOrAlias string) bool {
	_, ok := c.TryGetOption(idOrAlias)
	return ok
}

// TryGetArgument finds an argument value by argument id
func (c *Command) TryGetArgument(id string) (*Argument, bool) {
	for _, arg := range c.Arguments {
		if c.comparer.Equal(arg.ID, id) {
			return arg, true
		}
	}
	return nil, false
}

// ParsedCommand is the result of parsing a route
type ParsedCommand struct {
	Command *Command

	// Hierarchy lists the resolved commands from the root down to Command
	// when hierarchy parsing is enabled
	Hierarchy []*Command

	// StrictDataType reports whether values were converted strictly
	StrictDataType bool
}

// CommandRoute is one raw command submission
type CommandRoute struct {
	id  string
	raw string
}

// NewCommandRoute creates a route. An empty id gets a generated one.
func NewCommandRoute(id, raw string) *CommandRoute {
	if id == "" {
		id = uuid.New().String()
	}
	return &CommandRoute{id: id, raw: raw}
}

// ID returns the correlation id
func (r *CommandRoute) ID() string { return r.id }

// Raw returns the raw command text
func (r *CommandRoute) Raw() string { return r.raw }

// HelpOptions configures the help option that bypasses command checks
type HelpOptions struct {
	Enabled     bool
	OptionID    string
	OptionAlias string
}

// DefaultHelpOptions returns help enabled as --help / -h
func DefaultHelpOptions() HelpOptions {
	return HelpOptions{Enabled: true, OptionID: "help", OptionAlias: "h"}
}

// IsHelp reports whether c carries the help option
func (h HelpOptions) IsHelp(c *Command) bool {
	if !h.Enabled || c == nil {
		return false
	}
	return (h.OptionID != "" && c.HasOption(h.OptionID)) || (h.OptionAlias != "" && c.HasOption(h.OptionAlias))
}
