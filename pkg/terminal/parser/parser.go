// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     parser
// Description: Resolves a raw command route against the descriptor store
// License:     MIT
// ============================================================================

// Package parser turns a CommandRoute into a ParsedCommand by walking the
// command hierarchy and binding options and arguments to their descriptors.
package parser

import (
	"context"
	"strings"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

// Options configures the command parser
type Options struct {
	Text            text.Options
	ParseHierarchy  bool
	StrictDataType  bool
	CaseInsensitive bool
	Help            commands.HelpOptions
}

// DefaultOptions returns the default parser options
func DefaultOptions() Options {
	return Options{
		Text:           text.DefaultOptions(),
		ParseHierarchy: true,
		Help:           commands.DefaultHelpOptions(),
	}
}

type strictKey struct{}

// WithStrictDataType returns a context under which Extract converts option
// and argument values strictly, whatever the parser options say. The router
// sets it when the license requires strict typing.
func WithStrictDataType(ctx context.Context) context.Context {
	return context.WithValue(ctx, strictKey{}, true)
}

func strictDataType(ctx context.Context) bool {
	strict, _ := ctx.Value(strictKey{}).(bool)
	return strict
}

// Parser extracts a parsed command from a route
type Parser interface {
	Extract(ctx context.Context, route *commands.CommandRoute) (*commands.ParsedCommand, error)
}

// CommandParser resolves routes against a descriptor store
type CommandParser struct {
	store    commands.Store
	opts     Options
	comparer text.TextComparer
	help     *commands.OptionDescriptor
}

// New creates a command parser
func New(store commands.Store, opts Options) (*CommandParser, error) {
	if store == nil {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command store is missing")
	}
	if err := opts.Text.Validate(); err != nil {
		return nil, err
	}
	return &CommandParser{
		store:    store,
		opts:     opts,
		comparer: text.Comparer(opts.CaseInsensitive),
		help: &commands.OptionDescriptor{
			ID:          opts.Help.OptionID,
			Alias:       opts.Help.OptionAlias,
			DataType:    commands.DataTypeBoolean,
			Description: "Show help for the command",
		},
	}, nil
}

// Extract implements Parser
func (p *CommandParser) Extract(ctx context.Context, route *commands.CommandRoute) (*commands.ParsedCommand, error) {
	if route == nil || strings.TrimSpace(route.Raw()) == "" {
		return nil, terrors.New(terrors.CodeInvalidRequest, "the command route is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, terrors.FromContext(err)
	}

	chain, rest, err := p.resolveHierarchy(route.Raw())
	if err != nil {
		return nil, err
	}
	leaf := chain[len(chain)-1]

	strict := p.opts.StrictDataType || strictDataType(ctx)
	cmd := commands.NewCommand(leaf, p.comparer)
	if err := p.bind(cmd, rest, strict); err != nil {
		return nil, err
	}

	parsed := &commands.ParsedCommand{Command: cmd, StrictDataType: strict}
	if p.opts.ParseHierarchy {
		parsed.Hierarchy = make([]*commands.Command, 0, len(chain))
		for _, d := range chain[:len(chain)-1] {
			parsed.Hierarchy = append(parsed.Hierarchy, commands.NewCommand(d, p.comparer))
		}
		parsed.Hierarchy = append(parsed.Hierarchy, cmd)
	}
	return parsed, nil
}

// resolveHierarchy walks the leading identifier segments from a root (or an
// ownerless native command) down to the deepest matching child.
func (p *CommandParser) resolveHierarchy(raw string) ([]*commands.Descriptor, string, error) {
	sep := p.opts.Text.Separator

	segment, rest := text.NextSegment(raw, sep)
	if p.isOptionOrValue(segment) {
		return nil, "", terrors.New(terrors.CodeInvalidCommand, "the command is missing. raw=%s", raw)
	}
	d, ok := p.store.TryFindByID(segment)
	if !ok {
		return nil, "", terrors.New(terrors.CodeInvalidCommand, "the command is not registered. command=%s", segment)
	}
	if d.Type != commands.TypeRoot && !(d.Type == commands.TypeNativeCommand && len(d.OwnerIDs) == 0) {
		return nil, "", terrors.New(terrors.CodeInvalidCommand,
			"the command is not a root command. command=%s type=%s", d.ID, d.Type)
	}

	chain := []*commands.Descriptor{d}
	for !d.Type.IsLeaf() {
		next, after := text.NextSegment(rest, sep)
		if next == "" || p.isOptionOrValue(next) {
			break
		}
		child, ok := p.store.TryFindByID(next)
		if !ok || !child.IsOwnedBy(d.ID, p.store.Comparer()) {
			break
		}
		d, rest = child, after
		chain = append(chain, d)
	}
	return chain, rest, nil
}

func (p *CommandParser) isOptionOrValue(segment string) bool {
	t := p.opts.Text
	return p.comparer.HasPrefix(segment, t.OptionAliasPrefix) ||
		p.comparer.HasPrefix(segment, t.OptionPrefix) ||
		(t.ValueDelimiter != "" && strings.HasPrefix(segment, t.ValueDelimiter))
}

// bind maps the text after the command ids to options and arguments
func (p *CommandParser) bind(cmd *commands.Command, rest string, strict bool) error {
	d := cmd.Descriptor

	argText, tokens, err := text.SplitRegion(rest, p.opts.Text, p.comparer)
	if err != nil {
		return err
	}
	positional := text.SplitArguments(argText, p.opts.Text)

	seen := make(map[*commands.OptionDescriptor]bool, len(tokens))
	for _, token := range tokens {
		id, value, hasValue := text.SplitOptionString(token, p.opts.Text, p.comparer)

		desc, ok := d.Options.Lookup(id)
		if !ok && p.isHelpOption(id) {
			desc, ok = p.help, true
		}
		if !ok {
			if len(positional) < d.Arguments.Len() {
				// a token such as "-1 2" holds more than one value
				positional = append(positional, text.SplitArguments(token.Raw, p.opts.Text)...)
				continue
			}
			return terrors.New(terrors.CodeInvalidOption, "the option is not supported. command=%s option=%s", d.ID, id)
		}
		if seen[desc] {
			return terrors.New(terrors.CodeDuplicateOption, "the option is already given. command=%s option=%s", d.ID, desc.ID)
		}
		seen[desc] = true

		opt, err := p.option(d, desc, id, value, hasValue, strict)
		if err != nil {
			return err
		}
		opt.ByAlias = token.AliasPrefix
		cmd.Options = append(cmd.Options, opt)
	}

	for i, raw := range positional {
		desc, ok := d.Arguments.At(i + 1)
		if !ok {
			return terrors.New(terrors.CodeUnsupportedArgument,
				"the argument is not supported. command=%s position=%d value=%s", d.ID, i+1, raw)
		}
		value, err := p.convert(desc.DataType, raw, strict)
		if err != nil {
			return terrors.Wrap(err, terrors.CodeInvalidArgument,
				"the argument value is not a valid %s. command=%s argument=%s value=%s",
				desc.DataType.Normalized(), d.ID, desc.ID, raw)
		}
		cmd.Arguments = append(cmd.Arguments, &commands.Argument{Descriptor: desc, ID: desc.ID, Raw: raw, Value: value})
	}
	return nil
}

func (p *CommandParser) option(d *commands.Descriptor, desc *commands.OptionDescriptor, id, value string, hasValue, strict bool) (*commands.Option, error) {
	if !hasValue {
		if desc.DataType.Normalized() != commands.DataTypeBoolean {
			return nil, terrors.New(terrors.CodeInvalidOption,
				"the option value is missing. command=%s option=%s", d.ID, desc.ID)
		}
		return &commands.Option{Descriptor: desc, ID: desc.ID, Raw: "", Value: true}, nil
	}

	converted, err := p.convert(desc.DataType, value, strict)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeInvalidOption,
			"the option value is not a valid %s. command=%s option=%s value=%s",
			desc.DataType.Normalized(), d.ID, id, value)
	}
	return &commands.Option{Descriptor: desc, ID: desc.ID, Raw: value, Value: converted}, nil
}

// convert returns the typed value. Without strict typing a value that does
// not convert is kept as raw text.
func (p *CommandParser) convert(dataType commands.DataType, raw string, strict bool) (interface{}, error) {
	v, err := commands.ConvertValue(dataType, raw)
	if err != nil {
		if strict {
			return nil, err
		}
		return raw, nil
	}
	return v, nil
}

func (p *CommandParser) isHelpOption(id string) bool {
	h := p.opts.Help
	if !h.Enabled {
		return false
	}
	return (h.OptionID != "" && p.comparer.Equal(id, h.OptionID)) ||
		(h.OptionAlias != "" && p.comparer.Equal(id, h.OptionAlias))
}
