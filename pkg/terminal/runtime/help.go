package runtime

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

// DescriptorHelpProvider renders help text from the command descriptors
type DescriptorHelpProvider struct {
	Store commands.Store
	Text  text.Options
	Help  commands.HelpOptions
}

// ProvideHelp implements HelpProvider. The result value is the help text.
func (p DescriptorHelpProvider) ProvideHelp(ctx context.Context, c *Context) (*RunResult, error) {
	cmd := c.Command()
	if cmd == nil {
		return &RunResult{Value: ""}, nil
	}
	return &RunResult{Value: p.Render(c.Parsed)}, nil
}

// Render builds the help text for a parsed command
func (p DescriptorHelpProvider) Render(parsed *commands.ParsedCommand) string {
	d := parsed.Command.Descriptor
	opts := p.Text
	if opts.Separator == "" {
		opts = text.DefaultOptions()
	}

	path := make([]string, 0, len(parsed.Hierarchy))
	for _, c := range parsed.Hierarchy {
		path = append(path, c.ID())
	}
	if len(path) == 0 {
		path = append(path, d.ID)
	}

	var b strings.Builder
	b.WriteString(strings.Join(path, opts.Separator))
	if d.Description != "" {
		b.WriteString(" - ")
		b.WriteString(d.Description)
	}
	b.WriteString("\n\nUsage:\n  ")
	b.WriteString(strings.Join(path, opts.Separator))
	for _, a := range d.Arguments.All() {
		if a.Flags.Has(commands.FlagRequired) {
			fmt.Fprintf(&b, " <%s>", a.ID)
		} else {
			fmt.Fprintf(&b, " [%s]", a.ID)
		}
	}
	if d.Options.Len() > 0 {
		b.WriteString(" [options]")
	}
	b.WriteString("\n")

	if args := d.Arguments.All(); len(args) > 0 {
		b.WriteString("\nArguments:\n")
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		for _, a := range args {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", a.ID, a.DataType.Normalized(), requirement(a.Flags), a.Description)
		}
		tw.Flush()
	}

	if all := d.Options.All(); len(all) > 0 {
		b.WriteString("\nOptions:\n")
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		for _, o := range all {
			names := opts.OptionPrefix + o.ID
			if o.Alias != "" {
				names += ", " + opts.OptionAliasPrefix + o.Alias
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", names, o.DataType.Normalized(), requirement(o.Flags), o.Description)
		}
		tw.Flush()
	}

	if p.Store != nil && !d.Type.IsLeaf() {
		if children := p.Store.Children(d.ID); len(children) > 0 {
			b.WriteString("\nCommands:\n")
			tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
			for _, child := range children {
				if child.Flags.Has(commands.FlagDisabled) {
					continue
				}
				fmt.Fprintf(tw, "  %s\t%s\n", child.ID, child.Description)
			}
			tw.Flush()
		}
	}

	if p.Help.Enabled && p.Help.OptionID != "" {
		fmt.Fprintf(&b, "\nUse %s%s with any command for help.\n", opts.OptionPrefix, p.Help.OptionID)
	}
	return b.String()
}

func requirement(f commands.Flags) string {
	switch {
	case f.Has(commands.FlagRequired):
		return "required"
	case f.Has(commands.FlagObsolete):
		return "obsolete"
	default:
		return "optional"
	}
}
