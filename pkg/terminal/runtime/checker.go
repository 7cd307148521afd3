package runtime

import (
	"context"

	"github.com/msto63/mdwterm/pkg/core/logging"
	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

var checkerLogger = logging.New("command-checker")

// DefaultChecker enforces descriptor flags, required options and arguments
// and the value checkers of each given value
type DefaultChecker struct{}

// Check implements Checker
func (DefaultChecker) Check(ctx context.Context, c *Context) (*CheckResult, error) {
	cmd := c.Command()
	if cmd == nil {
		return nil, terrors.New(terrors.CodeInvalidRequest, "the command is missing")
	}
	d := cmd.Descriptor
	result := &CheckResult{}

	switch {
	case d.Flags.Has(commands.FlagDisabled):
		return nil, terrors.New(terrors.CodeUnsupportedCommand, "the command is disabled. command=%s", d.ID)
	case d.Flags.Has(commands.FlagProtected) && !c.Authorized:
		return nil, terrors.New(terrors.CodeUnauthorizedAccess, "the command requires authorization. command=%s", d.ID)
	case d.Flags.Has(commands.FlagObsolete):
		result.warn("the command is obsolete. command=" + d.ID)
	}

	for _, od := range d.Options.All() {
		if od.Flags.Has(commands.FlagRequired) && !cmd.HasOption(od.ID) {
			return nil, terrors.New(terrors.CodeMissingOption, "the required option is missing. command=%s option=%s", d.ID, od.ID)
		}
	}
	for _, opt := range cmd.Options {
		od := opt.Descriptor
		if od == nil {
			continue
		}
		switch {
		case od.Flags.Has(commands.FlagDisabled):
			return nil, terrors.New(terrors.CodeUnsupportedOption, "the option is disabled. command=%s option=%s", d.ID, od.ID)
		case od.Flags.Has(commands.FlagProtected) && !c.Authorized:
			return nil, terrors.New(terrors.CodeUnauthorizedAccess, "the option requires authorization. command=%s option=%s", d.ID, od.ID)
		case od.Flags.Has(commands.FlagObsolete):
			result.warn("the option is obsolete. option=" + od.ID)
		}
		for _, vc := range od.ValueCheckers {
			if err := vc.CheckValue(opt.Raw, opt.Value); err != nil {
				return nil, terrors.Wrap(err, terrors.CodeInvalidOption, "the option value is invalid. command=%s option=%s", d.ID, od.ID)
			}
		}
	}

	for _, ad := range d.Arguments.All() {
		if ad.Flags.Has(commands.FlagRequired) {
			if _, ok := cmd.TryGetArgument(ad.ID); !ok {
				return nil, terrors.New(terrors.CodeMissingArgument,
					"the required argument is missing. command=%s argument=%s", d.ID, ad.ID)
			}
		}
	}
	for _, arg := range cmd.Arguments {
		ad := arg.Descriptor
		if ad == nil {
			continue
		}
		switch {
		case ad.Flags.Has(commands.FlagDisabled):
			return nil, terrors.New(terrors.CodeUnsupportedArgument, "the argument is disabled. command=%s argument=%s", d.ID, ad.ID)
		case ad.Flags.Has(commands.FlagProtected) && !c.Authorized:
			return nil, terrors.New(terrors.CodeUnauthorizedAccess, "the argument requires authorization. command=%s argument=%s", d.ID, ad.ID)
		case ad.Flags.Has(commands.FlagObsolete):
			result.warn("the argument is obsolete. argument=" + ad.ID)
		}
		for _, vc := range ad.ValueCheckers {
			if err := vc.CheckValue(arg.Raw, arg.Value); err != nil {
				return nil, terrors.Wrap(err, terrors.CodeInvalidArgument, "the argument value is invalid. command=%s argument=%s", d.ID, ad.ID)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, terrors.FromContext(err)
	}
	return result, nil
}

func (r *CheckResult) warn(msg string) {
	checkerLogger.Warn("Obsolete command usage", "detail", msg)
	r.Warnings = append(r.Warnings, msg)
}
